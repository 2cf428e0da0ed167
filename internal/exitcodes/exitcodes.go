// Package exitcodes defines the exit codes colsync reports to schedulers.
// Orchestration environments (Airflow, Kubernetes CronJobs) key retry
// behavior off these values, so they are stable and documented.
package exitcodes

import (
	"errors"
	"os"
	"strings"

	"github.com/johndauphine/colsync/internal/syncerr"
)

const (
	// Success - sync completed; includes mismatch-only runs, which exit
	// zero with a printed warning so schedulers do not hard-fail them.
	Success = 0

	// ConfigError - configuration/YAML/JSON parsing errors (don't retry)
	ConfigError = 1

	// ConnectionError - source or destination connection errors (retryable)
	ConnectionError = 2

	// ExtractError - chunk planning, read, or staging merge failed
	ExtractError = 3

	// VerificationError - a table's verification status was error
	VerificationError = 4

	// Cancelled - user cancelled via SIGINT/SIGTERM (retryable)
	Cancelled = 5

	// StateError - watermark/state store errors
	StateError = 6

	// IOError - file I/O errors (retryable)
	IOError = 7
)

// ExitError wraps an error with an explicit exit code.
type ExitError struct {
	Err  error
	Code int
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError creates an ExitError with the given code.
func NewExitError(err error, code int) *ExitError {
	return &ExitError{Err: err, Code: code}
}

// FromError determines the exit code for an error, preferring the explicit
// sync-error classification and falling back to message inspection.
func FromError(err error) int {
	if err == nil {
		return Success
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	if kind, ok := syncerr.KindOf(err); ok {
		switch kind {
		case syncerr.KindConnectivity:
			return ConnectionError
		case syncerr.KindVerification:
			return VerificationError
		default:
			// Schema, chunk-read, merge, and escalated permission failures
			// all surface as extract errors.
			return ExtractError
		}
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return IOError
	}

	errStr := strings.ToLower(err.Error())

	if containsAny(errStr, []string{
		"no such file",
		"file not found",
		"permission denied",
		"is a directory",
		"not a directory",
	}) {
		return IOError
	}

	if containsAny(errStr, []string{
		"yaml:",
		"json:",
		"unmarshal",
		"invalid configuration",
		"missing required",
		"invalid value",
	}) && !containsAny(errStr, []string{"connection", "connect", "dial"}) {
		return ConfigError
	}

	if containsAny(errStr, []string{
		"connection",
		"connect",
		"dial",
		"refused",
		"unreachable",
		"no such host",
		"network",
		"ping",
		"login failed",
		"authentication",
		"ora-12541",
	}) {
		return ConnectionError
	}

	if containsAny(errStr, []string{
		"cancel",
		"interrupt",
		"context canceled",
		"context deadline",
	}) {
		return Cancelled
	}

	if containsAny(errStr, []string{
		"watermark",
		"state store",
		"checkpoint",
	}) {
		return StateError
	}

	return ExtractError
}

// IsRecoverable returns true if the exit code indicates a retryable failure.
func IsRecoverable(code int) bool {
	switch code {
	case ConnectionError, Cancelled, IOError:
		return true
	default:
		return false
	}
}

// Description returns a human-readable description of the exit code.
func Description(code int) string {
	switch code {
	case Success:
		return "success"
	case ConfigError:
		return "configuration error"
	case ConnectionError:
		return "connection error (recoverable)"
	case ExtractError:
		return "extract/merge error"
	case VerificationError:
		return "verification error"
	case Cancelled:
		return "cancelled (recoverable)"
	case StateError:
		return "state store error"
	case IOError:
		return "I/O error (recoverable)"
	default:
		return "unknown error"
	}
}

func containsAny(s string, substrs []string) bool {
	for _, substr := range substrs {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
