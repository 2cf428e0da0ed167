package exitcodes

import (
	"errors"
	"os"
	"testing"

	"github.com/johndauphine/colsync/internal/syncerr"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, Success},
		{"path error", &os.PathError{Op: "open", Path: "/foo", Err: errors.New("no such file")}, IOError},
		{"yaml parse error", errors.New("yaml: unmarshal error"), ConfigError},
		{"json parse error", errors.New("json: unmarshal error"), ConfigError},
		{"no such file", errors.New("open config.yaml: no such file or directory"), IOError},
		{"connection refused", errors.New("dial tcp: connection refused"), ConnectionError},
		{"login failed", errors.New("login failed for user"), ConnectionError},
		{"oracle listener down", errors.New("ORA-12541: TNS:no listener"), ConnectionError},
		{"context canceled", errors.New("context canceled"), Cancelled},
		{"watermark error", errors.New("watermark read failed"), StateError},
		{"unknown error", errors.New("something unexpected happened"), ExtractError},
		{"classified connectivity", syncerr.Connectivity("ORDERS", "ping", errors.New("down")), ConnectionError},
		{"classified schema", syncerr.Schema("ORDERS", "columns", errors.New("no columns")), ExtractError},
		{"classified chunk read", syncerr.ChunkRead("ORDERS", "chunk 4", errors.New("timeout")), ExtractError},
		{"classified merge", syncerr.Merge("ORDERS", "attach", errors.New("schema drift")), ExtractError},
		{"classified verification", syncerr.Verification("ORDERS", "counts", errors.New("off by 45")), VerificationError},
		{"explicit exit error", NewExitError(errors.New("boom"), StateError), StateError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err)
			if got != tt.expected {
				t.Errorf("FromError(%v) = %d (%s), want %d (%s)",
					tt.err, got, Description(got), tt.expected, Description(tt.expected))
			}
		})
	}
}

func TestIsRecoverable(t *testing.T) {
	recoverable := []int{ConnectionError, Cancelled, IOError}
	for _, code := range recoverable {
		if !IsRecoverable(code) {
			t.Errorf("expected code %d (%s) to be recoverable", code, Description(code))
		}
	}

	permanent := []int{Success, ConfigError, ExtractError, VerificationError, StateError}
	for _, code := range permanent {
		if IsRecoverable(code) {
			t.Errorf("expected code %d (%s) to be non-recoverable", code, Description(code))
		}
	}
}

func TestExitErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")
	err := NewExitError(inner, ConfigError)
	if !errors.Is(err, inner) {
		t.Error("ExitError should unwrap to inner error")
	}
}
