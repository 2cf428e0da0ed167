// Package syncerr classifies sync failures so that every error surfaced to
// the user or the exit-code mapper carries an explicit category. Chunk and
// partition failures never cross a worker boundary as bare errors; they are
// wrapped here and aggregated into partial results.
package syncerr

import (
	"errors"
	"fmt"
)

// Kind is the failure category of a sync error.
type Kind int

const (
	// KindConnectivity - source or destination unreachable. Fatal for the
	// affected table, safe to retry on the next invocation.
	KindConnectivity Kind = iota
	// KindSchema - columns or primary key unavailable. Fatal, table skipped.
	KindSchema
	// KindPermission - catalog metadata restricted. Degraded, non-fatal;
	// the affected field falls back to its default.
	KindPermission
	// KindChunkRead - a single chunk or partition query failed or timed out.
	// Isolated, does not abort sibling workers.
	KindChunkRead
	// KindMerge - staging-store union failed for a partition. That
	// partition's rows are dropped with a reported count, others proceed.
	KindMerge
	// KindVerification - row counts diverged beyond tolerance. Non-fatal,
	// reported, watermark not advanced.
	KindVerification
)

func (k Kind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindSchema:
		return "schema"
	case KindPermission:
		return "permission"
	case KindChunkRead:
		return "chunk-read"
	case KindMerge:
		return "merge"
	case KindVerification:
		return "verification"
	default:
		return "unknown"
	}
}

// Error is a classified sync failure tied to a table.
type Error struct {
	Kind  Kind
	Table string
	Op    string
	Err   error
}

func (e *Error) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("%s error on %s (%s): %v", e.Kind, e.Table, e.Op, e.Err)
	}
	return fmt.Sprintf("%s error (%s): %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a kind, table, and operation description.
func New(kind Kind, table, op string, err error) *Error {
	return &Error{Kind: kind, Table: table, Op: op, Err: err}
}

// Connectivity marks a source/destination connection failure.
func Connectivity(table, op string, err error) *Error {
	return New(KindConnectivity, table, op, err)
}

// Schema marks a fatal structural-metadata failure.
func Schema(table, op string, err error) *Error {
	return New(KindSchema, table, op, err)
}

// Permission marks a degraded, non-fatal catalog restriction.
func Permission(table, op string, err error) *Error {
	return New(KindPermission, table, op, err)
}

// ChunkRead marks an isolated chunk or partition read failure.
func ChunkRead(table, op string, err error) *Error {
	return New(KindChunkRead, table, op, err)
}

// Merge marks a staging-store union failure.
func Merge(table, op string, err error) *Error {
	return New(KindMerge, table, op, err)
}

// Verification marks a row-count mismatch beyond tolerance.
func Verification(table, op string, err error) *Error {
	return New(KindVerification, table, op, err)
}

// KindOf returns the kind of err if it is (or wraps) a classified sync
// error. ok is false for unclassified errors.
func KindOf(err error) (Kind, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
