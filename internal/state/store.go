// Package state persists sync watermarks and run history. Two backends
// exist: SQLite (default, full history) and a YAML file (minimal, for
// schedulers that manage their own history).
package state

import (
	"fmt"
	"strconv"
	"time"
)

// Watermark is the durable high-water mark of one table's range column.
// The next incremental sync resumes strictly after it.
type Watermark struct {
	// Column is the range column the value was read from. A stored value
	// only resumes a sync on the same column; callers must restart
	// discovery when the resolved column differs.
	Column string

	// Kind tags the encoded value type: "int", "float", "time", "string".
	Kind string

	// Value is the textual encoding of the range-column value.
	Value string

	// Rows is the cumulative row count synced through this watermark.
	Rows int64

	UpdatedAt time.Time
}

// Run is one recorded invocation.
type Run struct {
	ID          string
	StartedAt   time.Time
	CompletedAt *time.Time
	Status      string
	Source      string
	Destination string
}

// TableResult is one table's outcome within a run.
type TableResult struct {
	RunID       string
	Table       string
	Strategy    string
	Status      string
	Rows        int64
	SourceRows  int64
	DestRows    int64
	Error       string
	Duration    time.Duration
	CompletedAt time.Time
}

// Store is the persistence backend.
type Store interface {
	// GetWatermark returns the stored watermark, or nil when the table
	// has never completed a sync.
	GetWatermark(schema, table string) (*Watermark, error)

	// SetWatermark durably records a new watermark. Callers invoke this
	// only after the destination load and verification succeed, so a
	// crash between load and checkpoint re-reads rows rather than
	// skipping them.
	SetWatermark(schema, table string, wm Watermark) error

	// Run history.
	CreateRun(r Run) error
	CompleteRun(id, status string) error
	RecordTableResult(tr TableResult) error
	ListRuns(limit int) ([]Run, error)
	ListTableResults(runID string) ([]TableResult, error)

	Close() error
}

// EncodeValue converts a range-column value to its tagged textual form.
// Integers round-trip exactly; JSON's float detour would not survive 19
// significant digits.
func EncodeValue(v any) (kind, text string, err error) {
	switch n := v.(type) {
	case int64:
		return "int", strconv.FormatInt(n, 10), nil
	case int:
		return "int", strconv.Itoa(n), nil
	case int32:
		return "int", strconv.FormatInt(int64(n), 10), nil
	case float64:
		return "float", strconv.FormatFloat(n, 'g', -1, 64), nil
	case time.Time:
		return "time", n.UTC().Format(time.RFC3339Nano), nil
	case string:
		return "string", n, nil
	case []byte:
		return "string", string(n), nil
	default:
		return "", "", fmt.Errorf("unsupported watermark type %T", v)
	}
}

// DecodeValue reverses EncodeValue.
func DecodeValue(kind, text string) (any, error) {
	switch kind {
	case "int":
		return strconv.ParseInt(text, 10, 64)
	case "float":
		return strconv.ParseFloat(text, 64)
	case "time":
		return time.Parse(time.RFC3339Nano, text)
	case "string":
		return text, nil
	default:
		return nil, fmt.Errorf("unknown watermark kind %q", kind)
	}
}
