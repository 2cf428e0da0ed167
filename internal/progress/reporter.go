package progress

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/johndauphine/colsync/internal/logging"
)

// Update is one machine-readable progress line for schedulers that parse
// stderr instead of watching a terminal bar.
type Update struct {
	Timestamp      string   `json:"timestamp"`
	Phase          string   `json:"phase"` // inspecting, syncing, merging, verifying, complete
	TablesComplete int      `json:"tables_complete"`
	TablesTotal    int      `json:"tables_total"`
	TablesRunning  int      `json:"tables_running"`
	RowsSynced     int64    `json:"rows_synced"`
	RowsTotal      int64    `json:"rows_total,omitempty"`
	ProgressPct    float64  `json:"progress_pct"`
	RowsPerSecond  int64    `json:"rows_per_second,omitempty"`
	CurrentTables  []string `json:"current_tables,omitempty"`
	ErrorCount     int      `json:"error_count,omitempty"`
}

// Reporter emits progress updates.
type Reporter interface {
	// Report emits an update, possibly throttled.
	Report(u Update)
	// ReportImmediate bypasses throttling, for phase transitions.
	ReportImmediate(u Update)
	Close()
}

// JSONReporter writes one JSON object per line, throttled.
type JSONReporter struct {
	writer     io.Writer
	mu         sync.Mutex
	interval   time.Duration
	lastReport time.Time
	closed     bool
}

// NewJSONReporter creates a reporter writing to w (stderr when nil) with
// a minimum interval between updates.
func NewJSONReporter(w io.Writer, interval time.Duration) *JSONReporter {
	if w == nil {
		w = os.Stderr
	}
	return &JSONReporter{writer: w, interval: interval}
}

func (r *JSONReporter) Report(u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	now := time.Now()
	if r.interval > 0 && now.Sub(r.lastReport) < r.interval {
		return
	}
	r.lastReport = now
	r.emit(u, now)
}

func (r *JSONReporter) ReportImmediate(u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	now := time.Now()
	r.emit(u, now)
	r.lastReport = now
}

func (r *JSONReporter) emit(u Update, now time.Time) {
	if u.Timestamp == "" {
		u.Timestamp = now.Format(time.RFC3339)
	}
	data, err := json.Marshal(u)
	if err != nil {
		logging.Warn("marshaling progress update: %v", err)
		return
	}
	fmt.Fprintln(r.writer, string(data))
}

func (r *JSONReporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

// NullReporter discards updates.
type NullReporter struct{}

func (NullReporter) Report(Update)          {}
func (NullReporter) ReportImmediate(Update) {}
func (NullReporter) Close()                 {}
