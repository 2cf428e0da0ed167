// Package progress renders interactive row-count progress and emits
// machine-readable updates for schedulers.
package progress

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/johndauphine/colsync/internal/logging"
)

// Tracker aggregates row progress across concurrently syncing tables
// behind one terminal bar.
type Tracker struct {
	bar       *progressbar.ProgressBar
	total     int64
	current   atomic.Int64
	startTime time.Time

	mu     sync.Mutex
	active map[string]int // table name -> active worker count
}

// New creates a tracker; the bar appears once SetTotal is called.
func New() *Tracker {
	return &Tracker{
		startTime: time.Now(),
		active:    make(map[string]int),
	}
}

// SetTotal fixes the expected row total and renders the bar.
func (t *Tracker) SetTotal(total int64) {
	t.total = total
	t.bar = progressbar.NewOptions64(
		total,
		progressbar.OptionSetDescription("Syncing"),
		progressbar.OptionShowBytes(false),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("rows"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Add advances the row counter.
func (t *Tracker) Add(n int64) {
	t.current.Add(n)
	if t.bar != nil {
		t.bar.Add64(n)
	}
}

// StartTable marks a table as actively syncing.
func (t *Tracker) StartTable(name string) {
	t.mu.Lock()
	t.active[name]++
	count := len(t.active)
	t.mu.Unlock()

	if t.bar != nil {
		if count == 1 {
			t.bar.Describe(fmt.Sprintf("Syncing %s", name))
		} else {
			t.bar.Describe(fmt.Sprintf("Syncing (%d tables)", count))
		}
		t.bar.RenderBlank()
	}
}

// EndTable marks one table worker as finished.
func (t *Tracker) EndTable(name string) {
	t.mu.Lock()
	t.active[name]--
	if t.active[name] <= 0 {
		delete(t.active, name)
	}
	count := len(t.active)
	var remaining string
	for n := range t.active {
		remaining = n
		break
	}
	t.mu.Unlock()

	if t.bar != nil && count > 0 {
		if count == 1 {
			t.bar.Describe(fmt.Sprintf("Syncing %s", remaining))
		} else {
			t.bar.Describe(fmt.Sprintf("Syncing (%d tables)", count))
		}
	}
}

// Current returns rows counted so far.
func (t *Tracker) Current() int64 {
	return t.current.Load()
}

// Finish completes the bar and logs the throughput summary.
func (t *Tracker) Finish() {
	if t.bar != nil {
		t.bar.Finish()
	}
	elapsed := time.Since(t.startTime)
	rowsPerSec := float64(t.current.Load()) / elapsed.Seconds()
	fmt.Println()
	logging.Info("Sync complete: %d rows in %s (%.0f rows/sec)",
		t.current.Load(), elapsed.Round(time.Second), rowsPerSec)
}
