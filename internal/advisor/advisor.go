// Package advisor selects the sync strategy for a table. The built-in
// rule derives one from catalog statistics; an external advisor may
// instead hand over a JSON strategy, which is validated strictly before
// anything acts on it.
package advisor

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/johndauphine/colsync/internal/driver"
)

// Strategy modes.
const (
	ModeFast       = "fast"       // chunk-parallel bulk load
	ModePartition  = "partition"  // partition-parallel bulk load
	ModeSequential = "sequential" // keyset-paginated scan
)

// Bounds on externally supplied tuning values.
const (
	maxWorkers   = 64
	maxBatchSize = 1_000_000
)

// Default-rule thresholds.
const (
	largeRowCount  = 1_000_000
	largeSizeMB    = 500
	mediumRowCount = 100_000
)

// Strategy is one table's sync plan.
type Strategy struct {
	Mode      string `json:"mode"`
	Workers   int    `json:"workers"`
	BatchSize int    `json:"batch_size"`

	// RangeColumn drives chunking and keyset pagination. Must name a
	// catalog column of the table.
	RangeColumn string `json:"range_column,omitempty"`
}

// Default derives the strategy from catalog statistics, preferring a
// partition-parallel load when the table is physically partitioned and
// scaling workers and batch size with table bulk.
func Default(t *driver.Table) Strategy {
	s := Strategy{Mode: ModeSequential, Workers: 2, BatchSize: 10000}
	switch {
	case t.RowCount > largeRowCount || t.SizeMB > largeSizeMB:
		s = Strategy{Mode: ModeFast, Workers: 8, BatchSize: 50000}
	case t.RowCount > mediumRowCount:
		s = Strategy{Mode: ModeFast, Workers: 4, BatchSize: 30000}
	}

	if s.Mode == ModeFast {
		if t.IsPartitioned() {
			s.Mode = ModePartition
		} else if !t.SupportsRangeChunking() {
			// No numeric key to chunk on; fall back to one ordered scan.
			s.Mode = ModeSequential
		}
	}

	if s.RangeColumn == "" {
		if t.HasPK() {
			s.RangeColumn = t.PrimaryKey
		} else if len(t.Candidates) > 0 {
			s.RangeColumn = t.Candidates[0].Name
		}
	}
	return s
}

// Parse validates an externally produced JSON strategy against the
// table's catalog metadata. The payload is untrusted: unknown fields,
// out-of-range tuning values, unknown modes, and column names absent
// from the catalog are all rejected rather than repaired.
func Parse(raw []byte, t *driver.Table) (Strategy, error) {
	var s Strategy
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return Strategy{}, fmt.Errorf("invalid strategy payload: %w", err)
	}

	switch s.Mode {
	case ModeFast, ModePartition, ModeSequential:
	default:
		return Strategy{}, fmt.Errorf("unknown strategy mode %q", s.Mode)
	}

	if s.Workers < 1 || s.Workers > maxWorkers {
		return Strategy{}, fmt.Errorf("workers %d out of range [1, %d]", s.Workers, maxWorkers)
	}
	if s.BatchSize < 1 || s.BatchSize > maxBatchSize {
		return Strategy{}, fmt.Errorf("batch size %d out of range [1, %d]", s.BatchSize, maxBatchSize)
	}

	if s.RangeColumn != "" && !t.HasColumn(s.RangeColumn) {
		return Strategy{}, fmt.Errorf("range column %q is not a column of %s", s.RangeColumn, t.FullName())
	}

	if s.Mode == ModePartition && !t.IsPartitioned() {
		return Strategy{}, fmt.Errorf("partition mode requested but %s is not partitioned", t.FullName())
	}
	if s.Mode == ModeFast && s.RangeColumn == "" && !t.SupportsRangeChunking() {
		return Strategy{}, fmt.Errorf("fast mode requested but %s has no chunkable key", t.FullName())
	}
	return s, nil
}
