// Package planner computes the chunk boundaries for parallel bulk
// extraction. Boundaries come from sampled order statistics of the range
// column rather than assuming uniform key density, so chunks stay near
// equal cardinality even when keys are skewed.
package planner

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/johndauphine/colsync/internal/driver"
	"github.com/johndauphine/colsync/internal/logging"
	"github.com/johndauphine/colsync/internal/syncerr"
)

// Chunk is one half-open range (Start, End] of the range column. Chunks
// cover the discovered [min, max] exactly: no gaps, no overlaps, each row
// assignable to exactly one chunk.
type Chunk struct {
	ID    int
	Start int64 // exclusive; queried with >
	End   int64 // inclusive; queried with <=
}

// TargetChunkCount bounds the chunk count: twice the worker count keeps
// workers busy as chunks finish unevenly, never more chunks than rows.
func TargetChunkCount(workers int, rowCount int64) int {
	n := workers * 2
	if rowCount > 0 && int64(n) > rowCount {
		n = int(rowCount)
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Assemble turns sampled boundary values into chunks. The first chunk
// starts at min-1 so a strict > comparison still includes the row at min;
// the last chunk ends exactly at max. Boundaries outside (min, max) or out
// of order are dropped. Fewer than one usable boundary collapses to a
// single chunk covering the whole range.
func Assemble(min, max int64, boundaries []int64) []Chunk {
	start := min - 1

	var usable []int64
	prev := min
	for _, b := range boundaries {
		if b <= prev || b >= max {
			continue
		}
		usable = append(usable, b)
		prev = b
	}

	chunks := make([]Chunk, 0, len(usable)+1)
	for i, b := range usable {
		chunks = append(chunks, Chunk{ID: i, Start: start, End: b})
		start = b
	}
	chunks = append(chunks, Chunk{ID: len(chunks), Start: start, End: max})
	return chunks
}

// PlanChunks discovers the range of rangeCol and samples boundary values
// at every step-th position in sorted order. rangeCol must be a
// catalog-validated column name. A nil result with nil error means the
// table is empty.
func PlanChunks(ctx context.Context, db *sql.DB, d driver.Dialect, table *driver.Table, rangeCol string, targetChunks int) ([]Chunk, error) {
	if !table.HasColumn(rangeCol) {
		return nil, syncerr.Schema(table.FullName(), "plan chunks",
			fmt.Errorf("range column %q not present in catalog", rangeCol))
	}

	min, max, empty, err := minMax(ctx, db, d, table, rangeCol)
	if err != nil {
		return nil, syncerr.ChunkRead(table.FullName(), "range discovery", err)
	}
	if empty {
		return nil, nil
	}

	if table.RowCount <= 0 || targetChunks <= 1 || min == max {
		return []Chunk{{ID: 0, Start: min - 1, End: max}}, nil
	}

	step := table.RowCount / int64(targetChunks)
	if table.RowCount%int64(targetChunks) != 0 {
		step++
	}
	if step < 1 {
		step = 1
	}

	boundaries, err := sampleBoundaries(ctx, db, d, table, rangeCol, step)
	if err != nil {
		return nil, syncerr.ChunkRead(table.FullName(), "boundary sampling", err)
	}

	chunks := Assemble(min, max, boundaries)
	logging.Debug("planned %d chunks for %s over %s [%d, %d], step %d",
		len(chunks), table.FullName(), rangeCol, min, max, step)
	return chunks, nil
}

func minMax(ctx context.Context, db *sql.DB, d driver.Dialect, table *driver.Table, rangeCol string) (int64, int64, bool, error) {
	var minVal, maxVal any
	query := d.MinMaxQuery(rangeCol, table.Schema, table.Name)
	if err := db.QueryRowContext(ctx, query).Scan(&minVal, &maxVal); err != nil {
		return 0, 0, false, err
	}
	if minVal == nil || maxVal == nil {
		return 0, 0, true, nil
	}

	min, err := toInt64(minVal)
	if err != nil {
		return 0, 0, false, fmt.Errorf("min value: %w", err)
	}
	max, err := toInt64(maxVal)
	if err != nil {
		return 0, 0, false, fmt.Errorf("max value: %w", err)
	}
	return min, max, false, nil
}

func sampleBoundaries(ctx context.Context, db *sql.DB, d driver.Dialect, table *driver.Table, rangeCol string, step int64) ([]int64, error) {
	query := d.BoundaryQuery(rangeCol, table.Schema, table.Name)
	rows, err := db.QueryContext(ctx, query, d.BoundaryArgs(step)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var boundaries []int64
	for rows.Next() {
		var raw any
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		v, err := toInt64(raw)
		if err != nil {
			return nil, err
		}
		boundaries = append(boundaries, v)
	}
	return boundaries, rows.Err()
}

// toInt64 normalizes the scan value of a numeric range column. Oracle
// surfaces NUMBER as a textual type, hence the Stringer and string cases.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	case string:
		return strconv.ParseInt(n, 10, 64)
	case fmt.Stringer:
		return strconv.ParseInt(n.String(), 10, 64)
	default:
		return 0, fmt.Errorf("unsupported range column value %T", v)
	}
}
