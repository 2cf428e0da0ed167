// Package extract reads source rows, either as one ordered stream of
// parallel-fetched chunks or as a sequential keyset-paginated scan.
package extract

import (
	"context"
	"database/sql"
	"time"

	"github.com/johndauphine/colsync/internal/driver"
	"github.com/johndauphine/colsync/internal/logging"
	"github.com/johndauphine/colsync/internal/planner"
	"github.com/johndauphine/colsync/internal/syncerr"
)

// DefaultChunkTimeout bounds a single chunk query. A chunk that exceeds it
// is reported failed; the remaining chunks keep flowing.
const DefaultChunkTimeout = 600 * time.Second

// Batch is one tagged unit of extracted rows.
type Batch struct {
	// ChunkID identifies the chunk that produced this batch (-1 for
	// sequential reads).
	ChunkID int

	// Rows contains the data, each row a slice of column values.
	Rows [][]any

	// LastKey is the highest range-column value in Rows.
	LastKey any

	// Err records a per-chunk read failure. The batch carries no rows and
	// the stream continues with later chunks.
	Err error

	// Done marks the final batch of the stream.
	Done bool
}

type chunkResult struct {
	index int
	rows  [][]any
	err   error
}

// ChunkRunner executes one chunk query and returns its rows.
type ChunkRunner func(ctx context.Context, chunk planner.Chunk) ([][]any, error)

// RangeReader fetches planned chunks with a pool of workers, each on its
// own dedicated connection, and reconstructs the stream in chunk order so
// downstream consumers observe rows exactly as a single ordered scan would
// produce them.
type RangeReader struct {
	DB           *sql.DB
	Dialect      driver.Dialect
	Table        *driver.Table
	Columns      []string
	Types        []driver.ColumnType
	RangeCol     string
	Workers      int
	ChunkTimeout time.Duration

	// Normalizer rewrites scanned rows when the engine driver returns
	// wrapper types. May be nil.
	Normalizer driver.RowNormalizer

	// runChunk overrides chunk execution; nil selects the SQL path.
	runChunk ChunkRunner
}

// Read fetches all chunks and emits one Batch per chunk in chunk order,
// then a terminal Done batch. A failed chunk yields a batch with Err set
// and no rows.
func (r *RangeReader) Read(ctx context.Context, chunks []planner.Chunk) <-chan Batch {
	out := make(chan Batch, r.Workers)
	if len(chunks) == 0 {
		out <- Batch{ChunkID: -1, Done: true}
		close(out)
		return out
	}

	run := r.runChunk
	if run == nil {
		run = r.executeChunk
	}

	results := make(chan chunkResult, len(chunks))
	sem := make(chan struct{}, r.workers())

	go func() {
		for _, chunk := range chunks {
			sem <- struct{}{}
			go func(c planner.Chunk) {
				defer func() { <-sem }()
				rows, err := run(ctx, c)
				results <- chunkResult{index: c.ID, rows: rows, err: err}
			}(chunk)
		}
	}()

	go func() {
		defer close(out)
		pending := make(map[int]chunkResult, r.workers())
		next := 0
		for range chunks {
			res := <-results
			pending[res.index] = res
			for {
				cur, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				select {
				case out <- r.chunkBatch(cur):
				case <-ctx.Done():
					return
				}
				next++
			}
		}
		select {
		case out <- Batch{ChunkID: -1, Done: true}:
		case <-ctx.Done():
		}
	}()

	return out
}

func (r *RangeReader) chunkBatch(res chunkResult) Batch {
	if res.err != nil {
		err := syncerr.ChunkRead(r.Table.FullName(), "chunk read", res.err)
		logging.Error("chunk %d of %s failed: %v", res.index, r.Table.FullName(), res.err)
		return Batch{ChunkID: res.index, Err: err}
	}
	b := Batch{ChunkID: res.index, Rows: res.rows}
	if keyIdx := r.keyIndex(); keyIdx >= 0 && len(res.rows) > 0 {
		b.LastKey = res.rows[len(res.rows)-1][keyIdx]
	}
	return b
}

func (r *RangeReader) executeChunk(ctx context.Context, chunk planner.Chunk) ([][]any, error) {
	timeout := r.ChunkTimeout
	if timeout <= 0 {
		timeout = DefaultChunkTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// A dedicated connection per in-flight chunk; workers never share.
	conn, err := r.DB.Conn(cctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	query := r.Dialect.ChunkQuery(r.Dialect.ColumnList(r.Columns), r.RangeCol, r.Table.Schema, r.Table.Name)
	rows, err := conn.QueryContext(cctx, query, r.Dialect.ChunkArgs(chunk.Start, chunk.End)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	data, _, err := scanRows(rows, len(r.Columns), -1, r.Normalizer, r.Types)
	return data, err
}

func (r *RangeReader) workers() int {
	if r.Workers < 1 {
		return 1
	}
	return r.Workers
}

func (r *RangeReader) keyIndex() int {
	return columnIndex(r.Columns, r.RangeCol)
}

// scanRows scans all result rows, reusing the scan-pointer slice per row.
// keyIdx >= 0 selects the column whose final value becomes the returned
// last key.
func scanRows(rows *sql.Rows, numCols, keyIdx int, norm driver.RowNormalizer, types []driver.ColumnType) ([][]any, any, error) {
	var result [][]any
	ptrs := make([]any, numCols)

	for rows.Next() {
		row := make([]any, numCols)
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		if norm != nil {
			norm.NormalizeRow(row, types)
		}
		result = append(result, row)
	}

	var lastKey any
	if keyIdx >= 0 && len(result) > 0 {
		lastKey = result[len(result)-1][keyIdx]
	}
	return result, lastKey, rows.Err()
}

func columnIndex(cols []string, name string) int {
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	return -1
}

// Stream executes one query and delivers its rows to fn in batches of
// batchSize, returning the total row count. Used for whole-partition scans
// where no ordering or chunking applies.
func Stream(ctx context.Context, db *sql.DB, query string, args []any, numCols, batchSize int, norm driver.RowNormalizer, types []driver.ColumnType, fn func(batch [][]any) error) (int64, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	if batchSize < 1 {
		batchSize = 10000
	}

	var total int64
	batch := make([][]any, 0, batchSize)
	ptrs := make([]any, numCols)

	for rows.Next() {
		row := make([]any, numCols)
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return total, err
		}
		if norm != nil {
			norm.NormalizeRow(row, types)
		}
		batch = append(batch, row)
		if len(batch) >= batchSize {
			if err := fn(batch); err != nil {
				return total, err
			}
			total += int64(len(batch))
			batch = batch[:0]
		}
	}
	if err := rows.Err(); err != nil {
		return total, err
	}
	if len(batch) > 0 {
		if err := fn(batch); err != nil {
			return total, err
		}
		total += int64(len(batch))
	}
	return total, nil
}
