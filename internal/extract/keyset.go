package extract

import (
	"context"
	"database/sql"

	"github.com/johndauphine/colsync/internal/driver"
	"github.com/johndauphine/colsync/internal/logging"
	"github.com/johndauphine/colsync/internal/syncerr"
)

// PageRunner executes one keyset page and returns its rows plus the last
// range-column value.
type PageRunner func(ctx context.Context, watermark any, inclusive bool) ([][]any, any, error)

// KeysetReader streams a table sequentially through keyset pagination on
// the range column.
//
// The comparator against the stored watermark is part of the contract: the
// first-ever sync uses an inclusive bound so the row carrying the initial
// watermark value itself is captured, while every resumption uses a strict
// bound so the last previously committed row is never re-read. Pages after
// the first always advance strictly past the prior page's last key.
type KeysetReader struct {
	DB        *sql.DB
	Dialect   driver.Dialect
	Table     *driver.Table
	Columns   []string
	Types     []driver.ColumnType
	RangeCol  string
	BatchSize int

	// Watermark is the range-column position to read from.
	Watermark any

	// FirstSync marks the first-ever sync of this table, selecting the
	// inclusive comparator for the opening page.
	FirstSync bool

	Normalizer driver.RowNormalizer

	// runPage overrides page execution; nil selects the SQL path.
	runPage PageRunner
}

// Read streams batches until a short page signals the end of new rows. A
// read error terminates the stream with Err set; rows already emitted
// remain valid.
func (r *KeysetReader) Read(ctx context.Context) <-chan Batch {
	out := make(chan Batch, 2)

	run := r.runPage
	if run == nil {
		run = r.executePage
	}

	go func() {
		defer close(out)

		watermark := r.Watermark
		inclusive := r.FirstSync
		batchSize := r.BatchSize
		if batchSize < 1 {
			batchSize = 10000
		}

		for {
			rows, lastKey, err := run(ctx, watermark, inclusive)
			if err != nil {
				out <- Batch{ChunkID: -1, Err: syncerr.ChunkRead(r.Table.FullName(), "keyset page", err)}
				return
			}
			if len(rows) > 0 {
				select {
				case out <- Batch{ChunkID: -1, Rows: rows, LastKey: lastKey}:
				case <-ctx.Done():
					out <- Batch{ChunkID: -1, Err: ctx.Err()}
					return
				}
				watermark = lastKey
			}
			if len(rows) < batchSize {
				out <- Batch{ChunkID: -1, LastKey: watermark, Done: true}
				return
			}
			inclusive = false
		}
	}()

	return out
}

func (r *KeysetReader) executePage(ctx context.Context, watermark any, inclusive bool) ([][]any, any, error) {
	batchSize := r.BatchSize
	if batchSize < 1 {
		batchSize = 10000
	}
	query := r.Dialect.KeysetQuery(r.Dialect.ColumnList(r.Columns), r.RangeCol, r.Table.Schema, r.Table.Name, inclusive)
	logging.Debug("keyset page for %s from %v (inclusive=%v)", r.Table.FullName(), watermark, inclusive)

	rows, err := r.DB.QueryContext(ctx, query, r.Dialect.KeysetArgs(watermark, batchSize)...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	return scanRows(rows, len(r.Columns), columnIndex(r.Columns, r.RangeCol), r.Normalizer, r.Types)
}
