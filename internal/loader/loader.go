// Package loader moves extracted rows into the DuckDB destination. Three
// paths exist: partition-parallel bulk loads through worker-private
// staging stores, chunk-parallel bulk loads written in order directly to
// the destination, and sequential incremental appends.
package loader

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"

	"github.com/johndauphine/colsync/internal/driver"
	"github.com/johndauphine/colsync/internal/duck"
	"github.com/johndauphine/colsync/internal/extract"
	"github.com/johndauphine/colsync/internal/logging"
	"github.com/johndauphine/colsync/internal/planner"
	"github.com/johndauphine/colsync/internal/syncerr"
)

// Config holds the tunables shared by all load paths.
type Config struct {
	Workers    int
	BatchSize  int
	StagingDir string
}

func (c Config) workers() int {
	if c.Workers < 1 {
		return 1
	}
	return c.Workers
}

func (c Config) batchSize() int {
	if c.BatchSize < 1 {
		return 10000
	}
	return c.BatchSize
}

// PartitionResult reports one partition's outcome. A failed partition
// contributes zero rows and carries its error; siblings are unaffected.
type PartitionResult struct {
	Partition string
	Rows      int64
	Err       error
}

// Result summarizes one table load.
type Result struct {
	Table        string
	Rows         int64
	FailedChunks int
	Partitions   []PartitionResult

	// LastKey is the highest range-column value observed, the candidate
	// watermark. Nil when no rows were read.
	LastKey any
}

// FailedPartitions counts partitions that produced an error.
func (r *Result) FailedPartitions() int {
	var n int
	for _, p := range r.Partitions {
		if p.Err != nil {
			n++
		}
	}
	return n
}

// PartitionLoader bulk-loads a partitioned table: one worker per physical
// partition, each writing a private staging store created with the shared
// schema, then a union merge of the successful stores into the
// destination. Staging files are deleted on every path. The merge sees
// only partitions that completed; a failed partition is reported with
// zero rows.
type PartitionLoader struct {
	Src        *sql.DB
	Dialect    driver.Dialect
	Table      *driver.Table
	Schema     driver.Schema
	Normalizer driver.RowNormalizer
	Dest       *duck.Store
	DestTable  string
	Cfg        Config

	// runPartition and merge override the staging and merge steps; nil
	// selects the DuckDB path.
	runPartition func(ctx context.Context, partition string) (int64, string, error)
	merge        func(ctx context.Context, paths []string) (int64, error)
}

func (l *PartitionLoader) Load(ctx context.Context) (*Result, error) {
	parts := l.Table.Partitions
	if len(parts) == 0 {
		return nil, syncerr.Schema(l.Table.FullName(), "partition load", fmt.Errorf("table has no partitions"))
	}

	run := l.runPartition
	if run == nil {
		run = l.loadOnePartition
	}
	merge := l.merge
	if merge == nil {
		merge = func(ctx context.Context, paths []string) (int64, error) {
			return l.Dest.MergeStaged(ctx, l.DestTable, l.Schema, paths, true)
		}
	}

	results := make([]PartitionResult, len(parts))
	stagingPaths := make([]string, len(parts))

	var wg sync.WaitGroup
	sem := make(chan struct{}, l.Cfg.workers())
	for i, part := range parts {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, partition string) {
			defer wg.Done()
			defer func() { <-sem }()
			rows, path, err := run(ctx, partition)
			if err != nil {
				logging.Error("partition %s of %s failed: %v", partition, l.Table.FullName(), err)
				results[idx] = PartitionResult{Partition: partition, Err: err}
				return
			}
			results[idx] = PartitionResult{Partition: partition, Rows: rows}
			stagingPaths[idx] = path
		}(i, part)
	}
	wg.Wait()

	defer func() {
		for _, p := range stagingPaths {
			if p != "" {
				removeStaging(p)
			}
		}
	}()

	var okPaths []string
	for i := range results {
		if results[i].Err == nil && stagingPaths[i] != "" {
			okPaths = append(okPaths, stagingPaths[i])
		}
	}

	merged, err := merge(ctx, okPaths)
	if err != nil {
		return nil, err
	}

	res := &Result{Table: l.DestTable, Rows: merged, Partitions: results}
	for _, pr := range results {
		if pr.Err != nil {
			logging.Warn("%s loaded without partition %s (%v)", l.DestTable, pr.Partition, pr.Err)
		}
	}
	return res, nil
}

// loadOnePartition streams one partition into its own staging store. On
// failure the store is removed immediately and only the error escapes.
func (l *PartitionLoader) loadOnePartition(ctx context.Context, partition string) (int64, string, error) {
	stg, err := duck.OpenStaging(l.Cfg.StagingDir, l.DestTable)
	if err != nil {
		return 0, "", err
	}
	if err := stg.Replace(ctx, l.DestTable, l.Schema); err != nil {
		stg.Remove()
		return 0, "", err
	}

	query := fmt.Sprintf("SELECT %s FROM %s",
		l.Dialect.ColumnList(l.Schema.Names), l.Dialect.PartitionRef(l.Table.Schema, l.Table.Name, partition))
	rows, err := extract.Stream(ctx, l.Src, query, nil, len(l.Schema.Names), l.Cfg.batchSize(), l.Normalizer, l.Schema.Types,
		func(batch [][]any) error {
			return stg.InsertBatch(ctx, l.DestTable, l.Schema.Names, batch)
		})
	if err != nil {
		stg.Remove()
		return 0, "", syncerr.ChunkRead(l.Table.FullName(), fmt.Sprintf("partition %s", partition), err)
	}

	// Close so the merge can attach the file; deletion happens after the
	// merge.
	if err := stg.Close(); err != nil {
		stg.Remove()
		return 0, "", err
	}
	return rows, stg.Path(), nil
}

// drain consumes the remaining batches of an abandoned stream so the
// reader goroutine can finish.
func drain(ch <-chan extract.Batch) {
	for range ch {
	}
}

func removeStaging(path string) {
	for _, p := range []string{path, path + ".wal"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			logging.Warn("removing staging file %s: %v", p, err)
		}
	}
}

// LoadChunks bulk-loads via the ordered chunk stream, writing batches
// directly to dest as they arrive in chunk order. Failed chunks are
// counted but do not stop the load.
func LoadChunks(ctx context.Context, reader *extract.RangeReader, chunks []planner.Chunk, dest *duck.Store, destTable string, schema driver.Schema, cfg Config) (*Result, error) {
	if err := dest.Replace(ctx, destTable, schema); err != nil {
		return nil, syncerr.Merge(destTable, "create table", err)
	}

	res := &Result{Table: destTable}
	ch := reader.Read(ctx, chunks)
	for b := range ch {
		if b.Done {
			break
		}
		if b.Err != nil {
			res.FailedChunks++
			continue
		}
		if err := dest.InsertBatch(ctx, destTable, schema.Names, b.Rows); err != nil {
			drain(ch)
			return nil, syncerr.Merge(destTable, fmt.Sprintf("insert chunk %d", b.ChunkID), err)
		}
		res.Rows += int64(len(b.Rows))
		if b.LastKey != nil {
			res.LastKey = b.LastKey
		}
	}
	return res, nil
}

// LoadIncremental appends the sequential keyset stream to dest. Any read
// error aborts the load so the caller leaves the watermark untouched.
func LoadIncremental(ctx context.Context, reader *extract.KeysetReader, dest *duck.Store, destTable string, schema driver.Schema) (*Result, error) {
	if err := dest.Ensure(ctx, destTable, schema); err != nil {
		return nil, syncerr.Merge(destTable, "ensure table", err)
	}

	res := &Result{Table: destTable}
	ch := reader.Read(ctx)
	for b := range ch {
		if b.Err != nil {
			drain(ch)
			return nil, b.Err
		}
		if len(b.Rows) > 0 {
			if err := dest.InsertBatch(ctx, destTable, schema.Names, b.Rows); err != nil {
				drain(ch)
				return nil, syncerr.Merge(destTable, "append batch", err)
			}
			res.Rows += int64(len(b.Rows))
		}
		if b.LastKey != nil {
			res.LastKey = b.LastKey
		}
	}
	return res, nil
}
