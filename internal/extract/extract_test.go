package extract

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/johndauphine/colsync/internal/driver"
	"github.com/johndauphine/colsync/internal/planner"
	"github.com/johndauphine/colsync/internal/syncerr"
)

func makeChunks(n int) []planner.Chunk {
	chunks := make([]planner.Chunk, n)
	for i := range chunks {
		chunks[i] = planner.Chunk{ID: i, Start: int64(i * 100), End: int64((i + 1) * 100)}
	}
	return chunks
}

// chunkRows fabricates deterministic rows for a chunk so reconstruction
// order is observable.
func chunkRows(c planner.Chunk) [][]any {
	return [][]any{
		{c.Start + 1, fmt.Sprintf("row-%d-a", c.ID)},
		{c.End, fmt.Sprintf("row-%d-b", c.ID)},
	}
}

func TestRangeReaderOrderedReconstruction(t *testing.T) {
	table := &driver.Table{Schema: "app", Name: "events"}
	r := &RangeReader{
		Table:    table,
		Columns:  []string{"id", "payload"},
		RangeCol: "id",
		Workers:  4,
		runChunk: func(ctx context.Context, c planner.Chunk) ([][]any, error) {
			// Deliberately uneven completion so out-of-order arrival is
			// exercised, not just possible.
			time.Sleep(time.Duration(rand.Intn(20)) * time.Millisecond)
			return chunkRows(c), nil
		},
	}

	chunks := makeChunks(10)
	var got [][]any
	sawDone := false
	for b := range r.Read(context.Background(), chunks) {
		if b.Done {
			sawDone = true
			continue
		}
		if b.Err != nil {
			t.Fatalf("unexpected chunk error: %v", b.Err)
		}
		got = append(got, b.Rows...)
	}
	if !sawDone {
		t.Fatal("missing terminal batch")
	}

	// The merged stream must match a single-threaded in-order scan.
	var want [][]any
	for _, c := range chunks {
		want = append(want, chunkRows(c)...)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d rows, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i][1] != want[i][1] {
			t.Fatalf("row %d = %v, want %v", i, got[i][1], want[i][1])
		}
	}
}

func TestRangeReaderFailedChunkIsTaggedNotFatal(t *testing.T) {
	table := &driver.Table{Schema: "app", Name: "events"}
	r := &RangeReader{
		Table:    table,
		Columns:  []string{"id", "payload"},
		RangeCol: "id",
		Workers:  3,
		runChunk: func(ctx context.Context, c planner.Chunk) ([][]any, error) {
			if c.ID == 1 {
				return nil, errors.New("ORA-01555: snapshot too old")
			}
			return chunkRows(c), nil
		},
	}

	var batches []Batch
	for b := range r.Read(context.Background(), makeChunks(3)) {
		if !b.Done {
			batches = append(batches, b)
		}
	}
	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(batches))
	}

	failed := batches[1]
	if failed.Err == nil {
		t.Fatal("chunk 1 should carry an error")
	}
	if len(failed.Rows) != 0 {
		t.Errorf("failed chunk carried %d rows, want 0", len(failed.Rows))
	}
	if !syncerr.Is(failed.Err, syncerr.KindChunkRead) {
		t.Errorf("failed chunk error kind = %v, want chunk read", failed.Err)
	}
	for _, i := range []int{0, 2} {
		if batches[i].Err != nil {
			t.Errorf("chunk %d should have succeeded: %v", i, batches[i].Err)
		}
		if len(batches[i].Rows) != 2 {
			t.Errorf("chunk %d carried %d rows, want 2", i, len(batches[i].Rows))
		}
	}
}

func TestRangeReaderLastKeyPerChunk(t *testing.T) {
	r := &RangeReader{
		Table:    &driver.Table{Schema: "app", Name: "events"},
		Columns:  []string{"id", "payload"},
		RangeCol: "id",
		Workers:  1,
		runChunk: func(ctx context.Context, c planner.Chunk) ([][]any, error) {
			return chunkRows(c), nil
		},
	}
	for b := range r.Read(context.Background(), makeChunks(2)) {
		if b.Done || b.Err != nil {
			continue
		}
		want := int64((b.ChunkID + 1) * 100)
		if b.LastKey != want {
			t.Errorf("chunk %d last key = %v, want %d", b.ChunkID, b.LastKey, want)
		}
	}
}

func TestRangeReaderNoChunks(t *testing.T) {
	r := &RangeReader{Table: &driver.Table{Schema: "app", Name: "events"}, Workers: 2}
	var n int
	for b := range r.Read(context.Background(), nil) {
		n++
		if !b.Done {
			t.Errorf("expected only a terminal batch, got %+v", b)
		}
	}
	if n != 1 {
		t.Errorf("got %d batches, want 1", n)
	}
}

func TestRangeReaderStopsAfterConsumerCancels(t *testing.T) {
	// A consumer that hits a destination error cancels and walks away
	// without reading the rest of the stream. The emit goroutine must not
	// stay blocked on the channel.
	before := runtime.NumGoroutine()

	ctx, cancel := context.WithCancel(context.Background())
	r := &RangeReader{
		Table:    &driver.Table{Schema: "app", Name: "events"},
		Columns:  []string{"id", "payload"},
		RangeCol: "id",
		Workers:  1,
		runChunk: func(ctx context.Context, c planner.Chunk) ([][]any, error) {
			return chunkRows(c), nil
		},
	}
	ch := r.Read(ctx, makeChunks(8))
	<-ch
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > before {
		if time.Now().After(deadline) {
			t.Fatalf("%d goroutines still running after cancellation, want %d",
				runtime.NumGoroutine(), before)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRangeReaderWorkerBound(t *testing.T) {
	var active, peak int64
	r := &RangeReader{
		Table:    &driver.Table{Schema: "app", Name: "events"},
		Columns:  []string{"id"},
		RangeCol: "id",
		Workers:  2,
		runChunk: func(ctx context.Context, c planner.Chunk) ([][]any, error) {
			cur := atomic.AddInt64(&active, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if cur <= p || atomic.CompareAndSwapInt64(&peak, p, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&active, -1)
			return nil, nil
		},
	}
	for range r.Read(context.Background(), makeChunks(8)) {
	}
	if p := atomic.LoadInt64(&peak); p > 2 {
		t.Errorf("peak concurrent chunks = %d, want <= 2", p)
	}
}
