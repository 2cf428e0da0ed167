package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/johndauphine/colsync/internal/driver"
)

type pageCall struct {
	watermark any
	inclusive bool
}

// fakeTable serves rows with ids from a fixed ascending set, honoring the
// watermark comparator the way a real keyset query would.
type fakeTable struct {
	ids   []int64
	calls []pageCall
}

func (f *fakeTable) run(batchSize int) PageRunner {
	return func(ctx context.Context, watermark any, inclusive bool) ([][]any, any, error) {
		f.calls = append(f.calls, pageCall{watermark: watermark, inclusive: inclusive})
		wm := watermark.(int64)
		var rows [][]any
		var last any
		for _, id := range f.ids {
			if inclusive && id < wm {
				continue
			}
			if !inclusive && id <= wm {
				continue
			}
			rows = append(rows, []any{id})
			last = id
			if len(rows) == batchSize {
				break
			}
		}
		return rows, last, nil
	}
}

func collectIDs(t *testing.T, ch <-chan Batch) []int64 {
	t.Helper()
	var ids []int64
	for b := range ch {
		if b.Err != nil {
			t.Fatalf("unexpected error: %v", b.Err)
		}
		for _, row := range b.Rows {
			ids = append(ids, row[0].(int64))
		}
	}
	return ids
}

func TestKeysetFirstSyncIncludesWatermarkRow(t *testing.T) {
	ft := &fakeTable{ids: []int64{10, 20, 30, 40, 50}}
	r := &KeysetReader{
		Table:     &driver.Table{Schema: "app", Name: "orders"},
		Columns:   []string{"id"},
		RangeCol:  "id",
		BatchSize: 2,
		Watermark: int64(10),
		FirstSync: true,
		runPage:   ft.run(2),
	}

	ids := collectIDs(t, r.Read(context.Background()))
	want := []int64{10, 20, 30, 40, 50}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}

	// Only the opening page of the first sync may be inclusive.
	if !ft.calls[0].inclusive {
		t.Error("first page of first sync must use the inclusive comparator")
	}
	for i, c := range ft.calls[1:] {
		if c.inclusive {
			t.Errorf("page %d must use the strict comparator", i+1)
		}
	}
}

func TestKeysetResumeSkipsWatermarkRow(t *testing.T) {
	ft := &fakeTable{ids: []int64{10, 20, 30}}
	r := &KeysetReader{
		Table:     &driver.Table{Schema: "app", Name: "orders"},
		Columns:   []string{"id"},
		RangeCol:  "id",
		BatchSize: 10,
		Watermark: int64(10),
		FirstSync: false,
		runPage:   ft.run(10),
	}

	ids := collectIDs(t, r.Read(context.Background()))
	if len(ids) != 2 || ids[0] != 20 || ids[1] != 30 {
		t.Fatalf("got %v, want [20 30]", ids)
	}
	if ft.calls[0].inclusive {
		t.Error("resumption must use the strict comparator from the first page")
	}
}

func TestKeysetResumeIdempotentWhenNoNewRows(t *testing.T) {
	ft := &fakeTable{ids: []int64{10, 20, 30}}
	r := &KeysetReader{
		Table:     &driver.Table{Schema: "app", Name: "orders"},
		Columns:   []string{"id"},
		RangeCol:  "id",
		BatchSize: 10,
		Watermark: int64(30),
		runPage:   ft.run(10),
	}

	ids := collectIDs(t, r.Read(context.Background()))
	if len(ids) != 0 {
		t.Fatalf("re-run past the final watermark produced rows: %v", ids)
	}
}

func TestKeysetWatermarkAdvancesPerPage(t *testing.T) {
	ft := &fakeTable{ids: []int64{1, 2, 3, 4, 5, 6}}
	r := &KeysetReader{
		Table:     &driver.Table{Schema: "app", Name: "orders"},
		Columns:   []string{"id"},
		RangeCol:  "id",
		BatchSize: 2,
		Watermark: int64(0),
		runPage:   ft.run(2),
	}

	var lastDone Batch
	for b := range r.Read(context.Background()) {
		if b.Err != nil {
			t.Fatalf("unexpected error: %v", b.Err)
		}
		if b.Done {
			lastDone = b
		}
	}

	// Four calls: three full pages and the empty closing page.
	wantWatermarks := []int64{0, 2, 4, 6}
	if len(ft.calls) != len(wantWatermarks) {
		t.Fatalf("got %d page calls, want %d", len(ft.calls), len(wantWatermarks))
	}
	for i, c := range ft.calls {
		if c.watermark.(int64) != wantWatermarks[i] {
			t.Errorf("page %d watermark = %v, want %d", i, c.watermark, wantWatermarks[i])
		}
	}
	if lastDone.LastKey != int64(6) {
		t.Errorf("terminal last key = %v, want 6", lastDone.LastKey)
	}
}

func TestKeysetPageErrorTerminatesStream(t *testing.T) {
	r := &KeysetReader{
		Table:     &driver.Table{Schema: "app", Name: "orders"},
		Columns:   []string{"id"},
		RangeCol:  "id",
		BatchSize: 2,
		Watermark: int64(0),
		runPage: func(ctx context.Context, watermark any, inclusive bool) ([][]any, any, error) {
			return nil, nil, errors.New("connection reset")
		},
	}

	var sawErr bool
	for b := range r.Read(context.Background()) {
		if b.Err != nil {
			sawErr = true
		}
		if b.Done {
			t.Error("errored stream must not report Done")
		}
	}
	if !sawErr {
		t.Fatal("expected a terminal error batch")
	}
}
