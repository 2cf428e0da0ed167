package state

import (
	"path/filepath"
	"testing"
	"time"
)

// Both backends must satisfy the same behavioral contract; each test runs
// against each.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	sq, err := OpenSQLite(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatalf("opening sqlite store: %v", err)
	}
	t.Cleanup(func() { sq.Close() })

	f, err := OpenFile(filepath.Join(dir, "state.yaml"))
	if err != nil {
		t.Fatalf("opening file store: %v", err)
	}
	return map[string]Store{"sqlite": sq, "file": f}
}

func TestWatermarkRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			wm, err := s.GetWatermark("app", "orders")
			if err != nil {
				t.Fatal(err)
			}
			if wm != nil {
				t.Fatalf("unsynced table has watermark %+v", wm)
			}

			if err := s.SetWatermark("app", "orders", Watermark{Column: "order_id", Kind: "int", Value: "12345", Rows: 12345}); err != nil {
				t.Fatal(err)
			}
			wm, err = s.GetWatermark("app", "orders")
			if err != nil {
				t.Fatal(err)
			}
			if wm == nil || wm.Column != "order_id" || wm.Kind != "int" || wm.Value != "12345" || wm.Rows != 12345 {
				t.Errorf("watermark = %+v", wm)
			}
			if wm.UpdatedAt.IsZero() {
				t.Error("updated_at not set")
			}

			// Overwrite advances, never duplicates.
			if err := s.SetWatermark("app", "orders", Watermark{Kind: "int", Value: "20000", Rows: 20000}); err != nil {
				t.Fatal(err)
			}
			wm, _ = s.GetWatermark("app", "orders")
			if wm.Value != "20000" {
				t.Errorf("watermark value = %s, want 20000", wm.Value)
			}
		})
	}
}

func TestWatermarkPerTable(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s.SetWatermark("app", "orders", Watermark{Kind: "int", Value: "1"})
			s.SetWatermark("app", "events", Watermark{Kind: "int", Value: "2"})
			wm, _ := s.GetWatermark("app", "orders")
			if wm.Value != "1" {
				t.Errorf("orders watermark = %s", wm.Value)
			}
		})
	}
}

func TestRunHistory(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.CreateRun(Run{ID: "run-1", Source: "oracle://app", Destination: "out.duckdb"}); err != nil {
				t.Fatal(err)
			}
			if err := s.RecordTableResult(TableResult{
				RunID: "run-1", Table: "orders", Strategy: "fast", Status: "success",
				Rows: 100, SourceRows: 100, DestRows: 100, Duration: 3 * time.Second,
			}); err != nil {
				t.Fatal(err)
			}
			if err := s.CompleteRun("run-1", "success"); err != nil {
				t.Fatal(err)
			}

			runs, err := s.ListRuns(10)
			if err != nil {
				t.Fatal(err)
			}
			if len(runs) != 1 || runs[0].ID != "run-1" || runs[0].Status != "success" {
				t.Fatalf("runs = %+v", runs)
			}
			if runs[0].CompletedAt == nil {
				t.Error("completed run lacks completion time")
			}

			results, err := s.ListTableResults("run-1")
			if err != nil {
				t.Fatal(err)
			}
			if len(results) != 1 || results[0].Table != "orders" || results[0].Rows != 100 {
				t.Fatalf("results = %+v", results)
			}
		})
	}
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.yaml")

	fs, err := OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.SetWatermark("app", "orders", Watermark{Kind: "time", Value: "2026-08-29T00:00:00Z"}); err != nil {
		t.Fatal(err)
	}

	fs2, err := OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	wm, err := fs2.GetWatermark("app", "orders")
	if err != nil {
		t.Fatal(err)
	}
	if wm == nil || wm.Kind != "time" {
		t.Fatalf("watermark after reopen = %+v", wm)
	}
}

func TestEncodeDecodeValue(t *testing.T) {
	ts := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)
	tests := []struct {
		in       any
		wantKind string
	}{
		{int64(99999999999999999), "int"},
		{3.5, "float"},
		{ts, "time"},
		{"ZX-1042", "string"},
	}
	for _, tt := range tests {
		kind, text, err := EncodeValue(tt.in)
		if err != nil {
			t.Fatalf("EncodeValue(%v): %v", tt.in, err)
		}
		if kind != tt.wantKind {
			t.Errorf("EncodeValue(%v) kind = %s, want %s", tt.in, kind, tt.wantKind)
		}
		back, err := DecodeValue(kind, text)
		if err != nil {
			t.Fatalf("DecodeValue(%s, %s): %v", kind, text, err)
		}
		if tm, ok := tt.in.(time.Time); ok {
			if !back.(time.Time).Equal(tm) {
				t.Errorf("time round trip = %v, want %v", back, tm)
			}
		} else if back != tt.in {
			t.Errorf("round trip = %v (%T), want %v (%T)", back, back, tt.in, tt.in)
		}
	}

	// 18-digit integers survive exactly; a float detour would not.
	kind, text, _ := EncodeValue(int64(999999999999999999))
	back, _ := DecodeValue(kind, text)
	if back.(int64) != 999999999999999999 {
		t.Errorf("wide integer round trip = %v", back)
	}

	if _, _, err := EncodeValue(struct{}{}); err == nil {
		t.Error("expected error for unsupported type")
	}
	if _, err := DecodeValue("bogus", "1"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
