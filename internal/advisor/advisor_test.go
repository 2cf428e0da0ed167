package advisor

import (
	"strings"
	"testing"

	"github.com/johndauphine/colsync/internal/driver"
)

func bigTable() *driver.Table {
	return &driver.Table{
		Schema:     "app",
		Name:       "orders",
		RowCount:   5_000_000,
		SizeMB:     1200,
		PrimaryKey: "order_id",
		Columns: []driver.Column{
			{Name: "order_id", DataType: "NUMBER", Precision: 10},
			{Name: "updated_at", DataType: "TIMESTAMP(6)"},
		},
	}
}

func TestDefaultByTableBulk(t *testing.T) {
	tests := []struct {
		name     string
		rowCount int64
		sizeMB   float64
		wantMode string
		workers  int
		batch    int
	}{
		{"huge by rows", 2_000_000, 10, ModeFast, 8, 50000},
		{"huge by size", 50_000, 900, ModeFast, 8, 50000},
		{"medium", 200_000, 50, ModeFast, 4, 30000},
		{"small", 5_000, 1, ModeSequential, 2, 10000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tab := bigTable()
			tab.RowCount = tt.rowCount
			tab.SizeMB = tt.sizeMB
			s := Default(tab)
			if s.Mode != tt.wantMode || s.Workers != tt.workers || s.BatchSize != tt.batch {
				t.Errorf("Default = %+v, want %s/%d/%d", s, tt.wantMode, tt.workers, tt.batch)
			}
		})
	}
}

func TestDefaultPrefersPartitionMode(t *testing.T) {
	tab := bigTable()
	tab.Partitions = []string{"P2024", "P2025", "P2026"}
	s := Default(tab)
	if s.Mode != ModePartition {
		t.Errorf("mode = %s, want partition", s.Mode)
	}
}

func TestDefaultFallsBackWithoutChunkableKey(t *testing.T) {
	tab := &driver.Table{
		Schema:   "app",
		Name:     "notes",
		RowCount: 3_000_000,
		Columns:  []driver.Column{{Name: "body", DataType: "CLOB"}},
	}
	s := Default(tab)
	if s.Mode != ModeSequential {
		t.Errorf("mode = %s, want sequential", s.Mode)
	}
}

func TestDefaultRangeColumn(t *testing.T) {
	tab := bigTable()
	if s := Default(tab); s.RangeColumn != "order_id" {
		t.Errorf("range column = %s, want primary key", s.RangeColumn)
	}

	tab.PrimaryKey = ""
	tab.Candidates = []driver.Candidate{{Name: "updated_at", Score: 9}}
	if s := Default(tab); s.RangeColumn != "updated_at" {
		t.Errorf("range column = %s, want top candidate", s.RangeColumn)
	}
}

func TestParseAcceptsValidPayload(t *testing.T) {
	raw := []byte(`{"mode":"fast","workers":8,"batch_size":50000,"range_column":"order_id"}`)
	s, err := Parse(raw, bigTable())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if s.Mode != ModeFast || s.Workers != 8 || s.RangeColumn != "order_id" {
		t.Errorf("strategy = %+v", s)
	}
}

func TestParseRejections(t *testing.T) {
	tab := bigTable()
	tests := []struct {
		name    string
		raw     string
		wantMsg string
	}{
		{"unknown mode", `{"mode":"turbo","workers":4,"batch_size":1000}`, "unknown strategy mode"},
		{"unknown field", `{"mode":"fast","workers":4,"batch_size":1000,"sql":"DROP TABLE x"}`, "invalid strategy payload"},
		{"zero workers", `{"mode":"fast","workers":0,"batch_size":1000}`, "workers"},
		{"excessive workers", `{"mode":"fast","workers":500,"batch_size":1000}`, "workers"},
		{"excessive batch", `{"mode":"fast","workers":4,"batch_size":10000000}`, "batch size"},
		{"unknown column", `{"mode":"fast","workers":4,"batch_size":1000,"range_column":"nope"}`, "not a column"},
		{"injection in column", `{"mode":"fast","workers":4,"batch_size":1000,"range_column":"id; DROP TABLE orders"}`, "not a column"},
		{"partition mode unpartitioned", `{"mode":"partition","workers":4,"batch_size":1000}`, "not partitioned"},
		{"not json", `mode=fast`, "invalid strategy payload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.raw), tab); err == nil {
				t.Fatal("expected rejection")
			} else if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}
