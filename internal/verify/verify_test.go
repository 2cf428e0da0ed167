package verify

import (
	"context"
	"errors"
	"testing"

	"github.com/johndauphine/colsync/internal/driver"
	"github.com/johndauphine/colsync/internal/syncerr"
)

func fixedCounts(src, dst int64) *Verifier {
	return &Verifier{
		srcCount: func(ctx context.Context, table *driver.Table) (int64, error) {
			return src, nil
		},
		destCount: func(ctx context.Context, destTable string) (int64, error) {
			return dst, nil
		},
	}
}

func TestVerifyMatchingCounts(t *testing.T) {
	v := fixedCounts(12345, 12345)
	res := v.VerifyTable(context.Background(), &driver.Table{Schema: "app", Name: "orders"}, "orders")
	if res.Status != StatusSuccess {
		t.Errorf("status = %s, want success", res.Status)
	}
	if res.Difference != 0 {
		t.Errorf("difference = %d, want 0", res.Difference)
	}
	if res.SourceRows != 12345 || res.DestRows != 12345 {
		t.Errorf("counts = %d/%d", res.SourceRows, res.DestRows)
	}
}

func TestVerifyMismatch(t *testing.T) {
	v := fixedCounts(12345, 12300)
	res := v.VerifyTable(context.Background(), &driver.Table{Schema: "app", Name: "orders"}, "orders")
	if res.Status != StatusMismatch {
		t.Errorf("status = %s, want mismatch", res.Status)
	}
	if res.Difference != 45 {
		t.Errorf("difference = %d, want 45", res.Difference)
	}
	if res.Err != nil {
		t.Errorf("mismatch is not an operational error, got %v", res.Err)
	}
}

func TestVerifyMissingDestinationTable(t *testing.T) {
	v := &Verifier{
		srcCount: func(ctx context.Context, table *driver.Table) (int64, error) {
			return 100, nil
		},
		destCount: func(ctx context.Context, destTable string) (int64, error) {
			return 0, errors.New("table orders does not exist in destination")
		},
	}
	res := v.VerifyTable(context.Background(), &driver.Table{Schema: "app", Name: "orders"}, "orders")
	if res.Status != StatusError {
		t.Errorf("status = %s, want error", res.Status)
	}
	if !syncerr.Is(res.Err, syncerr.KindVerification) {
		t.Errorf("err = %v, want verification kind", res.Err)
	}
}

func TestVerifySourceCountFailure(t *testing.T) {
	v := &Verifier{
		srcCount: func(ctx context.Context, table *driver.Table) (int64, error) {
			return 0, errors.New("ORA-00942: table or view does not exist")
		},
	}
	res := v.VerifyTable(context.Background(), &driver.Table{Schema: "app", Name: "gone"}, "gone")
	if res.Status != StatusError || res.Err == nil {
		t.Errorf("result = %+v, want error status", res)
	}
}

func TestEvaluateTolerance(t *testing.T) {
	tests := []struct {
		src, dst   int64
		tolerance  float64
		wantStatus Status
		wantDiff   int64
	}{
		{1000, 1000, 0, StatusSuccess, 0},
		{1000, 999, 0, StatusMismatch, 1},
		{1000, 999, 0.01, StatusSuccess, 1},
		{1000, 980, 0.01, StatusMismatch, 20},
		{1000, 1010, 0.01, StatusSuccess, 10}, // destination ahead also within tolerance
		{0, 5, 0.5, StatusMismatch, 5},        // empty source never tolerates extra rows
	}
	for _, tt := range tests {
		status, diff := Evaluate(tt.src, tt.dst, tt.tolerance)
		if status != tt.wantStatus || diff != tt.wantDiff {
			t.Errorf("Evaluate(%d, %d, %g) = %s/%d, want %s/%d",
				tt.src, tt.dst, tt.tolerance, status, diff, tt.wantStatus, tt.wantDiff)
		}
	}
}

func TestSummary(t *testing.T) {
	var s Summary
	s.Add(Result{Table: "a", Status: StatusSuccess, DestRows: 100})
	s.Add(Result{Table: "b", Status: StatusMismatch, DestRows: 90, Difference: 10})
	s.Add(Result{Table: "c", Status: StatusError})

	success, mismatch, errs := s.Counts()
	if success != 1 || mismatch != 1 || errs != 1 {
		t.Errorf("counts = %d/%d/%d", success, mismatch, errs)
	}
	if s.TotalRows() != 190 {
		t.Errorf("total rows = %d, want 190", s.TotalRows())
	}
	if s.AllPassed() {
		t.Error("AllPassed with mismatches present")
	}
	if !s.HasErrors() {
		t.Error("HasErrors missed the error result")
	}
}
