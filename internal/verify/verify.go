// Package verify compares row counts between the source table and its
// columnar copy after a sync.
package verify

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/johndauphine/colsync/internal/driver"
	"github.com/johndauphine/colsync/internal/duck"
	"github.com/johndauphine/colsync/internal/syncerr"
)

// Status is the outcome of one table verification.
type Status string

const (
	// StatusSuccess means counts agreed within tolerance.
	StatusSuccess Status = "success"

	// StatusMismatch means both counts were obtained and disagreed.
	// Mismatch is a data-quality signal, not an operational failure.
	StatusMismatch Status = "mismatch"

	// StatusError means a count could not be obtained, including a
	// missing destination table.
	StatusError Status = "error"
)

// Result is one table's verification outcome.
type Result struct {
	Table      string
	SourceRows int64
	DestRows   int64

	// Difference is the absolute row-count gap, meaningful for success
	// and mismatch.
	Difference int64

	Status Status
	Err    error
}

// Verifier counts rows independently on both sides. It never trusts
// transfer bookkeeping; both counts come from fresh queries.
type Verifier struct {
	Src     *sql.DB
	Dialect driver.Dialect
	Dest    *duck.Store

	// Tolerance is the accepted |difference| / sourceRows ratio. Zero
	// demands exact equality.
	Tolerance float64

	// srcCount and destCount override the count queries; nil selects the
	// SQL path.
	srcCount  func(ctx context.Context, table *driver.Table) (int64, error)
	destCount func(ctx context.Context, destTable string) (int64, error)
}

// VerifyTable compares the source table against destTable.
func (v *Verifier) VerifyTable(ctx context.Context, table *driver.Table, destTable string) Result {
	res := Result{Table: destTable}

	srcCount := v.srcCount
	if srcCount == nil {
		srcCount = v.querySourceCount
	}
	destCount := v.destCount
	if destCount == nil {
		destCount = v.queryDestCount
	}

	src, err := srcCount(ctx, table)
	if err != nil {
		res.Status = StatusError
		res.Err = syncerr.Verification(table.FullName(), "source count", err)
		return res
	}
	res.SourceRows = src

	dst, err := destCount(ctx, destTable)
	if err != nil {
		res.Status = StatusError
		res.Err = syncerr.Verification(destTable, "destination count", err)
		return res
	}
	res.DestRows = dst

	res.Status, res.Difference = Evaluate(src, dst, v.Tolerance)
	return res
}

func (v *Verifier) querySourceCount(ctx context.Context, table *driver.Table) (int64, error) {
	var n int64
	err := v.Src.QueryRowContext(ctx, v.Dialect.CountQuery(table.Schema, table.Name)).Scan(&n)
	return n, err
}

func (v *Verifier) queryDestCount(ctx context.Context, destTable string) (int64, error) {
	exists, err := v.Dest.TableExists(ctx, destTable)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("table %s does not exist in destination", destTable)
	}
	return v.Dest.Count(ctx, destTable)
}

// Evaluate classifies a pair of counts under a tolerance ratio.
func Evaluate(src, dst int64, tolerance float64) (Status, int64) {
	diff := src - dst
	if diff < 0 {
		diff = -diff
	}
	if diff == 0 {
		return StatusSuccess, 0
	}
	if tolerance > 0 && src > 0 && float64(diff)/float64(src) <= tolerance {
		return StatusSuccess, diff
	}
	return StatusMismatch, diff
}

// Summary aggregates per-table results for the run report.
type Summary struct {
	Results []Result
}

func (s *Summary) Add(r Result) {
	s.Results = append(s.Results, r)
}

// Counts returns the per-status tallies.
func (s *Summary) Counts() (success, mismatch, errors int) {
	for _, r := range s.Results {
		switch r.Status {
		case StatusSuccess:
			success++
		case StatusMismatch:
			mismatch++
		case StatusError:
			errors++
		}
	}
	return
}

// TotalRows sums destination rows across verified tables.
func (s *Summary) TotalRows() int64 {
	var n int64
	for _, r := range s.Results {
		n += r.DestRows
	}
	return n
}

// AllPassed reports whether every table verified successfully.
func (s *Summary) AllPassed() bool {
	for _, r := range s.Results {
		if r.Status != StatusSuccess {
			return false
		}
	}
	return true
}

// HasErrors reports whether any verification failed operationally, as
// opposed to a mere count mismatch.
func (s *Summary) HasErrors() bool {
	for _, r := range s.Results {
		if r.Status == StatusError {
			return true
		}
	}
	return false
}
