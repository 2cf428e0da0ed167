package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/johndauphine/colsync/internal/state"
	"github.com/johndauphine/colsync/internal/verify"
)

// ShowStatus prints the most recent run and its per-table results.
func (o *Orchestrator) ShowStatus() error {
	runs, err := o.store.ListRuns(1)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No sync runs recorded.")
		return nil
	}

	r := runs[0]
	fmt.Printf("Run:         %s\n", r.ID)
	fmt.Printf("Status:      %s\n", r.Status)
	fmt.Printf("Source:      %s\n", r.Source)
	fmt.Printf("Destination: %s\n", r.Destination)
	fmt.Printf("Started:     %s\n", r.StartedAt.Format(time.RFC3339))
	if r.CompletedAt != nil {
		fmt.Printf("Duration:    %s\n", r.CompletedAt.Sub(r.StartedAt).Round(time.Second))
	}

	results, err := o.store.ListTableResults(r.ID)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return nil
	}

	fmt.Printf("\n  %-30s %-10s %-12s %12s %12s\n", "TABLE", "STATUS", "STRATEGY", "ROWS", "DURATION")
	for _, tr := range results {
		fmt.Printf("  %-30s %-10s %-12s %12d %12s\n",
			tr.Table, tr.Status, tr.Strategy, tr.Rows, tr.Duration.Round(time.Millisecond))
		if tr.Error != "" {
			fmt.Printf("    error: %s\n", tr.Error)
		}
	}
	return nil
}

// ShowHistory prints recent runs, newest first.
func (o *Orchestrator) ShowHistory(limit int) error {
	runs, err := o.store.ListRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No sync runs recorded.")
		return nil
	}

	fmt.Printf("%-10s %-20s %-10s %-30s %s\n", "RUN", "STARTED", "STATUS", "SOURCE", "DESTINATION")
	for _, r := range runs {
		fmt.Printf("%-10s %-20s %-10s %-30s %s\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Status, r.Source, r.Destination)
	}
	return nil
}

// InspectTable prints the catalog view of one table: columns with their
// mapped columnar types, the primary key, partitions, and the ranked
// incremental candidates.
func (o *Orchestrator) InspectTable(ctx context.Context, name string) error {
	t, err := o.inspector.Inspect(ctx, o.cfg.Source.Schema, name)
	if err != nil {
		return err
	}

	fmt.Printf("Table:      %s\n", t.FullName())
	fmt.Printf("Rows:       %d (estimate)\n", t.RowCount)
	if t.SizeMB > 0 {
		fmt.Printf("Size:       %.0f MB\n", t.SizeMB)
	} else {
		fmt.Printf("Size:       unavailable\n")
	}
	if t.HasPK() {
		fmt.Printf("Primary key: %s\n", t.PrimaryKey)
	}
	if t.IsPartitioned() {
		fmt.Printf("Partitions: %d\n", len(t.Partitions))
	}

	mapper := o.source.TypeMapper()
	fmt.Printf("\n  %-30s %-20s %s\n", "COLUMN", "SOURCE TYPE", "COLUMNAR TYPE")
	for _, c := range t.Columns {
		fmt.Printf("  %-30s %-20s %s\n", c.Name, c.DataType, mapper.MapType(c).String())
	}

	if len(t.Candidates) > 0 {
		fmt.Printf("\n  %-30s %-8s %s\n", "INCREMENTAL CANDIDATE", "SCORE", "NON-NULL")
		for _, cand := range t.Candidates {
			fmt.Printf("  %-30s %-8d %.1f%%\n", cand.Name, cand.Score, cand.NonNullPercent)
		}
	}
	return nil
}

// VerifyAll runs verification only, without moving any data.
func (o *Orchestrator) VerifyAll(ctx context.Context, opts Options) (*verify.Summary, error) {
	names, err := o.selectTables(ctx, opts)
	if err != nil {
		return nil, err
	}

	verifier := &verify.Verifier{
		Src:       o.db,
		Dialect:   o.source.Dialect(),
		Dest:      o.dest,
		Tolerance: o.cfg.Sync.Tolerance,
	}

	var summary verify.Summary
	for _, name := range names {
		t, err := o.inspector.Inspect(ctx, o.cfg.Source.Schema, name)
		if err != nil {
			summary.Add(verify.Result{Table: name, Status: verify.StatusError, Err: err})
			continue
		}
		res := verifier.VerifyTable(ctx, t, destTableName(t))
		summary.Add(res)
		printVerify(res)
	}
	return &summary, nil
}

func printVerify(r verify.Result) {
	switch r.Status {
	case verify.StatusSuccess:
		fmt.Printf("  %-30s OK         %12d rows\n", r.Table, r.DestRows)
	case verify.StatusMismatch:
		fmt.Printf("  %-30s MISMATCH   %d source / %d destination (gap %d)\n",
			r.Table, r.SourceRows, r.DestRows, r.Difference)
	default:
		fmt.Printf("  %-30s ERROR      %v\n", r.Table, r.Err)
	}
}

// Watermarks returns the stored watermark for each named table, for the
// status display and the monitor UI.
func (o *Orchestrator) Watermarks(tables []string) (map[string]*state.Watermark, error) {
	out := make(map[string]*state.Watermark, len(tables))
	for _, name := range tables {
		wm, err := o.store.GetWatermark(o.cfg.Source.Schema, name)
		if err != nil {
			return nil, err
		}
		out[name] = wm
	}
	return out, nil
}

// Store exposes the state backend to the monitor UI.
func (o *Orchestrator) Store() state.Store { return o.store }

// TableNames lists syncable tables after filtering.
func (o *Orchestrator) TableNames(ctx context.Context) ([]string, error) {
	return o.selectTables(ctx, Options{})
}
