// Package orchestrator drives a sync run end to end: inspect the source
// catalog, pick a strategy per table, extract and load, verify counts,
// and commit watermarks for the tables that passed.
package orchestrator

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/johndauphine/colsync/internal/advisor"
	"github.com/johndauphine/colsync/internal/config"
	"github.com/johndauphine/colsync/internal/driver"
	"github.com/johndauphine/colsync/internal/duck"
	"github.com/johndauphine/colsync/internal/extract"
	"github.com/johndauphine/colsync/internal/loader"
	"github.com/johndauphine/colsync/internal/logging"
	"github.com/johndauphine/colsync/internal/notify"
	"github.com/johndauphine/colsync/internal/planner"
	"github.com/johndauphine/colsync/internal/progress"
	"github.com/johndauphine/colsync/internal/state"
	"github.com/johndauphine/colsync/internal/syncerr"
	"github.com/johndauphine/colsync/internal/verify"
)

// Options are the per-invocation overrides from the command line. They
// take precedence over the advisor and the config file.
type Options struct {
	Fast      bool
	Partition bool
	Workers   int
	BatchSize int
	Tables    []string

	// StrategyJSON is an externally produced strategy payload applied to
	// every selected table after validation.
	StrategyJSON []byte
}

// TableOutcome is one table's full result.
type TableOutcome struct {
	Table              string
	Strategy           advisor.Strategy
	Load               *loader.Result
	Verify             verify.Result
	Err                error
	WatermarkCommitted bool
	Duration           time.Duration
}

// RunResult summarizes a run.
type RunResult struct {
	RunID     string
	StartTime time.Time
	Duration  time.Duration
	Outcomes  []TableOutcome
	Summary   verify.Summary
}

// Failed counts tables that errored outright.
func (r *RunResult) Failed() int {
	var n int
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Mismatched counts tables whose verification found a count gap.
func (r *RunResult) Mismatched() int {
	var n int
	for _, o := range r.Outcomes {
		if o.Err == nil && o.Verify.Status == verify.StatusMismatch {
			n++
		}
	}
	return n
}

// Orchestrator owns the open handles for one run.
type Orchestrator struct {
	cfg       *config.Config
	source    driver.Source
	db        *sql.DB
	dest      *duck.Store
	store     state.Store
	notifier  notify.Provider
	tracker   *progress.Tracker
	reporter  progress.Reporter
	inspector driver.Inspector

	// syncTable overrides per-table execution; nil selects the real path.
	syncTable func(ctx context.Context, t *driver.Table, strat advisor.Strategy) TableOutcome
}

// New opens the source pool, destination, and state store.
func New(ctx context.Context, cfg *config.Config) (*Orchestrator, error) {
	src, err := driver.Get(cfg.Source.Type)
	if err != nil {
		return nil, err
	}
	dsn, err := cfg.SourceDSN()
	if err != nil {
		return nil, err
	}
	db, err := src.Open(ctx, dsn, cfg.DriverConfig())
	if err != nil {
		return nil, err
	}

	dest, err := duck.Open(cfg.Destination.Path)
	if err != nil {
		db.Close()
		return nil, err
	}

	statePath, err := cfg.StatePath()
	if err != nil {
		db.Close()
		dest.Close()
		return nil, err
	}
	var store state.Store
	if cfg.State.Backend == "file" {
		store, err = state.OpenFile(statePath)
	} else {
		store, err = state.OpenSQLite(statePath)
	}
	if err != nil {
		db.Close()
		dest.Close()
		return nil, fmt.Errorf("opening state store: %w", err)
	}

	return &Orchestrator{
		cfg:       cfg,
		source:    src,
		db:        db,
		dest:      dest,
		store:     store,
		notifier:  notify.New(&cfg.Slack),
		tracker:   progress.New(),
		inspector: src.NewInspector(db),
	}, nil
}

// SetReporter attaches a machine-readable progress reporter, used when
// stdout is not a terminal.
func (o *Orchestrator) SetReporter(r progress.Reporter) {
	o.reporter = r
}

func (o *Orchestrator) report(u progress.Update, immediate bool) {
	if o.reporter == nil {
		return
	}
	if immediate {
		o.reporter.ReportImmediate(u)
	} else {
		o.reporter.Report(u)
	}
}

// Close releases all handles.
func (o *Orchestrator) Close() {
	if o.db != nil {
		o.db.Close()
	}
	if o.dest != nil {
		o.dest.Close()
	}
	if o.store != nil {
		o.store.Close()
	}
}

// Run executes one sync pass over the selected tables.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*RunResult, error) {
	runID := uuid.New().String()[:8]
	start := time.Now()
	fmt.Printf("Starting sync run: %s\n", runID)

	names, err := o.selectTables(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, syncerr.Schema(o.cfg.Source.Schema, "select tables", fmt.Errorf("no tables matched"))
	}

	if err := o.store.CreateRun(state.Run{
		ID:          runID,
		StartedAt:   start,
		Source:      fmt.Sprintf("%s://%s/%s", o.cfg.Source.Type, o.cfg.Source.Host, o.cfg.Source.Schema),
		Destination: o.cfg.Destination.Path,
	}); err != nil {
		return nil, fmt.Errorf("recording run: %w", err)
	}
	o.notifier.SyncStarted(runID, o.cfg.Source.Host, o.cfg.Destination.Path, len(names))

	result := &RunResult{RunID: runID, StartTime: start}

	run := o.syncTable
	if run == nil {
		run = o.syncOneTable
	}

	// Inspect everything up front so the progress bar gets a row total
	// and strategy errors surface before any data moves.
	o.report(progress.Update{Phase: "inspecting", TablesTotal: len(names)}, true)
	type planned struct {
		name string
		t    *driver.Table
		err  error
	}
	var plan []planned
	var totalRows int64
	for _, name := range names {
		t, err := o.inspector.Inspect(ctx, o.cfg.Source.Schema, name)
		if err == nil {
			totalRows += t.RowCount
		}
		plan = append(plan, planned{name: name, t: t, err: err})
	}
	o.tracker.SetTotal(totalRows)

	for i, p := range plan {
		select {
		case <-ctx.Done():
			o.store.CompleteRun(runID, "cancelled")
			return result, ctx.Err()
		default:
		}

		tableStart := time.Now()
		var outcome TableOutcome
		if p.err != nil {
			outcome = TableOutcome{Table: p.name, Err: p.err}
		} else {
			strat, serr := o.resolveStrategy(p.t, opts)
			if serr != nil {
				outcome = TableOutcome{Table: p.name, Err: serr}
			} else {
				o.tracker.StartTable(p.name)
				o.report(progress.Update{
					Phase:          "syncing",
					TablesTotal:    len(plan),
					TablesComplete: i,
					TablesRunning:  1,
					CurrentTables:  []string{p.name},
					RowsSynced:     o.tracker.Current(),
					RowsTotal:      totalRows,
				}, false)
				outcome = run(ctx, p.t, strat)
				o.tracker.EndTable(p.name)
			}
		}
		outcome.Duration = time.Since(tableStart)
		result.Outcomes = append(result.Outcomes, outcome)
		result.Summary.Add(outcome.Verify)
		o.recordOutcome(runID, outcome)
		printOutcome(outcome)
	}

	result.Duration = time.Since(start)
	o.tracker.Finish()
	o.report(progress.Update{
		Phase:          "complete",
		TablesTotal:    len(plan),
		TablesComplete: len(plan),
		RowsSynced:     o.tracker.Current(),
		RowsTotal:      totalRows,
		ErrorCount:     result.Failed(),
	}, true)
	o.finishRun(runID, result)
	return result, nil
}

// selectTables lists the schema and applies the include and exclusion
// rules, with a CLI table list taking precedence over the config.
func (o *Orchestrator) selectTables(ctx context.Context, opts Options) ([]string, error) {
	if len(opts.Tables) > 0 {
		return opts.Tables, nil
	}
	all, err := o.inspector.ListTables(ctx, o.cfg.Source.Schema)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, n := range all {
		if o.cfg.IncludeTable(n) {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names, nil
}

// resolveStrategy layers the advisor output, an external payload, and the
// command-line overrides.
func (o *Orchestrator) resolveStrategy(t *driver.Table, opts Options) (advisor.Strategy, error) {
	var strat advisor.Strategy
	if len(opts.StrategyJSON) > 0 {
		parsed, err := advisor.Parse(opts.StrategyJSON, t)
		if err != nil {
			return advisor.Strategy{}, syncerr.Schema(t.FullName(), "strategy validation", err)
		}
		strat = parsed
	} else {
		strat = advisor.Default(t)
	}

	if opts.Partition {
		if !t.IsPartitioned() {
			return advisor.Strategy{}, syncerr.Schema(t.FullName(), "strategy override",
				fmt.Errorf("partition mode requested but table is not partitioned"))
		}
		strat.Mode = advisor.ModePartition
	} else if opts.Fast {
		if t.SupportsRangeChunking() {
			strat.Mode = advisor.ModeFast
		} else {
			logging.Warn("%s has no chunkable key, staying sequential", t.FullName())
			strat.Mode = advisor.ModeSequential
		}
	}

	if opts.Workers > 0 {
		strat.Workers = opts.Workers
	}
	if opts.BatchSize > 0 {
		strat.BatchSize = opts.BatchSize
	}
	if strat.RangeColumn == "" && strat.Mode != advisor.ModePartition {
		if strat.Mode == advisor.ModeFast {
			return advisor.Strategy{}, syncerr.Schema(t.FullName(), "strategy resolution",
				fmt.Errorf("no range column available for chunked load"))
		}
	}
	return strat, nil
}

func (o *Orchestrator) recordOutcome(runID string, outcome TableOutcome) {
	tr := state.TableResult{
		RunID:    runID,
		Table:    outcome.Table,
		Strategy: outcome.Strategy.Mode,
		Duration: outcome.Duration,
	}
	switch {
	case outcome.Err != nil:
		tr.Status = "failed"
		tr.Error = outcome.Err.Error()
	case outcome.Verify.Status == verify.StatusMismatch:
		tr.Status = "mismatch"
	default:
		tr.Status = "success"
	}
	if outcome.Load != nil {
		tr.Rows = outcome.Load.Rows
	}
	tr.SourceRows = outcome.Verify.SourceRows
	tr.DestRows = outcome.Verify.DestRows
	if err := o.store.RecordTableResult(tr); err != nil {
		logging.Warn("recording result for %s: %v", outcome.Table, err)
	}
}

func (o *Orchestrator) finishRun(runID string, result *RunResult) {
	failed := result.Failed()
	mismatched := result.Mismatched()
	status := "success"
	switch {
	case failed > 0:
		status = "failed"
	case mismatched > 0:
		status = "mismatch"
	}
	if err := o.store.CompleteRun(runID, status); err != nil {
		logging.Warn("completing run %s: %v", runID, err)
	}

	total := result.Summary.TotalRows()
	if failed == 0 && mismatched == 0 {
		o.notifier.SyncCompleted(runID, result.StartTime, result.Duration, len(result.Outcomes), total)
		return
	}
	var issues []string
	for _, out := range result.Outcomes {
		if out.Err != nil {
			issues = append(issues, fmt.Sprintf("%s: %v", out.Table, out.Err))
		} else if out.Verify.Status == verify.StatusMismatch {
			issues = append(issues, fmt.Sprintf("%s: count gap of %d rows", out.Table, out.Verify.Difference))
		}
	}
	succeeded := len(result.Outcomes) - failed - mismatched
	o.notifier.SyncCompletedWithIssues(runID, result.Duration, succeeded, mismatched, failed, total, issues)
}

func printOutcome(o TableOutcome) {
	switch {
	case o.Err != nil:
		fmt.Printf("  %-30s FAILED     %v\n", o.Table, o.Err)
	case o.Verify.Status == verify.StatusMismatch:
		fmt.Printf("  %-30s MISMATCH   %d source / %d destination (gap %d)\n",
			o.Table, o.Verify.SourceRows, o.Verify.DestRows, o.Verify.Difference)
	default:
		rows := int64(0)
		if o.Load != nil {
			rows = o.Load.Rows
		}
		fmt.Printf("  %-30s OK         %12d rows  %s  %s\n",
			o.Table, rows, o.Strategy.Mode, o.Duration.Round(time.Millisecond))
	}
}

// syncOneTable runs the full extract-load-verify-commit sequence.
func (o *Orchestrator) syncOneTable(ctx context.Context, t *driver.Table, strat advisor.Strategy) TableOutcome {
	outcome := TableOutcome{Table: t.Name, Strategy: strat}
	schema := driver.MapSchema(t, o.source.TypeMapper())
	norm, _ := o.source.(driver.RowNormalizer)

	var res *loader.Result
	var err error
	switch strat.Mode {
	case advisor.ModePartition:
		pl := &loader.PartitionLoader{
			Src:        o.db,
			Dialect:    o.source.Dialect(),
			Table:      t,
			Schema:     schema,
			Normalizer: norm,
			Dest:       o.dest,
			DestTable:  destTableName(t),
			Cfg: loader.Config{
				Workers:    strat.Workers,
				BatchSize:  strat.BatchSize,
				StagingDir: o.cfg.Sync.StagingDir,
			},
		}
		res, err = pl.Load(ctx)
	case advisor.ModeFast:
		res, err = o.fastLoad(ctx, t, strat, schema, norm)
	default:
		res, err = o.incrementalLoad(ctx, t, strat, schema, norm)
	}
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.Load = res
	if res != nil {
		o.tracker.Add(res.Rows)
	}

	verifier := &verify.Verifier{
		Src:       o.db,
		Dialect:   o.source.Dialect(),
		Dest:      o.dest,
		Tolerance: o.cfg.Sync.Tolerance,
	}
	outcome.Verify = verifier.VerifyTable(ctx, t, destTableName(t))
	if outcome.Verify.Status == verify.StatusError {
		outcome.Err = outcome.Verify.Err
		return outcome
	}

	if ShouldCommitWatermark(err, outcome.Verify) && res.LastKey != nil {
		if werr := o.commitWatermark(t, strat.RangeColumn, res); werr != nil {
			outcome.Err = syncerr.Merge(t.FullName(), "watermark commit", werr)
			return outcome
		}
		outcome.WatermarkCommitted = true
	}
	return outcome
}

// ShouldCommitWatermark gates watermark advancement: only a clean load
// followed by a successful verification may move it, so a crash or
// mismatch re-reads rows instead of silently skipping them.
func ShouldCommitWatermark(loadErr error, v verify.Result) bool {
	return loadErr == nil && v.Status == verify.StatusSuccess
}

func (o *Orchestrator) commitWatermark(t *driver.Table, rangeCol string, res *loader.Result) error {
	kind, text, err := state.EncodeValue(res.LastKey)
	if err != nil {
		return err
	}
	return o.store.SetWatermark(t.Schema, t.Name, state.Watermark{
		Column: rangeCol,
		Kind:   kind,
		Value:  text,
		Rows:   res.Rows,
	})
}

func (o *Orchestrator) fastLoad(ctx context.Context, t *driver.Table, strat advisor.Strategy, schema driver.Schema, norm driver.RowNormalizer) (*loader.Result, error) {
	chunks, err := planner.PlanChunks(ctx, o.db, o.source.Dialect(), t, strat.RangeColumn,
		planner.TargetChunkCount(strat.Workers, t.RowCount))
	if err != nil {
		return nil, err
	}
	reader := &extract.RangeReader{
		DB:         o.db,
		Dialect:    o.source.Dialect(),
		Table:      t,
		Columns:    schema.Names,
		Types:      schema.Types,
		RangeCol:   strat.RangeColumn,
		Workers:    strat.Workers,
		Normalizer: norm,
	}
	return loader.LoadChunks(ctx, reader, chunks, o.dest, destTableName(t), schema, loader.Config{
		Workers:   strat.Workers,
		BatchSize: strat.BatchSize,
	})
}

func (o *Orchestrator) incrementalLoad(ctx context.Context, t *driver.Table, strat advisor.Strategy, schema driver.Schema, norm driver.RowNormalizer) (*loader.Result, error) {
	if strat.RangeColumn == "" {
		return nil, syncerr.Schema(t.FullName(), "incremental load",
			fmt.Errorf("no range column for keyset pagination"))
	}

	wm, err := o.store.GetWatermark(t.Schema, t.Name)
	if err != nil {
		return nil, fmt.Errorf("reading watermark: %w", err)
	}
	resume, err := resumeValue(wm, strat.RangeColumn, t.FullName())
	if err != nil {
		return nil, err
	}

	reader := &extract.KeysetReader{
		DB:         o.db,
		Dialect:    o.source.Dialect(),
		Table:      t,
		Columns:    schema.Names,
		Types:      schema.Types,
		RangeCol:   strat.RangeColumn,
		BatchSize:  strat.BatchSize,
		Normalizer: norm,
	}

	if resume == nil {
		// First-ever sync of this range column: start at the table's
		// minimum with an inclusive bound so the earliest row is captured.
		min, empty, merr := o.rangeMin(ctx, t, strat.RangeColumn)
		if merr != nil {
			return nil, merr
		}
		if empty {
			return &loader.Result{Table: destTableName(t)}, o.dest.Ensure(ctx, destTableName(t), schema)
		}
		reader.Watermark = min
		reader.FirstSync = true
	} else {
		reader.Watermark = resume
	}

	return loader.LoadIncremental(ctx, reader, o.dest, destTableName(t), schema)
}

// resumeValue decodes the stored watermark into the keyset resume position.
// A nil result means discovery must restart from the table minimum: either
// no watermark exists, or the stored one was taken on a different column
// and a value read from one column must never bound a scan of another.
func resumeValue(wm *state.Watermark, rangeCol, tableName string) (any, error) {
	if wm == nil {
		return nil, nil
	}
	if wm.Column != rangeCol {
		logging.Warn("%s: stored watermark is for column %q but the range column is now %q, restarting from the table minimum",
			tableName, wm.Column, rangeCol)
		return nil, nil
	}
	val, err := state.DecodeValue(wm.Kind, wm.Value)
	if err != nil {
		return nil, fmt.Errorf("decoding watermark: %w", err)
	}
	return val, nil
}

func (o *Orchestrator) rangeMin(ctx context.Context, t *driver.Table, rangeCol string) (any, bool, error) {
	var minVal, maxVal any
	err := o.db.QueryRowContext(ctx, o.source.Dialect().MinMaxQuery(rangeCol, t.Schema, t.Name)).Scan(&minVal, &maxVal)
	if err != nil {
		return nil, false, syncerr.ChunkRead(t.FullName(), "range discovery", err)
	}
	if minVal == nil {
		return nil, true, nil
	}
	return minVal, false, nil
}

// destTableName maps a source table to its destination name. Oracle
// catalogs shout; DuckDB convention is lowercase.
func destTableName(t *driver.Table) string {
	return strings.ToLower(t.Name)
}
