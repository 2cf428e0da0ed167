package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/johndauphine/colsync/internal/config"
	_ "github.com/johndauphine/colsync/internal/driver/mssql"
	_ "github.com/johndauphine/colsync/internal/driver/oracle"
	_ "github.com/johndauphine/colsync/internal/driver/postgres"
	"github.com/johndauphine/colsync/internal/exitcodes"
	"github.com/johndauphine/colsync/internal/logging"
	"github.com/johndauphine/colsync/internal/orchestrator"
	"github.com/johndauphine/colsync/internal/progress"
	"github.com/johndauphine/colsync/internal/state"
	"github.com/johndauphine/colsync/internal/tui"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "colsync",
		Usage:   "Incremental sync from a relational source to a DuckDB analytics store",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "colsync.yaml",
				Usage:   "Path to configuration file",
			},
			&cli.StringFlag{
				Name:  "verbosity",
				Value: "",
				Usage: "Log verbosity level (debug, info, warn, error); overrides config",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Shorthand for --verbosity debug",
			},
			&cli.StringFlag{
				Name:  "schema",
				Usage: "Override the source schema",
			},
			&cli.StringFlag{
				Name:  "state",
				Usage: "Override the state store path",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return startUI(c)
			}
			return cli.ShowAppHelp(c)
		},
		Commands: []*cli.Command{
			{
				Name:   "sync",
				Usage:  "Run a sync pass over the configured tables",
				Action: runSync,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "fast",
						Usage: "Force chunk-parallel full load for all tables",
					},
					&cli.BoolFlag{
						Name:  "partition",
						Usage: "Force partition-parallel load (tables must be partitioned)",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Override parallel worker count",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Override rows per batch",
					},
					&cli.StringFlag{
						Name:  "db",
						Usage: "Override destination DuckDB file path",
					},
					&cli.StringSliceFlag{
						Name:    "table",
						Aliases: []string{"t"},
						Usage:   "Sync only the named table (repeatable)",
					},
					&cli.StringFlag{
						Name:  "strategy",
						Usage: "Path to an externally produced strategy JSON file",
					},
					&cli.BoolFlag{
						Name:  "output-json",
						Usage: "Print the run result as JSON on completion (logs go to stderr)",
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Show the last run and its table results",
				Action: showStatus,
			},
			{
				Name:   "history",
				Usage:  "List recent sync runs",
				Action: showHistory,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Value: 10,
						Usage: "Number of runs to list",
					},
				},
			},
			{
				Name:   "verify",
				Usage:  "Compare source and destination row counts without syncing",
				Action: runVerify,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "table",
						Aliases: []string{"t"},
						Usage:   "Verify only the named table (repeatable)",
					},
				},
			},
			{
				Name:      "inspect",
				Usage:     "Show source table metadata, type mappings, and incremental candidates",
				ArgsUsage: "TABLE",
				Action:    inspectTable,
			},
			{
				Name:   "check",
				Usage:  "Check source and destination connectivity",
				Action: healthCheck,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the result as JSON",
					},
				},
			},
			{
				Name:   "validate",
				Usage:  "Validate the configuration file and print it with secrets redacted",
				Action: validateConfig,
			},
			{
				Name:   "ui",
				Usage:  "Open the interactive run dashboard",
				Action: startUI,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitcodes.FromError(err))
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if v := c.String("verbosity"); v != "" {
		level = v
	}
	if c.Bool("verbose") {
		level = "debug"
	}
	if level != "" {
		parsed, err := logging.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		logging.SetLevel(parsed)
	}
	if s := c.String("schema"); s != "" {
		cfg.Source.Schema = s
	}
	if p := c.String("state"); p != "" {
		cfg.State.Path = p
	}
	return cfg, nil
}

func openOrchestrator(ctx context.Context, c *cli.Context) (*orchestrator.Orchestrator, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	if db := c.String("db"); db != "" {
		cfg.Destination.Path = db
	}
	return orchestrator.New(ctx, cfg)
}

// cancelOnSignal wires SIGINT/SIGTERM to context cancellation so a
// partial run still records its outcome and releases staging files.
func cancelOnSignal(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nInterrupted, finishing current table...")
		cancel()
	}()
	return ctx, cancel
}

func runSync(c *cli.Context) error {
	ctx, cancel := cancelOnSignal(context.Background())
	defer cancel()

	orch, err := openOrchestrator(ctx, c)
	if err != nil {
		return err
	}
	defer orch.Close()

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		reporter := progress.NewJSONReporter(os.Stderr, 2*time.Second)
		defer reporter.Close()
		orch.SetReporter(reporter)
	}

	opts := orchestrator.Options{
		Fast:      c.Bool("fast"),
		Partition: c.Bool("partition"),
		Workers:   c.Int("workers"),
		BatchSize: c.Int("batch-size"),
		Tables:    c.StringSlice("table"),
	}
	if path := c.String("strategy"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading strategy file: %w", err)
		}
		opts.StrategyJSON = raw
	}

	result, err := orch.Run(ctx, opts)
	if err != nil {
		return err
	}

	if c.Bool("output-json") {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	}

	if failed := result.Failed(); failed > 0 {
		return exitcodes.NewExitError(
			fmt.Errorf("%d of %d tables failed", failed, len(result.Outcomes)),
			exitcodes.ExtractError)
	}
	if mismatched := result.Mismatched(); mismatched > 0 {
		// Count gaps are a data-quality warning, not an operational
		// failure; schedulers should not retry them.
		logging.Warn("%d of %d tables have count mismatches", mismatched, len(result.Outcomes))
	}
	return nil
}

func showStatus(c *cli.Context) error {
	orch, err := openOrchestrator(context.Background(), c)
	if err != nil {
		return err
	}
	defer orch.Close()
	return orch.ShowStatus()
}

func showHistory(c *cli.Context) error {
	orch, err := openOrchestrator(context.Background(), c)
	if err != nil {
		return err
	}
	defer orch.Close()
	return orch.ShowHistory(c.Int("limit"))
}

func runVerify(c *cli.Context) error {
	ctx, cancel := cancelOnSignal(context.Background())
	defer cancel()

	orch, err := openOrchestrator(ctx, c)
	if err != nil {
		return err
	}
	defer orch.Close()

	summary, err := orch.VerifyAll(ctx, orchestrator.Options{Tables: c.StringSlice("table")})
	if err != nil {
		return err
	}
	if summary.HasErrors() {
		return exitcodes.NewExitError(
			fmt.Errorf("verification could not complete for all tables"),
			exitcodes.VerificationError)
	}
	if !summary.AllPassed() {
		_, mismatch, _ := summary.Counts()
		logging.Warn("%d tables have count mismatches", mismatch)
	}
	return nil
}

func inspectTable(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: colsync inspect TABLE")
	}
	ctx := context.Background()
	orch, err := openOrchestrator(ctx, c)
	if err != nil {
		return err
	}
	defer orch.Close()
	return orch.InspectTable(ctx, c.Args().First())
}

func healthCheck(c *cli.Context) error {
	ctx := context.Background()
	orch, err := openOrchestrator(ctx, c)
	if err != nil {
		return err
	}
	defer orch.Close()

	result, err := orch.HealthCheck(ctx)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	}
	if !result.Healthy {
		return exitcodes.NewExitError(fmt.Errorf("health check failed"), exitcodes.ConnectionError)
	}
	return nil
}

func validateConfig(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(cfg.Sanitized())
	if err != nil {
		return err
	}
	fmt.Println("Configuration OK")
	fmt.Print(string(out))
	return nil
}

// startUI opens the dashboard over the state store only, so it can watch
// a run driven by another process without holding source connections.
func startUI(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	statePath, err := cfg.StatePath()
	if err != nil {
		return err
	}
	var store state.Store
	if cfg.State.Backend == "file" {
		store, err = state.OpenFile(statePath)
	} else {
		store, err = state.OpenSQLite(statePath)
	}
	if err != nil {
		return err
	}
	defer store.Close()
	return tui.Run(store)
}
