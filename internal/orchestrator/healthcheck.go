package orchestrator

import (
	"context"
	"sync"
	"time"
)

// HealthCheckResult reports connectivity of both ends.
type HealthCheckResult struct {
	Timestamp        string `json:"timestamp"`
	SourceType       string `json:"source_type"`
	SourceConnected  bool   `json:"source_connected"`
	SourceError      string `json:"source_error,omitempty"`
	SourceLatencyMs  int64  `json:"source_latency_ms"`
	SourceTableCount int    `json:"source_table_count,omitempty"`
	DestPath         string `json:"dest_path"`
	DestWritable     bool   `json:"dest_writable"`
	DestError        string `json:"dest_error,omitempty"`
	Healthy          bool   `json:"healthy"`
}

// HealthCheck pings the source and probes the destination in parallel,
// each with its own timeout, so one slow side cannot starve the other's
// budget.
func (o *Orchestrator) HealthCheck(ctx context.Context) (*HealthCheckResult, error) {
	result := &HealthCheckResult{
		Timestamp:  time.Now().Format(time.RFC3339),
		SourceType: o.cfg.Source.Type,
		DestPath:   o.cfg.Destination.Path,
	}

	const checkTimeout = 30 * time.Second

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		start := time.Now()
		sctx, cancel := context.WithTimeout(ctx, checkTimeout)
		defer cancel()

		if err := o.db.PingContext(sctx); err != nil {
			result.SourceError = err.Error()
		} else {
			result.SourceConnected = true
			if tables, err := o.inspector.ListTables(sctx, o.cfg.Source.Schema); err == nil {
				result.SourceTableCount = len(tables)
			}
		}
		result.SourceLatencyMs = time.Since(start).Milliseconds()
	}()

	go func() {
		defer wg.Done()
		dctx, cancel := context.WithTimeout(ctx, checkTimeout)
		defer cancel()

		if err := o.dest.DB().PingContext(dctx); err != nil {
			result.DestError = err.Error()
		} else {
			result.DestWritable = true
		}
	}()

	wg.Wait()
	result.Healthy = result.SourceConnected && result.DestWritable
	return result, nil
}
