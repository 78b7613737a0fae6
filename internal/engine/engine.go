// Package engine runs the normalize, evaluate and score pipeline for raw
// product records against the registry's current rules.
package engine

import (
	"context"
	"time"

	"github.com/dharsanguruparan/MetroCheck/internal/evaluate"
	"github.com/dharsanguruparan/MetroCheck/internal/logger"
	"github.com/dharsanguruparan/MetroCheck/internal/normalize"
	"github.com/dharsanguruparan/MetroCheck/internal/product"
	"github.com/dharsanguruparan/MetroCheck/internal/rules"
	"github.com/dharsanguruparan/MetroCheck/internal/scoring"
)

// RuleSource yields the rule set a check runs against. *rules.Registry
// satisfies it; workers use a fixed snapshot loaded from the database.
type RuleSource interface {
	Snapshot() *rules.Snapshot
}

// FixedRules adapts a single snapshot to RuleSource.
type FixedRules struct{ S *rules.Snapshot }

func (f FixedRules) Snapshot() *rules.Snapshot { return f.S }

// Engine checks product records for compliance.
type Engine struct {
	source  RuleSource
	log     *logger.Logger
	workers int
	now     func() time.Time
}

// New builds an Engine. workers bounds CheckBatch concurrency.
func New(source RuleSource, log *logger.Logger, workers int) *Engine {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{source: source, log: log, workers: workers, now: time.Now}
}

// Check normalizes raw and scores it against one rules snapshot.
func (e *Engine) Check(raw map[string]any) scoring.Report {
	return e.checkWith(e.source.Snapshot(), normalize.Normalize(raw))
}

// CheckRecord scores an already normalized record.
func (e *Engine) CheckRecord(rec product.Record) scoring.Report {
	return e.checkWith(e.source.Snapshot(), rec)
}

func (e *Engine) checkWith(snap *rules.Snapshot, rec product.Record) scoring.Report {
	outcomes := evaluate.Evaluate(rec, snap.Active())
	report := scoring.Aggregate(rec.ID, outcomes, e.now())
	e.log.Debug("product checked",
		"product_id", rec.ID,
		"rules_version", snap.Version(),
		"score", report.Score,
		"violations", len(report.Violations),
	)
	return report
}

type batchJob struct {
	index int
	raw   map[string]any
}

// CheckBatch checks raws on a bounded worker pool. Every record in the batch
// sees the same rules snapshot. Reports come back in input order; when ctx is
// cancelled the reports finished so far are returned with ctx.Err(), and
// unfinished slots are dropped.
func (e *Engine) CheckBatch(ctx context.Context, raws []map[string]any) ([]scoring.Report, error) {
	snap := e.source.Snapshot()
	results := make([]*scoring.Report, len(raws))
	jobs := make(chan batchJob, e.workers*4)
	done := make(chan struct{})

	workers := e.workers
	if workers > len(raws) {
		workers = len(raws)
	}
	for i := 0; i < workers; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for job := range jobs {
				if ctx.Err() != nil {
					continue
				}
				report := e.checkWith(snap, normalize.Normalize(job.raw))
				results[job.index] = &report
			}
		}()
	}

feed:
	for i, raw := range raws {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- batchJob{index: i, raw: raw}:
		}
	}
	close(jobs)
	for i := 0; i < workers; i++ {
		<-done
	}

	reports := make([]scoring.Report, 0, len(raws))
	for _, r := range results {
		if r != nil {
			reports = append(reports, *r)
		}
	}
	if err := ctx.Err(); err != nil {
		e.log.Warn("batch check cancelled", "completed", len(reports), "requested", len(raws))
		return reports, err
	}
	return reports, nil
}
