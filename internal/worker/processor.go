package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/MetroCheck/internal/engine"
	"github.com/dharsanguruparan/MetroCheck/internal/logger"
	"github.com/dharsanguruparan/MetroCheck/internal/queue"
	"github.com/dharsanguruparan/MetroCheck/internal/rules"
	"github.com/dharsanguruparan/MetroCheck/internal/scoring"
)

// Extractions tracks the lifecycle of an upload.
type Extractions interface {
	MarkProcessing(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, msg string) error
	MarkCompleted(ctx context.Context, id, productID, reportKey string) error
}

// Reports stores the reports of an extraction, replacing any from an
// earlier attempt.
type Reports interface {
	ReplaceForExtraction(ctx context.Context, extractionID string, reports []scoring.Report) error
}

// RuleLoader reads the rule set a task is evaluated against.
type RuleLoader interface {
	LoadSnapshot(ctx context.Context) (*rules.Snapshot, error)
}

// Objects reads uploads and writes rendered reports.
type Objects interface {
	DownloadRaw(ctx context.Context, objectKey string) ([]byte, error)
	UploadReport(ctx context.Context, objectKey string, data []byte) error
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	extractions Extractions
	reports     Reports
	rules       RuleLoader
	objects     Objects
	log         *logger.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(extractions Extractions, reports Reports, ruleLoader RuleLoader, objects Objects, log *logger.Logger) *Processor {
	if log == nil {
		log = logger.Nop()
	}
	return &Processor{extractions: extractions, reports: reports, rules: ruleLoader, objects: objects, log: log}
}

// Handler registers the evaluate job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.EvaluateExtractionTask, p.HandleEvaluate)
	return mux
}

// HandleEvaluate scores one uploaded artifact. Uploads holding several
// listings are scored individually; the first product's report is linked to
// the extraction and every report is stored.
func (p *Processor) HandleEvaluate(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.ParseEvaluatePayload(task)
	if err != nil {
		return err
	}
	log := p.log.With("extraction_id", payload.ExtractionID)
	failure := func(err error) error {
		log.Error("evaluation failed", "error", err)
		if markErr := p.extractions.MarkFailed(ctx, payload.ExtractionID, err.Error()); markErr != nil {
			log.Warn("mark failed", "error", markErr)
		}
		return err
	}
	if err := p.extractions.MarkProcessing(ctx, payload.ExtractionID); err != nil {
		return failure(err)
	}
	data, err := p.objects.DownloadRaw(ctx, payload.ObjectKey)
	if err != nil {
		return failure(err)
	}
	contentType := engine.DetectContentType(payload.ContentType, payload.ObjectKey, data)
	raws, err := engine.DecodeArtifact(data, contentType)
	if err != nil {
		return failure(fmt.Errorf("%v: %w", err, asynq.SkipRetry))
	}
	if len(raws) == 0 {
		return failure(fmt.Errorf("artifact holds no product records: %w", asynq.SkipRetry))
	}
	snap, err := p.rules.LoadSnapshot(ctx)
	if err != nil {
		return failure(fmt.Errorf("load rules: %w", err))
	}

	eng := engine.New(engine.FixedRules{S: snap}, log, 1)
	reports, err := eng.CheckBatch(ctx, raws)
	if err != nil {
		return failure(err)
	}
	if err := p.reports.ReplaceForExtraction(ctx, payload.ExtractionID, reports); err != nil {
		return failure(err)
	}
	reportKey := ReportObjectKey(payload.ExtractionID)
	body, err := json.MarshalIndent(reportDocument{
		ExtractionID: payload.ExtractionID,
		RulesVersion: snap.Version(),
		GeneratedAt:  time.Now().UTC(),
		Reports:      reports,
	}, "", "  ")
	if err != nil {
		return failure(fmt.Errorf("marshal report: %w", err))
	}
	if err := p.objects.UploadReport(ctx, reportKey, body); err != nil {
		return failure(err)
	}
	if err := p.extractions.MarkCompleted(ctx, payload.ExtractionID, reports[0].ProductID, reportKey); err != nil {
		return failure(err)
	}
	log.Info("extraction evaluated", "products", len(reports), "score", reports[0].Score, "violations", len(reports[0].Violations))
	return nil
}

type reportDocument struct {
	ExtractionID string           `json:"extractionId"`
	RulesVersion uint64           `json:"rulesVersion"`
	GeneratedAt  time.Time        `json:"generatedAt"`
	Reports      []scoring.Report `json:"reports"`
}

// ReportObjectKey is where the rendered report for an extraction is stored.
func ReportObjectKey(extractionID string) string {
	return fmt.Sprintf("reports/%s.json", extractionID)
}
