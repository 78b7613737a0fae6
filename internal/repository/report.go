package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/MetroCheck/internal/evaluate"
	"github.com/dharsanguruparan/MetroCheck/internal/scoring"
)

// ReportRepository stores compliance reports. Direct evaluations append a
// row each; extraction reports are replaced as a set. Readers pick the latest.
type ReportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository constructs a repository.
func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

// Insert appends a report. extractionID is empty for direct API evaluations.
func (r *ReportRepository) Insert(ctx context.Context, extractionID string, report scoring.Report) error {
	return insertReport(ctx, r.pool, extractionID, report)
}

// ReplaceForExtraction swaps the stored reports of an extraction for reports
// in one transaction, keeping their order. A retried task therefore leaves
// exactly one set of rows behind.
func (r *ReportRepository) ReplaceForExtraction(ctx context.Context, extractionID string, reports []scoring.Report) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM reports WHERE extraction_id=$1`, extractionID); err != nil {
			return fmt.Errorf("clear extraction reports: %w", err)
		}
		for _, report := range reports {
			if err := insertReport(ctx, tx, extractionID, report); err != nil {
				return err
			}
		}
		return nil
	})
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertReport(ctx context.Context, db execer, extractionID string, report scoring.Report) error {
	outcomes, err := json.Marshal(report.Outcomes)
	if err != nil {
		return fmt.Errorf("marshal outcomes: %w", err)
	}
	var exID *string
	if extractionID != "" {
		exID = &extractionID
	}
	_, err = db.Exec(ctx, `
		INSERT INTO reports (product_id, extraction_id, score, badge, rules_evaluated, outcomes, scored_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, report.ProductID, exID, report.Score, string(report.Badge), report.RulesEvaluated, outcomes, report.ScoredAt)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

const reportColumns = `product_id, score, badge, rules_evaluated, outcomes, scored_at`

// ByExtraction returns the report an extraction produced for productID. An
// empty productID selects the first report the extraction stored.
func (r *ReportRepository) ByExtraction(ctx context.Context, extractionID, productID string) (scoring.Report, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports
		WHERE extraction_id=$1 AND ($2 = '' OR product_id=$2)
		ORDER BY id LIMIT 1`, extractionID, productID)
	report, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return scoring.Report{}, fmt.Errorf("report for extraction %s: %w", extractionID, ErrNotFound)
	}
	return report, err
}

// ListByProduct returns a product's reports, newest first.
func (r *ReportRepository) ListByProduct(ctx context.Context, productID string, limit int) ([]scoring.Report, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `SELECT `+reportColumns+` FROM reports
		WHERE product_id=$1 ORDER BY scored_at DESC LIMIT $2`, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("select reports: %w", err)
	}
	return collectReports(rows)
}

// Latest returns the newest report of every product, for dashboard totals.
func (r *ReportRepository) Latest(ctx context.Context) ([]scoring.Report, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT ON (product_id) `+reportColumns+` FROM reports
		ORDER BY product_id, scored_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("select latest reports: %w", err)
	}
	return collectReports(rows)
}

func collectReports(rows pgx.Rows) ([]scoring.Report, error) {
	defer rows.Close()
	out := []scoring.Report{}
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, report)
	}
	return out, rows.Err()
}

func scanReport(row pgx.Row) (scoring.Report, error) {
	var (
		report   scoring.Report
		badge    string
		outcomes []byte
	)
	if err := row.Scan(&report.ProductID, &report.Score, &badge, &report.RulesEvaluated, &outcomes, &report.ScoredAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return report, err
		}
		return report, fmt.Errorf("scan report: %w", err)
	}
	report.Badge = scoring.Badge(badge)
	if err := json.Unmarshal(outcomes, &report.Outcomes); err != nil {
		return report, fmt.Errorf("decode outcomes: %w", err)
	}
	report.Violations = make([]evaluate.Outcome, 0)
	for _, o := range report.Outcomes {
		if !o.Passed {
			report.Violations = append(report.Violations, o)
		}
	}
	report.ScoredAt = report.ScoredAt.UTC()
	return report, nil
}
