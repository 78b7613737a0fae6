package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// ExtractionStatus enumerates the lifecycle of an uploaded label artifact.
type ExtractionStatus string

const (
	StatusQueued     ExtractionStatus = "queued"
	StatusProcessing ExtractionStatus = "processing"
	StatusCompleted  ExtractionStatus = "completed"
	StatusFailed     ExtractionStatus = "failed"
)

// Extraction is an uploaded listing JSON or label PDF awaiting a compliance
// report.
type Extraction struct {
	ID           string           `json:"id"`
	ProductID    *string          `json:"productId,omitempty"`
	FileName     string           `json:"fileName"`
	ObjectKey    string           `json:"objectKey"`
	ContentType  string           `json:"contentType"`
	ReportKey    *string          `json:"reportKey,omitempty"`
	Status       ExtractionStatus `json:"status"`
	ErrorMessage *string          `json:"errorMessage,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// ExtractionRepository wraps the SQL shared by the API and the worker.
type ExtractionRepository struct {
	pool *pgxpool.Pool
}

// NewExtractionRepository constructs a repository.
func NewExtractionRepository(pool *pgxpool.Pool) *ExtractionRepository {
	return &ExtractionRepository{pool: pool}
}

// Create inserts a queued extraction before the task is enqueued.
func (r *ExtractionRepository) Create(ctx context.Context, ex *Extraction) error {
	now := time.Now().UTC()
	ex.Status = StatusQueued
	ex.CreatedAt = now
	ex.UpdatedAt = now
	_, err := r.pool.Exec(ctx, `
		INSERT INTO extractions (id, file_name, object_key, content_type, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, ex.ID, ex.FileName, ex.ObjectKey, ex.ContentType, ex.Status, ex.CreatedAt, ex.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert extraction: %w", err)
	}
	return nil
}

// Get returns an extraction by id.
func (r *ExtractionRepository) Get(ctx context.Context, id string) (*Extraction, error) {
	var (
		ex        Extraction
		productID sql.NullString
		reportKey sql.NullString
		errorMsg  sql.NullString
	)
	row := r.pool.QueryRow(ctx, `
		SELECT id, product_id, file_name, object_key, content_type, report_key, status, error_message, created_at, updated_at
		FROM extractions WHERE id=$1
	`, id)
	if err := row.Scan(&ex.ID, &productID, &ex.FileName, &ex.ObjectKey, &ex.ContentType, &reportKey, &ex.Status,
		&errorMsg, &ex.CreatedAt, &ex.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("extraction %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("select extraction: %w", err)
	}
	ex.ProductID = nullable(productID)
	ex.ReportKey = nullable(reportKey)
	ex.ErrorMessage = nullable(errorMsg)
	return &ex, nil
}

// MarkProcessing sets the status to processing.
func (r *ExtractionRepository) MarkProcessing(ctx context.Context, id string) error {
	return r.updateStatus(ctx, id, StatusProcessing, nil, nil, nil)
}

// MarkFailed records why the attempt failed.
func (r *ExtractionRepository) MarkFailed(ctx context.Context, id string, msg string) error {
	return r.updateStatus(ctx, id, StatusFailed, nil, nil, &msg)
}

// MarkCompleted links the extraction to the product and the stored report.
func (r *ExtractionRepository) MarkCompleted(ctx context.Context, id, productID, reportKey string) error {
	return r.updateStatus(ctx, id, StatusCompleted, &productID, &reportKey, nil)
}

func (r *ExtractionRepository) updateStatus(ctx context.Context, id string, status ExtractionStatus, productID, reportKey, errorMsg *string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE extractions
		SET status=$1,
			product_id = COALESCE($2, product_id),
			report_key = COALESCE($3, report_key),
			error_message = $4,
			updated_at=$5
		WHERE id=$6
	`, status, productID, reportKey, errorMsg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update extraction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("extraction %s: %w", id, ErrNotFound)
	}
	return nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
