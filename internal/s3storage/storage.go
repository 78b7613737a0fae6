package s3storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dharsanguruparan/MetroCheck/internal/config"
)

// Storage wraps MinIO/S3 access for uploaded artifacts and rendered reports.
type Storage struct {
	client       *minio.Client
	rawBucket    string
	reportBucket string
	region       string
}

// New connects to the artifact store described by cfg. No request is made
// until the first bucket call.
func New(cfg *config.Config) (*Storage, error) {
	creds := credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, "")
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{Creds: creds, Secure: cfg.S3UseSSL, Region: cfg.S3Region})
	if err != nil {
		return nil, fmt.Errorf("connect artifact store %s: %w", cfg.S3Endpoint, err)
	}
	return &Storage{
		client:       client,
		rawBucket:    cfg.RawBucket,
		reportBucket: cfg.ReportBucket,
		region:       cfg.S3Region,
	}, nil
}

// EnsureBuckets creates the extraction and report buckets when missing.
func (s *Storage) EnsureBuckets(ctx context.Context) error {
	if err := s.ensureBucket(ctx, s.rawBucket); err != nil {
		return err
	}
	return s.ensureBucket(ctx, s.reportBucket)
}

func (s *Storage) ensureBucket(ctx context.Context, name string) error {
	found, err := s.client.BucketExists(ctx, name)
	switch {
	case err != nil:
		return fmt.Errorf("lookup bucket %q: %w", name, err)
	case found:
		return nil
	}
	if err := s.client.MakeBucket(ctx, name, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("create bucket %q: %w", name, err)
	}
	return nil
}

// UploadRaw stores an uploaded listing or label artifact under objectKey.
func (s *Storage) UploadRaw(ctx context.Context, objectKey string, body io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, s.rawBucket, objectKey, body, size, opts); err != nil {
		return fmt.Errorf("store extraction %s: %w", objectKey, err)
	}
	return nil
}

// DownloadRaw reads an uploaded artifact fully into memory. Artifacts are
// bounded by the upload size limit.
func (s *Storage) DownloadRaw(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.rawBucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("open extraction %s: %w", objectKey, err)
	}
	defer obj.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(obj); err != nil {
		return nil, fmt.Errorf("fetch extraction %s: %w", objectKey, err)
	}
	return buf.Bytes(), nil
}

// UploadReport stores a JSON compliance report.
func (s *Storage) UploadReport(ctx context.Context, objectKey string, data []byte) error {
	opts := minio.PutObjectOptions{ContentType: "application/json"}
	if _, err := s.client.PutObject(ctx, s.reportBucket, objectKey, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return fmt.Errorf("store report %s: %w", objectKey, err)
	}
	return nil
}

// PresignReportURL returns a time-limited GET URL for a stored report. The
// URL asks the browser to save the report under its object name.
func (s *Storage) PresignReportURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", path.Base(objectKey)))
	u, err := s.client.PresignedGetObject(ctx, s.reportBucket, objectKey, ttl, params)
	if err != nil {
		return "", fmt.Errorf("presign report %s: %w", objectKey, err)
	}
	return u.String(), nil
}
