package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/MetroCheck/internal/engine"
	"github.com/dharsanguruparan/MetroCheck/internal/queue"
	"github.com/dharsanguruparan/MetroCheck/internal/repository"
)

func (s *Server) extractionsConfigured(w http.ResponseWriter) bool {
	if s.Extractions == nil || s.Objects == nil || s.Queue == nil {
		unavailable(w, "extraction pipeline")
		return false
	}
	return true
}

func (s *Server) handleExtractions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.extractionsConfigured(w) {
		return
	}
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.Config.MaxUploadBytes+1024)
	mr, err := r.MultipartReader()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "expecting multipart form")
		return
	}
	part, err := nextFilePart(mr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "missing file part")
		return
	}
	defer part.Close()
	data, err := io.ReadAll(io.LimitReader(part, s.Config.MaxUploadBytes+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "read file: "+err.Error())
		return
	}
	switch {
	case len(data) == 0:
		respondError(w, http.StatusBadRequest, "invalid_request", "empty file")
		return
	case int64(len(data)) > s.Config.MaxUploadBytes:
		respondError(w, http.StatusRequestEntityTooLarge, "file_too_large",
			fmt.Sprintf("file exceeds limit (%d bytes)", s.Config.MaxUploadBytes))
		return
	}
	fileName := part.FileName()
	if fileName == "" {
		fileName = "upload"
	}
	contentType := engine.DetectContentType(part.Header.Get("Content-Type"), fileName, data)
	if contentType == "" {
		respondError(w, http.StatusUnsupportedMediaType, "unsupported_artifact",
			"upload listing JSON, label text or a label PDF")
		return
	}

	id := uuid.NewString()
	objectKey := fmt.Sprintf("uploads/%s/%s", id, filepath.Base(fileName))
	if err := s.Objects.UploadRaw(ctx, objectKey, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		s.respondErr(w, r, fmt.Errorf("store upload: %w", err))
		return
	}
	ex := &repository.Extraction{ID: id, FileName: fileName, ObjectKey: objectKey, ContentType: contentType}
	if err := s.Extractions.Create(ctx, ex); err != nil {
		s.respondErr(w, r, err)
		return
	}
	payload := queue.EvaluatePayload{ExtractionID: id, ObjectKey: objectKey, ContentType: contentType}
	if err := queue.EnqueueEvaluate(ctx, s.Queue, payload); err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.Logger.Info("extraction queued", "extraction_id", id, "content_type", contentType, "bytes", len(data))
	respondJSON(w, http.StatusAccepted, map[string]string{
		"id":     id,
		"status": string(repository.StatusQueued),
	})
}

func (s *Server) handleExtractionRoute(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/extractions/"), "/"), "/")
	if parts[0] == "" || len(parts) > 2 {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.Extractions == nil {
		unavailable(w, "extraction storage")
		return
	}
	ex, err := s.Extractions.Get(r.Context(), parts[0])
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if len(parts) == 1 {
		respondJSON(w, http.StatusOK, ex)
		return
	}
	switch parts[1] {
	case "report":
		s.handleExtractionReport(w, r, ex)
	case "report-url":
		s.handleReportURL(w, r, ex)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleExtractionReport(w http.ResponseWriter, r *http.Request, ex *repository.Extraction) {
	if s.Reports == nil {
		unavailable(w, "report storage")
		return
	}
	if ex.Status != repository.StatusCompleted {
		respondJSON(w, http.StatusAccepted, map[string]any{"id": ex.ID, "status": ex.Status, "errorMessage": ex.ErrorMessage})
		return
	}
	var productID string
	if ex.ProductID != nil {
		productID = *ex.ProductID
	}
	report, err := s.Reports.ByExtraction(r.Context(), ex.ID, productID)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleReportURL(w http.ResponseWriter, r *http.Request, ex *repository.Extraction) {
	if s.Objects == nil {
		unavailable(w, "object storage")
		return
	}
	if ex.ReportKey == nil {
		respondError(w, http.StatusNotFound, "not_found", "report not yet available")
		return
	}
	url, err := s.Objects.PresignReportURL(r.Context(), *ex.ReportKey, s.Config.SignedURLTTL)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("no file part")
			}
			return nil, err
		}
		if part.FormName() == "file" {
			return part, nil
		}
		part.Close()
	}
}
