package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/dharsanguruparan/MetroCheck/internal/config"
	"github.com/dharsanguruparan/MetroCheck/internal/engine"
	"github.com/dharsanguruparan/MetroCheck/internal/logger"
	"github.com/dharsanguruparan/MetroCheck/internal/queue"
	"github.com/dharsanguruparan/MetroCheck/internal/repository"
	"github.com/dharsanguruparan/MetroCheck/internal/rules"
	"github.com/dharsanguruparan/MetroCheck/internal/scoring"
)

// ExtractionStore is the slice of repository.ExtractionRepository the API uses.
type ExtractionStore interface {
	Create(ctx context.Context, ex *repository.Extraction) error
	Get(ctx context.Context, id string) (*repository.Extraction, error)
}

// ReportStore is the slice of repository.ReportRepository the API uses.
type ReportStore interface {
	Insert(ctx context.Context, extractionID string, report scoring.Report) error
	ByExtraction(ctx context.Context, extractionID, productID string) (scoring.Report, error)
	ListByProduct(ctx context.Context, productID string, limit int) ([]scoring.Report, error)
	Latest(ctx context.Context) ([]scoring.Report, error)
}

// ObjectStore is the slice of s3storage.Storage the API uses.
type ObjectStore interface {
	UploadRaw(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error
	PresignReportURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error)
}

// Deps wires the server. Registry and Engine are required; the persistence
// dependencies may be nil, in which case the endpoints that need them answer
// 503 and direct evaluations are not stored.
type Deps struct {
	Config      *config.Config
	Registry    *rules.Registry
	Engine      *engine.Engine
	Extractions ExtractionStore
	Reports     ReportStore
	Objects     ObjectStore
	Queue       queue.Enqueuer
	Logger      *logger.Logger
}

// Server exposes rule management, evaluation and extraction endpoints.
type Server struct {
	Deps
	server  *http.Server
	handler http.Handler
	once    sync.Once
}

// New constructs a Server.
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Config == nil {
		deps.Config, _ = config.Load()
	}
	return &Server{Deps: deps}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	s.once.Do(func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", s.handleHealth)
		mux.HandleFunc("/rules", s.handleRules)
		mux.HandleFunc("/rules/", s.handleRuleRoute)
		mux.HandleFunc("/evaluate", s.handleEvaluate)
		mux.HandleFunc("/evaluate/batch", s.handleEvaluateBatch)
		mux.HandleFunc("/extractions", s.handleExtractions)
		mux.HandleFunc("/extractions/", s.handleExtractionRoute)
		mux.HandleFunc("/products/", s.handleProductRoute)
		mux.HandleFunc("/stats", s.handleStats)
		s.handler = corsMiddleware(s.loggingMiddleware(mux))
	})
	return s.handler
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.Config.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.Logger.Info("api listening", "address", s.Config.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"rules":        s.Registry.Snapshot().Len(),
		"rulesVersion": s.Registry.Snapshot().Version(),
	})
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code, msg string) {
	respondJSON(w, status, errorBody{Error: code, Message: msg})
}

// respondErr maps domain errors to status codes.
func (s *Server) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, rules.ErrDuplicateRuleID):
		respondError(w, http.StatusConflict, "duplicate_rule_id", err.Error())
	case errors.Is(err, rules.ErrRuleNotFound):
		respondError(w, http.StatusNotFound, "rule_not_found", err.Error())
	case errors.Is(err, rules.ErrInvalidRule):
		respondError(w, http.StatusBadRequest, "invalid_rule", err.Error())
	case errors.Is(err, repository.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusServiceUnavailable, "cancelled", err.Error())
	default:
		s.Logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	respondError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}

func unavailable(w http.ResponseWriter, what string) {
	respondError(w, http.StatusServiceUnavailable, "unavailable", what+" is not configured")
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.Logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
