package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/dharsanguruparan/MetroCheck/internal/scoring"
)

const maxBatchRecords = 1000

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.Config.MaxUploadBytes)
	var raw map[string]any
	if err := decodeBody(r, &raw); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "body must be a JSON object: "+err.Error())
		return
	}
	report := s.Engine.Check(raw)
	if s.Reports != nil {
		if err := s.Reports.Insert(r.Context(), "", report); err != nil {
			s.respondErr(w, r, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, report)
}

type batchResponse struct {
	Reports []scoring.Report `json:"reports"`
	Summary scoring.Summary  `json:"summary"`
}

func (s *Server) handleEvaluateBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.Config.MaxUploadBytes)
	var raws []map[string]any
	if err := decodeBody(r, &raws); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "body must be a JSON array of objects: "+err.Error())
		return
	}
	if len(raws) > maxBatchRecords {
		respondError(w, http.StatusRequestEntityTooLarge, "batch_too_large",
			"at most "+strconv.Itoa(maxBatchRecords)+" records per batch")
		return
	}
	reports, err := s.Engine.CheckBatch(r.Context(), raws)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if s.Reports != nil {
		for _, report := range reports {
			if err := s.Reports.Insert(r.Context(), "", report); err != nil {
				s.respondErr(w, r, err)
				return
			}
		}
	}
	respondJSON(w, http.StatusOK, batchResponse{Reports: reports, Summary: scoring.Summarize(reports)})
}

func (s *Server) handleProductRoute(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/products/"), "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "reports" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.Reports == nil {
		unavailable(w, "report storage")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	reports, err := s.Reports.ListByProduct(r.Context(), parts[0], limit)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"productId": parts[0], "reports": reports})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.Reports == nil {
		unavailable(w, "report storage")
		return
	}
	latest, err := s.Reports.Latest(r.Context())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, scoring.Summarize(latest))
}
