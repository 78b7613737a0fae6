package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dharsanguruparan/MetroCheck/internal/rules"
)

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list := s.Registry.List()
		if r.URL.Query().Get("active") == "true" {
			list = s.Registry.Snapshot().Active()
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"version": s.Registry.Snapshot().Version(),
			"rules":   list,
		})
	case http.MethodPost:
		var rule rules.Rule
		if err := decodeBody(r, &rule); err != nil {
			s.respondErr(w, r, fmt.Errorf("%w: %v", rules.ErrInvalidRule, err))
			return
		}
		added, err := s.Registry.Add(r.Context(), rule)
		if err != nil {
			s.respondErr(w, r, err)
			return
		}
		s.Logger.Info("rule added", "rule_id", added.ID, "priority", added.Priority)
		respondJSON(w, http.StatusCreated, added)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleRuleRoute(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/rules/"), "/"), "/")
	if parts[0] == "" || len(parts) > 2 {
		http.NotFound(w, r)
		return
	}
	id := parts[0]
	if len(parts) == 2 {
		if parts[1] != "active" {
			http.NotFound(w, r)
			return
		}
		s.handleRuleActive(w, r, id)
		return
	}
	switch r.Method {
	case http.MethodGet:
		rule, err := s.Registry.Get(id)
		if err != nil {
			s.respondErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, rule)
	case http.MethodPatch:
		var patch rules.Patch
		if err := decodeBody(r, &patch); err != nil {
			s.respondErr(w, r, fmt.Errorf("%w: %v", rules.ErrInvalidRule, err))
			return
		}
		updated, err := s.Registry.Update(r.Context(), id, patch)
		if err != nil {
			s.respondErr(w, r, err)
			return
		}
		s.Logger.Info("rule updated", "rule_id", id, "version", updated.Version)
		respondJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := s.Registry.Remove(r.Context(), id); err != nil {
			s.respondErr(w, r, err)
			return
		}
		s.Logger.Info("rule removed", "rule_id", id)
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleRuleActive(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	var body struct {
		Active *bool `json:"active"`
	}
	if err := decodeBody(r, &body); err != nil || body.Active == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", `body must be {"active": true|false}`)
		return
	}
	updated, err := s.Registry.SetActive(r.Context(), id, *body.Active)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}
