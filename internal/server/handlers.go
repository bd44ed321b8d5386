package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/carebridge/leadtrust/internal/model"
	"github.com/carebridge/leadtrust/internal/store"
	"github.com/carebridge/leadtrust/internal/trust"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// respondServiceError maps domain errors to HTTP statuses. Anything
// unrecognized is logged and reported as an opaque 500.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrLeadNotFound):
		respondError(w, http.StatusNotFound, "lead not found")
	case errors.Is(err, store.ErrRuleNotFound):
		respondError(w, http.StatusNotFound, "rule not found")
	case errors.Is(err, trust.ErrInvalidStatus),
		errors.Is(err, trust.ErrEmptyNote),
		errors.Is(err, trust.ErrReasonTooLong),
		errors.Is(err, trust.ErrInvalidOverride):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		zap.L().Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// actor returns the acting identity for audit attribution.
func actor(r *http.Request) string {
	if a := r.Header.Get("X-Actor"); a != "" {
		return a
	}
	return "api"
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := s.collector.Snapshot(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

type createLeadRequest struct {
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	FirstName   string `json:"first_name"`
	DisplayName string `json:"display_name"`
	Locale      string `json:"locale"`
	Consent     bool   `json:"consent"`
}

func (s *Server) handleCreateLead(w http.ResponseWriter, r *http.Request) {
	var req createLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" && req.Phone == "" && req.FirstName == "" && req.DisplayName == "" {
		respondError(w, http.StatusBadRequest, "at least one identifying field is required")
		return
	}

	locale := req.Locale
	if locale != "" {
		tag, err := language.Parse(locale)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid locale")
			return
		}
		locale = tag.String()
	}

	lead := model.Lead{
		Email:       req.Email,
		Phone:       req.Phone,
		FirstName:   req.FirstName,
		DisplayName: req.DisplayName,
		Locale:      locale,
		Status:      model.LeadStatusNew,
	}
	if req.Consent {
		now := time.Now().UTC()
		lead.ConsentAt = &now
	}

	created, err := s.svc.Intake(r.Context(), lead)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// defaultListLimit caps lead listings when the client does not ask for
// a page size. An explicit limit=0 removes the cap.
const defaultListLimit = 100

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.LeadFilter{
		Status:        model.LeadStatus(q.Get("status")),
		TrustStatus:   model.TrustStatus(q.Get("trust_status")),
		IncludeHidden: q.Get("include_hidden") == "true",
		Limit:         defaultListLimit,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filter.Offset = n
	}

	leads, err := s.store.ListLeads(r.Context(), filter)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"leads": leads, "count": len(leads)})
}

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	lead, err := s.store.GetLead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, lead)
}

func (s *Server) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status model.LeadStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	lead, err := s.svc.ChangeStatus(r.Context(), chi.URLParam(r, "id"), req.Status, actor(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, lead)
}

func (s *Server) handleListStatusChanges(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "id")
	if _, err := s.store.GetLead(r.Context(), leadID); err != nil {
		respondServiceError(w, err)
		return
	}
	changes, err := s.store.ListStatusChanges(r.Context(), leadID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"history": changes})
}

func (s *Server) handleAddNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	note, err := s.svc.AddNote(r.Context(), chi.URLParam(r, "id"), req.Body, actor(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, note)
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "id")
	if _, err := s.store.GetLead(r.Context(), leadID); err != nil {
		respondServiceError(w, err)
		return
	}
	notes, err := s.store.ListNotes(r.Context(), leadID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

func (s *Server) handleRecalc(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Recalculate(r.Context(), chi.URLParam(r, "id"), actor(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Score  *float64 `json:"score"`
		Reason string   `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	value, err := trust.ParseOverride(req.Score)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if value == nil {
		respondError(w, http.StatusBadRequest, "score is required")
		return
	}

	res, err := s.svc.SetOverride(r.Context(), chi.URLParam(r, "id"), *value, req.Reason, actor(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleClearOverride(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.ClearOverride(r.Context(), chi.URLParam(r, "id"), actor(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "id")
	if _, err := s.store.GetLead(r.Context(), leadID); err != nil {
		respondServiceError(w, err)
		return
	}
	events, err := s.store.ListEvents(r.Context(), leadID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.store.ListRules(r.Context(), model.RuleScopeLead, false)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Delta  *int  `json:"delta"`
		Active *bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Delta == nil || req.Active == nil {
		respondError(w, http.StatusBadRequest, "delta and active are required")
		return
	}

	code := chi.URLParam(r, "code")
	if err := s.store.UpdateRule(r.Context(), code, *req.Delta, *req.Active); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"code": code, "status": "updated"})
}
