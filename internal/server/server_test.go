package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/leadtrust/internal/config"
	"github.com/carebridge/leadtrust/internal/model"
	"github.com/carebridge/leadtrust/internal/store"
	"github.com/carebridge/leadtrust/internal/trust"
)

// memStore is an in-memory Store backing the handler tests.
type memStore struct {
	leads   map[string]*model.Lead
	notes   map[string][]model.Note
	rules   []model.Rule
	events  []model.TrustScoreEvent
	history []model.StatusChange
}

func newMemStore() *memStore {
	return &memStore{
		leads: map[string]*model.Lead{},
		notes: map[string][]model.Note{},
		rules: model.DefaultRules(),
	}
}

func (m *memStore) CreateLead(_ context.Context, lead model.Lead) (*model.Lead, error) {
	lead.ID = uuid.New().String()
	lead.CreatedAt = time.Now().UTC()
	lead.UpdatedAt = lead.CreatedAt
	cp := lead
	m.leads[lead.ID] = &cp
	return &cp, nil
}

func (m *memStore) GetLead(_ context.Context, id string) (*model.Lead, error) {
	lead, ok := m.leads[id]
	if !ok {
		return nil, store.ErrLeadNotFound
	}
	cp := *lead
	return &cp, nil
}

func (m *memStore) ListLeads(_ context.Context, filter store.LeadFilter) ([]model.Lead, error) {
	out := []model.Lead{}
	for _, l := range m.leads {
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if filter.TrustStatus != "" && l.TrustStatus != filter.TrustStatus {
			continue
		}
		if filter.TrustStatus == "" && !filter.IncludeHidden && l.TrustStatus == model.TrustRiskyHidden {
			continue
		}
		out = append(out, *l)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memStore) ChangeLeadStatus(_ context.Context, id string, to model.LeadStatus, actor string) error {
	lead, ok := m.leads[id]
	if !ok {
		return store.ErrLeadNotFound
	}
	m.history = append(m.history, model.StatusChange{LeadID: id, From: lead.Status, To: to, Actor: actor})
	lead.Status = to
	return nil
}

func (m *memStore) ListStatusChanges(_ context.Context, leadID string) ([]model.StatusChange, error) {
	out := []model.StatusChange{}
	for _, h := range m.history {
		if h.LeadID == leadID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *memStore) AddNote(_ context.Context, note model.Note) (*model.Note, error) {
	if _, ok := m.leads[note.LeadID]; !ok {
		return nil, store.ErrLeadNotFound
	}
	note.ID = uuid.New().String()
	note.CreatedAt = time.Now().UTC()
	m.notes[note.LeadID] = append(m.notes[note.LeadID], note)
	return &note, nil
}

func (m *memStore) CountNotes(_ context.Context, leadID string) (int, error) {
	return len(m.notes[leadID]), nil
}

func (m *memStore) ListNotes(_ context.Context, leadID string) ([]model.Note, error) {
	return m.notes[leadID], nil
}

func (m *memStore) ListRules(_ context.Context, scope model.RuleScope, activeOnly bool) ([]model.Rule, error) {
	out := []model.Rule{}
	for _, r := range m.rules {
		if r.Scope != scope || (activeOnly && !r.Active) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) UpdateRule(_ context.Context, code string, delta int, active bool) error {
	for i := range m.rules {
		if m.rules[i].Code == code {
			m.rules[i].Delta = delta
			m.rules[i].Active = active
			return nil
		}
	}
	return store.ErrRuleNotFound
}

func (m *memStore) SeedRules(_ context.Context, rules []model.Rule) error {
	m.rules = rules
	return nil
}

func (m *memStore) ApplyScore(_ context.Context, upd store.ScoreUpdate) error {
	lead, ok := m.leads[upd.LeadID]
	if !ok {
		return store.ErrLeadNotFound
	}
	lead.RuleScore = upd.RuleScore
	if !upd.RuleScoreOnly {
		lead.FinalScore = upd.FinalScore
		lead.TrustStatus = upd.TrustStatus
	}
	if upd.Override != nil {
		v := upd.Override.Score
		at := upd.Override.At
		lead.OverrideScore = &v
		lead.OverrideReason = upd.Override.Reason
		lead.OverrideBy = upd.Override.By
		lead.OverrideAt = &at
	}
	if upd.ClearOverride {
		lead.OverrideScore = nil
		lead.OverrideReason = ""
		lead.OverrideBy = ""
		lead.OverrideAt = nil
	}
	ev := upd.Event
	ev.ID = uuid.New().String()
	ev.CreatedAt = time.Now().UTC()
	m.events = append(m.events, ev)
	return nil
}

func (m *memStore) ListEvents(_ context.Context, leadID string) ([]model.TrustScoreEvent, error) {
	out := []model.TrustScoreEvent{}
	for _, e := range m.events {
		if e.LeadID == leadID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) ListRuleApplications(_ context.Context, runID string) ([]model.RuleApplication, error) {
	return nil, nil
}

func (m *memStore) CollectMetrics(_ context.Context, since time.Time) (*model.TrustMetrics, error) {
	metrics := &model.TrustMetrics{TotalLeads: len(m.leads)}
	var sum int
	for _, l := range m.leads {
		sum += l.FinalScore
		switch l.TrustStatus {
		case model.TrustActive:
			metrics.ActiveLeads++
		case model.TrustRiskyHidden:
			metrics.RiskyHiddenLeads++
		case model.TrustBlacklisted:
			metrics.BlacklistedLeads++
		}
		if l.HasOverride() {
			metrics.OverriddenLeads++
		}
	}
	if metrics.TotalLeads > 0 {
		metrics.AvgFinalScore = float64(sum) / float64(metrics.TotalLeads)
	}
	for _, e := range m.events {
		if e.CreatedAt.Before(since) {
			continue
		}
		metrics.EventsInWindow++
		switch e.Kind {
		case model.EventRuleRecalc:
			metrics.RecalcEvents++
		case model.EventOverrideSet, model.EventOverrideCleared:
			metrics.OverrideEvents++
		}
	}
	return metrics, nil
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

func testServer(st store.Store) *Server {
	return New(trust.NewService(st), st, config.ServerConfig{
		Port:           8080,
		CORSOrigins:    []string{"*"},
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeLead(t *testing.T, rec *httptest.ResponseRecorder) model.Lead {
	t.Helper()
	var lead model.Lead
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lead))
	return lead
}

func TestHealth(t *testing.T) {
	h := testServer(newMemStore()).Router()
	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetrics(t *testing.T) {
	h := testServer(newMemStore()).Router()

	rec := doJSON(t, h, http.MethodPost, "/leads", map[string]any{"email": "a@b.c", "phone": "+1555", "locale": "en"})
	require.Equal(t, http.StatusCreated, rec.Code)
	full := decodeLead(t, rec)

	rec = doJSON(t, h, http.MethodPost, "/leads", map[string]any{"first_name": "Pat"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodPut, "/leads/"+full.ID+"/override", map[string]any{
		"score": 30, "reason": "manual review",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var m model.TrustMetrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, 2, m.TotalLeads)
	// the overridden lead lands below 50 and joins the sparse one
	assert.Equal(t, 2, m.BlacklistedLeads)
	assert.Equal(t, 1, m.OverriddenLeads)
	assert.Equal(t, 1, m.EventsInWindow)
	assert.Equal(t, 1, m.OverrideEvents)
	assert.Equal(t, 24, m.WindowHours)
	assert.False(t, m.CollectedAt.IsZero())
}

func TestCreateLead(t *testing.T) {
	h := testServer(newMemStore()).Router()

	rec := doJSON(t, h, http.MethodPost, "/leads", map[string]any{
		"email":      "pat@example.com",
		"phone":      "+4917612345678",
		"first_name": "Pat",
		"locale":     "DE-de",
		"consent":    true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	lead := decodeLead(t, rec)
	assert.NotEmpty(t, lead.ID)
	assert.Equal(t, "de-DE", lead.Locale)
	assert.Equal(t, model.LeadStatusNew, lead.Status)
	assert.Equal(t, 80, lead.FinalScore)
	assert.Equal(t, model.TrustActive, lead.TrustStatus)
	assert.NotNil(t, lead.ConsentAt)
}

func TestCreateLead_SparseScoresLow(t *testing.T) {
	h := testServer(newMemStore()).Router()

	rec := doJSON(t, h, http.MethodPost, "/leads", map[string]any{
		"first_name": "Pat",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	lead := decodeLead(t, rec)
	// missing email, phone, locale: 80 - 20 - 15 - 5
	assert.Equal(t, 40, lead.FinalScore)
	assert.Equal(t, model.TrustBlacklisted, lead.TrustStatus)
}

func TestCreateLead_Validation(t *testing.T) {
	h := testServer(newMemStore()).Router()

	rec := doJSON(t, h, http.MethodPost, "/leads", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/leads", map[string]any{
		"email":  "a@b.c",
		"locale": "not a locale!!",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid locale")
}

func TestGetLead_NotFound(t *testing.T) {
	h := testServer(newMemStore()).Router()
	rec := doJSON(t, h, http.MethodGet, "/leads/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLeadListings_UnknownLead404(t *testing.T) {
	h := testServer(newMemStore()).Router()

	for _, path := range []string{"/history", "/notes", "/events"} {
		rec := doJSON(t, h, http.MethodGet, "/leads/"+uuid.New().String()+path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestListLeads_DefaultLimit(t *testing.T) {
	st := newMemStore()
	h := testServer(st).Router()

	for i := 0; i < 120; i++ {
		_, err := st.CreateLead(context.Background(), model.Lead{
			Email: "a@b.c", RuleScore: 80, FinalScore: 80, TrustStatus: model.TrustActive,
		})
		require.NoError(t, err)
	}

	var listed struct {
		Count int `json:"count"`
	}

	// Unpaged requests are capped at 100.
	rec := doJSON(t, h, http.MethodGet, "/leads", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Equal(t, 100, listed.Count)

	// An explicit limit=0 removes the cap.
	rec = doJSON(t, h, http.MethodGet, "/leads?limit=0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Equal(t, 120, listed.Count)

	rec = doJSON(t, h, http.MethodGet, "/leads?limit=7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Equal(t, 7, listed.Count)
}

func TestListLeads_HidesRiskyByDefault(t *testing.T) {
	st := newMemStore()
	h := testServer(st).Router()

	create := func(body map[string]any) model.Lead {
		rec := doJSON(t, h, http.MethodPost, "/leads", body)
		require.Equal(t, http.StatusCreated, rec.Code)
		return decodeLead(t, rec)
	}
	create(map[string]any{"email": "a@b.c", "phone": "1", "first_name": "A", "locale": "de"}) // 80, active
	risky := create(map[string]any{"email": "a@b.c", "phone": "1", "first_name": "A"})       // 75... locale missing -> 75 active

	// Push one lead into risky_hidden via override.
	rec := doJSON(t, h, http.MethodPut, "/leads/"+risky.ID+"/override", map[string]any{"score": 55, "reason": "manual review"})
	require.Equal(t, http.StatusOK, rec.Code)

	var listed struct {
		Leads []model.Lead `json:"leads"`
		Count int          `json:"count"`
	}
	rec = doJSON(t, h, http.MethodGet, "/leads", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Equal(t, 1, listed.Count)

	rec = doJSON(t, h, http.MethodGet, "/leads?include_hidden=true", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Equal(t, 2, listed.Count)

	rec = doJSON(t, h, http.MethodGet, "/leads?trust_status=risky_hidden", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Equal(t, 1, listed.Count)
}

func TestChangeStatus(t *testing.T) {
	h := testServer(newMemStore()).Router()
	rec := doJSON(t, h, http.MethodPost, "/leads", map[string]any{
		"email": "a@b.c", "phone": "1", "first_name": "A", "locale": "de",
	})
	lead := decodeLead(t, rec)

	rec = doJSON(t, h, http.MethodPatch, "/leads/"+lead.ID+"/status", map[string]any{"status": "offer_sent"})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeLead(t, rec)
	assert.Equal(t, model.LeadStatusOfferSent, got.Status)
	assert.Equal(t, 85, got.FinalScore)

	rec = doJSON(t, h, http.MethodPatch, "/leads/"+lead.ID+"/status", map[string]any{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/leads/"+lead.ID+"/history", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "offer_sent")
}

func TestNotes(t *testing.T) {
	h := testServer(newMemStore()).Router()
	rec := doJSON(t, h, http.MethodPost, "/leads", map[string]any{
		"email": "a@b.c", "phone": "1", "first_name": "A", "locale": "de",
	})
	lead := decodeLead(t, rec)

	rec = doJSON(t, h, http.MethodPost, "/leads/"+lead.ID+"/notes", map[string]any{"body": "called, left voicemail"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/leads/"+lead.ID+"/notes", map[string]any{"body": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/leads/"+lead.ID, nil)
	got := decodeLead(t, rec)
	assert.Equal(t, 85, got.FinalScore)

	rec = doJSON(t, h, http.MethodGet, "/leads/"+lead.ID+"/notes", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "voicemail")
}

func TestRecalcEndpoint(t *testing.T) {
	h := testServer(newMemStore()).Router()
	rec := doJSON(t, h, http.MethodPost, "/leads", map[string]any{
		"email": "a@b.c", "phone": "1", "first_name": "A", "locale": "de",
	})
	lead := decodeLead(t, rec)

	rec = doJSON(t, h, http.MethodPost, "/leads/"+lead.ID+"/recalc", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res trust.RecalcResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 80, res.FinalScore)
	assert.Equal(t, 0, res.Delta)
}

func TestOverrideLifecycle(t *testing.T) {
	h := testServer(newMemStore()).Router()
	rec := doJSON(t, h, http.MethodPost, "/leads", map[string]any{
		"email": "a@b.c", "phone": "1", "first_name": "A", "locale": "de",
	})
	lead := decodeLead(t, rec)

	rec = doJSON(t, h, http.MethodPut, "/leads/"+lead.ID+"/override", map[string]any{"score": 30.5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPut, "/leads/"+lead.ID+"/override", map[string]any{"reason": "no score"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPut, "/leads/"+lead.ID+"/override", map[string]any{"score": 30, "reason": "dispute"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res trust.OverrideResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "set", res.Action)
	assert.Equal(t, 30, res.ScoreAfter)
	assert.Equal(t, model.TrustBlacklisted, res.TrustStatus)

	rec = doJSON(t, h, http.MethodDelete, "/leads/"+lead.ID+"/override", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "cleared", res.Action)
	assert.Equal(t, 80, res.ScoreAfter)

	rec = doJSON(t, h, http.MethodGet, "/leads/"+lead.ID+"/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "override_set")
	assert.Contains(t, rec.Body.String(), "override_cleared")
}

func TestEvents_LeadNotFound(t *testing.T) {
	h := testServer(newMemStore()).Router()
	rec := doJSON(t, h, http.MethodGet, "/leads/"+uuid.New().String()+"/events", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRules(t *testing.T) {
	h := testServer(newMemStore()).Router()

	rec := doJSON(t, h, http.MethodGet, "/rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing_email")

	rec = doJSON(t, h, http.MethodPatch, "/rules/missing_email", map[string]any{"delta": -25, "active": true})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPatch, "/rules/missing_email", map[string]any{"delta": -25})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPatch, "/rules/nope", map[string]any{"delta": -25, "active": false})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	srv := New(trust.NewService(newMemStore()), newMemStore(), config.ServerConfig{
		Port:           8080,
		RateLimitRPS:   0.1,
		RateLimitBurst: 1,
	})
	h := srv.Router()

	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
