package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/carebridge/leadtrust/internal/model"
)

// Sentinel errors surfaced to callers as structured not-found
// outcomes. Implementations wrap these so errors.Is works through the
// eris chain.
var (
	ErrLeadNotFound = eris.New("lead not found")
	ErrRuleNotFound = eris.New("rule not found")
)

// LeadFilter specifies criteria for listing leads. The default view
// hides risky_hidden leads; set IncludeHidden to see them. A zero
// Limit means no limit, so bulk callers see every lead; bounded pages
// are the caller's concern.
type LeadFilter struct {
	Status        model.LeadStatus  `json:"status,omitempty"`
	TrustStatus   model.TrustStatus `json:"trust_status,omitempty"`
	IncludeHidden bool              `json:"include_hidden,omitempty"`
	Limit         int               `json:"limit,omitempty"`
	Offset        int               `json:"offset,omitempty"`
}

// OverrideWrite carries the override columns written by a score update
// that sets a manual override.
type OverrideWrite struct {
	Score  int
	Reason string
	By     string
	At     time.Time
}

// ScoreUpdate is the unit of work for one scoring transition: the new
// score fields, an optional override set/clear, the audit event, and
// any per-rule run records. Implementations apply the whole update in
// a single transaction so a score can never change without its audit
// event, or vice versa.
type ScoreUpdate struct {
	LeadID      string
	RuleScore   int
	FinalScore  int
	TrustStatus model.TrustStatus

	// RuleScoreOnly updates the diagnostic rule score while leaving
	// final_score and trust_status untouched (explicit recalculation
	// with an active override).
	RuleScoreOnly bool

	// Override is non-nil when the update activates a manual override;
	// ClearOverride removes one. At most one of the two is set.
	Override      *OverrideWrite
	ClearOverride bool

	Event   model.TrustScoreEvent
	Applied []model.RuleApplication
}

// Store defines the persistence interface for the lead-intake trust
// pipeline.
type Store interface {
	// Leads
	CreateLead(ctx context.Context, lead model.Lead) (*model.Lead, error)
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	ChangeLeadStatus(ctx context.Context, id string, to model.LeadStatus, actor string) error
	ListStatusChanges(ctx context.Context, leadID string) ([]model.StatusChange, error)

	// Notes
	AddNote(ctx context.Context, note model.Note) (*model.Note, error)
	CountNotes(ctx context.Context, leadID string) (int, error)
	ListNotes(ctx context.Context, leadID string) ([]model.Note, error)

	// Rule catalog
	ListRules(ctx context.Context, scope model.RuleScope, activeOnly bool) ([]model.Rule, error)
	UpdateRule(ctx context.Context, code string, delta int, active bool) error
	SeedRules(ctx context.Context, rules []model.Rule) error

	// Scoring ledger
	ApplyScore(ctx context.Context, upd ScoreUpdate) error
	ListEvents(ctx context.Context, leadID string) ([]model.TrustScoreEvent, error)
	ListRuleApplications(ctx context.Context, runID string) ([]model.RuleApplication, error)

	// Reporting
	CollectMetrics(ctx context.Context, since time.Time) (*model.TrustMetrics, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
