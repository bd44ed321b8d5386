package model

import "time"

// RuleScope restricts a rule to one entity kind.
type RuleScope string

const (
	// RuleScopeLead is the only scope currently evaluated.
	RuleScopeLead RuleScope = "lead"
)

// Well-known rule codes. Codes outside this set may exist in the
// catalog; they are inert until a predicate is added for them.
const (
	RuleMissingEmail    = "missing_email"
	RuleMissingPhone    = "missing_phone"
	RuleMissingName     = "missing_name"
	RuleMissingLocale   = "missing_locale"
	RuleHasNote         = "has_note"
	RuleStatusOfferSent = "status_offer_sent"
	RuleStatusClosed    = "status_closed"
)

// Rule is a named predicate with a signed point delta contributing to
// a lead's rule-derived score. Rules are immutable during a single
// scoring pass; only the catalog editor changes Delta/Active between
// passes.
type Rule struct {
	Code      string    `json:"code" yaml:"code"`
	Delta     int       `json:"delta" yaml:"delta"`
	Active    bool      `json:"active" yaml:"active"`
	Scope     RuleScope `json:"scope" yaml:"scope"`
	Position  int       `json:"position" yaml:"position"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// DefaultRules returns the seed catalog in evaluation order.
func DefaultRules() []Rule {
	rules := []Rule{
		{Code: RuleMissingEmail, Delta: -20},
		{Code: RuleMissingPhone, Delta: -15},
		{Code: RuleMissingName, Delta: -10},
		{Code: RuleMissingLocale, Delta: -5},
		{Code: RuleHasNote, Delta: 5},
		{Code: RuleStatusOfferSent, Delta: 5},
		{Code: RuleStatusClosed, Delta: 10},
	}
	for i := range rules {
		rules[i].Active = true
		rules[i].Scope = RuleScopeLead
		rules[i].Position = i
	}
	return rules
}

// RuleApplication records one rule firing within a scoring run,
// tagged with the run identifier shared by all applications of that
// pass. It is a projection of the evaluation, not a source of truth.
type RuleApplication struct {
	RunID       string `json:"run_id"`
	LeadID      string `json:"lead_id,omitempty"`
	Code        string `json:"code"`
	Delta       int    `json:"delta"`
	ScoreBefore int    `json:"before"`
	ScoreAfter  int    `json:"after"`
	Position    int    `json:"position"`
}
