package model

import "time"

// LeadStatus represents the lifecycle state of a patient inquiry.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusOfferSent LeadStatus = "offer_sent"
	LeadStatusClosed    LeadStatus = "closed"
)

// ValidLeadStatus reports whether s is a member of the closed status set.
func ValidLeadStatus(s LeadStatus) bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusOfferSent, LeadStatusClosed:
		return true
	}
	return false
}

// TrustStatus is the three-tier classification derived from FinalScore.
// It is never set directly, only as a consequence of a score change.
type TrustStatus string

const (
	TrustActive      TrustStatus = "active"
	TrustRiskyHidden TrustStatus = "risky_hidden"
	TrustBlacklisted TrustStatus = "blacklisted"
)

// Lead represents a patient inquiry, the subject of trust scoring.
// RuleScore is the pure rule-derived score; FinalScore equals the
// override value while one is active, else RuleScore.
type Lead struct {
	ID          string     `json:"id"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	FirstName   string     `json:"first_name,omitempty"`
	DisplayName string     `json:"display_name,omitempty"`
	Locale      string     `json:"locale,omitempty"`
	Status      LeadStatus `json:"status"`

	RuleScore   int         `json:"rule_score"`
	FinalScore  int         `json:"final_score"`
	TrustStatus TrustStatus `json:"trust_status"`

	OverrideScore  *int       `json:"override_score,omitempty"`
	OverrideReason string     `json:"override_reason,omitempty"`
	OverrideBy     string     `json:"override_by,omitempty"`
	OverrideAt     *time.Time `json:"override_at,omitempty"`

	ConsentAt *time.Time `json:"consent_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Name returns the lead's display name, preferring FirstName.
// The first non-empty of the two name fields wins.
func (l Lead) Name() string {
	if l.FirstName != "" {
		return l.FirstName
	}
	return l.DisplayName
}

// HasOverride reports whether a manual score override is active.
func (l Lead) HasOverride() bool {
	return l.OverrideScore != nil
}

// StatusChange records a lifecycle transition, independent of the
// score-audit ledger.
type StatusChange struct {
	ID        string     `json:"id"`
	LeadID    string     `json:"lead_id"`
	From      LeadStatus `json:"from"`
	To        LeadStatus `json:"to"`
	Actor     string     `json:"actor,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
