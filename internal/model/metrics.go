package model

import "time"

// TrustMetrics holds a point-in-time view of the scored lead base and
// recent ledger activity.
type TrustMetrics struct {
	TotalLeads       int     `json:"total_leads"`
	ActiveLeads      int     `json:"active_leads"`
	RiskyHiddenLeads int     `json:"risky_hidden_leads"`
	BlacklistedLeads int     `json:"blacklisted_leads"`
	OverriddenLeads  int     `json:"overridden_leads"`
	AvgFinalScore    float64 `json:"avg_final_score"`

	// Ledger activity within the lookback window.
	EventsInWindow int `json:"events_in_window"`
	RecalcEvents   int `json:"recalc_events"`
	OverrideEvents int `json:"override_events"`

	WindowHours int       `json:"window_hours"`
	CollectedAt time.Time `json:"collected_at"`
}
