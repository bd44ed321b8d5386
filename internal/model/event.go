package model

import (
	"encoding/json"
	"time"
)

// EventKind tags a scoring transition in the audit ledger.
type EventKind string

const (
	EventRuleRecalc      EventKind = "rule_recalc"
	EventOverrideSet     EventKind = "override_set"
	EventOverrideCleared EventKind = "override_cleared"
)

// Trigger reasons recorded in recalculation metadata.
const (
	TriggerStatusChange = "status_change"
	TriggerNoteAdded    = "note_added"
	TriggerExplicit     = "explicit"
)

// EventMetadata is the closed set of per-kind metadata payloads. It is
// serialized to JSON only at the persistence boundary.
type EventMetadata interface {
	isEventMetadata()
}

// RecalcMetadata accompanies rule_recalc events.
type RecalcMetadata struct {
	Trigger      string `json:"trigger"`
	RunID        string `json:"run_id,omitempty"`
	AppliedRules int    `json:"applied_rules"`
}

// OverrideMetadata accompanies override_set and override_cleared events.
type OverrideMetadata struct {
	Value     int  `json:"value"`
	HasReason bool `json:"has_reason"`
}

func (RecalcMetadata) isEventMetadata()   {}
func (OverrideMetadata) isEventMetadata() {}

// TrustScoreEvent is one immutable entry in a lead's scoring ledger.
// Delta is always ScoreAfter - ScoreBefore. Metadata carries the typed
// payload on the write path; RawMetadata holds the stored JSON when an
// event is read back.
type TrustScoreEvent struct {
	ID          string          `json:"id"`
	LeadID      string          `json:"lead_id"`
	Kind        EventKind       `json:"kind"`
	ScoreBefore int             `json:"score_before"`
	ScoreAfter  int             `json:"score_after"`
	Delta       int             `json:"delta"`
	Metadata    EventMetadata   `json:"-"`
	RawMetadata json.RawMessage `json:"metadata,omitempty"`
	Actor       string          `json:"actor,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// MarshalMetadata serializes the typed metadata payload, or returns
// RawMetadata unchanged when the event came from storage.
func (e TrustScoreEvent) MarshalMetadata() ([]byte, error) {
	if e.Metadata == nil {
		if len(e.RawMetadata) > 0 {
			return e.RawMetadata, nil
		}
		return nil, nil
	}
	return json.Marshal(e.Metadata)
}
