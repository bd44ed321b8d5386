package trust

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/carebridge/leadtrust/internal/model"
	"github.com/carebridge/leadtrust/internal/store"
)

// MaxOverrideReasonLen bounds the free-text override reason.
const MaxOverrideReasonLen = 500

// Validation errors recovered at the trigger boundary and reported as
// rejected operations with no state change.
var (
	ErrInvalidStatus = eris.New("invalid lead status")
	ErrEmptyNote     = eris.New("note body must not be empty")
	ErrReasonTooLong = eris.New("override reason too long")
)

// Service runs the four scoring triggers against the store. The pure
// evaluation and resolution are side-effect-free; all writes go through
// the store's transactional ApplyScore so a score never changes without
// its audit event.
type Service struct {
	store store.Store
}

// NewService creates a Service.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// RecalcResult is the outcome of an explicit recalculation.
type RecalcResult struct {
	LeadID       string            `json:"lead_id"`
	RunID        string            `json:"run_id"`
	ScoreBefore  int               `json:"score_before"`
	RuleScore    int               `json:"rule_score"`
	FinalScore   int               `json:"final_score"`
	Delta        int               `json:"delta"`
	TrustStatus  model.TrustStatus `json:"trust_status"`
	AppliedCount int               `json:"applied_count"`
}

// OverrideResult is the outcome of an override set or clear.
type OverrideResult struct {
	LeadID      string            `json:"lead_id"`
	Action      string            `json:"action"`
	ScoreBefore int               `json:"score_before"`
	ScoreAfter  int               `json:"score_after"`
	Delta       int               `json:"delta"`
	TrustStatus model.TrustStatus `json:"trust_status"`
}

// Intake creates a lead with its initial score already computed from
// the current rule catalog. Creation is not a ledger event; the first
// ledger entry appears when the score first changes.
func (s *Service) Intake(ctx context.Context, lead model.Lead) (*model.Lead, error) {
	rules, err := s.store.ListRules(ctx, model.RuleScopeLead, true)
	if err != nil {
		return nil, err
	}
	eval := Evaluate(lead, 0, rules)
	res := Resolve(eval.RuleScore, nil)

	lead.RuleScore = eval.RuleScore
	lead.FinalScore = res.FinalScore
	lead.TrustStatus = res.TrustStatus

	created, err := s.store.CreateLead(ctx, lead)
	if err != nil {
		return nil, err
	}

	zap.L().Info("trust: lead created",
		zap.String("lead_id", created.ID),
		zap.Int("score", created.FinalScore),
		zap.String("trust_status", string(created.TrustStatus)),
	)
	return created, nil
}

// ChangeStatus moves a lead to a new lifecycle status, then rescores it
// unless an override is active. The status transition itself is always
// recorded in the status history, independent of the score ledger.
func (s *Service) ChangeStatus(ctx context.Context, leadID string, to model.LeadStatus, actor string) (*model.Lead, error) {
	if !model.ValidLeadStatus(to) {
		return nil, eris.Wrapf(ErrInvalidStatus, "%q", to)
	}

	if err := s.store.ChangeLeadStatus(ctx, leadID, to, actor); err != nil {
		return nil, err
	}

	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	if !lead.HasOverride() {
		if err := s.rescore(ctx, lead, actor, model.TriggerStatusChange); err != nil {
			return nil, err
		}
		lead, err = s.store.GetLead(ctx, leadID)
		if err != nil {
			return nil, err
		}
	}
	return lead, nil
}

// AddNote attaches a note to a lead, then rescores it unless an
// override is active. The notes count seen by the evaluation includes
// the note just added.
func (s *Service) AddNote(ctx context.Context, leadID, body, author string) (*model.Note, error) {
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyNote
	}

	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	note, err := s.store.AddNote(ctx, model.Note{LeadID: leadID, Body: body, Author: author})
	if err != nil {
		return nil, err
	}

	if !lead.HasOverride() {
		if err := s.rescore(ctx, lead, author, model.TriggerNoteAdded); err != nil {
			return nil, err
		}
	}
	return note, nil
}

// rescore recomputes a lead's score and persists it only when the
// result differs from the stored one. Used by the status-change and
// note-added triggers; never called while an override is active.
func (s *Service) rescore(ctx context.Context, lead *model.Lead, actor, trigger string) error {
	eval, notesCount, err := s.evaluate(ctx, lead)
	if err != nil {
		return err
	}
	res := Resolve(eval.RuleScore, nil)

	if res.FinalScore == lead.FinalScore && eval.RuleScore == lead.RuleScore {
		return nil
	}

	upd := store.ScoreUpdate{
		LeadID:      lead.ID,
		RuleScore:   eval.RuleScore,
		FinalScore:  res.FinalScore,
		TrustStatus: res.TrustStatus,
		Event: model.TrustScoreEvent{
			LeadID:      lead.ID,
			Kind:        model.EventRuleRecalc,
			ScoreBefore: lead.FinalScore,
			ScoreAfter:  res.FinalScore,
			Delta:       res.FinalScore - lead.FinalScore,
			Metadata: model.RecalcMetadata{
				Trigger:      trigger,
				AppliedRules: len(eval.Applied),
			},
			Actor: actor,
		},
	}
	if err := s.store.ApplyScore(ctx, upd); err != nil {
		return err
	}

	zap.L().Info("trust: lead rescored",
		zap.String("lead_id", lead.ID),
		zap.String("trigger", trigger),
		zap.Int("notes", notesCount),
		zap.Int("score_before", lead.FinalScore),
		zap.Int("score_after", res.FinalScore),
	)
	return nil
}

// Recalculate always reruns the evaluation and always appends one audit
// event tagged with a fresh run id, even when nothing changed. While an
// override is active only the diagnostic rule score is written; the
// final score and trust status stay pinned to the override.
func (s *Service) Recalculate(ctx context.Context, leadID, actor string) (*RecalcResult, error) {
	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	eval, _, err := s.evaluate(ctx, lead)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	for i := range eval.Applied {
		eval.Applied[i].RunID = runID
		eval.Applied[i].LeadID = leadID
	}

	res := Resolve(eval.RuleScore, lead.OverrideScore)
	scoreBefore := lead.FinalScore

	upd := store.ScoreUpdate{
		LeadID:        leadID,
		RuleScore:     eval.RuleScore,
		FinalScore:    res.FinalScore,
		TrustStatus:   res.TrustStatus,
		RuleScoreOnly: lead.HasOverride(),
		Event: model.TrustScoreEvent{
			LeadID:      leadID,
			Kind:        model.EventRuleRecalc,
			ScoreBefore: scoreBefore,
			ScoreAfter:  res.FinalScore,
			Delta:       res.FinalScore - scoreBefore,
			Metadata: model.RecalcMetadata{
				Trigger:      model.TriggerExplicit,
				RunID:        runID,
				AppliedRules: len(eval.Applied),
			},
			Actor: actor,
		},
		Applied: eval.Applied,
	}
	if err := s.store.ApplyScore(ctx, upd); err != nil {
		return nil, err
	}

	return &RecalcResult{
		LeadID:       leadID,
		RunID:        runID,
		ScoreBefore:  scoreBefore,
		RuleScore:    eval.RuleScore,
		FinalScore:   res.FinalScore,
		Delta:        res.FinalScore - scoreBefore,
		TrustStatus:  res.TrustStatus,
		AppliedCount: len(eval.Applied),
	}, nil
}

// SetOverride pins a lead's final score to an admin-supplied value
// until cleared. The rule score is left as stored; rule evaluation is
// bypassed entirely.
func (s *Service) SetOverride(ctx context.Context, leadID string, value int, reason, actor string) (*OverrideResult, error) {
	if err := ValidateOverride(&value); err != nil {
		return nil, err
	}
	if len(reason) > MaxOverrideReasonLen {
		return nil, eris.Wrapf(ErrReasonTooLong, "%d chars (max %d)", len(reason), MaxOverrideReasonLen)
	}

	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	// The effective score before this change: a prior override if one
	// was active, else the rule-derived score.
	scoreBefore := lead.RuleScore
	if lead.HasOverride() {
		scoreBefore = *lead.OverrideScore
	}

	res := Resolve(lead.RuleScore, &value)
	now := time.Now().UTC()

	upd := store.ScoreUpdate{
		LeadID:      leadID,
		RuleScore:   lead.RuleScore,
		FinalScore:  res.FinalScore,
		TrustStatus: res.TrustStatus,
		Override: &store.OverrideWrite{
			Score:  value,
			Reason: reason,
			By:     actor,
			At:     now,
		},
		Event: model.TrustScoreEvent{
			LeadID:      leadID,
			Kind:        model.EventOverrideSet,
			ScoreBefore: scoreBefore,
			ScoreAfter:  res.FinalScore,
			Delta:       res.FinalScore - scoreBefore,
			Metadata: model.OverrideMetadata{
				Value:     value,
				HasReason: reason != "",
			},
			Actor: actor,
		},
	}
	if err := s.store.ApplyScore(ctx, upd); err != nil {
		return nil, err
	}

	zap.L().Info("trust: override set",
		zap.String("lead_id", leadID),
		zap.Int("value", value),
		zap.String("actor", actor),
	)

	return &OverrideResult{
		LeadID:      leadID,
		Action:      "set",
		ScoreBefore: scoreBefore,
		ScoreAfter:  res.FinalScore,
		Delta:       res.FinalScore - scoreBefore,
		TrustStatus: res.TrustStatus,
	}, nil
}

// ClearOverride removes an active override and immediately
// recalculates, so the final score and trust status fall back to the
// rule-derived values. Clearing a lead without an override is a no-op
// recalculation with the same audit semantics.
func (s *Service) ClearOverride(ctx context.Context, leadID, actor string) (*OverrideResult, error) {
	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	scoreBefore := lead.FinalScore
	removed := 0
	if lead.HasOverride() {
		removed = *lead.OverrideScore
		scoreBefore = removed
	}

	eval, _, err := s.evaluate(ctx, lead)
	if err != nil {
		return nil, err
	}
	res := Resolve(eval.RuleScore, nil)

	upd := store.ScoreUpdate{
		LeadID:        leadID,
		RuleScore:     eval.RuleScore,
		FinalScore:    res.FinalScore,
		TrustStatus:   res.TrustStatus,
		ClearOverride: true,
		Event: model.TrustScoreEvent{
			LeadID:      leadID,
			Kind:        model.EventOverrideCleared,
			ScoreBefore: scoreBefore,
			ScoreAfter:  res.FinalScore,
			Delta:       res.FinalScore - scoreBefore,
			Metadata: model.OverrideMetadata{
				Value: removed,
			},
			Actor: actor,
		},
	}
	if err := s.store.ApplyScore(ctx, upd); err != nil {
		return nil, err
	}

	zap.L().Info("trust: override cleared",
		zap.String("lead_id", leadID),
		zap.String("actor", actor),
	)

	return &OverrideResult{
		LeadID:      leadID,
		Action:      "cleared",
		ScoreBefore: scoreBefore,
		ScoreAfter:  res.FinalScore,
		Delta:       res.FinalScore - scoreBefore,
		TrustStatus: res.TrustStatus,
	}, nil
}

// evaluate loads the current rule catalog and notes count and runs the
// pure evaluation. The catalog snapshot is read fresh for every
// invocation; the engine holds no cache.
func (s *Service) evaluate(ctx context.Context, lead *model.Lead) (Evaluation, int, error) {
	rules, err := s.store.ListRules(ctx, model.RuleScopeLead, true)
	if err != nil {
		return Evaluation{}, 0, err
	}
	notesCount, err := s.store.CountNotes(ctx, lead.ID)
	if err != nil {
		return Evaluation{}, 0, err
	}
	return Evaluate(*lead, notesCount, rules), notesCount, nil
}
