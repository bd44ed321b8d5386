// Package trust implements rule-based trustworthiness scoring for
// intake leads: a deterministic evaluation pass over a rule catalog,
// override resolution, and the trigger orchestration that keeps a
// lead's score fields and audit ledger consistent.
package trust

import (
	"github.com/carebridge/leadtrust/internal/model"
)

// BaseScore is the starting trust assumption: a lead is trustworthy
// until evidence erodes it.
const BaseScore = 80

// Evaluation is the result of one scoring pass.
type Evaluation struct {
	RuleScore int
	Applied   []model.RuleApplication
}

// Evaluate computes the rule-derived score for a lead snapshot. Rules
// are applied in catalog order; inactive rules, rules outside the lead
// scope, and unknown codes never fire. The running score is clamped to
// [0, 100] after every delta. Identical inputs always yield identical
// output: no randomness, no I/O, no clock.
func Evaluate(lead model.Lead, notesCount int, rules []model.Rule) Evaluation {
	score := BaseScore
	var applied []model.RuleApplication

	for i, r := range rules {
		if !r.Active || r.Scope != model.RuleScopeLead {
			continue
		}
		if !fires(r.Code, lead, notesCount) {
			continue
		}
		before := score
		score = clamp(score + r.Delta)
		applied = append(applied, model.RuleApplication{
			Code:        r.Code,
			Delta:       r.Delta,
			ScoreBefore: before,
			ScoreAfter:  score,
			Position:    i,
		})
	}

	return Evaluation{RuleScore: score, Applied: applied}
}

// fires evaluates the fixed predicate for a rule code. Unknown codes
// are inert so new catalog entries without predicate logic are
// forward-compatible rather than an error.
func fires(code string, lead model.Lead, notesCount int) bool {
	switch code {
	case model.RuleMissingEmail:
		return lead.Email == ""
	case model.RuleMissingPhone:
		return lead.Phone == ""
	case model.RuleMissingName:
		return lead.Name() == ""
	case model.RuleMissingLocale:
		return lead.Locale == ""
	case model.RuleHasNote:
		return notesCount >= 1
	case model.RuleStatusOfferSent:
		return lead.Status == model.LeadStatusOfferSent
	case model.RuleStatusClosed:
		return lead.Status == model.LeadStatusClosed
	default:
		return false
	}
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
