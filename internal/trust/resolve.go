package trust

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/carebridge/leadtrust/internal/model"
)

// ErrInvalidOverride marks an override value outside the integer range
// [0, 100]. It is a caller-facing validation error, not an engine fault.
var ErrInvalidOverride = eris.New("override must be an integer between 0 and 100")

// Resolution is the effective score and its derived trust status.
type Resolution struct {
	FinalScore  int
	TrustStatus model.TrustStatus
}

// Resolve returns the final score: the override value when one is
// active, otherwise the rule-derived score. Override values are
// validated at the boundary but defensively clamped here.
func Resolve(ruleScore int, override *int) Resolution {
	final := ruleScore
	if override != nil {
		final = *override
	}
	final = clamp(final)
	return Resolution{FinalScore: final, TrustStatus: MapScoreToStatus(final)}
}

// MapScoreToStatus maps a final score to its trust tier. Boundary
// values belong to the higher tier: exactly 70 is active, exactly 50
// is risky_hidden.
func MapScoreToStatus(score int) model.TrustStatus {
	switch {
	case score >= 70:
		return model.TrustActive
	case score >= 50:
		return model.TrustRiskyHidden
	default:
		return model.TrustBlacklisted
	}
}

// ValidateOverride checks a proposed override value. nil is always
// valid and represents "clear".
func ValidateOverride(v *int) error {
	if v == nil {
		return nil
	}
	if *v < 0 || *v > 100 {
		return eris.Wrapf(ErrInvalidOverride, "got %d", *v)
	}
	return nil
}

// ParseOverride converts a raw numeric payload into an override value,
// rejecting non-integers and out-of-range values. A nil input is the
// explicit "clear" request.
func ParseOverride(raw *float64) (*int, error) {
	if raw == nil {
		return nil, nil
	}
	if *raw != math.Trunc(*raw) {
		return nil, eris.Wrapf(ErrInvalidOverride, "got %v", *raw)
	}
	v := int(*raw)
	if err := ValidateOverride(&v); err != nil {
		return nil, err
	}
	return &v, nil
}
