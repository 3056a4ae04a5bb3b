package triage

import (
	"github.com/opensource-health/harrier/internal/domain"
)

// Route applies the final decision table. A claim is approved iff it
// validated cleanly and no anomaly check triggered; everything else
// goes to audit. No other inputs are considered.
func Route(claims []domain.Claim) []domain.Claim {
	out := make([]domain.Claim, len(claims))
	copy(out, claims)

	for i := range out {
		c := &out[i]
		if c.ValidationStatus == domain.ValidationValid && c.AnomalyScore == 0 {
			c.FinalRouting = domain.RoutingApproved
		} else {
			c.FinalRouting = domain.RoutingAudit
		}
	}

	return out
}
