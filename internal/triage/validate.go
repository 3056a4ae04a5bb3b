package triage

import (
	"fmt"

	"github.com/opensource-health/harrier/internal/domain"
)

// Validate assigns exactly one validation status per claim. Claims
// the intake marked incomplete short-circuit to
// invalid_missing_fields; the rest run code and eligibility checks
// in fixed precedence, stopping at the first failure. Invalidity is
// a normal outcome recorded on the claim, never an error.
func Validate(claims []domain.Claim, ref domain.ReferenceData) []domain.Claim {
	out := make([]domain.Claim, len(claims))
	for i, c := range claims {
		out[i] = validateOne(c, ref)
	}
	return out
}

func validateOne(c domain.Claim, ref domain.ReferenceData) domain.Claim {
	if c.IntakeStatus == domain.IntakeMissingFields {
		c.ValidationStatus = domain.ValidationMissingFields
		c.ValidationReason = c.IntakeReason
		return c
	}

	if !ref.IsValidProcedureCode(c.ProcedureCode) {
		c.ValidationStatus = domain.ValidationInvalidProcedure
		c.ValidationReason = fmt.Sprintf("procedure code %q is not a recognized CPT code", c.ProcedureCode)
		return c
	}

	if !ref.IsValidDiagnosisCode(c.DiagnosisCode) {
		c.ValidationStatus = domain.ValidationInvalidDiagnosis
		c.ValidationReason = fmt.Sprintf("diagnosis code %q is not a recognized ICD code", c.DiagnosisCode)
		return c
	}

	if elig := ref.MemberEligibility(c.MemberID); !elig.Eligible {
		c.ValidationStatus = domain.ValidationIneligibleMember
		reason := elig.Reason
		if reason == "" {
			reason = "member is not eligible"
		}
		c.ValidationReason = reason
		return c
	}

	c.ValidationStatus = domain.ValidationValid
	return c
}
