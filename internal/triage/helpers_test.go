package triage

import (
	"github.com/opensource-health/harrier/internal/domain"
)

// testRef mirrors the built-in mock reference tables: procedures
// 99285 ($500 avg), 99213 ($100), 81002 ($50 avg, but see
// noBaselineRef); members MBR001/MBR002 eligible, MBR003 inactive.
type testRef struct{}

func (testRef) IsValidProcedureCode(code string) bool {
	switch code {
	case "99285", "99213", "81002":
		return true
	}
	return false
}

func (testRef) IsValidDiagnosisCode(code string) bool {
	switch code {
	case "M54.5", "J06.9", "I10":
		return true
	}
	return false
}

func (testRef) MemberEligibility(memberID string) domain.Eligibility {
	switch memberID {
	case "MBR001", "MBR002":
		return domain.Eligibility{Eligible: true}
	case "MBR003":
		return domain.Eligibility{Eligible: false, Reason: "Inactive policy"}
	}
	return domain.Eligibility{Eligible: false, Reason: "member not found"}
}

func (testRef) AverageCost(procedureCode string) float64 {
	switch procedureCode {
	case "99285":
		return 500
	case "99213":
		return 100
	}
	return 0
}

// rawClaim builds a complete raw record; tests mutate or delete
// fields to stage failures.
func rawClaim(id, member, provider, procedure, diagnosis string, cost float64, date, claimType string) domain.RawClaim {
	return domain.RawClaim{
		"claim_id":        id,
		"member_id":       member,
		"provider_id":     provider,
		"procedure_code":  procedure,
		"diagnosis_code":  diagnosis,
		"cost":            cost,
		"date_of_service": date,
		"claim_type":      claimType,
	}
}

// validClaim builds a claim as it leaves a clean validation pass.
func validClaim(id, member, provider, procedure string, cost int64, date string) domain.Claim {
	return domain.Claim{
		ClaimID:          id,
		MemberID:         member,
		ProviderID:       provider,
		ProcedureCode:    procedure,
		DiagnosisCode:    "M54.5",
		Cost:             cost,
		DateOfService:    date,
		ClaimType:        "outpatient",
		Category:         domain.CategoryOutpatient,
		IntakeStatus:     domain.IntakeParsed,
		ValidationStatus: domain.ValidationValid,
	}
}
