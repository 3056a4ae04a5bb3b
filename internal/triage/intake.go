// Package triage implements the claims triage pipeline: intake,
// validation, anomaly detection, explanation, routing and audit
// aggregation, run strictly in that order over one batch.
package triage

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/opensource-health/harrier/internal/domain"
)

// ParseBatch decodes a raw batch payload into claim records. A
// payload that is not an array of objects fails the whole run with
// domain.ErrMalformedBatch before any claim is processed.
func ParseBatch(data []byte) ([]domain.RawClaim, error) {
	var records []domain.RawClaim
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedBatch, err)
	}
	return records, nil
}

// Intake types each raw record into a Claim, verifies the eight
// mandatory fields, and assigns the category. Output length and
// order match the input; submission order is the tie-break for all
// downstream order-sensitive checks.
func Intake(records []domain.RawClaim) []domain.Claim {
	claims := make([]domain.Claim, 0, len(records))
	for _, rec := range records {
		claims = append(claims, intakeOne(rec))
	}
	return claims
}

func intakeOne(rec domain.RawClaim) domain.Claim {
	var missing []string
	for _, field := range domain.RequiredClaimFields {
		if !fieldPresent(rec, field) {
			missing = append(missing, field)
		}
	}

	c := domain.Claim{
		ClaimID:       stringField(rec, "claim_id"),
		MemberID:      stringField(rec, "member_id"),
		ProviderID:    stringField(rec, "provider_id"),
		ProcedureCode: stringField(rec, "procedure_code"),
		DiagnosisCode: stringField(rec, "diagnosis_code"),
		Cost:          costField(rec),
		DateOfService: stringField(rec, "date_of_service"),
		ClaimType:     stringField(rec, "claim_type"),
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		c.IntakeStatus = domain.IntakeMissingFields
		c.IntakeReason = "missing fields: " + strings.Join(missing, ", ")
		c.Category = domain.CategoryOther
		return c
	}

	c.IntakeStatus = domain.IntakeParsed
	c.Category = categorize(c.ClaimType)
	return c
}

// categorize maps a claim type onto its category. Unknown types
// land in "other".
func categorize(claimType string) string {
	switch strings.ToLower(claimType) {
	case domain.CategoryOutpatient:
		return domain.CategoryOutpatient
	case domain.CategoryInpatient:
		return domain.CategoryInpatient
	case domain.CategoryPharmacy:
		return domain.CategoryPharmacy
	default:
		return domain.CategoryOther
	}
}

func fieldPresent(rec domain.RawClaim, field string) bool {
	v, ok := rec[field]
	if !ok || v == nil {
		return false
	}
	if field == "cost" {
		_, ok := numericValue(v)
		return ok
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

func stringField(rec domain.RawClaim, field string) string {
	switch v := rec[field].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func costField(rec domain.RawClaim) int64 {
	if n, ok := numericValue(rec["cost"]); ok {
		return n
	}
	return 0
}

// numericValue accepts the JSON encodings a cost arrives in. A
// negative or fractional cost is not a well-formed amount.
func numericValue(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if n < 0 || n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil || parsed < 0 {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
