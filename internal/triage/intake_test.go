package triage

import (
	"errors"
	"testing"

	"github.com/opensource-health/harrier/internal/domain"
)

func TestParseBatch(t *testing.T) {
	records, err := ParseBatch([]byte(`[{"claim_id": "CLM001"}]`))
	if err != nil {
		t.Fatalf("ParseBatch failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record, got %d", len(records))
	}
}

func TestParseBatchMalformed(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"object not array", `{"claim_id": "CLM001"}`},
		{"truncated", `[{"claim_id":`},
		{"scalar elements", `[1, 2, 3]`},
		{"not json", `hello`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseBatch([]byte(tc.payload))
			if !errors.Is(err, domain.ErrMalformedBatch) {
				t.Errorf("expected ErrMalformedBatch, got %v", err)
			}
		})
	}
}

func TestParseBatchEmpty(t *testing.T) {
	records, err := ParseBatch([]byte(`[]`))
	if err != nil {
		t.Fatalf("empty array is a valid batch: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected 0 records, got %d", len(records))
	}
}

func TestIntakeComplete(t *testing.T) {
	claims := Intake([]domain.RawClaim{
		rawClaim("CLM001", "MBR001", "PRV001", "99285", "M54.5", 1200, "2025-07-15", "outpatient"),
	})

	c := claims[0]
	if c.IntakeStatus != domain.IntakeParsed {
		t.Errorf("expected parsed, got %s", c.IntakeStatus)
	}
	if c.Category != domain.CategoryOutpatient {
		t.Errorf("expected outpatient, got %s", c.Category)
	}
	if c.Cost != 1200 {
		t.Errorf("expected cost 1200, got %d", c.Cost)
	}
}

func TestIntakeMissingFields(t *testing.T) {
	rec := rawClaim("CLM001", "MBR001", "PRV001", "99285", "M54.5", 1200, "2025-07-15", "outpatient")
	delete(rec, "procedure_code")
	delete(rec, "cost")

	claims := Intake([]domain.RawClaim{rec})
	c := claims[0]

	if c.IntakeStatus != domain.IntakeMissingFields {
		t.Errorf("expected needs_review_missing_fields, got %s", c.IntakeStatus)
	}
	// Missing fields are reported sorted
	if c.IntakeReason != "missing fields: cost, procedure_code" {
		t.Errorf("unexpected reason: %q", c.IntakeReason)
	}
	if c.Category != domain.CategoryOther {
		t.Errorf("incomplete claims get category other, got %s", c.Category)
	}
}

func TestIntakeBlankFieldIsMissing(t *testing.T) {
	rec := rawClaim("CLM001", "MBR001", "PRV001", "99285", "M54.5", 1200, "2025-07-15", "outpatient")
	rec["member_id"] = "   "

	c := Intake([]domain.RawClaim{rec})[0]
	if c.IntakeStatus != domain.IntakeMissingFields {
		t.Errorf("whitespace-only field must count as missing, got %s", c.IntakeStatus)
	}
}

func TestIntakeCostForms(t *testing.T) {
	cases := []struct {
		name    string
		cost    any
		missing bool
		want    int64
	}{
		{"integer", float64(400), false, 400},
		{"numeric string", "400", false, 400},
		{"zero", float64(0), false, 0},
		{"negative", float64(-5), true, 0},
		{"fractional", 99.5, true, 0},
		{"non-numeric string", "lots", true, 0},
		{"null", nil, true, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := rawClaim("CLM001", "MBR001", "PRV001", "99285", "M54.5", 0, "2025-07-15", "outpatient")
			rec["cost"] = tc.cost

			c := Intake([]domain.RawClaim{rec})[0]
			gotMissing := c.IntakeStatus == domain.IntakeMissingFields
			if gotMissing != tc.missing {
				t.Errorf("missing = %v, want %v", gotMissing, tc.missing)
			}
			if !tc.missing && c.Cost != tc.want {
				t.Errorf("cost = %d, want %d", c.Cost, tc.want)
			}
		})
	}
}

func TestIntakeCategories(t *testing.T) {
	cases := []struct {
		claimType string
		want      string
	}{
		{"outpatient", domain.CategoryOutpatient},
		{"Inpatient", domain.CategoryInpatient},
		{"PHARMACY", domain.CategoryPharmacy},
		{"dental", domain.CategoryOther},
	}

	for _, tc := range cases {
		c := Intake([]domain.RawClaim{
			rawClaim("CLM001", "MBR001", "PRV001", "99285", "M54.5", 100, "2025-07-15", tc.claimType),
		})[0]
		if c.Category != tc.want {
			t.Errorf("claim_type %q: expected category %s, got %s", tc.claimType, tc.want, c.Category)
		}
	}
}

func TestIntakePreservesOrder(t *testing.T) {
	claims := Intake([]domain.RawClaim{
		rawClaim("CLM002", "MBR001", "PRV001", "99285", "M54.5", 100, "2025-07-15", "outpatient"),
		rawClaim("CLM001", "MBR001", "PRV001", "99285", "M54.5", 100, "2025-07-15", "outpatient"),
	})

	if claims[0].ClaimID != "CLM002" || claims[1].ClaimID != "CLM001" {
		t.Errorf("intake must preserve submission order, got %s then %s", claims[0].ClaimID, claims[1].ClaimID)
	}
}
