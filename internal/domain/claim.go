package domain

import (
	"errors"
)

// RawClaim is one claim record as decoded from the batch payload,
// before intake has typed and checked it.
type RawClaim map[string]any

// ErrMalformedBatch indicates the top-level batch payload is not a
// sequence of claim-shaped records. It aborts the run before any
// claim is processed.
var ErrMalformedBatch = errors.New("malformed batch: expected an array of claim objects")

// RequiredClaimFields lists the eight fields every claim record must carry.
var RequiredClaimFields = []string{
	"claim_id",
	"member_id",
	"provider_id",
	"procedure_code",
	"diagnosis_code",
	"cost",
	"date_of_service",
	"claim_type",
}

// Claim is one insurance claim record flowing through the triage
// pipeline. Stages return enriched copies; a Claim value is never
// mutated after a stage hands it off.
type Claim struct {
	// Submitted fields
	ClaimID       string `json:"claim_id"`
	MemberID      string `json:"member_id"`
	ProviderID    string `json:"provider_id"`
	ProcedureCode string `json:"procedure_code"`
	DiagnosisCode string `json:"diagnosis_code"`
	Cost          int64  `json:"cost"`
	DateOfService string `json:"date_of_service"` // YYYY-MM-DD
	ClaimType     string `json:"claim_type"`

	// Assigned by intake
	Category     string `json:"category"`
	IntakeStatus string `json:"intake_status"`
	IntakeReason string `json:"intake_reason,omitempty"`

	// Assigned by the validator
	ValidationStatus string `json:"validation_status,omitempty"`
	ValidationReason string `json:"validation_reason,omitempty"`

	// Assigned by the anomaly detector
	AnomalyScore     int      `json:"anomaly_score"`
	AnomalyReasons   []string `json:"anomaly_reasons,omitempty"`
	AnomalyFragments []string `json:"-"`

	// Assigned by the explanation builder
	AnomalyExplanation string `json:"anomaly_explanation,omitempty"`

	// Assigned by the router
	FinalRouting string `json:"final_routing,omitempty"`
}

// Claim categories assigned at intake.
const (
	CategoryOutpatient = "outpatient"
	CategoryInpatient  = "inpatient"
	CategoryPharmacy   = "pharmacy"
	CategoryOther      = "other"
)

// Intake statuses.
const (
	IntakeParsed        = "parsed"
	IntakeMissingFields = "needs_review_missing_fields"
)

// Validation statuses. Exactly one is assigned per claim; checks run
// in fixed precedence and the first failure wins.
const (
	ValidationValid            = "valid"
	ValidationInvalidProcedure = "invalid_procedure_code"
	ValidationInvalidDiagnosis = "invalid_diagnosis_code"
	ValidationIneligibleMember = "ineligible_member"
	ValidationMissingFields    = "invalid_missing_fields"
)

// Anomaly tags.
const (
	TagHighCost              = "high_cost"
	TagDuplicate             = "duplicate"
	TagHighFrequencyProvider = "high_frequency_provider"
)

// Final routing destinations.
const (
	RoutingApproved = "approved"
	RoutingAudit    = "audit"
)

// Flagged reports whether any anomaly check triggered on the claim.
func (c *Claim) Flagged() bool {
	return c.AnomalyScore > 0
}

// HasTag reports whether the claim carries the given anomaly tag.
func (c *Claim) HasTag(tag string) bool {
	for _, t := range c.AnomalyReasons {
		if t == tag {
			return true
		}
	}
	return false
}

// BatchResult is the outcome of one pipeline run: the full ordered
// batch with all derived fields, plus the audit report built from it.
type BatchResult struct {
	BatchID   string       `json:"batchId"`
	TenantID  string       `json:"tenantId"`
	Claims    []Claim      `json:"claims"`
	Report    *AuditReport `json:"report"`
	Rendered  string       `json:"renderedReport"`
	Approved  int          `json:"approved"`
	Audited   int          `json:"audited"`
	ElapsedMs int64        `json:"elapsedMs"`
}
