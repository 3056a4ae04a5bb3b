package domain

// Eligibility is the result of a member eligibility lookup. An
// unknown member is a normal negative result, not an error.
type Eligibility struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

// ReferenceData supplies the read-only lookup tables the validator
// and anomaly detector consult. Every query is total over its input
// domain: unknown inputs yield negative results, never errors, and
// implementations must not block the inner pipeline loop on I/O.
type ReferenceData interface {
	// IsValidProcedureCode reports whether the CPT code is known.
	IsValidProcedureCode(code string) bool

	// IsValidDiagnosisCode reports whether the ICD code is known.
	IsValidDiagnosisCode(code string) bool

	// MemberEligibility returns the member's eligibility. An absent
	// member yields Eligible=false with reason "member not found".
	MemberEligibility(memberID string) Eligibility

	// AverageCost returns the baseline cost for a procedure, or 0
	// when no baseline is available.
	AverageCost(procedureCode string) float64
}

// ReferenceConfig holds the reference-data tables. Empty tables fall
// back to the built-in mock set.
type ReferenceConfig struct {
	// Path of a JSON file holding a referenceTables document.
	// Overrides the inline tables when set.
	File string `yaml:"file"`

	ProcedureCodes []string               `yaml:"procedureCodes"`
	DiagnosisCodes []string               `yaml:"diagnosisCodes"`
	Members        map[string]Eligibility `yaml:"members"`
	AverageCosts   map[string]float64     `yaml:"averageCosts"`
}
