// Package reference provides the read-only lookup tables the triage
// pipeline consults: valid procedure and diagnosis codes, member
// eligibility, and average procedure costs.
package reference

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/opensource-health/harrier/internal/domain"
)

// Static is an in-memory ReferenceData provider. Tables are loaded
// once at construction and never mutated, so lookups are pure and
// never suspend the pipeline on I/O. Absent entries are normal
// negative results.
type Static struct {
	procedureCodes map[string]struct{}
	diagnosisCodes map[string]struct{}
	members        map[string]domain.Eligibility
	averageCosts   map[string]float64
}

var _ domain.ReferenceData = (*Static)(nil)

// tables is the on-disk JSON shape for a reference file.
type tables struct {
	ProcedureCodes []string                      `json:"procedureCodes"`
	DiagnosisCodes []string                      `json:"diagnosisCodes"`
	Members        map[string]domain.Eligibility `json:"members"`
	AverageCosts   map[string]float64            `json:"averageCosts"`
}

// NewStatic builds a provider from configuration. A configured file
// overrides inline tables; fully empty configuration falls back to
// the built-in mock set.
func NewStatic(cfg domain.ReferenceConfig) (*Static, error) {
	t := tables{
		ProcedureCodes: cfg.ProcedureCodes,
		DiagnosisCodes: cfg.DiagnosisCodes,
		Members:        cfg.Members,
		AverageCosts:   cfg.AverageCosts,
	}

	if cfg.File != "" {
		data, err := os.ReadFile(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("failed to read reference file: %w", err)
		}
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("failed to parse reference file %s: %w", cfg.File, err)
		}
	}

	if len(t.ProcedureCodes) == 0 && len(t.DiagnosisCodes) == 0 && len(t.Members) == 0 && len(t.AverageCosts) == 0 {
		t = mockTables()
	}

	s := &Static{
		procedureCodes: make(map[string]struct{}, len(t.ProcedureCodes)),
		diagnosisCodes: make(map[string]struct{}, len(t.DiagnosisCodes)),
		members:        make(map[string]domain.Eligibility, len(t.Members)),
		averageCosts:   make(map[string]float64, len(t.AverageCosts)),
	}
	for _, code := range t.ProcedureCodes {
		s.procedureCodes[code] = struct{}{}
	}
	for _, code := range t.DiagnosisCodes {
		s.diagnosisCodes[code] = struct{}{}
	}
	for id, e := range t.Members {
		s.members[id] = e
	}
	for code, cost := range t.AverageCosts {
		s.averageCosts[code] = cost
	}
	return s, nil
}

// mockTables is the development data set.
func mockTables() tables {
	return tables{
		ProcedureCodes: []string{"99285", "99213", "81002"},
		DiagnosisCodes: []string{"M54.5", "J06.9", "I10"},
		Members: map[string]domain.Eligibility{
			"MBR001": {Eligible: true},
			"MBR002": {Eligible: true},
			"MBR003": {Eligible: false, Reason: "Inactive policy"},
		},
		AverageCosts: map[string]float64{
			"99285": 500,
			"99213": 100,
			"81002": 50,
		},
	}
}

// IsValidProcedureCode reports whether the CPT code is known.
func (s *Static) IsValidProcedureCode(code string) bool {
	_, ok := s.procedureCodes[code]
	return ok
}

// IsValidDiagnosisCode reports whether the ICD code is known.
func (s *Static) IsValidDiagnosisCode(code string) bool {
	_, ok := s.diagnosisCodes[code]
	return ok
}

// MemberEligibility returns the member's eligibility record.
func (s *Static) MemberEligibility(memberID string) domain.Eligibility {
	if e, ok := s.members[memberID]; ok {
		return e
	}
	return domain.Eligibility{Eligible: false, Reason: "member not found"}
}

// AverageCost returns the baseline cost for a procedure, or 0 when
// no baseline is available.
func (s *Static) AverageCost(procedureCode string) float64 {
	return s.averageCosts[procedureCode]
}
