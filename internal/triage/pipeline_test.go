package triage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/opensource-health/harrier/internal/domain"
)

func TestPipelineReferenceBatch(t *testing.T) {
	// The six-claim reference batch: one of everything.
	batch := []domain.RawClaim{
		rawClaim("CLM001", "MBR001", "PRV001", "99285", "M54.5", 1200, "2025-07-15", "outpatient"),
		rawClaim("CLM002", "MBR002", "PRV001", "99285", "M54.5", 400, "2025-07-16", "outpatient"),
		rawClaim("CLM003", "MBR001", "PRV002", "INVALID_CPT", "M54.5", 300, "2025-07-17", "inpatient"),
		rawClaim("CLM004", "MBR003", "PRV003", "99213", "J06.9", 100, "2025-07-18", "pharmacy"),
		rawClaim("CLM005", "MBR002", "PRV001", "99285", "M54.5", 400, "2025-07-17", "outpatient"),
		rawClaim("CLM006", "MBR001", "PRV001", "99213", "I10", 120, "2025-07-19", "outpatient"),
	}

	p := NewPipeline(domain.DefaultTriageConfig(), testRef{}, nil, nil)
	result := p.Run(context.Background(), batch)

	if len(result.Claims) != 6 {
		t.Fatalf("expected 6 claims out, got %d", len(result.Claims))
	}

	byID := make(map[string]domain.Claim, 6)
	for _, c := range result.Claims {
		byID[c.ClaimID] = c
	}

	// CLM003: unknown procedure, no anomaly run
	c3 := byID["CLM003"]
	if c3.ValidationStatus != domain.ValidationInvalidProcedure {
		t.Errorf("CLM003: expected invalid_procedure_code, got %s", c3.ValidationStatus)
	}
	if c3.AnomalyScore != 0 || c3.FinalRouting != domain.RoutingAudit {
		t.Errorf("CLM003: score %d routing %s", c3.AnomalyScore, c3.FinalRouting)
	}
	if c3.AnomalyExplanation != NoAnomalyExplanation {
		t.Errorf("CLM003: unflagged claims read N/A, got %q", c3.AnomalyExplanation)
	}

	// CLM004: inactive policy
	c4 := byID["CLM004"]
	if c4.ValidationStatus != domain.ValidationIneligibleMember {
		t.Errorf("CLM004: expected ineligible_member, got %s", c4.ValidationStatus)
	}
	if c4.ValidationReason != "Inactive policy" {
		t.Errorf("CLM004: reason %q", c4.ValidationReason)
	}

	// CLM005: duplicate of CLM002, severity 90 dominates
	c5 := byID["CLM005"]
	if !c5.HasTag(domain.TagDuplicate) {
		t.Errorf("CLM005: expected duplicate tag, got %v", c5.AnomalyReasons)
	}
	if c5.AnomalyScore != SeverityDuplicate {
		t.Errorf("CLM005: expected score 90, got %d", c5.AnomalyScore)
	}
	if !strings.Contains(c5.AnomalyExplanation, "CLM002") {
		t.Errorf("CLM005: explanation should name the matched claim, got %q", c5.AnomalyExplanation)
	}

	// PRV001 submitted 4 valid claims; all carry the frequency flag,
	// including CLM001 and CLM002 retroactively.
	for _, id := range []string{"CLM001", "CLM002", "CLM005", "CLM006"} {
		c := byID[id]
		if !c.HasTag(domain.TagHighFrequencyProvider) {
			t.Errorf("%s: expected high_frequency_provider, got %v", id, c.AnomalyReasons)
		}
	}

	// CLM001 at $1200 sits under the 2.5x line ($1250): not a cost outlier
	c1 := byID["CLM001"]
	if c1.HasTag(domain.TagHighCost) {
		t.Error("CLM001: $1200 is below 2.5x the $500 average")
	}

	// Nothing approves
	if result.Approved != 0 || result.Audited != 6 {
		t.Errorf("expected 0 approved / 6 audited, got %d / %d", result.Approved, result.Audited)
	}

	// Report covers every provider with audited claims
	for _, provider := range []string{"PRV001", "PRV002", "PRV003"} {
		if !strings.Contains(result.Rendered, "### Provider ID: "+provider) {
			t.Errorf("rendered report missing provider %s", provider)
		}
	}
}

func TestPipelineAllClean(t *testing.T) {
	p := NewPipeline(domain.DefaultTriageConfig(), testRef{}, nil, nil)
	result := p.Run(context.Background(), []domain.RawClaim{
		rawClaim("CLM001", "MBR001", "PRV001", "99213", "J06.9", 100, "2025-07-15", "outpatient"),
		rawClaim("CLM002", "MBR002", "PRV002", "99285", "M54.5", 450, "2025-07-16", "inpatient"),
	})

	if result.Approved != 2 || result.Audited != 0 {
		t.Errorf("expected 2 approved / 0 audited, got %d / %d", result.Approved, result.Audited)
	}
	if result.Rendered != EmptyReportText {
		t.Errorf("expected the empty report sentence, got %q", result.Rendered)
	}
}

func TestPipelineEmptyBatch(t *testing.T) {
	p := NewPipeline(domain.DefaultTriageConfig(), testRef{}, nil, nil)
	result := p.Run(context.Background(), nil)

	if len(result.Claims) != 0 {
		t.Errorf("expected no claims, got %d", len(result.Claims))
	}
	if result.Rendered != EmptyReportText {
		t.Errorf("expected the empty report sentence, got %q", result.Rendered)
	}
}

func TestPipelineDeterministic(t *testing.T) {
	batch := []domain.RawClaim{
		rawClaim("CLM001", "MBR002", "PRV001", "99285", "M54.5", 400, "2025-07-16", "outpatient"),
		rawClaim("CLM002", "MBR002", "PRV001", "99285", "M54.5", 400, "2025-07-17", "outpatient"),
	}

	p := NewPipeline(domain.DefaultTriageConfig(), testRef{}, nil, nil)
	first := p.Run(context.Background(), batch)
	second := p.Run(context.Background(), batch)

	if first.Rendered != second.Rendered {
		t.Error("same batch must yield the same report")
	}
	for i := range first.Claims {
		if first.Claims[i].FinalRouting != second.Claims[i].FinalRouting ||
			first.Claims[i].AnomalyScore != second.Claims[i].AnomalyScore {
			t.Errorf("claim %s differs between runs", first.Claims[i].ClaimID)
		}
	}
}

func TestPipelineRunRaw(t *testing.T) {
	p := NewPipeline(domain.DefaultTriageConfig(), testRef{}, nil, nil)

	result, err := p.RunRaw(context.Background(), []byte(`[
		{"claim_id": "CLM001", "member_id": "MBR001", "provider_id": "PRV001",
		 "procedure_code": "99213", "diagnosis_code": "J06.9", "cost": 100,
		 "date_of_service": "2025-07-15", "claim_type": "outpatient"}
	]`))
	if err != nil {
		t.Fatalf("RunRaw failed: %v", err)
	}
	if result.Approved != 1 {
		t.Errorf("expected 1 approved, got %d", result.Approved)
	}
}

func TestPipelineRunRawMalformed(t *testing.T) {
	p := NewPipeline(domain.DefaultTriageConfig(), testRef{}, nil, nil)

	_, err := p.RunRaw(context.Background(), []byte(`{"not": "an array"}`))
	if !errors.Is(err, domain.ErrMalformedBatch) {
		t.Errorf("expected ErrMalformedBatch, got %v", err)
	}
}

func TestPipelineDecisionTable(t *testing.T) {
	// approved iff valid && score == 0, on every combination.
	p := NewPipeline(domain.DefaultTriageConfig(), testRef{}, nil, nil)
	result := p.Run(context.Background(), []domain.RawClaim{
		// valid, no flags -> approved
		rawClaim("CLM001", "MBR001", "PRV001", "99213", "J06.9", 100, "2025-07-15", "outpatient"),
		// valid, flagged (cost outlier) -> audit
		rawClaim("CLM002", "MBR001", "PRV002", "99285", "M54.5", 5000, "2025-07-16", "outpatient"),
		// invalid, no flags -> audit
		rawClaim("CLM003", "MBR003", "PRV003", "99213", "J06.9", 100, "2025-07-17", "outpatient"),
	})

	want := map[string]string{
		"CLM001": domain.RoutingApproved,
		"CLM002": domain.RoutingAudit,
		"CLM003": domain.RoutingAudit,
	}
	for _, c := range result.Claims {
		if c.FinalRouting != want[c.ClaimID] {
			t.Errorf("%s: expected %s, got %s", c.ClaimID, want[c.ClaimID], c.FinalRouting)
		}
	}
}
