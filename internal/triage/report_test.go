package triage

import (
	"strings"
	"testing"

	"github.com/opensource-health/harrier/internal/domain"
)

func auditedClaim(id, provider string, tags ...string) domain.Claim {
	c := validClaim(id, "MBR001", provider, "99285", 400, "2025-07-15")
	c.FinalRouting = domain.RoutingAudit
	c.AnomalyReasons = tags
	if len(tags) > 0 {
		c.AnomalyScore = SeverityHighFrequency
	}
	c.AnomalyExplanation = "Claim flagged: test"
	return c
}

func TestBuildReportGroupsByFirstAppearance(t *testing.T) {
	approved := validClaim("CLM000", "MBR001", "PRV999", "99285", 400, "2025-07-15")
	approved.FinalRouting = domain.RoutingApproved

	report := BuildReport([]domain.Claim{
		approved,
		auditedClaim("CLM001", "PRV002", domain.TagHighCost),
		auditedClaim("CLM002", "PRV001", domain.TagDuplicate),
		auditedClaim("CLM003", "PRV002", domain.TagHighCost),
	})

	if report.Total != 3 {
		t.Errorf("expected 3 audited claims, got %d", report.Total)
	}
	if len(report.Providers) != 2 {
		t.Fatalf("expected 2 provider groups, got %d", len(report.Providers))
	}
	// PRV002 appeared first among audited claims
	if report.Providers[0].ProviderID != "PRV002" {
		t.Errorf("expected PRV002 first, got %s", report.Providers[0].ProviderID)
	}
	if len(report.Providers[0].Claims) != 2 {
		t.Errorf("expected 2 claims for PRV002, got %d", len(report.Providers[0].Claims))
	}
	// Claims within a group keep batch order
	if report.Providers[0].Claims[0].ClaimID != "CLM001" {
		t.Errorf("expected CLM001 first in group, got %s", report.Providers[0].Claims[0].ClaimID)
	}
}

func TestBuildReportTagTallies(t *testing.T) {
	report := BuildReport([]domain.Claim{
		auditedClaim("CLM001", "PRV001", domain.TagHighCost, domain.TagDuplicate),
		auditedClaim("CLM002", "PRV001", domain.TagHighCost),
		auditedClaim("CLM003", "PRV002", domain.TagHighFrequencyProvider),
	})

	if report.TagCounts.Counts[domain.TagHighCost] != 2 {
		t.Errorf("expected 2 high_cost, got %d", report.TagCounts.Counts[domain.TagHighCost])
	}
	if report.TagCounts.Counts[domain.TagDuplicate] != 1 {
		t.Errorf("expected 1 duplicate, got %d", report.TagCounts.Counts[domain.TagDuplicate])
	}
	if report.Providers[0].TagCounts.Counts[domain.TagHighCost] != 2 {
		t.Errorf("per-provider tally wrong: %v", report.Providers[0].TagCounts.Counts)
	}
}

func TestBuildReportValidationOnlyClaim(t *testing.T) {
	c := validClaim("CLM001", "MBR003", "PRV001", "99285", 400, "2025-07-15")
	c.ValidationStatus = domain.ValidationIneligibleMember
	c.ValidationReason = "Inactive policy"
	c.FinalRouting = domain.RoutingAudit
	c.AnomalyExplanation = NoAnomalyExplanation

	report := BuildReport([]domain.Claim{c})
	if report.Total != 1 {
		t.Fatalf("validation failures are audited too, got total %d", report.Total)
	}
	if len(report.TagCounts.Order) != 0 {
		t.Errorf("no anomaly tags expected, got %v", report.TagCounts.Order)
	}
}

func TestRenderMarkdownEmpty(t *testing.T) {
	report := BuildReport(nil)
	if got := RenderMarkdown(report); got != EmptyReportText {
		t.Errorf("expected exactly %q, got %q", EmptyReportText, got)
	}

	approved := validClaim("CLM001", "MBR001", "PRV001", "99285", 400, "2025-07-15")
	approved.FinalRouting = domain.RoutingApproved
	report = BuildReport([]domain.Claim{approved})
	if got := RenderMarkdown(report); got != EmptyReportText {
		t.Errorf("all-approved batch renders the empty sentence, got %q", got)
	}
}

func TestRenderMarkdownStructure(t *testing.T) {
	c := auditedClaim("CLM001", "PRV001", domain.TagHighCost)
	c.AnomalyExplanation = "Claim flagged: cost is high"

	rendered := RenderMarkdown(BuildReport([]domain.Claim{c}))

	for _, want := range []string{
		"# Audit Summary Report",
		"## Grouped by Provider",
		"### Provider ID: PRV001",
		"- Claim ID: `CLM001`",
		"  - Explanation: Claim flagged: cost is high",
		"## Anomaly Type Summary",
		"- **High Cost**: 1 claims",
	} {
		if !strings.Contains(rendered, want) {
			t.Errorf("rendered report missing %q:\n%s", want, rendered)
		}
	}
}

func TestTagTitle(t *testing.T) {
	cases := map[string]string{
		"high_cost":               "High Cost",
		"duplicate":               "Duplicate",
		"high_frequency_provider": "High Frequency Provider",
	}
	for tag, want := range cases {
		if got := tagTitle(tag); got != want {
			t.Errorf("tagTitle(%q) = %q, want %q", tag, got, want)
		}
	}
}
