package triage

import (
	"fmt"
	"strings"

	"github.com/opensource-health/harrier/internal/domain"
)

// EmptyReportText is the whole rendering of a batch with no audited claims.
const EmptyReportText = "No claims were flagged for audit."

// BuildReport aggregates the claims routed to audit. Providers are
// grouped in first-appearance order within the filtered sequence and
// keep their claims in original batch order; a claim counts once per
// tag it carries, per provider and globally.
func BuildReport(claims []domain.Claim) *domain.AuditReport {
	report := &domain.AuditReport{
		TagCounts: domain.NewTagTally(),
	}

	groupIdx := make(map[string]int)
	for _, c := range claims {
		if c.FinalRouting != domain.RoutingAudit {
			continue
		}
		report.Total++

		idx, ok := groupIdx[c.ProviderID]
		if !ok {
			idx = len(report.Providers)
			groupIdx[c.ProviderID] = idx
			report.Providers = append(report.Providers, domain.ProviderGroup{
				ProviderID: c.ProviderID,
				TagCounts:  domain.NewTagTally(),
			})
		}
		group := &report.Providers[idx]
		group.Claims = append(group.Claims, c)

		for _, tag := range c.AnomalyReasons {
			group.TagCounts.Add(tag)
			report.TagCounts.Add(tag)
		}
	}

	return report
}

// RenderMarkdown turns the aggregated report into the auditor-facing
// document. Aggregation and rendering stay separate so the grouping
// logic is testable without the format.
func RenderMarkdown(report *domain.AuditReport) string {
	if report.Empty() {
		return EmptyReportText
	}

	var b strings.Builder
	b.WriteString("# Audit Summary Report\n\n")
	b.WriteString("## Grouped by Provider\n")

	for _, group := range report.Providers {
		fmt.Fprintf(&b, "### Provider ID: %s\n", group.ProviderID)
		for _, c := range group.Claims {
			fmt.Fprintf(&b, "- Claim ID: `%s`\n", c.ClaimID)
			fmt.Fprintf(&b, "  - Cost: $%d\n", c.Cost)
			fmt.Fprintf(&b, "  - Status: %s\n", c.ValidationStatus)
			if len(c.AnomalyReasons) > 0 {
				fmt.Fprintf(&b, "  - Reasons: %s\n", tagList(c.AnomalyReasons))
			} else if c.ValidationReason != "" {
				fmt.Fprintf(&b, "  - Reasons: %s\n", c.ValidationReason)
			}
			fmt.Fprintf(&b, "  - Explanation: %s\n", c.AnomalyExplanation)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Anomaly Type Summary\n")
	for _, tag := range report.TagCounts.Order {
		fmt.Fprintf(&b, "- **%s**: %d claims\n", tagTitle(tag), report.TagCounts.Counts[tag])
	}

	return b.String()
}

func tagList(tags []string) string {
	titles := make([]string, len(tags))
	for i, tag := range tags {
		titles[i] = tagTitle(tag)
	}
	return strings.Join(titles, ", ")
}

// tagTitle renders an anomaly tag for display, e.g.
// "high_frequency_provider" becomes "High Frequency Provider".
func tagTitle(tag string) string {
	words := strings.Split(tag, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
