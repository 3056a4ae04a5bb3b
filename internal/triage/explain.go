package triage

import (
	"context"
	"log/slog"
	"strings"

	"github.com/opensource-health/harrier/internal/domain"
)

// NoAnomalyExplanation is recorded on claims no check flagged.
const NoAnomalyExplanation = "N/A"

// BuildExplanations renders one justification per claim from the
// tags and fragments the detector captured; it never re-derives
// detail from the claim itself. When a collaborator is configured it
// is asked first, on a per-claim basis; any failure substitutes the
// deterministic template without failing the batch.
func BuildExplanations(ctx context.Context, claims []domain.Claim, explainer domain.Explainer) []domain.Claim {
	out := make([]domain.Claim, len(claims))
	copy(out, claims)

	for i := range out {
		c := &out[i]
		if !c.Flagged() {
			c.AnomalyExplanation = NoAnomalyExplanation
			continue
		}

		if explainer != nil {
			text, err := explainer.Summarize(ctx, *c, c.AnomalyReasons, c.AnomalyFragments)
			if err == nil && strings.TrimSpace(text) != "" {
				c.AnomalyExplanation = strings.TrimSpace(text)
				continue
			}
			if err != nil {
				slog.Warn("explanation collaborator failed, using template",
					"claim_id", c.ClaimID,
					"error", err,
				)
			}
		}

		c.AnomalyExplanation = TemplateExplanation(c.AnomalyFragments)
	}

	return out
}

// TemplateExplanation is the deterministic fallback rendering.
func TemplateExplanation(fragments []string) string {
	return "Claim flagged: " + strings.Join(fragments, "; ")
}
