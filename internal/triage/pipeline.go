package triage

import (
	"context"
	"time"

	"github.com/opensource-health/harrier/internal/domain"
)

// Pipeline runs the six triage stages over one batch. Stages are
// strictly sequential: each consumes the full output of the one
// before it. A Pipeline is safe for concurrent batches because all
// per-run state lives in the BatchState each Run constructs.
type Pipeline struct {
	cfg       domain.TriageConfig
	ref       domain.ReferenceData
	explainer domain.Explainer
	rules     FlagEvaluator
}

// NewPipeline builds a pipeline. explainer and rules may be nil; the
// deterministic explanation template and the built-in checks alone
// are then used.
func NewPipeline(cfg domain.TriageConfig, ref domain.ReferenceData, explainer domain.Explainer, rules FlagEvaluator) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		ref:       ref,
		explainer: explainer,
		rules:     rules,
	}
}

// Run triages one batch and returns the enriched claims, the audit
// report and its rendering. The context bounds only the optional
// explanation collaborator calls; the rule stages never block on I/O.
func (p *Pipeline) Run(ctx context.Context, records []domain.RawClaim) *domain.BatchResult {
	start := time.Now()

	claims := Intake(records)
	claims = Validate(claims, p.ref)
	claims = NewDetector(p.cfg, p.ref, p.rules).Detect(claims)
	claims = BuildExplanations(ctx, claims, p.explainer)
	claims = Route(claims)
	report := BuildReport(claims)

	result := &domain.BatchResult{
		Claims:    claims,
		Report:    report,
		Rendered:  RenderMarkdown(report),
		ElapsedMs: time.Since(start).Milliseconds(),
	}
	for _, c := range claims {
		if c.FinalRouting == domain.RoutingApproved {
			result.Approved++
		} else {
			result.Audited++
		}
	}
	return result
}

// RunRaw parses a JSON batch payload and triages it. A malformed
// payload aborts the run with domain.ErrMalformedBatch.
func (p *Pipeline) RunRaw(ctx context.Context, data []byte) (*domain.BatchResult, error) {
	records, err := ParseBatch(data)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, records), nil
}
