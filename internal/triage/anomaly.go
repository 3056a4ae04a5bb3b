package triage

import (
	"fmt"

	"github.com/opensource-health/harrier/internal/domain"
)

// Severity weights per anomaly tag. A claim's score is the maximum
// severity among its triggered checks, not a sum: one dominant
// reason drives the score while every tag is still reported.
const (
	SeverityDuplicate     = 90
	SeverityHighCost      = 80
	SeverityHighFrequency = 70
)

// FlagEvaluator evaluates operator-defined flag rules against one
// claim. The CEL engine in internal/rules implements it; a nil
// evaluator disables the feature.
type FlagEvaluator interface {
	Evaluate(c domain.Claim) []domain.RuleHit
}

// Detector runs the cost-outlier, duplicate and provider-frequency
// checks over one batch. It is the only stage with cross-claim
// memory, held in a BatchState constructed per run.
type Detector struct {
	cfg   domain.TriageConfig
	ref   domain.ReferenceData
	rules FlagEvaluator
}

// NewDetector builds a detector. rules may be nil.
func NewDetector(cfg domain.TriageConfig, ref domain.ReferenceData, rules FlagEvaluator) *Detector {
	if cfg.CostOutlierMultiplier <= 0 {
		cfg.CostOutlierMultiplier = domain.DefaultTriageConfig().CostOutlierMultiplier
	}
	if cfg.DuplicateWindowDays <= 0 {
		cfg.DuplicateWindowDays = domain.DefaultTriageConfig().DuplicateWindowDays
	}
	if cfg.HighFrequencyThreshold <= 0 {
		cfg.HighFrequencyThreshold = domain.DefaultTriageConfig().HighFrequencyThreshold
	}
	return &Detector{cfg: cfg, ref: ref, rules: rules}
}

// Detect processes the batch in submission order. Claims that failed
// validation pass through with a zero score. Iteration is inherently
// sequential: each claim's duplicate and frequency checks depend on
// state written by the claims before it.
func (d *Detector) Detect(claims []domain.Claim) []domain.Claim {
	state := NewBatchState()
	out := make([]domain.Claim, len(claims))
	copy(out, claims)

	// Indexes of valid claims per provider, for retroactive
	// high-frequency flagging.
	providerIdx := make(map[string][]int)

	for i := range out {
		c := &out[i]
		if c.ValidationStatus != domain.ValidationValid {
			c.AnomalyScore = 0
			c.AnomalyReasons = nil
			continue
		}

		d.checkCostOutlier(c)

		if matchID, ok := state.FindDuplicate(*c, d.cfg.DuplicateWindowDays); ok {
			d.flag(c, domain.TagDuplicate, SeverityDuplicate, fmt.Sprintf(
				"possible duplicate of claim %s (same member, provider and procedure within %d days)",
				matchID, d.cfg.DuplicateWindowDays))
		}

		// Record after the duplicate check so the first occurrence
		// is never flagged against itself.
		state.Record(*c)
		providerIdx[c.ProviderID] = append(providerIdx[c.ProviderID], i)

		if count := state.ProviderCount(c.ProviderID); count > d.cfg.HighFrequencyThreshold {
			frag := fmt.Sprintf("provider %s has submitted %d claims in this batch (threshold %d)",
				c.ProviderID, count, d.cfg.HighFrequencyThreshold)
			// Flag the triggering claim and backfill every earlier
			// valid claim from this provider in the batch.
			for _, j := range providerIdx[c.ProviderID] {
				d.flag(&out[j], domain.TagHighFrequencyProvider, SeverityHighFrequency, frag)
			}
		}

		if d.rules != nil {
			for _, hit := range d.rules.Evaluate(*c) {
				d.flag(c, hit.Tag, hit.Severity, hit.Fragment)
			}
		}
	}

	return out
}

func (d *Detector) checkCostOutlier(c *domain.Claim) {
	avg := d.ref.AverageCost(c.ProcedureCode)
	if avg == 0 {
		// No baseline, cannot evaluate.
		return
	}
	if float64(c.Cost) > d.cfg.CostOutlierMultiplier*avg {
		d.flag(c, domain.TagHighCost, SeverityHighCost, fmt.Sprintf(
			"cost $%d is %.1fx the average $%.2f for procedure %s",
			c.Cost, float64(c.Cost)/avg, avg, c.ProcedureCode))
	}
}

// flag appends a tag and its detail fragment, keeping the score at
// the maximum severity seen. Adding the same tag twice is a no-op.
func (d *Detector) flag(c *domain.Claim, tag string, severity int, fragment string) {
	if c.HasTag(tag) {
		return
	}
	c.AnomalyReasons = append(c.AnomalyReasons, tag)
	c.AnomalyFragments = append(c.AnomalyFragments, fragment)
	if severity > c.AnomalyScore {
		c.AnomalyScore = severity
	}
}
