package domain

// AuditReport aggregates the claims routed to audit in one batch.
// Provider groups appear in first-appearance order within the
// filtered sequence; claims within a group keep original batch order.
type AuditReport struct {
	Providers []ProviderGroup `json:"providers"`
	TagCounts TagTally        `json:"tagCounts"`
	Total     int             `json:"total"`
}

// ProviderGroup holds one provider's audited claims and its per-tag tally.
type ProviderGroup struct {
	ProviderID string   `json:"providerId"`
	Claims     []Claim  `json:"claims"`
	TagCounts  TagTally `json:"tagCounts"`
}

// TagTally counts audited claims per anomaly tag, preserving the
// order in which tags were first seen so rendering is deterministic.
type TagTally struct {
	Order  []string       `json:"order"`
	Counts map[string]int `json:"counts"`
}

// NewTagTally returns an empty tally.
func NewTagTally() TagTally {
	return TagTally{Counts: make(map[string]int)}
}

// Add increments the count for a tag.
func (t *TagTally) Add(tag string) {
	if _, ok := t.Counts[tag]; !ok {
		t.Order = append(t.Order, tag)
	}
	t.Counts[tag]++
}

// Empty reports whether no claims were flagged for audit.
func (r *AuditReport) Empty() bool {
	return r == nil || r.Total == 0
}
