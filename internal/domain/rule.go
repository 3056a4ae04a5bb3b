package domain

// FlagRule is an operator-defined anomaly rule evaluated after the
// built-in checks. Its CEL expression sees the claim's submitted
// fields; when it evaluates true the configured tag, severity and
// detail fragment are appended to the claim.
type FlagRule struct {
	ID          string `json:"id" yaml:"id"`
	TenantID    string `json:"tenantId" yaml:"tenantId"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`

	// Expression is a CEL boolean expression over claim fields,
	// e.g. `cost > 5000 && category == "pharmacy"`.
	Expression string `json:"expression" yaml:"expression"`

	// Tag appended to the claim's anomaly reasons when triggered.
	Tag string `json:"tag" yaml:"tag"`

	// Severity contributes to the claim's anomaly score (0-100);
	// the score stays the maximum across all triggered checks.
	Severity int `json:"severity" yaml:"severity"`

	// Fragment is the detail text recorded for the explanation
	// builder. Empty falls back to the rule name.
	Fragment string `json:"fragment,omitempty" yaml:"fragment"`

	Enabled bool `json:"enabled" yaml:"enabled"`
}

// RuleHit is one triggered flag rule for a claim.
type RuleHit struct {
	RuleID   string `json:"ruleId"`
	Tag      string `json:"tag"`
	Severity int    `json:"severity"`
	Fragment string `json:"fragment"`
}
