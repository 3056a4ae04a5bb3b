package domain

import (
	"context"
)

// Explainer turns a flagged claim's anomaly tags and detail fragments
// into a human-readable justification. The pipeline ships a
// deterministic template implementation; an external text-generation
// collaborator may be plugged in behind this interface. Any error
// falls back to the template; an unavailable collaborator never
// fails the batch.
type Explainer interface {
	Summarize(ctx context.Context, claim Claim, tags []string, fragments []string) (string, error)
}

// ExplainerConfig holds settings for the optional LLM-backed explainer.
type ExplainerConfig struct {
	// Enabled switches the external collaborator on. The
	// deterministic template is always available as fallback.
	Enabled bool `yaml:"enabled"`

	// Endpoint of an OpenAI-compatible chat completion API.
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`

	// TimeoutSecs bounds one collaborator call. Zero means 10s.
	TimeoutSecs int `yaml:"timeoutSecs"`
}
