// Package rules provides the CEL-Go based flag rule engine.
// Flag rules are optional operator-defined expressions evaluated per
// valid claim after the built-in anomaly checks.
package rules

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-health/harrier/internal/domain"
)

// Engine compiles and evaluates flag rules. Rules can be reloaded at
// runtime, so the compiled set is guarded by a mutex; evaluation
// itself has no side effects.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.FlagRule
	Program cel.Program
}

// NewEngine creates a flag rule engine with the claim variables in scope.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("claim_id", cel.StringType),
		cel.Variable("member_id", cel.StringType),
		cel.Variable("provider_id", cel.StringType),
		cel.Variable("procedure_code", cel.StringType),
		cel.Variable("diagnosis_code", cel.StringType),
		cel.Variable("cost", cel.IntType),
		cel.Variable("date_of_service", cel.StringType),
		cel.Variable("claim_type", cel.StringType),
		cel.Variable("category", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
	}, nil
}

// ValidateRule compiles a rule without mutating the loaded set.
func (e *Engine) ValidateRule(cfg *domain.FlagRule) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.FlagRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled
	return nil
}

// LoadRules compiles and loads all enabled rules.
func (e *Engine) LoadRules(configs []*domain.FlagRule) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules replaces the loaded set with the given enabled rules.
func (e *Engine) ReloadRules(configs []*domain.FlagRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules
	return nil
}

// Evaluate runs every loaded rule against a claim and returns the
// triggered hits in rule ID order. An expression error counts as
// not triggered; a bad rule must not flag claims.
func (e *Engine) Evaluate(c domain.Claim) []domain.RuleHit {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}

	activation := map[string]any{
		"claim_id":        c.ClaimID,
		"member_id":       c.MemberID,
		"provider_id":     c.ProviderID,
		"procedure_code":  c.ProcedureCode,
		"diagnosis_code":  c.DiagnosisCode,
		"cost":            c.Cost,
		"date_of_service": c.DateOfService,
		"claim_type":      c.ClaimType,
		"category":        c.Category,
	}

	var hits []domain.RuleHit
	for _, rule := range rules {
		out, _, err := rule.Program.Eval(activation)
		if err != nil {
			continue
		}
		if triggered, ok := out.(types.Bool); !ok || !bool(triggered) {
			continue
		}

		fragment := rule.Config.Fragment
		if fragment == "" {
			fragment = rule.Config.Name
		}
		hits = append(hits, domain.RuleHit{
			RuleID:   rule.Config.ID,
			Tag:      rule.Config.Tag,
			Severity: rule.Config.Severity,
			Fragment: fragment,
		})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].RuleID < hits[j].RuleID })
	return hits
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// LoadedRules returns the currently loaded rule configurations.
func (e *Engine) LoadedRules() []*domain.FlagRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.FlagRule, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(cfg *domain.FlagRule) (*CompiledRule, error) {
	if cfg.Tag == "" {
		return nil, fmt.Errorf("rule %s: tag is required", cfg.ID)
	}
	if cfg.Severity <= 0 || cfg.Severity > 100 {
		return nil, fmt.Errorf("rule %s: severity must be in 1-100", cfg.ID)
	}

	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
