// Package rules implements the rule registry and concurrent evaluator.
package rules

import (
	"fmt"

	"github.com/dissonance-oracle/oracle/pkg/model"
)

// Registry holds the set of registered rules in declaration order.
// Registration order is preserved across reports so diffs between two runs
// stay meaningful even when rule outcomes are unchanged.
type Registry struct {
	order []string
	byID  map[string]model.Rule
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]model.Rule)}
}

// Register adds rule under its Definition().ID. A duplicate ID raises —
// rule registration happens once at startup, so surfacing the mistake
// immediately is cheaper than silently shadowing a rule.
func (r *Registry) Register(rule model.Rule) error {
	id := rule.Definition().ID
	if id == "" {
		return fmt.Errorf("rules: rule has empty id")
	}
	if _, exists := r.byID[id]; exists {
		return fmt.Errorf("rules: duplicate rule id %q", id)
	}
	r.byID[id] = rule
	r.order = append(r.order, id)
	return nil
}

// Enabled returns the registered rules whose ID is in enabledIDs, in
// registration order. A nil enabledIDs means "all registered rules".
func (r *Registry) Enabled(enabledIDs map[string]bool) []model.Rule {
	out := make([]model.Rule, 0, len(r.order))
	for _, id := range r.order {
		if enabledIDs != nil && !enabledIDs[id] {
			continue
		}
		out = append(out, r.byID[id])
	}
	return out
}

// All returns every registered rule in declaration order.
func (r *Registry) All() []model.Rule {
	return r.Enabled(nil)
}
