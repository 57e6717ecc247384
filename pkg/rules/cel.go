package rules

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/dissonance-oracle/oracle/pkg/model"
)

// CELRule is a model.Rule backed by a declarative CEL predicate: the
// expression receives the analysis context as a dynamic "analysis" map and
// must evaluate to a bool. true means the rule's condition is met and
// Finding is emitted; false means a pass.
//
// Grounded on the compile-once/cache/cost-limited evaluation pattern used
// for policy expressions elsewhere in the corpus: a CEL environment is
// expensive to construct but a compiled cel.Program is cheap to re-run, so
// compilation happens once at NewCELRule and every Evaluate call reuses it.
type CELRule struct {
	def     model.Definition
	program cel.Program
	finding func(analysis model.AnalysisContext) model.Finding
}

// NewCELRule compiles expr against a standard single-variable environment
// and returns a Rule that fires finding when expr evaluates true.
func NewCELRule(def model.Definition, expr string, finding func(model.AnalysisContext) model.Finding) (*CELRule, error) {
	env, err := cel.NewEnv(cel.Variable("analysis", cel.DynType))
	if err != nil {
		return nil, fmt.Errorf("rules: create cel env for %s: %w", def.ID, err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("rules: compile %s: %w", def.ID, issues.Err())
	}
	prg, err := env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(10000),
	)
	if err != nil {
		return nil, fmt.Errorf("rules: program %s: %w", def.ID, err)
	}
	return &CELRule{def: def, program: prg, finding: finding}, nil
}

func (r *CELRule) Definition() model.Definition { return r.def }

func (r *CELRule) Evaluate(ctx context.Context, analysis model.AnalysisContext) ([]model.Finding, error) {
	input := map[string]any{
		"analysis": analysisToCEL(analysis),
	}
	out, _, err := r.program.Eval(input)
	if err != nil {
		return nil, fmt.Errorf("rules: eval %s: %w", r.def.ID, err)
	}
	hit, ok := out.Value().(bool)
	if !ok {
		return nil, fmt.Errorf("rules: %s predicate did not return bool", r.def.ID)
	}
	if !hit {
		return nil, nil
	}
	return []model.Finding{r.finding(analysis)}, nil
}

func analysisToCEL(a model.AnalysisContext) map[string]any {
	files := make([]map[string]any, len(a.Files))
	for i, f := range a.Files {
		files[i] = map[string]any{"path": f.Path, "content": f.Content}
	}
	return map[string]any{
		"owner":     a.Owner,
		"name":      a.Name,
		"commitSha": a.CommitSha,
		"branch":    a.Branch,
		"mode":      string(a.Mode),
		"actor":     a.Actor,
		"files":     files,
	}
}
