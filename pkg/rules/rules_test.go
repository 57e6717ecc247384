package rules

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dissonance-oracle/oracle/pkg/model"
	"github.com/dissonance-oracle/oracle/pkg/telemetry"
	"github.com/stretchr/testify/require"
)

type fakeRule struct {
	def     model.Definition
	delay   time.Duration
	err     error
	panics  bool
	finding model.Finding
}

func (f fakeRule) Definition() model.Definition { return f.def }

func (f fakeRule) Evaluate(ctx context.Context, analysis model.AnalysisContext) ([]model.Finding, error) {
	if f.panics {
		panic("simulated rule panic")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.finding.ID != "" {
		return []model.Finding{f.finding}, nil
	}
	return nil, nil
}

func TestRegistryRejectsDuplicateID(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(fakeRule{def: model.Definition{ID: "MD-001"}}))
	err := reg.Register(fakeRule{def: model.Definition{ID: "MD-001"}})
	require.Error(t, err)
}

func TestRegistryPreservesDeclarationOrder(t *testing.T) {
	reg := NewRegistry()
	for _, id := range []string{"MD-003", "MD-001", "MD-002"} {
		require.NoError(t, reg.Register(fakeRule{def: model.Definition{ID: id}}))
	}
	var order []string
	for _, r := range reg.All() {
		order = append(order, r.Definition().ID)
	}
	require.Equal(t, []string{"MD-003", "MD-001", "MD-002"}, order)
}

func TestEnabledFiltersByID(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(fakeRule{def: model.Definition{ID: "A"}}))
	require.NoError(t, reg.Register(fakeRule{def: model.Definition{ID: "B"}}))
	enabled := reg.Enabled(map[string]bool{"B": true})
	require.Len(t, enabled, 1)
	require.Equal(t, "B", enabled[0].Definition().ID)
}

func TestEvaluatorIsolatesRuleError(t *testing.T) {
	e := NewEvaluator(time.Second, nil)
	results := e.Evaluate(context.Background(), model.AnalysisContext{}, []model.Rule{
		fakeRule{def: model.Definition{ID: "broken"}, err: errors.New("boom")},
	})
	require.Len(t, results, 1)
	require.Len(t, results[0], 1)
	require.Equal(t, model.SeverityBlock, results[0][0].Severity)
	require.Equal(t, "EXECUTION_FAILED", results[0][0].Metadata["code"])
}

func TestEvaluatorIsolatesRulePanic(t *testing.T) {
	e := NewEvaluator(time.Second, nil)
	results := e.Evaluate(context.Background(), model.AnalysisContext{}, []model.Rule{
		fakeRule{def: model.Definition{ID: "panicky"}, panics: true},
	})
	require.Len(t, results[0], 1)
	require.Equal(t, model.SeverityBlock, results[0][0].Severity)
}

func TestEvaluatorTimesOutSlowRule(t *testing.T) {
	e := NewEvaluator(10*time.Millisecond, nil)
	results := e.Evaluate(context.Background(), model.AnalysisContext{}, []model.Rule{
		fakeRule{def: model.Definition{ID: "slow"}, delay: time.Second},
	})
	require.Len(t, results[0], 1)
	require.Equal(t, "TIMEOUT", results[0][0].Metadata["code"])
}

func TestEvaluatorPreservesRuleOrderAcrossConcurrency(t *testing.T) {
	e := NewEvaluator(time.Second, nil)
	results := e.Evaluate(context.Background(), model.AnalysisContext{}, []model.Rule{
		fakeRule{def: model.Definition{ID: "slow"}, delay: 20 * time.Millisecond, finding: model.Finding{ID: "f-slow"}},
		fakeRule{def: model.Definition{ID: "fast"}, finding: model.Finding{ID: "f-fast"}},
	})
	require.Equal(t, "f-slow", results[0][0].ID)
	require.Equal(t, "f-fast", results[1][0].ID)
}

func TestEvaluatorBoundsConcurrencyToWorkerCount(t *testing.T) {
	e := NewEvaluator(time.Second, nil)
	e.workers = 2

	var inFlight, maxInFlight int32
	ruleList := make([]model.Rule, 6)
	for i := range ruleList {
		ruleList[i] = concurrencyProbeRule{
			def:         model.Definition{ID: "probe"},
			inFlight:    &inFlight,
			maxInFlight: &maxInFlight,
		}
	}
	e.Evaluate(context.Background(), model.AnalysisContext{}, ruleList)

	require.LessOrEqual(t, int(atomic.LoadInt32(&maxInFlight)), 2)
}

type concurrencyProbeRule struct {
	def         model.Definition
	inFlight    *int32
	maxInFlight *int32
}

func (r concurrencyProbeRule) Definition() model.Definition { return r.def }

func (r concurrencyProbeRule) Evaluate(ctx context.Context, analysis model.AnalysisContext) ([]model.Finding, error) {
	n := atomic.AddInt32(r.inFlight, 1)
	defer atomic.AddInt32(r.inFlight, -1)
	for {
		max := atomic.LoadInt32(r.maxInFlight)
		if n <= max || atomic.CompareAndSwapInt32(r.maxInFlight, max, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return nil, nil
}

func TestEvaluatorTracksRuleViaTelemetry(t *testing.T) {
	provider, err := telemetry.New(context.Background(), &telemetry.Config{Enabled: false})
	require.NoError(t, err)
	e := NewEvaluator(time.Second, provider)
	results := e.Evaluate(context.Background(), model.AnalysisContext{}, []model.Rule{
		fakeRule{def: model.Definition{ID: "traced"}, finding: model.Finding{ID: "f-traced"}},
	})
	require.Equal(t, "f-traced", results[0][0].ID)
}

func TestCELRuleFiresOnMatchingPredicate(t *testing.T) {
	r, err := NewCELRule(
		model.Definition{ID: "CEL-001"},
		`analysis.branch == "main"`,
		func(a model.AnalysisContext) model.Finding {
			return model.Finding{ID: "cel-hit", RuleID: "CEL-001", Severity: model.SeverityWarn}
		},
	)
	require.NoError(t, err)

	findings, err := r.Evaluate(context.Background(), model.AnalysisContext{Branch: "main"})
	require.NoError(t, err)
	require.Len(t, findings, 1)

	findings, err = r.Evaluate(context.Background(), model.AnalysisContext{Branch: "feature"})
	require.NoError(t, err)
	require.Empty(t, findings)
}
