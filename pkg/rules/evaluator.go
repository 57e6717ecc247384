package rules

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/dissonance-oracle/oracle/pkg/model"
	"github.com/dissonance-oracle/oracle/pkg/telemetry"
)

const defaultRuleTimeout = 30 * time.Second

// Evaluator runs a set of rules concurrently against one AnalysisContext.
// Every rule's panic, error, or timeout is isolated as a synthetic finding
// rather than aborting the pipeline — a misbehaving rule degrades its own
// result, never the whole report.
type Evaluator struct {
	timeout   time.Duration
	telemetry *telemetry.Provider
	workers   int
}

// NewEvaluator returns an Evaluator with the given per-rule timeout
// (default 30s when zero). tracker may be nil, in which case rule
// evaluations run untraced. Concurrency is capped at runtime.NumCPU()
// workers, per spec §5's worker-pool bound.
func NewEvaluator(timeout time.Duration, tracker *telemetry.Provider) *Evaluator {
	if timeout <= 0 {
		timeout = defaultRuleTimeout
	}
	return &Evaluator{timeout: timeout, telemetry: tracker, workers: runtime.NumCPU()}
}

// Evaluate runs every rule in ruleList over a pool of runtime.NumCPU()
// workers and returns one []model.Finding slice per rule, indexed
// identically to ruleList so the caller can flatten them in registration
// order — concurrency inside this call never reorders the output.
func (e *Evaluator) Evaluate(ctx context.Context, analysis model.AnalysisContext, ruleList []model.Rule) [][]model.Finding {
	results := make([][]model.Finding, len(ruleList))

	workers := e.workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(ruleList) {
		workers = len(ruleList)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = e.runOne(ctx, analysis, ruleList[i])
			}
		}()
	}
	for i := range ruleList {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

// runOne executes a single rule with panic recovery and a deadline, never
// letting either escape as anything but a synthetic finding.
func (e *Evaluator) runOne(ctx context.Context, analysis model.AnalysisContext, rule model.Rule) []model.Finding {
	def := rule.Definition()
	ruleCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var trackDone func(error)
	if e.telemetry != nil {
		ruleCtx, trackDone = e.telemetry.TrackRule(ruleCtx, def.ID)
	}

	type outcome struct {
		findings []model.Finding
		err      error
	}
	resultCh := make(chan outcome, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				resultCh <- outcome{err: panicError{value: p}}
			}
		}()
		findings, err := rule.Evaluate(ruleCtx, analysis)
		resultCh <- outcome{findings: findings, err: err}
	}()

	select {
	case <-ruleCtx.Done():
		err := ruleCtx.Err()
		if trackDone != nil {
			trackDone(err)
		}
		return []model.Finding{model.SyntheticFailure(def.ID, "Rule execution timed out", "TIMEOUT", err)}
	case o := <-resultCh:
		if trackDone != nil {
			trackDone(o.err)
		}
		if o.err != nil {
			return []model.Finding{model.SyntheticFailure(def.ID, "Rule execution failed", "EXECUTION_FAILED", o.err)}
		}
		return o.findings
	}
}

type panicError struct {
	value any
}

func (p panicError) Error() string {
	if err, ok := p.value.(error); ok {
		return err.Error()
	}
	return "panic: " + toString(p.value)
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return "non-string panic value"
}
