// Package oracle implements the orchestrator: the analyze(AnalysisContext)
// -> Report pipeline that ties the L0 validator, rule evaluator, FP/consent
// adapters, and circuit breaker together into one deterministic report.
package oracle

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dissonance-oracle/oracle/internal/oracleerr"
	"github.com/dissonance-oracle/oracle/pkg/adapter"
	"github.com/dissonance-oracle/oracle/pkg/breaker"
	"github.com/dissonance-oracle/oracle/pkg/l0"
	"github.com/dissonance-oracle/oracle/pkg/model"
	"github.com/dissonance-oracle/oracle/pkg/rules"
	"github.com/dissonance-oracle/oracle/pkg/telemetry"
)

// requestIDNamespace is a fixed namespace UUID used to derive a
// deterministic requestId from an AnalysisContext's identity fields, so
// identical inputs (same owner/name/commitSha/mode) always produce the
// same requestId and therefore byte-identical reports.
var requestIDNamespace = uuid.MustParse("6f9c1b9a-2e3a-4f7a-9c7e-9b9d2d9a0f01")

// Oracle runs the analyze pipeline against one adapter Bundle.
type Oracle struct {
	bundle    *adapter.Bundle
	registry  *rules.Registry
	evaluator *rules.Evaluator
	breaker   *breaker.Breaker
	l0Input   func(model.AnalysisContext) l0.Input
	clock     func() time.Time
}

// Config holds the orchestrator's tunables.
type Config struct {
	RuleTimeout      time.Duration
	BreakerThreshold int
	BreakerWindow    time.Duration
	BreakerCooldown  time.Duration

	// Clock sources Report.Timestamp. Defaults to time.Now; overriding it
	// lets a caller reproduce byte-identical canonical reports for a fixed
	// instant instead of leaking the real wall clock into every diff.
	Clock func() time.Time
}

// New constructs an Oracle over bundle and registry. l0Input builds the
// L0.Input for a given AnalysisContext — callers own baseline/schema/nonce
// sourcing, since those come from BaselineStorage/SecretStore and vary by
// deployment. tracker may be nil, in which case rule evaluations run
// untraced.
func New(bundle *adapter.Bundle, registry *rules.Registry, cfg Config, l0Input func(model.AnalysisContext) l0.Input, tracker *telemetry.Provider) *Oracle {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Oracle{
		bundle:    bundle,
		registry:  registry,
		evaluator: rules.NewEvaluator(cfg.RuleTimeout, tracker),
		breaker: breaker.New(bundle.BlockCounter, breaker.Config{
			Threshold: cfg.BreakerThreshold,
			Window:    cfg.BreakerWindow,
			Cooldown:  cfg.BreakerCooldown,
		}),
		l0Input: l0Input,
		clock:   clock,
	}
}

// Analyze runs the full nine-step pipeline and always returns a Report,
// even under adapter failure — degraded mode, not an empty result, is how
// partial failure is surfaced.
func (o *Oracle) Analyze(ctx context.Context, analysis model.AnalysisContext) (model.Report, error) {
	// 1. Validate AnalysisContext.
	if err := analysis.Validate(); err != nil {
		return model.Report{}, err
	}
	if analysis.RequestID == "" {
		analysis.RequestID = deterministicRequestID(analysis)
	}

	authoritative := analysis.LicenseTier == model.LicenseAuthoritative

	report := model.Report{
		Mode:          analysis.Mode,
		FilesAnalyzed: len(analysis.Files),
		RequestID:     analysis.RequestID,
		Timestamp:     o.clock(),
	}

	// 2. Load adapters — fail fast if the secret store is unreachable and
	// we are not running local (local is always reachable by construction).
	if o.bundle.Provider != adapter.ProviderLocal && !o.bundle.SecretStore.IsReachable(ctx) {
		return model.Report{}, oracleerr.New(oracleerr.KindSecretStoreUnavailable, "secret store unreachable")
	}

	// Consent gate: cross-repo governance sharing requires org consent.
	if cf, err := checkConsent(ctx, o.bundle.ConsentStore, analysis); err != nil {
		report.DegradedMode = true
		report.DegradedReason = "consent-store-unavailable"
	} else if cf != nil {
		report.Findings = append(report.Findings, *cf)
		return o.finalize(report), nil
	}

	// 3. Run L0 first; short-circuit on authoritative failure.
	l0Findings := l0.Evaluate(o.l0Input(analysis), authoritative)
	if authoritative {
		for _, f := range l0Findings {
			if f.Severity == model.SeverityBlock {
				report.Findings = append(report.Findings, l0Findings...)
				return o.finalize(report), nil
			}
		}
	}
	report.Findings = append(report.Findings, l0Findings...)

	// 4. Evaluate rules in parallel, preserving declaration order.
	ruleList := o.registry.All()
	report.Summary.RulesChecked = len(ruleList)
	perRule := o.evaluator.Evaluate(ctx, analysis, ruleList)
	for _, findings := range perRule {
		report.Findings = append(report.Findings, findings...)
	}

	// 5. Demote block findings the FPStore has labeled false-positive.
	report.Findings, report.DegradedMode, report.DegradedReason = o.demoteFalsePositives(ctx, report.Findings, report.DegradedMode, report.DegradedReason)

	// 6. Ask the circuit breaker whether each blocking finding's rule is
	// open; demote and mark degraded if so.
	var breakerTripped bool
	report.Findings, breakerTripped = o.demoteOpenBreakers(ctx, report.Findings)
	if breakerTripped {
		report.DegradedMode = true
		report.DegradedReason = "circuit_breaker_triggered"
	}

	// 7. Increment BlockCounter for every remaining block.
	if err := o.incrementRemainingBlocks(ctx, report.Findings); err != nil {
		report.DegradedMode = true
		report.DegradedReason = "block-counter-unavailable"
	}

	return o.finalize(report), nil
}

func deterministicRequestID(analysis model.AnalysisContext) string {
	key := analysis.Owner + "/" + analysis.Name + "@" + analysis.CommitSha + ":" + string(analysis.Mode)
	return uuid.NewSHA1(requestIDNamespace, []byte(key)).String()
}

func (o *Oracle) demoteFalsePositives(ctx context.Context, findings []model.Finding, degraded bool, reason string) ([]model.Finding, bool, string) {
	out := make([]model.Finding, len(findings))
	copy(out, findings)
	for i, f := range out {
		if f.Severity != model.SeverityBlock || f.ID == "" {
			continue
		}
		isFP, err := o.bundle.FPStore.IsFalsePositive(ctx, f.ID)
		if err != nil {
			degraded = true
			reason = "fp-store-unavailable"
			continue
		}
		if isFP {
			out[i] = f.Demote(model.SeverityWarn, "fp_label")
		}
	}
	return out, degraded, reason
}

func (o *Oracle) demoteOpenBreakers(ctx context.Context, findings []model.Finding) ([]model.Finding, bool) {
	out := make([]model.Finding, len(findings))
	copy(out, findings)
	var tripped bool
	for i, f := range out {
		if f.Severity != model.SeverityBlock {
			continue
		}
		open, err := o.breaker.Open(ctx, f.RuleID)
		if err != nil || !open {
			continue
		}
		out[i] = breaker.Demote(f)
		tripped = true
	}
	return out, tripped
}

func (o *Oracle) incrementRemainingBlocks(ctx context.Context, findings []model.Finding) error {
	var firstErr error
	for _, f := range findings {
		if f.Severity != model.SeverityBlock {
			continue
		}
		if err := o.breaker.RecordBlock(ctx, f.RuleID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// finalize synthesizes the decision lattice and summary, and sorts reasons
// deterministically.
func (o *Oracle) finalize(report model.Report) model.Report {
	decision := model.SeverityPass
	for _, f := range report.Findings {
		decision = decision.Max(f.Severity)
	}
	report.Decision = model.DecisionFor(decision)

	var reasons []string
	critical := 0
	violations := 0
	for _, f := range report.Findings {
		if f.Severity == model.SeverityPass {
			continue
		}
		violations++
		if f.Severity == model.SeverityBlock {
			critical++
		}
		if f.Severity.Ordinal() == decision.Ordinal() {
			reasons = append(reasons, f.Title)
		}
	}
	sort.Strings(reasons)
	report.Reasons = reasons
	report.Summary.ViolationsFound = violations
	report.Summary.CriticalIssues = critical

	return report
}
