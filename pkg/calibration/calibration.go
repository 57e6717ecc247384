// Package calibration implements the false-positive calibration
// subsystem: k-anonymity-gated cross-org aggregation, Byzantine
// contributor filtering, and the Tier-B promotion/demotion arithmetic
// the rule evaluator consults before raising a rule to block severity.
package calibration

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/dissonance-oracle/oracle/internal/oracleerr"
	"github.com/dissonance-oracle/oracle/pkg/model"
)

const defaultK = 10

// Contributor is one org's aggregate input to a cross-org query: its
// observed FPR over the shared window, and its reputation score used for
// Byzantine filtering.
type Contributor struct {
	OrgIDHash  string
	FPR        float64
	Reputation float64
}

// AggregateResult is what a k-anonymous aggregation yields on success.
type AggregateResult struct {
	DistinctOrgs int
	MeanFPR      float64
	Outliers     []string // OrgIDHash of contributors flagged as outliers
}

// Aggregate computes the k-anonymous mean FPR across contributors, after
// optionally excluding the bottom 20% by reputation. Fails with
// KindKAnonymityNotMet — carrying only the distinct-org count, never
// identities — if fewer than k distinct orgs remain after filtering.
func Aggregate(contributors []Contributor, k int, excludeBottomReputation bool) (AggregateResult, error) {
	if k <= 0 {
		k = defaultK
	}

	pool := contributors
	if excludeBottomReputation {
		pool = excludeBottom20ByReputation(contributors)
	}

	distinctOrgs := distinctOrgCount(pool)
	if distinctOrgs < k {
		return AggregateResult{}, oracleerr.New(oracleerr.KindKAnonymityNotMet, "aggregate query below k-anonymity threshold").
			WithDetails(map[string]any{"distinctOrgs": distinctOrgs, "k": k})
	}

	fprs := make([]float64, len(pool))
	for i, c := range pool {
		fprs[i] = c.FPR
	}
	median := medianOf(fprs)
	mad := medianAbsoluteDeviation(fprs, median)

	var sum float64
	var outliers []string
	for _, c := range pool {
		sum += c.FPR
		if mad > 0 && math.Abs(c.FPR-median) > 3*mad {
			outliers = append(outliers, c.OrgIDHash)
		}
	}

	return AggregateResult{
		DistinctOrgs: distinctOrgs,
		MeanFPR:      sum / float64(len(pool)),
		Outliers:     outliers,
	}, nil
}

func distinctOrgCount(contributors []Contributor) int {
	seen := make(map[string]struct{}, len(contributors))
	for _, c := range contributors {
		seen[c.OrgIDHash] = struct{}{}
	}
	return len(seen)
}

// excludeBottom20ByReputation drops the lowest-reputation 20% of
// contributors before aggregating, the Byzantine-filtering half of the
// spec's FP calibration design.
func excludeBottom20ByReputation(contributors []Contributor) []Contributor {
	if len(contributors) == 0 {
		return contributors
	}
	sorted := make([]Contributor, len(contributors))
	copy(sorted, contributors)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Reputation < sorted[j].Reputation })

	cut := len(sorted) / 5 // bottom 20%
	return sorted[cut:]
}

func medianOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func medianAbsoluteDeviation(xs []float64, median float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	deviations := make([]float64, len(xs))
	for i, x := range xs {
		deviations[i] = math.Abs(x - median)
	}
	return medianOf(deviations)
}

// windowProvider mirrors adapter.FPStore's window-reading surface, declared
// locally to avoid an import-time dependency on pkg/adapter.
type windowProvider interface {
	GetWindowByCount(ctx context.Context, ruleID string, n int) (model.Window, error)
}

// PromotionInput bundles what PromotionDecision needs to evaluate a single
// Tier-B rule's candidacy for promotion to block severity.
type PromotionInput struct {
	Rule                 model.Definition
	Window               model.Window
	WarnStartedAt        time.Time
	Now                  time.Time
	RedTeamCasesVerified int
}

// Decide evaluates spec §4.5's promotion/demotion arithmetic: all four
// conditions must hold for promotion to block; failure of any one demotes
// to warn.
func Decide(in PromotionInput) (model.Severity, []string) {
	c := in.Rule.PromotionCriteria
	var reasons []string

	if in.Window.ObservedFPR > c.MaxObservedFPR {
		reasons = append(reasons, "observedFPR exceeds maxObservedFPR")
	}
	if in.Window.Total < c.MinWindowN {
		reasons = append(reasons, "windowSize below minWindowN")
	}
	daysSinceWarnStart := in.Now.Sub(in.WarnStartedAt).Hours() / 24
	if daysSinceWarnStart < float64(c.MinDaysInWarn) {
		reasons = append(reasons, "daysSinceWarnStart below minDaysInWarn")
	}
	if in.RedTeamCasesVerified < c.MinRedTeamCases {
		reasons = append(reasons, "redTeamCasesVerified below minRedTeamCases")
	}

	if len(reasons) > 0 {
		return model.SeverityWarn, reasons
	}
	return model.SeverityBlock, nil
}

// WindowFor fetches the n-event window for ruleID, used by the evaluator
// to build a PromotionInput.
func WindowFor(ctx context.Context, store windowProvider, ruleID string, n int) (model.Window, error) {
	return store.GetWindowByCount(ctx, ruleID, n)
}
