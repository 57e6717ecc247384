package l0

import (
	"time"

	"github.com/dissonance-oracle/oracle/pkg/model"
)

// Input bundles the five checks' arguments into one value so the
// orchestrator can run the whole L0 pass with a single call.
type Input struct {
	DeclaredSchema       []byte
	ExpectedSchemaPrefix string

	PermissionBitsValue uint64
	ReservedMask        uint64
	AllowedMask         uint64

	DriftCurrent   float64
	DriftBaseline  float64
	DriftThreshold float64

	Now         time.Time
	NonceIssued time.Time
	NonceMaxAge time.Duration

	FPRBefore         float64
	FPRAfter          float64
	WitnessCount      int
	MinRequiredEvents int
}

// RunAll runs all five checks in fixed order, matching the table in
// spec §4.3.
func RunAll(in Input) []Result {
	return []Result{
		SchemaHash(in.DeclaredSchema, in.ExpectedSchemaPrefix),
		PermissionBits(in.PermissionBitsValue, in.ReservedMask, in.AllowedMask),
		DriftMagnitude(in.DriftCurrent, in.DriftBaseline, in.DriftThreshold),
		NonceFreshness(in.Now, in.NonceIssued, in.NonceMaxAge),
		ContractionWitness(in.FPRBefore, in.FPRAfter, in.WitnessCount, in.MinRequiredEvents),
	}
}

// Evaluate runs all five checks and translates every failure into a
// Finding. In authoritative mode a failure is block-severity with code
// INVARIANT_VIOLATION and the pipeline must short-circuit on the first one
// (the caller decides whether to stop, since this package knows nothing
// about the pipeline); in advisory mode the same failure is reported as
// warn instead.
func Evaluate(in Input, authoritative bool) []model.Finding {
	var findings []model.Finding
	for _, r := range RunAll(in) {
		if r.Passed {
			continue
		}
		severity := model.SeverityWarn
		code := "L0_ADVISORY_" + string(r.Code)
		if authoritative {
			severity = model.SeverityBlock
			code = "INVARIANT_VIOLATION"
		}
		findings = append(findings, model.Finding{
			ID:       "l0:" + string(r.Code),
			RuleID:   string(r.Code),
			RuleName: "l0." + string(r.Code),
			Severity: severity,
			Title:    "L0 invariant failed: " + string(r.Code),
			Metadata: map[string]any{
				"ruleId": string(r.Code),
				"code":   code,
				"reason": r.Reason,
			},
		})
	}
	return findings
}
