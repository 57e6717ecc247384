// Package envelope wraps an oracle Report in the external response shape
// and applies the two tier floors — the sole points in the pipeline
// permitted to rewrite a decision after the Report is built.
package envelope

import (
	"time"

	"github.com/dissonance-oracle/oracle/pkg/model"
)

// Tier is the caller's license tier, carried in the envelope so egress
// clients never need to look it up separately.
type Tier string

const (
	TierExperimental  Tier = "experimental"
	TierAuthoritative Tier = "authoritative"
)

// Environment identifies where the oracle is running.
type Environment string

const (
	EnvironmentLocal Environment = "local"
	EnvironmentCloud Environment = "cloud"
)

// Envelope is the wrapper every external response is returned in.
type Envelope struct {
	Success      bool           `json:"success"`
	Code         string         `json:"code,omitempty"`
	Message      string         `json:"message,omitempty"`
	IsError      bool           `json:"isError"`
	Tier         Tier           `json:"tier"`
	Environment  Environment    `json:"environment"`
	Decision     model.Decision `json:"decision"`
	DegradedMode bool           `json:"degradedMode,omitempty"`
	RequestID    string         `json:"requestId"`
	Timestamp    time.Time      `json:"timestamp"`
	Data         model.Report   `json:"data"`
}

// l0OnlyCodes are the codes the experimental-cap floor strips — they can
// only legitimately originate from an authoritative L0/consent gate, so an
// experimental-tier caller must never see them.
var l0OnlyCodes = map[string]bool{
	"INVARIANT_VIOLATION": true,
	"CONSENT_REQUIRED":    true,
}

// Wrap builds the envelope around report and applies the two floors, in
// order: experimental cap first, then local degradation. Both floors only
// ever rewrite block->warn — neither may upgrade warn to block.
func Wrap(report model.Report, tier Tier, env Environment, requestID string, now time.Time) Envelope {
	e := Envelope{
		Success:      report.Decision != model.DecisionBlock,
		IsError:      false,
		Tier:         tier,
		Environment:  env,
		Decision:     report.Decision,
		DegradedMode: report.DegradedMode,
		RequestID:    requestID,
		Timestamp:    now,
		Data:         report,
	}

	applyExperimentalCap(&e)
	applyLocalDegradation(&e)

	return e
}

// applyExperimentalCap rewrites block->warn and strips L0-only codes when
// tier=experimental.
func applyExperimentalCap(e *Envelope) {
	if e.Tier != TierExperimental {
		return
	}
	if e.Decision == model.DecisionBlock {
		e.Decision = model.DecisionWarn
		e.Data.Decision = model.DecisionWarn
	}
	e.Data.Findings = stripL0OnlyFindings(e.Data.Findings)
}

// applyLocalDegradation marks degradedMode and rewrites block->warn when
// tier=authoritative and environment=local — running without the cloud
// backends' atomicity guarantees is itself a degradation worth surfacing.
func applyLocalDegradation(e *Envelope) {
	if e.Tier != TierAuthoritative || e.Environment != EnvironmentLocal {
		return
	}
	e.DegradedMode = true
	e.Data.DegradedMode = true
	if e.Decision == model.DecisionBlock {
		e.Decision = model.DecisionWarn
		e.Data.Decision = model.DecisionWarn
	}
}

func stripL0OnlyFindings(findings []model.Finding) []model.Finding {
	out := make([]model.Finding, 0, len(findings))
	for _, f := range findings {
		code, _ := f.Metadata["code"].(string)
		if l0OnlyCodes[code] {
			continue
		}
		out = append(out, f)
	}
	return out
}
