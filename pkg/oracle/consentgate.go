package oracle

import (
	"context"

	"github.com/dissonance-oracle/oracle/pkg/model"
)

type consentChecker interface {
	HasConsent(ctx context.Context, orgID string, resource model.Resource, repoID string) (bool, error)
}

// checkConsent gates cross-repo governance sharing: when a request carries
// neighbor-repo governance state (OrgContext.Neighbors), the requesting
// org must have granted consent to use its FP pattern data across repos,
// since that is exactly the data neighbor-state comparisons are built on.
// A missing or revoked grant is an authoritative block, never silently
// skipped — CONSENT_REQUIRED is one of only two codes the L0-style
// invariant gates ever produce.
func checkConsent(ctx context.Context, store consentChecker, analysis model.AnalysisContext) (*model.Finding, error) {
	if analysis.OrgContext == nil || len(analysis.OrgContext.Neighbors) == 0 {
		return nil, nil
	}

	ok, err := store.HasConsent(ctx, analysis.Owner, model.ResourceFPPatterns, analysis.Name)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, nil
	}

	return &model.Finding{
		ID:       "consent:fp_patterns",
		RuleID:   "CONSENT_GATE",
		RuleName: "consent_gate",
		Severity: model.SeverityBlock,
		Title:    "cross-repo governance sharing requires FP pattern consent",
		Metadata: map[string]any{
			"code":     "CONSENT_REQUIRED",
			"resource": string(model.ResourceFPPatterns),
			"orgId":    analysis.Owner,
		},
	}, nil
}
