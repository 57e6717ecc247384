package schemas_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dissonance-oracle/oracle/pkg/contracts/schemas"
	"github.com/dissonance-oracle/oracle/pkg/model"
)

func TestValidator_ReportSchema_Accepts(t *testing.T) {
	v, err := schemas.New()
	require.NoError(t, err)

	report := model.Report{
		Decision: model.DecisionWarn,
		Reasons:  []string{"MD-001 warn"},
		Findings: []model.Finding{{
			ID:       "f1",
			RuleID:   "MD-001",
			RuleName: "no-secrets",
			Severity: model.SeverityWarn,
			Title:    "possible secret in diff",
		}},
		Summary:       model.Summary{RulesChecked: 1, ViolationsFound: 1},
		FilesAnalyzed: 3,
		Mode:          model.ModePullRequest,
		RequestID:     "req-1",
		Timestamp:     time.Now().UTC(),
	}

	assert.NoError(t, v.Validate(schemas.Report, report))
}

func TestValidator_ReportSchema_RejectsMissingRequired(t *testing.T) {
	v, err := schemas.New()
	require.NoError(t, err)

	err = v.Validate(schemas.Report, map[string]any{"decision": "pass"})
	assert.Error(t, err)
}

func TestValidator_ReportSchema_RejectsUnknownDecision(t *testing.T) {
	v, err := schemas.New()
	require.NoError(t, err)

	report := map[string]any{
		"decision":      "maybe",
		"reasons":       []string{},
		"findings":      []any{},
		"summary":       map[string]any{"rulesChecked": 0, "violationsFound": 0, "criticalIssues": 0},
		"filesAnalyzed": 0,
		"mode":          "local",
		"requestId":     "req-1",
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	}
	assert.Error(t, v.Validate(schemas.Report, report))
}

func TestValidator_PolicyManifestSchema_Accepts(t *testing.T) {
	v, err := schemas.New()
	require.NoError(t, err)

	manifest := model.PolicyManifest{
		SchemaVersion: "1",
		OrgID:         "acme",
		Defaults: []model.Expectation{
			{ID: "EXP-1", Description: "requires a SECURITY.md"},
		},
	}
	assert.NoError(t, v.Validate(schemas.PolicyManifest, manifest))
}

func TestValidator_PolicyManifestSchema_RejectsMissingOrgID(t *testing.T) {
	v, err := schemas.New()
	require.NoError(t, err)

	err = v.Validate(schemas.PolicyManifest, map[string]any{"schemaVersion": "1"})
	assert.Error(t, err)
}
