package calibration

import (
	"testing"
	"time"

	"github.com/dissonance-oracle/oracle/internal/oracleerr"
	"github.com/dissonance-oracle/oracle/pkg/model"
	"github.com/stretchr/testify/require"
)

func distinctContributors(n int) []Contributor {
	out := make([]Contributor, n)
	for i := range out {
		out[i] = Contributor{OrgIDHash: string(rune('a' + i)), FPR: 0.1, Reputation: 1}
	}
	return out
}

func TestAggregateFailsBelowKAnonymity(t *testing.T) {
	_, err := Aggregate(distinctContributors(9), 10, false)
	require.Error(t, err)

	var oerr *oracleerr.Error
	require.ErrorAs(t, err, &oerr)
	require.Equal(t, oracleerr.KindKAnonymityNotMet, oerr.Kind)
	require.Equal(t, 9, oerr.Details["distinctOrgs"])
}

func TestAggregateSucceedsAtKAnonymity(t *testing.T) {
	result, err := Aggregate(distinctContributors(10), 10, false)
	require.NoError(t, err)
	require.Equal(t, 10, result.DistinctOrgs)
}

func TestAggregateNeverLeaksIdentitiesOnFailure(t *testing.T) {
	_, err := Aggregate(distinctContributors(3), 10, false)
	require.Error(t, err)
	var oerr *oracleerr.Error
	require.ErrorAs(t, err, &oerr)
	for k := range oerr.Details {
		require.NotContains(t, []string{"orgIdHash", "orgId", "contributors"}, k)
	}
}

func TestAggregateFlagsOutliersByMAD(t *testing.T) {
	contribs := distinctContributors(10)
	contribs[0].FPR = 0.99 // a clear outlier against the rest at 0.1
	result, err := Aggregate(contribs, 10, false)
	require.NoError(t, err)
	require.Contains(t, result.Outliers, contribs[0].OrgIDHash)
}

func TestExcludeBottom20ByReputationDropsLowestScorers(t *testing.T) {
	contribs := distinctContributors(10)
	for i := range contribs {
		contribs[i].Reputation = float64(i)
	}
	filtered := excludeBottom20ByReputation(contribs)
	require.Len(t, filtered, 8)
	for _, c := range filtered {
		require.GreaterOrEqual(t, c.Reputation, 2.0)
	}
}

func baseRule() model.Definition {
	return model.Definition{
		ID:   "TIERB-001",
		Tier: model.TierB,
		PromotionCriteria: model.PromotionCriteria{
			MinWindowN:      100,
			MaxObservedFPR:  0.02,
			MinRedTeamCases: 5,
			MinDaysInWarn:   14,
		},
	}
}

func TestDecidePromotesWhenAllConditionsMet(t *testing.T) {
	now := time.Now()
	sev, reasons := Decide(PromotionInput{
		Rule:                 baseRule(),
		Window:               model.Window{Total: 150, ObservedFPR: 0.01},
		WarnStartedAt:        now.Add(-20 * 24 * time.Hour),
		Now:                  now,
		RedTeamCasesVerified: 5,
	})
	require.Equal(t, model.SeverityBlock, sev)
	require.Empty(t, reasons)
}

func TestDecideDemotesWhenAnyConditionFails(t *testing.T) {
	now := time.Now()
	sev, reasons := Decide(PromotionInput{
		Rule:                 baseRule(),
		Window:               model.Window{Total: 150, ObservedFPR: 0.05}, // exceeds maxObservedFPR
		WarnStartedAt:        now.Add(-20 * 24 * time.Hour),
		Now:                  now,
		RedTeamCasesVerified: 5,
	})
	require.Equal(t, model.SeverityWarn, sev)
	require.NotEmpty(t, reasons)
}
