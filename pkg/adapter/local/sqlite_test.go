package local

import (
	"context"
	"testing"
	"time"

	"github.com/dissonance-oracle/oracle/pkg/model"
	"github.com/stretchr/testify/require"
)

func TestSQLiteFPStoreRecordEventIdempotent(t *testing.T) {
	dir := t.TempDir()
	stores, err := NewSQLite(dir)
	require.NoError(t, err)
	defer stores.Close()
	ctx := context.Background()

	event := model.FPEvent{
		EventID:   "evt-1",
		RuleID:    "MD-001",
		FindingID: "finding-1",
		Timestamp: time.Now(),
	}
	require.NoError(t, stores.FPStore.RecordEvent(ctx, event))
	require.NoError(t, stores.FPStore.RecordEvent(ctx, event))

	w, err := stores.FPStore.GetWindowByCount(ctx, "MD-001", 10)
	require.NoError(t, err)
	require.Equal(t, 1, w.Total)
}

func TestSQLiteFPStoreMarkFalsePositiveDemotesWindow(t *testing.T) {
	dir := t.TempDir()
	stores, err := NewSQLite(dir)
	require.NoError(t, err)
	defer stores.Close()
	ctx := context.Background()

	require.NoError(t, stores.FPStore.RecordEvent(ctx, model.FPEvent{
		EventID: "evt-1", RuleID: "MD-001", FindingID: "finding-1", Timestamp: time.Now(),
	}))

	require.NoError(t, stores.FPStore.MarkFalsePositive(ctx, "finding-1", "reviewer", "T-1"))

	isFP, err := stores.FPStore.IsFalsePositive(ctx, "finding-1")
	require.NoError(t, err)
	require.True(t, isFP)

	w, err := stores.FPStore.GetWindowByCount(ctx, "MD-001", 10)
	require.NoError(t, err)
	require.Equal(t, 1.0, w.ObservedFPR)
}

func TestSQLiteFPStoreWindowOrderedByTimestamp(t *testing.T) {
	dir := t.TempDir()
	stores, err := NewSQLite(dir)
	require.NoError(t, err)
	defer stores.Close()
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"evt-1", "evt-2", "evt-3"} {
		require.NoError(t, stores.FPStore.RecordEvent(ctx, model.FPEvent{
			EventID: id, RuleID: "MD-001", FindingID: id, Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	w, err := stores.FPStore.GetWindowByCount(ctx, "MD-001", 2)
	require.NoError(t, err)
	require.Equal(t, 2, w.Total)
	require.Equal(t, "evt-2", w.Events[0].EventID)
	require.Equal(t, "evt-3", w.Events[1].EventID)
}

func TestSQLiteConsentHierarchyRepoOverridesOrg(t *testing.T) {
	dir := t.TempDir()
	stores, err := NewSQLite(dir)
	require.NoError(t, err)
	defer stores.Close()
	ctx := context.Background()

	require.NoError(t, stores.ConsentStore.GrantConsent(ctx, model.ConsentRecord{
		OrgID: "acme", Resource: model.ResourceFPMetrics, Type: model.ConsentExplicit, GrantedAt: time.Now(), Grantor: "admin",
	}))

	has, err := stores.ConsentStore.HasConsent(ctx, "acme", model.ResourceFPMetrics, "repo-a")
	require.NoError(t, err)
	require.True(t, has, "org-scope consent should cover repos with no override")

	require.NoError(t, stores.ConsentStore.RevokeConsent(ctx, "acme", model.ResourceFPMetrics, "repo-a"))
	has, err = stores.ConsentStore.HasConsent(ctx, "acme", model.ResourceFPMetrics, "repo-a")
	require.NoError(t, err)
	require.True(t, has, "revoking a non-existent repo-scope record is a no-op, org grant still applies")
}

func TestSQLiteConsentFallsBackToOrgWhenRepoGrantRevoked(t *testing.T) {
	dir := t.TempDir()
	stores, err := NewSQLite(dir)
	require.NoError(t, err)
	defer stores.Close()
	ctx := context.Background()

	require.NoError(t, stores.ConsentStore.GrantConsent(ctx, model.ConsentRecord{
		OrgID: "acme", Resource: model.ResourceFPMetrics, Type: model.ConsentExplicit, GrantedAt: time.Now(), Grantor: "admin",
	}))
	require.NoError(t, stores.ConsentStore.GrantConsent(ctx, model.ConsentRecord{
		OrgID: "acme", RepoID: "repo-a", Resource: model.ResourceFPMetrics, Type: model.ConsentExplicit, GrantedAt: time.Now(), Grantor: "admin",
	}))
	require.NoError(t, stores.ConsentStore.RevokeConsent(ctx, "acme", model.ResourceFPMetrics, "repo-a"))

	has, err := stores.ConsentStore.HasConsent(ctx, "acme", model.ResourceFPMetrics, "repo-a")
	require.NoError(t, err)
	require.True(t, has, "an explicitly revoked repo grant must fall back to the still-active org grant")
}

func TestSQLiteConsentGrantThenRevoke(t *testing.T) {
	dir := t.TempDir()
	stores, err := NewSQLite(dir)
	require.NoError(t, err)
	defer stores.Close()
	ctx := context.Background()

	require.NoError(t, stores.ConsentStore.GrantConsent(ctx, model.ConsentRecord{
		OrgID: "acme", Resource: model.ResourceFPMetrics, Type: model.ConsentExplicit, GrantedAt: time.Now(), Grantor: "admin",
	}))
	require.NoError(t, stores.ConsentStore.RevokeConsent(ctx, "acme", model.ResourceFPMetrics, ""))

	has, err := stores.ConsentStore.HasConsent(ctx, "acme", model.ResourceFPMetrics, "")
	require.NoError(t, err)
	require.False(t, has)
}
