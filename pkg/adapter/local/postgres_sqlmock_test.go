package local

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/dissonance-oracle/oracle/pkg/model"
)

func newMockPostgresFPStore(t *testing.T) (*PostgresFPStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &PostgresFPStore{db: db}, mock
}

func TestPostgresFPStoreRecordEventPropagatesDBError(t *testing.T) {
	store, mock := newMockPostgresFPStore(t)
	mock.ExpectExec("INSERT INTO fp_events").WillReturnError(errors.New("connection reset"))

	err := store.RecordEvent(context.Background(), model.FPEvent{EventID: "e1", RuleID: "MD-001"})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFPStoreIsFalsePositiveNoRowsMeansFalse(t *testing.T) {
	store, mock := newMockPostgresFPStore(t)
	mock.ExpectQuery("SELECT is_false_positive FROM fp_events").WillReturnError(sql.ErrNoRows)

	got, err := store.IsFalsePositive(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFPStoreMarkFalsePositiveNoMatchingFinding(t *testing.T) {
	store, mock := newMockPostgresFPStore(t)
	mock.ExpectExec("UPDATE fp_events").WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.MarkFalsePositive(context.Background(), "no-such-finding", "reviewer", "T-1")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func newMockPostgresConsentStore(t *testing.T) (*PostgresConsentStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &PostgresConsentStore{db: db, clock: func() time.Time { return time.Unix(0, 0) }}, mock
}

func TestPostgresConsentStoreRevokePropagatesDBError(t *testing.T) {
	store, mock := newMockPostgresConsentStore(t)
	mock.ExpectExec("UPDATE consent_records").WillReturnError(errors.New("deadlock detected"))

	err := store.RevokeConsent(context.Background(), "acme", model.ResourceFPPatterns, "")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresConsentStoreHasConsentNoRowsMeansFalse(t *testing.T) {
	store, mock := newMockPostgresConsentStore(t)
	mock.ExpectQuery("SELECT org_id, repo_id, resource, type, granted_at, expires_at, revoked_at, grantor").
		WillReturnError(sql.ErrNoRows)

	got, err := store.HasConsent(context.Background(), "acme", model.ResourceFPPatterns, "")
	require.NoError(t, err)
	require.False(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresConsentStoreHasConsentFallsBackToOrgWhenRepoRowRevoked(t *testing.T) {
	store, mock := newMockPostgresConsentStore(t)
	cols := []string{"org_id", "repo_id", "resource", "type", "granted_at", "expires_at", "revoked_at", "grantor"}
	revokedAt := time.Unix(0, 0).Add(-time.Hour)
	mock.ExpectQuery("SELECT org_id, repo_id, resource, type, granted_at, expires_at, revoked_at, grantor").
		WithArgs("acme", "repo-a", string(model.ResourceFPPatterns)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"acme", "repo-a", string(model.ResourceFPPatterns), string(model.ConsentExplicit),
			time.Unix(0, 0), nil, revokedAt, "admin",
		))
	mock.ExpectQuery("SELECT org_id, repo_id, resource, type, granted_at, expires_at, revoked_at, grantor").
		WithArgs("acme", "", string(model.ResourceFPPatterns)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"acme", "", string(model.ResourceFPPatterns), string(model.ConsentExplicit),
			time.Unix(0, 0), nil, nil, "admin",
		))

	got, err := store.HasConsent(context.Background(), "acme", model.ResourceFPPatterns, "repo-a")
	require.NoError(t, err)
	require.True(t, got, "a revoked repo-scope row must fall back to the still-active org-scope row")
	require.NoError(t, mock.ExpectationsWereMet())
}
