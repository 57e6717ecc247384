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

// sqlmock exercises error paths that a real SQLite file makes awkward to
// force deterministically: a dropped connection mid-query, zero rows
// affected by an UPDATE, and a bare ErrNoRows lookup.

func newMockFPStore(t *testing.T) (*SQLiteFPStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &SQLiteFPStore{db: db}, mock
}

func TestSQLiteFPStoreRecordEventPropagatesDBError(t *testing.T) {
	store, mock := newMockFPStore(t)
	mock.ExpectExec("INSERT INTO fp_events").WillReturnError(errors.New("disk full"))

	err := store.RecordEvent(context.Background(), model.FPEvent{EventID: "e1", RuleID: "MD-001"})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteFPStoreMarkFalsePositiveNoMatchingFinding(t *testing.T) {
	store, mock := newMockFPStore(t)
	mock.ExpectExec("UPDATE fp_events").WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.MarkFalsePositive(context.Background(), "no-such-finding", "reviewer", "T-1")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteFPStoreIsFalsePositiveNoRowsMeansFalse(t *testing.T) {
	store, mock := newMockFPStore(t)
	mock.ExpectQuery("SELECT is_false_positive FROM fp_events").WillReturnError(sql.ErrNoRows)

	got, err := store.IsFalsePositive(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func newMockConsentStore(t *testing.T) (*SQLiteConsentStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &SQLiteConsentStore{db: db, clock: func() time.Time { return time.Unix(0, 0) }}, mock
}

func TestSQLiteConsentStoreGrantPropagatesDBError(t *testing.T) {
	store, mock := newMockConsentStore(t)
	mock.ExpectExec("INSERT INTO consent_records").WillReturnError(errors.New("locked"))

	err := store.GrantConsent(context.Background(), model.ConsentRecord{
		OrgID: "acme", Resource: model.ResourceFPPatterns, Type: model.ConsentExplicit,
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
