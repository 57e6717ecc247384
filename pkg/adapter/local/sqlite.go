package local

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dissonance-oracle/oracle/pkg/model"
)

// SQLiteStores is the queryable-history variant of Stores: FPStore and
// ConsentStore are backed by a single SQLite database via database/sql,
// grounded on pkg/store/ledger/sql_ledger.go's SQLLedger shape (one *sql.DB,
// one table per entity, parameterized queries). BlockCounter, SecretStore,
// and BaselineStorage stay file-backed — the spec calls this sub-provider
// out specifically for "queryable FP/consent history", not the other three
// stores, which have no query use case of their own.
type SQLiteStores struct {
	FPStore         *SQLiteFPStore
	ConsentStore    *SQLiteConsentStore
	BlockCounter    *BlockCounter
	SecretStore     *SecretStore
	BaselineStorage *BaselineStorage
	db              *sql.DB
}

const fpEventSchema = `
CREATE TABLE IF NOT EXISTS fp_events (
	event_id TEXT PRIMARY KEY,
	rule_id TEXT NOT NULL,
	rule_version TEXT,
	finding_id TEXT,
	org_id_hash TEXT,
	timestamp DATETIME NOT NULL,
	is_false_positive INTEGER NOT NULL DEFAULT 0,
	reviewed_by TEXT,
	ticket TEXT,
	consent TEXT,
	expires_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_fp_events_rule_id ON fp_events(rule_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_fp_events_finding_id ON fp_events(finding_id);
`

const consentSchema = `
CREATE TABLE IF NOT EXISTS consent_records (
	org_id TEXT NOT NULL,
	repo_id TEXT NOT NULL DEFAULT '',
	resource TEXT NOT NULL,
	type TEXT NOT NULL,
	granted_at DATETIME NOT NULL,
	expires_at DATETIME,
	revoked_at DATETIME,
	grantor TEXT,
	PRIMARY KEY (org_id, repo_id, resource)
);
`

// NewSQLite constructs the SQLite-backed FPStore/ConsentStore plus the
// usual file-backed BlockCounter/SecretStore/BaselineStorage, all rooted
// under dataDir like the file-only variant.
func NewSQLite(dataDir string) (*SQLiteStores, error) {
	db, err := sql.Open("sqlite", filepath.Join(dataDir, "oracle.db"))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if _, err := db.Exec(fpEventSchema); err != nil {
		return nil, fmt.Errorf("init fp_events schema: %w", err)
	}
	if _, err := db.Exec(consentSchema); err != nil {
		return nil, fmt.Errorf("init consent_records schema: %w", err)
	}

	breaker, err := newBlockCounter(filepath.Join(dataDir, "block_counter"))
	if err != nil {
		return nil, err
	}
	secrets, err := newSecretStore(filepath.Join(dataDir, "secrets"))
	if err != nil {
		return nil, err
	}
	baselines, err := newBaselineStorage(filepath.Join(dataDir, "baselines"))
	if err != nil {
		return nil, err
	}

	return &SQLiteStores{
		FPStore:         &SQLiteFPStore{db: db},
		ConsentStore:    &SQLiteConsentStore{db: db, clock: time.Now},
		BlockCounter:    breaker,
		SecretStore:     secrets,
		BaselineStorage: baselines,
		db:              db,
	}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStores) Close() error { return s.db.Close() }

// SQLiteFPStore is the SQLite-backed adapter.FPStore implementation.
type SQLiteFPStore struct {
	db *sql.DB
}

func (s *SQLiteFPStore) RecordEvent(ctx context.Context, event model.FPEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fp_events (event_id, rule_id, rule_version, finding_id, org_id_hash, timestamp, is_false_positive, reviewed_by, ticket, consent, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING
	`, event.EventID, event.RuleID, event.RuleVersion, event.FindingID, event.OrgIDHash,
		event.Timestamp, boolToInt(event.IsFalsePositive), event.ReviewedBy, event.Ticket,
		string(event.Consent), event.ExpiresAt)
	return err
}

func (s *SQLiteFPStore) MarkFalsePositive(ctx context.Context, findingID, reviewer, ticket string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE fp_events SET is_false_positive = 1, reviewed_by = ?, ticket = ?
		WHERE finding_id = ?
	`, reviewer, ticket, findingID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no recorded event for finding %s", findingID)
	}
	return nil
}

func (s *SQLiteFPStore) IsFalsePositive(ctx context.Context, findingID string) (bool, error) {
	var isFP int
	err := s.db.QueryRowContext(ctx, `
		SELECT is_false_positive FROM fp_events WHERE finding_id = ? ORDER BY timestamp DESC LIMIT 1
	`, findingID).Scan(&isFP)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return isFP == 1, nil
}

func (s *SQLiteFPStore) GetWindowByCount(ctx context.Context, ruleID string, n int) (model.Window, error) {
	query := `SELECT event_id, rule_id, rule_version, finding_id, org_id_hash, timestamp, is_false_positive, reviewed_by, ticket, consent, expires_at
		FROM fp_events WHERE rule_id = ? ORDER BY timestamp ASC, event_id ASC`
	if n > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET MAX(0, (SELECT COUNT(*) FROM fp_events WHERE rule_id = ?) - %d)", n, n)
		return s.queryWindow(ctx, ruleID, query, ruleID, ruleID)
	}
	return s.queryWindow(ctx, ruleID, query, ruleID)
}

func (s *SQLiteFPStore) GetWindowBySince(ctx context.Context, ruleID string, since time.Time) (model.Window, error) {
	query := `SELECT event_id, rule_id, rule_version, finding_id, org_id_hash, timestamp, is_false_positive, reviewed_by, ticket, consent, expires_at
		FROM fp_events WHERE rule_id = ? AND timestamp >= ? ORDER BY timestamp ASC, event_id ASC`
	return s.queryWindow(ctx, ruleID, query, ruleID, since)
}

func (s *SQLiteFPStore) queryWindow(ctx context.Context, ruleID, query string, args ...any) (model.Window, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return model.Window{}, err
	}
	defer rows.Close()

	var events []model.FPEvent
	for rows.Next() {
		var e model.FPEvent
		var isFP int
		var consent string
		if err := rows.Scan(&e.EventID, &e.RuleID, &e.RuleVersion, &e.FindingID, &e.OrgIDHash,
			&e.Timestamp, &isFP, &e.ReviewedBy, &e.Ticket, &consent, &e.ExpiresAt); err != nil {
			return model.Window{}, err
		}
		e.IsFalsePositive = isFP == 1
		e.Consent = model.ConsentKind(consent)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return model.Window{}, err
	}
	return model.NewWindow(ruleID, events), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SQLiteConsentStore is the SQLite-backed adapter.ConsentStore
// implementation, preserving the same exact-repo-then-org lookup
// precedence as the file-backed ConsentStore.
type SQLiteConsentStore struct {
	db    *sql.DB
	clock func() time.Time
}

// lookup applies the same exact-repo-then-org-then-absent precedence as the
// file-backed ConsentStore: a repo-scope record always wins over an
// org-scope one when both exist.
func (s *SQLiteConsentStore) lookup(ctx context.Context, orgID string, resource model.Resource, repoID string) (*model.ConsentRecord, error) {
	if repoID != "" {
		rec, ok, err := s.queryOne(ctx, orgID, resource, repoID)
		if err != nil {
			return nil, err
		}
		if ok {
			return &rec, nil
		}
	}
	rec, ok, err := s.queryOne(ctx, orgID, resource, "")
	if err != nil {
		return nil, err
	}
	if ok {
		return &rec, nil
	}
	return nil, nil
}

func (s *SQLiteConsentStore) queryOne(ctx context.Context, orgID string, resource model.Resource, repoID string) (model.ConsentRecord, bool, error) {
	var rec model.ConsentRecord
	var consentType string
	var expiresAt, revokedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT org_id, repo_id, resource, type, granted_at, expires_at, revoked_at, grantor
		FROM consent_records WHERE org_id = ? AND repo_id = ? AND resource = ?
	`, orgID, repoID, string(resource)).Scan(&rec.OrgID, &rec.RepoID, &rec.Resource, &consentType,
		&rec.GrantedAt, &expiresAt, &revokedAt, &rec.Grantor)
	if err == sql.ErrNoRows {
		return model.ConsentRecord{}, false, nil
	}
	if err != nil {
		return model.ConsentRecord{}, false, err
	}
	rec.Type = model.ConsentKind(consentType)
	if expiresAt.Valid {
		rec.ExpiresAt = &expiresAt.Time
	}
	if revokedAt.Valid {
		rec.RevokedAt = &revokedAt.Time
	}
	return rec, true, nil
}

func (s *SQLiteConsentStore) GetConsent(ctx context.Context, orgID string, repoID string) (*model.ConsentRecord, error) {
	for _, resource := range []model.Resource{model.ResourceFPPatterns, model.ResourceFPMetrics} {
		rec, err := s.lookup(ctx, orgID, resource, repoID)
		if err != nil {
			return nil, err
		}
		if rec != nil && rec.Active(s.clock()) {
			return rec, nil
		}
	}
	return nil, nil
}

func (s *SQLiteConsentStore) HasConsent(ctx context.Context, orgID string, resource model.Resource, repoID string) (bool, error) {
	now := s.clock()
	if repoID != "" {
		rec, ok, err := s.queryOne(ctx, orgID, resource, repoID)
		if err != nil {
			return false, err
		}
		if ok && rec.Active(now) {
			return true, nil
		}
	}
	rec, ok, err := s.queryOne(ctx, orgID, resource, "")
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return rec.Active(now), nil
}

func (s *SQLiteConsentStore) GrantConsent(ctx context.Context, record model.ConsentRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO consent_records (org_id, repo_id, resource, type, granted_at, expires_at, revoked_at, grantor)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(org_id, repo_id, resource) DO UPDATE SET
			type = excluded.type, granted_at = excluded.granted_at,
			expires_at = excluded.expires_at, revoked_at = excluded.revoked_at, grantor = excluded.grantor
	`, record.OrgID, record.RepoID, string(record.Resource), string(record.Type),
		record.GrantedAt, record.ExpiresAt, record.RevokedAt, record.Grantor)
	return err
}

func (s *SQLiteConsentStore) RevokeConsent(ctx context.Context, orgID string, resource model.Resource, repoID string) error {
	now := s.clock()
	_, err := s.db.ExecContext(ctx, `
		UPDATE consent_records SET revoked_at = ? WHERE org_id = ? AND repo_id = ? AND resource = ?
	`, now, orgID, repoID, string(resource))
	return err
}
