package local

import (
	"context"
	"time"

	"github.com/dissonance-oracle/oracle/pkg/model"
)

// ConsentStore is the local file-backed adapter.ConsentStore implementation.
// Lookup precedence — exact-repo record wins over org record, absent either
// the result is "not requested" — is the same specific-then-wildcard
// resolution pattern as JurisdictionResolver.Resolve, generalized from
// region matching to repo-then-org matching.
type ConsentStore struct {
	records *fileStore[model.ConsentRecord]
	clock   func() time.Time
}

func newConsentStore(dir string) (*ConsentStore, error) {
	fs, err := newFileStore[model.ConsentRecord](dir, "consent")
	if err != nil {
		return nil, err
	}
	return &ConsentStore{records: fs, clock: time.Now}, nil
}

func consentKey(orgID string, resource model.Resource, repoID string) string {
	return orgID + "|" + string(resource) + "|" + repoID
}

func (s *ConsentStore) GetConsent(ctx context.Context, orgID, repoID string) (*model.ConsentRecord, error) {
	for _, resource := range []model.Resource{model.ResourceFPPatterns, model.ResourceFPMetrics} {
		if repoID != "" {
			if rec, ok := s.records.get(consentKey(orgID, resource, repoID)); ok && rec.Active(s.clock()) {
				return &rec, nil
			}
		}
		if rec, ok := s.records.get(consentKey(orgID, resource, "")); ok && rec.Active(s.clock()) {
			return &rec, nil
		}
	}
	return nil, nil
}

func (s *ConsentStore) HasConsent(ctx context.Context, orgID string, resource model.Resource, repoID string) (bool, error) {
	now := s.clock()
	if repoID != "" {
		if rec, ok := s.records.get(consentKey(orgID, resource, repoID)); ok && rec.Active(now) {
			return true, nil
		}
	}
	if rec, ok := s.records.get(consentKey(orgID, resource, "")); ok {
		return rec.Active(now), nil
	}
	return false, nil
}

func (s *ConsentStore) GrantConsent(ctx context.Context, record model.ConsentRecord) error {
	key := consentKey(record.OrgID, record.Resource, record.RepoID)
	return s.records.withLock(func() (bool, error) {
		s.records.data[key] = record
		return true, nil
	})
}

func (s *ConsentStore) RevokeConsent(ctx context.Context, orgID string, resource model.Resource, repoID string) error {
	key := consentKey(orgID, resource, repoID)
	now := s.clock()
	return s.records.withLock(func() (bool, error) {
		rec, ok := s.records.data[key]
		if !ok {
			return false, nil
		}
		rec.RevokedAt = &now
		s.records.data[key] = rec
		return true, nil
	})
}
