package gcp

import (
	"context"
	"time"

	"cloud.google.com/go/storage"
	"github.com/dissonance-oracle/oracle/internal/oracleerr"
	"github.com/dissonance-oracle/oracle/pkg/adapter/resiliency"
	"github.com/dissonance-oracle/oracle/pkg/model"
)

// ConsentStore implements adapter.ConsentStore on Cloud Storage. Object
// name is orgId/resource/repoId.json (repoId "_org" for org-scope), same
// repo-then-org precedence as the local and AWS adapters.
type ConsentStore struct {
	bucket  *storage.BucketHandle
	retrier *resiliency.Retrier
}

func consentObjectName(orgID string, resource model.Resource, repoID string) string {
	scope := repoID
	if scope == "" {
		scope = "_org"
	}
	return orgID + "/" + string(resource) + "/" + scope + ".json"
}

func (s *ConsentStore) getRecord(ctx context.Context, name string) (*model.ConsentRecord, int64, error) {
	var rec model.ConsentRecord
	found, gen, err := readJSON(ctx, s.retrier, s.bucket, name, &rec)
	if err != nil {
		return nil, 0, oracleerr.Wrap(oracleerr.KindConsentStoreUnavailable, "read consent record", err)
	}
	if !found {
		return nil, 0, nil
	}
	return &rec, gen, nil
}

func (s *ConsentStore) GetConsent(ctx context.Context, orgID, repoID string) (*model.ConsentRecord, error) {
	now := time.Now()
	for _, resource := range []model.Resource{model.ResourceFPPatterns, model.ResourceFPMetrics} {
		if repoID != "" {
			rec, _, err := s.getRecord(ctx, consentObjectName(orgID, resource, repoID))
			if err != nil {
				return nil, err
			}
			if rec != nil && rec.Active(now) {
				return rec, nil
			}
		}
		rec, _, err := s.getRecord(ctx, consentObjectName(orgID, resource, ""))
		if err != nil {
			return nil, err
		}
		if rec != nil && rec.Active(now) {
			return rec, nil
		}
	}
	return nil, nil
}

func (s *ConsentStore) HasConsent(ctx context.Context, orgID string, resource model.Resource, repoID string) (bool, error) {
	now := time.Now()
	if repoID != "" {
		rec, _, err := s.getRecord(ctx, consentObjectName(orgID, resource, repoID))
		if err != nil {
			return false, err
		}
		if rec != nil && rec.Active(now) {
			return true, nil
		}
	}
	rec, _, err := s.getRecord(ctx, consentObjectName(orgID, resource, ""))
	if err != nil {
		return false, err
	}
	if rec != nil {
		return rec.Active(now), nil
	}
	return false, nil
}

func (s *ConsentStore) GrantConsent(ctx context.Context, record model.ConsentRecord) error {
	name := consentObjectName(record.OrgID, record.Resource, record.RepoID)
	if err := writeJSON(ctx, s.retrier, s.bucket, name, record); err != nil {
		return oracleerr.Wrap(oracleerr.KindConsentStoreUnavailable, "write consent record", err)
	}
	return nil
}

func (s *ConsentStore) RevokeConsent(ctx context.Context, orgID string, resource model.Resource, repoID string) error {
	name := consentObjectName(orgID, resource, repoID)
	rec, gen, err := s.getRecord(ctx, name)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil // no existing record to revoke: no-op
	}
	now := time.Now()
	rec.RevokedAt = &now
	if err := writeJSONGenMatch(ctx, s.retrier, s.bucket, name, gen, *rec); err != nil {
		return oracleerr.Wrap(oracleerr.KindConsentStoreUnavailable, "revoke consent record", err)
	}
	return nil
}
