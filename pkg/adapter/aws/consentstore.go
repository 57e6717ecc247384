package aws

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dissonance-oracle/oracle/internal/oracleerr"
	"github.com/dissonance-oracle/oracle/pkg/adapter/resiliency"
	"github.com/dissonance-oracle/oracle/pkg/model"
)

// ConsentStore implements adapter.ConsentStore on DynamoDB. Partition key
// "pk" is orgId|resource|repoId (repoId empty string for org-scope),
// mirroring the local adapter's key so both backends resolve the same
// repo-then-org precedence.
type ConsentStore struct {
	ddb     *dynamodb.Client
	table   string
	retrier *resiliency.Retrier
}

func consentPK(orgID string, resource model.Resource, repoID string) string {
	return orgID + "|" + string(resource) + "|" + repoID
}

func (s *ConsentStore) getRecord(ctx context.Context, pk string) (*model.ConsentRecord, error) {
	var out *dynamodb.GetItemOutput
	err := s.retrier.Do(ctx, resiliency.AlwaysRetry, func() error {
		var getErr error
		out, getErr = s.ddb.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: &s.table,
			Key: map[string]types.AttributeValue{
				"pk": &types.AttributeValueMemberS{Value: pk},
			},
		})
		return getErr
	})
	if err != nil {
		return nil, oracleerr.Wrap(oracleerr.KindConsentStoreUnavailable, "get consent record", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var rec model.ConsentRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, oracleerr.Wrap(oracleerr.KindConsentStoreUnavailable, "unmarshal consent record", err)
	}
	return &rec, nil
}

func (s *ConsentStore) GetConsent(ctx context.Context, orgID, repoID string) (*model.ConsentRecord, error) {
	now := time.Now()
	for _, resource := range []model.Resource{model.ResourceFPPatterns, model.ResourceFPMetrics} {
		if repoID != "" {
			rec, err := s.getRecord(ctx, consentPK(orgID, resource, repoID))
			if err != nil {
				return nil, err
			}
			if rec != nil && rec.Active(now) {
				return rec, nil
			}
		}
		rec, err := s.getRecord(ctx, consentPK(orgID, resource, ""))
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
		rec, err := s.getRecord(ctx, consentPK(orgID, resource, repoID))
		if err != nil {
			return false, err
		}
		if rec != nil && rec.Active(now) {
			return true, nil
		}
	}
	rec, err := s.getRecord(ctx, consentPK(orgID, resource, ""))
	if err != nil {
		return false, err
	}
	if rec != nil {
		return rec.Active(now), nil
	}
	return false, nil
}

func (s *ConsentStore) GrantConsent(ctx context.Context, record model.ConsentRecord) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return oracleerr.Wrap(oracleerr.KindConsentStoreUnavailable, "marshal consent record", err)
	}
	item["pk"] = &types.AttributeValueMemberS{Value: consentPK(record.OrgID, record.Resource, record.RepoID)}
	err = s.retrier.Do(ctx, resiliency.AlwaysRetry, func() error {
		_, putErr := s.ddb.PutItem(ctx, &dynamodb.PutItemInput{TableName: &s.table, Item: item})
		return putErr
	})
	if err != nil {
		return oracleerr.Wrap(oracleerr.KindConsentStoreUnavailable, "put consent record", err)
	}
	return nil
}

func (s *ConsentStore) RevokeConsent(ctx context.Context, orgID string, resource model.Resource, repoID string) error {
	pk := consentPK(orgID, resource, repoID)
	now := time.Now()
	err := s.retrier.Do(ctx, retryUnlessConditionFailed, func() error {
		_, updateErr := s.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName: &s.table,
			Key: map[string]types.AttributeValue{
				"pk": &types.AttributeValueMemberS{Value: pk},
			},
			UpdateExpression:    strPtr("SET revokedAt = :r"),
			ConditionExpression: strPtr("attribute_exists(pk)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":r": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
			},
		})
		return updateErr
	})
	if err != nil {
		var cce *types.ConditionalCheckFailedException
		if errors.As(err, &cce) {
			return nil // no existing record to revoke: no-op
		}
		return oracleerr.Wrap(oracleerr.KindConsentStoreUnavailable, "revoke consent record", err)
	}
	return nil
}
