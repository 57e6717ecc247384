package aws

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dissonance-oracle/oracle/internal/oracleerr"
	"github.com/dissonance-oracle/oracle/pkg/adapter/resiliency"
	"github.com/dissonance-oracle/oracle/pkg/model"
)

// FPStore implements adapter.FPStore on DynamoDB. Table schema: partition
// key "eventId" (string), with a "ruleId-timestamp-index" GSI for windowed
// reads and a "findingId-index" GSI for the finding-keyed lookups
// MarkFalsePositive/IsFalsePositive need. RecordEvent's idempotent-insert
// requirement maps directly onto a conditional PutItem with
// attribute_not_exists(eventId).
type FPStore struct {
	ddb     *dynamodb.Client
	table   string
	retrier *resiliency.Retrier
}

func (s *FPStore) eventIDForFinding(ctx context.Context, findingID string) (string, bool, error) {
	var out *dynamodb.QueryOutput
	err := s.retrier.Do(ctx, resiliency.AlwaysRetry, func() error {
		var queryErr error
		out, queryErr = s.ddb.Query(ctx, &dynamodb.QueryInput{
			TableName:              &s.table,
			IndexName:              strPtr("findingId-index"),
			KeyConditionExpression: strPtr("findingId = :f"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":f": &types.AttributeValueMemberS{Value: findingID},
			},
			Limit: int32Ptr(1),
		})
		return queryErr
	})
	if err != nil {
		return "", false, oracleerr.Wrap(oracleerr.KindFPStoreUnavailable, "query fp event by finding", err)
	}
	if len(out.Items) == 0 {
		return "", false, nil
	}
	var e model.FPEvent
	if err := attributevalue.UnmarshalMap(out.Items[0], &e); err != nil {
		return "", false, oracleerr.Wrap(oracleerr.KindFPStoreUnavailable, "unmarshal fp event", err)
	}
	return e.EventID, true, nil
}

func int32Ptr(n int32) *int32 { return &n }

func (s *FPStore) RecordEvent(ctx context.Context, event model.FPEvent) error {
	item, err := attributevalue.MarshalMap(event)
	if err != nil {
		return oracleerr.Wrap(oracleerr.KindFPStoreUnavailable, "marshal fp event", err)
	}
	err = s.retrier.Do(ctx, retryUnlessConditionFailed, func() error {
		_, putErr := s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           &s.table,
			Item:                item,
			ConditionExpression: strPtr("attribute_not_exists(eventId)"),
		})
		return putErr
	})
	if err != nil {
		var cce *types.ConditionalCheckFailedException
		if errors.As(err, &cce) {
			return nil // duplicate eventId: idempotent no-op
		}
		return oracleerr.Wrap(oracleerr.KindFPStoreUnavailable, "put fp event", err)
	}
	return nil
}

func (s *FPStore) MarkFalsePositive(ctx context.Context, findingID, reviewer, ticket string) error {
	eventID, ok, err := s.eventIDForFinding(ctx, findingID)
	if err != nil {
		return err
	}
	if !ok {
		return oracleerr.New(oracleerr.KindInvalidInput, "no fp event for finding: "+findingID)
	}
	err = s.retrier.Do(ctx, resiliency.AlwaysRetry, func() error {
		_, updateErr := s.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName: &s.table,
			Key: map[string]types.AttributeValue{
				"eventId": &types.AttributeValueMemberS{Value: eventID},
			},
			UpdateExpression: strPtr("SET isFalsePositive = :t, reviewedBy = :r, ticket = :k"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":t": &types.AttributeValueMemberBOOL{Value: true},
				":r": &types.AttributeValueMemberS{Value: reviewer},
				":k": &types.AttributeValueMemberS{Value: ticket},
			},
		})
		return updateErr
	})
	if err != nil {
		return oracleerr.Wrap(oracleerr.KindFPStoreUnavailable, "mark false positive", err)
	}
	return nil
}

func (s *FPStore) IsFalsePositive(ctx context.Context, findingID string) (bool, error) {
	eventID, ok, err := s.eventIDForFinding(ctx, findingID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	var out *dynamodb.GetItemOutput
	err = s.retrier.Do(ctx, resiliency.AlwaysRetry, func() error {
		var getErr error
		out, getErr = s.ddb.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: &s.table,
			Key: map[string]types.AttributeValue{
				"eventId": &types.AttributeValueMemberS{Value: eventID},
			},
		})
		return getErr
	})
	if err != nil {
		return false, oracleerr.Wrap(oracleerr.KindFPStoreUnavailable, "get fp event", err)
	}
	if out.Item == nil {
		return false, nil
	}
	var event model.FPEvent
	if err := attributevalue.UnmarshalMap(out.Item, &event); err != nil {
		return false, oracleerr.Wrap(oracleerr.KindFPStoreUnavailable, "unmarshal fp event", err)
	}
	return event.IsFalsePositive, nil
}

func (s *FPStore) queryByRule(ctx context.Context, ruleID string) ([]model.FPEvent, error) {
	var out *dynamodb.QueryOutput
	err := s.retrier.Do(ctx, resiliency.AlwaysRetry, func() error {
		var queryErr error
		out, queryErr = s.ddb.Query(ctx, &dynamodb.QueryInput{
			TableName:              &s.table,
			IndexName:              strPtr("ruleId-timestamp-index"),
			KeyConditionExpression: strPtr("ruleId = :r"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":r": &types.AttributeValueMemberS{Value: ruleID},
			},
		})
		return queryErr
	})
	if err != nil {
		return nil, oracleerr.Wrap(oracleerr.KindFPStoreUnavailable, "query fp events by rule", err)
	}
	events := make([]model.FPEvent, 0, len(out.Items))
	for _, item := range out.Items {
		var e model.FPEvent
		if err := attributevalue.UnmarshalMap(item, &e); err != nil {
			continue
		}
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Timestamp.Before(events[j].Timestamp)
		}
		return events[i].EventID < events[j].EventID
	})
	return events, nil
}

func (s *FPStore) GetWindowByCount(ctx context.Context, ruleID string, n int) (model.Window, error) {
	events, err := s.queryByRule(ctx, ruleID)
	if err != nil {
		return model.Window{}, err
	}
	if n > 0 && len(events) > n {
		events = events[len(events)-n:]
	}
	return model.NewWindow(ruleID, events), nil
}

func (s *FPStore) GetWindowBySince(ctx context.Context, ruleID string, since time.Time) (model.Window, error) {
	events, err := s.queryByRule(ctx, ruleID)
	if err != nil {
		return model.Window{}, err
	}
	filtered := make([]model.FPEvent, 0, len(events))
	for _, e := range events {
		if !e.Timestamp.Before(since) {
			filtered = append(filtered, e)
		}
	}
	return model.NewWindow(ruleID, filtered), nil
}

func strPtr(s string) *string { return &s }

// retryUnlessConditionFailed skips the retry loop for DynamoDB conditional
// check failures, which are a definitive outcome (the item already exists),
// not a transient fault worth retrying.
func retryUnlessConditionFailed(err error) bool {
	var cce *types.ConditionalCheckFailedException
	return !errors.As(err, &cce)
}
