package aws

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dissonance-oracle/oracle/internal/oracleerr"
	"github.com/dissonance-oracle/oracle/pkg/adapter/resiliency"
	"github.com/dissonance-oracle/oracle/pkg/model"
)

// BlockCounter implements adapter.BlockCounter on DynamoDB. Partition key
// "pk" is ruleId|hourBucket; increments use an atomic ADD update expression
// so concurrent writers from different oracle instances never lose a count,
// the same linearizability guarantee the local adapter gets from its mutex.
type BlockCounter struct {
	ddb       *dynamodb.Client
	table     string
	bucketSec int64
	retrier   *resiliency.Retrier
}

const defaultBucketSec = 3600

func (c *BlockCounter) bucketSeconds() int64 {
	if c.bucketSec <= 0 {
		return defaultBucketSec
	}
	return c.bucketSec
}

func blockCounterPK(ruleID string, bucket int64) string {
	return ruleID + "|" + time.Unix(bucket, 0).UTC().Format(time.RFC3339)
}

func (c *BlockCounter) Increment(ctx context.Context, ruleID string, ttl time.Duration) error {
	now := time.Now()
	bucket := model.BucketFor(now, c.bucketSeconds())
	pk := blockCounterPK(ruleID, bucket)
	expiresAt := now.Add(ttl).Unix()

	err := c.retrier.Do(ctx, resiliency.AlwaysRetry, func() error {
		_, updateErr := c.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName: &c.table,
			Key: map[string]types.AttributeValue{
				"pk": &types.AttributeValueMemberS{Value: pk},
			},
			UpdateExpression: strPtr("ADD #count :one SET ruleId = :r, hourBucket = :h, expiresAt = :e"),
			ExpressionAttributeNames: map[string]string{
				"#count": "count",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":one": &types.AttributeValueMemberN{Value: "1"},
				":r":   &types.AttributeValueMemberS{Value: ruleID},
				":h":   &types.AttributeValueMemberN{Value: strconv.FormatInt(bucket, 10)},
				":e":   &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt, 10)},
			},
		})
		return updateErr
	})
	if err != nil {
		return oracleerr.Wrap(oracleerr.KindBlockCounterUnavailable, "increment block counter", err)
	}
	return nil
}

func (c *BlockCounter) Get(ctx context.Context, ruleID string, window time.Duration) (int, error) {
	now := time.Now()
	cutoff := now.Add(-window)
	bucketSec := c.bucketSeconds()

	var out *dynamodb.QueryOutput
	err := c.retrier.Do(ctx, resiliency.AlwaysRetry, func() error {
		var queryErr error
		out, queryErr = c.ddb.Query(ctx, &dynamodb.QueryInput{
			TableName:              &c.table,
			IndexName:              strPtr("ruleId-hourBucket-index"),
			KeyConditionExpression: strPtr("ruleId = :r"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":r": &types.AttributeValueMemberS{Value: ruleID},
			},
		})
		return queryErr
	})
	if err != nil {
		return 0, oracleerr.Wrap(oracleerr.KindBlockCounterUnavailable, "query block counter", err)
	}

	total := 0
	for _, item := range out.Items {
		var b model.BlockCounterBucket
		if err := attributevalue.UnmarshalMap(item, &b); err != nil {
			continue
		}
		if b.ExpiresAt.Before(now) {
			continue
		}
		bucketTime := time.Unix(b.HourBucket*bucketSec, 0)
		if bucketTime.Before(cutoff) {
			continue
		}
		total += b.Count
	}
	return total, nil
}
