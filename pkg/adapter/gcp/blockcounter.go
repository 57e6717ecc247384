package gcp

import (
	"context"
	"time"

	"cloud.google.com/go/storage"
	"github.com/dissonance-oracle/oracle/internal/oracleerr"
	"github.com/dissonance-oracle/oracle/pkg/adapter/resiliency"
	"github.com/dissonance-oracle/oracle/pkg/model"
	"google.golang.org/api/iterator"
)

// BlockCounter implements adapter.BlockCounter on Cloud Storage. Each
// (ruleId, hourBucket) pair is one object; Increment does a
// read-generation/write-generation-match retry loop since GCS has no
// native atomic-add, looping until the compare-and-swap succeeds.
type BlockCounter struct {
	bucket    *storage.BucketHandle
	bucketSec int64
	retrier   *resiliency.Retrier
}

func (c *BlockCounter) bucketSeconds() int64 {
	if c.bucketSec <= 0 {
		return defaultBucketSec
	}
	return c.bucketSec
}

func blockCounterObjectName(ruleID string, bucket int64) string {
	return ruleID + "/" + time.Unix(bucket, 0).UTC().Format("20060102T15") + ".json"
}

const maxIncrementRetries = 5

func (c *BlockCounter) Increment(ctx context.Context, ruleID string, ttl time.Duration) error {
	now := time.Now()
	bucket := model.BucketFor(now, c.bucketSeconds())
	name := blockCounterObjectName(ruleID, bucket)

	for attempt := 0; attempt < maxIncrementRetries; attempt++ {
		var b model.BlockCounterBucket
		found, gen, err := readJSON(ctx, c.retrier, c.bucket, name, &b)
		if err != nil {
			return oracleerr.Wrap(oracleerr.KindBlockCounterUnavailable, "read block counter bucket", err)
		}
		if !found {
			b = model.BlockCounterBucket{RuleID: ruleID, HourBucket: bucket}
		}
		b.Count++
		b.ExpiresAt = now.Add(ttl)

		err = writeJSONGenMatch(ctx, c.retrier, c.bucket, name, gen, b)
		if err == nil {
			return nil
		}
		// generation mismatch: another writer won the race, retry the read-modify-write
	}
	return oracleerr.New(oracleerr.KindBlockCounterUnavailable, "increment block counter: exhausted retries on concurrent writers")
}

func (c *BlockCounter) Get(ctx context.Context, ruleID string, window time.Duration) (int, error) {
	now := time.Now()
	cutoff := now.Add(-window)
	bucketSec := c.bucketSeconds()

	it := c.bucket.Objects(ctx, &storage.Query{Prefix: ruleID + "/"})
	total := 0
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, oracleerr.Wrap(oracleerr.KindBlockCounterUnavailable, "list block counter buckets", err)
		}
		var b model.BlockCounterBucket
		found, _, err := readJSON(ctx, c.retrier, c.bucket, attrs.Name, &b)
		if err != nil || !found {
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
