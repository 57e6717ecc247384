package local

import (
	"context"
	"time"

	"github.com/dissonance-oracle/oracle/pkg/model"
)

// BlockCounter is the local file-backed adapter.BlockCounter implementation.
// Increments key on (ruleId, floor(now/bucketSec)); TTL eviction is lossy
// within one bucket width at the exact boundary, which the spec's Open
// Questions section accepts explicitly.
type BlockCounter struct {
	buckets   *fileStore[model.BlockCounterBucket]
	clock     func() time.Time
	bucketSec int64
}

func newBlockCounter(dir string) (*BlockCounter, error) {
	fs, err := newFileStore[model.BlockCounterBucket](dir, "block_counter")
	if err != nil {
		return nil, err
	}
	return &BlockCounter{buckets: fs, clock: time.Now, bucketSec: 3600}, nil
}

func bucketKey(ruleID string, hourBucket int64) string {
	return ruleID + "|" + time.Unix(hourBucket, 0).UTC().Format(time.RFC3339)
}

func (c *BlockCounter) Increment(ctx context.Context, ruleID string, ttl time.Duration) error {
	now := c.clock()
	bucket := model.BucketFor(now, c.bucketSec)
	key := bucketKey(ruleID, bucket)
	return c.buckets.withLock(func() (bool, error) {
		b := c.buckets.data[key]
		b.RuleID = ruleID
		b.HourBucket = bucket
		b.Count++
		b.ExpiresAt = now.Add(ttl)
		c.buckets.data[key] = b
		return true, nil
	})
}

// Get sums counts for ruleID across buckets not yet expired, within window
// of now. Reads are point-in-time: a bucket with ExpiresAt in the past is
// treated as evicted even if the file on disk hasn't been compacted yet.
func (c *BlockCounter) Get(ctx context.Context, ruleID string, window time.Duration) (int, error) {
	now := c.clock()
	cutoff := now.Add(-window)
	all := c.buckets.snapshot()
	total := 0
	for _, b := range all {
		if b.RuleID != ruleID {
			continue
		}
		if b.ExpiresAt.Before(now) {
			continue
		}
		bucketTime := time.Unix(b.HourBucket*c.bucketSec, 0)
		if bucketTime.Before(cutoff) {
			continue
		}
		total += b.Count
	}
	return total, nil
}
