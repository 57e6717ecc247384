package breaker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dissonance-oracle/oracle/pkg/model"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: make(map[string]int)}
}

func (f *fakeCounter) Increment(ctx context.Context, ruleID string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[ruleID]++
	return nil
}

func (f *fakeCounter) Get(ctx context.Context, ruleID string, window time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[ruleID], nil
}

func TestBreakerClosedBelowThreshold(t *testing.T) {
	c := newFakeCounter()
	b := New(c, Config{Threshold: 100})
	ctx := context.Background()

	for i := 0; i < 99; i++ {
		require.NoError(t, b.RecordBlock(ctx, "MD-001"))
	}
	open, err := b.Open(ctx, "MD-001")
	require.NoError(t, err)
	require.False(t, open, "99 blocks must keep breaker closed, boundary is threshold-1")
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	c := newFakeCounter()
	b := New(c, Config{Threshold: 100})
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		require.NoError(t, b.RecordBlock(ctx, "MD-001"))
	}
	open, err := b.Open(ctx, "MD-001")
	require.NoError(t, err)
	require.True(t, open)
}

func TestBreakerIsPerRule(t *testing.T) {
	c := newFakeCounter()
	b := New(c, Config{Threshold: 5})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, b.RecordBlock(ctx, "MD-001"))
	}
	openA, err := b.Open(ctx, "MD-001")
	require.NoError(t, err)
	require.True(t, openA)

	openB, err := b.Open(ctx, "MD-002")
	require.NoError(t, err)
	require.False(t, openB, "a noisy rule must not trip another rule's breaker")
}

func TestBreakerRecoversAfterCooldown(t *testing.T) {
	c := newFakeCounter()
	b := New(c, Config{Threshold: 1, Cooldown: time.Millisecond})
	ctx := context.Background()

	require.NoError(t, b.RecordBlock(ctx, "MD-001"))
	open, err := b.Open(ctx, "MD-001")
	require.NoError(t, err)
	require.True(t, open)

	time.Sleep(5 * time.Millisecond)
	c.mu.Lock()
	c.counts["MD-001"] = 0 // simulate the bucket having aged out of the window
	c.mu.Unlock()

	open, err = b.Open(ctx, "MD-001")
	require.NoError(t, err)
	require.False(t, open, "TTL recovery must close the breaker with no manual reset")
}

func TestDemoteSetsWarnAndAnnotation(t *testing.T) {
	f := Demote(model.Finding{Severity: model.SeverityBlock})
	require.Equal(t, model.SeverityWarn, f.Severity)
	require.Equal(t, "circuit_breaker", f.Annotation["demoted_by"])
}
