// Package breaker implements the oracle's per-rule circuit breaker: a
// count-and-TTL state machine with no half-open state. Cost of a
// wrong-direction probe in this domain is high (a probe that looks "safe"
// just means one more unvalidated block slipped through as warn), so
// recovery is pure TTL expiry rather than a trial request.
package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/dissonance-oracle/oracle/pkg/model"
)

const (
	defaultThreshold = 100
	defaultWindow    = time.Hour
	defaultCooldown  = time.Hour
	defaultBucketTTL = time.Hour
)

// counter mirrors adapter.BlockCounter; declared locally so this package
// has no import-time dependency on pkg/adapter.
type counter interface {
	Increment(ctx context.Context, ruleID string, ttl time.Duration) error
	Get(ctx context.Context, ruleID string, window time.Duration) (int, error)
}

// Breaker is per-rule: state for one ruleId never affects another, so one
// noisy rule can't degrade the whole oracle.
type Breaker struct {
	counter   counter
	threshold int
	window    time.Duration
	cooldown  time.Duration

	mu       sync.Mutex
	openedAt map[string]time.Time // ruleId -> last time it was observed open
}

// Config holds the breaker's tunables, all defaulted per spec §4.6 when
// zero.
type Config struct {
	Threshold int
	Window    time.Duration
	Cooldown  time.Duration
}

func New(c counter, cfg Config) *Breaker {
	b := &Breaker{
		counter:   c,
		threshold: cfg.Threshold,
		window:    cfg.Window,
		cooldown:  cfg.Cooldown,
		openedAt:  make(map[string]time.Time),
	}
	if b.threshold <= 0 {
		b.threshold = defaultThreshold
	}
	if b.window <= 0 {
		b.window = defaultWindow
	}
	if b.cooldown <= 0 {
		b.cooldown = defaultCooldown
	}
	return b
}

// RecordBlock increments ruleID's bucketed block count. Callers call this
// once per block-severity finding that is about to be emitted, before
// checking Open.
func (b *Breaker) RecordBlock(ctx context.Context, ruleID string) error {
	return b.counter.Increment(ctx, ruleID, defaultBucketTTL)
}

// Open reports whether ruleID's breaker is currently tripped: either the
// block count within the window is at or above threshold, or it was
// tripped within the last cooldown period (TTL-based recovery — no
// half-open probe).
func (b *Breaker) Open(ctx context.Context, ruleID string) (bool, error) {
	b.mu.Lock()
	openedAt, wasOpen := b.openedAt[ruleID]
	b.mu.Unlock()

	if wasOpen && time.Since(openedAt) < b.cooldown {
		return true, nil
	}

	count, err := b.counter.Get(ctx, ruleID, b.window)
	if err != nil {
		return false, err
	}
	if count < b.threshold {
		if wasOpen {
			b.mu.Lock()
			delete(b.openedAt, ruleID)
			b.mu.Unlock()
		}
		return false, nil
	}

	b.mu.Lock()
	b.openedAt[ruleID] = time.Now()
	b.mu.Unlock()
	return true, nil
}

// Demote applies the breaker's block->warn downgrade and degradedMode
// annotation to a finding, per spec §4.6. Only called when Open returns
// true for the finding's rule.
func Demote(f model.Finding) model.Finding {
	return f.Demote(model.SeverityWarn, "circuit_breaker")
}
