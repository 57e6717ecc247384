// Package redactor implements nonce-keyed, constant-time redaction of
// sensitive spans. A span is never stored or transmitted in the clear once
// redacted: only its HMAC brand, the nonce version that produced it, its
// capability tag, and the MAC length travel with the report.
package redactor

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/dissonance-oracle/oracle/internal/oracleerr"
)

// Span is a redacted plaintext: the brand replaces the plaintext in any
// persisted or transmitted artifact.
type Span struct {
	Brand   string `json:"brand"` // hex-encoded HMAC-SHA256
	Version int    `json:"version"`
	Tag     Tag    `json:"tag"`
	MACLen  int    `json:"macLen"`
}

// Redactor redacts plaintext spans and later validates a brand against the
// plaintext it was supposedly derived from, without ever needing to store
// the plaintext itself.
type Redactor struct {
	cache *nonceCache
}

// New constructs a Redactor backed by store, caching nonce versions for ttl
// (default 15m per spec §4.2) before refetching.
func New(store adapterSecretStore, ttl time.Duration) *Redactor {
	return &Redactor{cache: newNonceCache(store, ttl)}
}

func brand(nonceValue string, tag Tag, plaintext string) []byte {
	mac := hmac.New(sha256.New, []byte(nonceValue))
	mac.Write([]byte(tag))
	mac.Write([]byte(plaintext))
	return mac.Sum(nil)
}

// Redact computes the HMAC brand for plaintext under the given tag, using
// the highest currently loaded nonce version. Fails closed
// (KindSecretStoreUnavailable) if no nonce version is loaded at all.
func (r *Redactor) Redact(ctx context.Context, plaintext string, tag Tag) (Span, error) {
	nonce, ok := r.cache.Active(ctx)
	if !ok {
		return Span{}, oracleerr.New(oracleerr.KindSecretStoreUnavailable, "redact: no nonce version loaded")
	}
	mac := brand(nonce.Value, tag, plaintext)
	return Span{
		Brand:   hex.EncodeToString(mac),
		Version: nonce.Version,
		Tag:     tag,
		MACLen:  len(mac),
	}, nil
}

// Validate recomputes the MAC for plaintext against span.Tag under every
// currently loaded nonce version and compares in constant time, accepting
// if any version matches. This is what makes the grace-period invariant
// hold: a span redacted under version v still validates as long as v
// remains in the loaded set, regardless of which version is now active.
func (r *Redactor) Validate(ctx context.Context, span Span, plaintext string) (bool, error) {
	loaded := r.cache.Loaded(ctx)
	if len(loaded) == 0 {
		return false, oracleerr.New(oracleerr.KindSecretStoreUnavailable, "validate: no nonce version loaded")
	}
	want, err := hex.DecodeString(span.Brand)
	if err != nil {
		return false, oracleerr.New(oracleerr.KindInvalidInput, "validate: malformed brand encoding")
	}
	for _, nonce := range loaded {
		got := brand(nonce.Value, span.Tag, plaintext)
		if len(got) == len(want) && subtle.ConstantTimeCompare(got, want) == 1 {
			return true, nil
		}
	}
	return false, nil
}

// IsReachable reports whether the backing SecretStore was reached on the
// most recent refresh; false with a non-empty cache means degraded
// cache-only mode.
func (r *Redactor) IsReachable() bool {
	return r.cache.IsReachable()
}

// Rotate adds a new nonce version via the backing store and forces an
// immediate cache refresh so the new version is usable right away.
func (r *Redactor) Rotate(ctx context.Context, newValue string) (int, error) {
	v, err := r.cache.store.Rotate(ctx, newValue)
	if err != nil {
		return 0, oracleerr.Wrap(oracleerr.KindSecretStoreUnavailable, "rotate nonce", err)
	}
	r.cache.mu.Lock()
	r.cache.lastRefresh = time.Time{}
	r.cache.mu.Unlock()
	return v, nil
}
