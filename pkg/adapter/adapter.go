// Package adapter defines the five capability interfaces the oracle core
// depends on — FPStore, ConsentStore, BlockCounter, SecretStore, and
// BaselineStorage — plus the Factory that resolves a concrete bundle for
// provider ∈ {local, aws, gcp}.
//
// Oracle depends on Adapters; Adapters never depend on Oracle. Nothing
// outside an adapter implementation may hold a handle to its internal
// state — callers see only these interfaces.
package adapter

import (
	"context"
	"time"

	"github.com/dissonance-oracle/oracle/pkg/model"
)

// FPStore records and reads back false-positive labeling history.
type FPStore interface {
	// RecordEvent is idempotent on EventID: a duplicate EventID is a no-op,
	// never an error, so retries are safe.
	RecordEvent(ctx context.Context, event model.FPEvent) error
	MarkFalsePositive(ctx context.Context, findingID, reviewer, ticket string) error
	IsFalsePositive(ctx context.Context, findingID string) (bool, error)
	GetWindowByCount(ctx context.Context, ruleID string, n int) (model.Window, error)
	GetWindowBySince(ctx context.Context, ruleID string, since time.Time) (model.Window, error)
}

// ConsentStore resolves and mutates resource-scoped consent with hierarchical
// org -> repo inheritance. Lookup order is exact-repo record, then org
// record, then "not requested".
type ConsentStore interface {
	HasConsent(ctx context.Context, orgID string, resource model.Resource, repoID string) (bool, error)
	GetConsent(ctx context.Context, orgID string, repoID string) (*model.ConsentRecord, error)
	GrantConsent(ctx context.Context, record model.ConsentRecord) error
	RevokeConsent(ctx context.Context, orgID string, resource model.Resource, repoID string) error
}

// BlockCounter tracks bucketed block counts per rule with atomic increments.
type BlockCounter interface {
	Increment(ctx context.Context, ruleID string, ttl time.Duration) error
	Get(ctx context.Context, ruleID string, window time.Duration) (int, error)
}

// SecretStore loads, lists, and rotates HMAC nonce versions. GetNonce
// returns a model.NonceLookup so callers can distinguish "version unknown"
// from "backend unreachable" — never a plain (nil, error) pair.
type SecretStore interface {
	GetNonce(ctx context.Context, version int) (model.NonceLookup, error)
	ListAvailableVersions(ctx context.Context) ([]int, error)
	Rotate(ctx context.Context, newValue string) (int, error)
	IsReachable(ctx context.Context) bool
}

// BaselineStorage persists arbitrary named byte blobs with metadata, used
// for drift baselines.
type BaselineStorage interface {
	Put(ctx context.Context, id string, data []byte, metadata map[string]string) error
	Get(ctx context.Context, id string) ([]byte, map[string]string, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id string) error
}

// Provider identifies which backend bundle to construct.
type Provider string

const (
	ProviderLocal Provider = "local"
	ProviderAWS   Provider = "aws"
	ProviderGCP   Provider = "gcp"
)

// Bundle is the quintuple of adapters the oracle core consumes.
type Bundle struct {
	Provider        Provider
	FPStore         FPStore
	ConsentStore    ConsentStore
	BlockCounter    BlockCounter
	SecretStore     SecretStore
	BaselineStorage BaselineStorage
}
