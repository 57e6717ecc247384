// Package gcp implements the adapter.Bundle interfaces against Cloud
// Storage (FPStore, ConsentStore, BlockCounter, BaselineStorage — every
// entity is one JSON blob, with generation preconditions substituting for
// the conditional-write semantics DynamoDB gets natively) and Secret
// Manager (SecretStore, whose add-new-version model is a closer fit for
// the multi-version nonce design than any single-value KV store).
package gcp

import (
	"context"
	"fmt"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/storage"
	"github.com/dissonance-oracle/oracle/pkg/adapter/resiliency"
)

// defaultRatePerSecond/defaultBurst/defaultMaxRetries/defaultBaseDelay bound
// every store's GCS/Secret Manager calls to the same client-side throttle
// and retry budget, regardless of which bucket/secret they talk to.
const (
	defaultRatePerSecond = 20.0
	defaultBurst         = 10
	defaultMaxRetries    = 3
	defaultBaseDelay     = 100 * time.Millisecond
)

// Config carries the bucket/secret names the spec's configuration table
// requires for the gcp provider.
type Config struct {
	ProjectID      string
	FPBucket       string
	ConsentBucket  string
	CounterBucket  string
	BaselineBucket string
	SecretName     string // projects/<project>/secrets/<name>
}

// Stores bundles the five GCP-backed implementations.
type Stores struct {
	FPStore         *FPStore
	ConsentStore    *ConsentStore
	BlockCounter    *BlockCounter
	SecretStore     *SecretStore
	BaselineStorage *BaselineStorage
}

// New constructs a storage.Client and a secretmanager Client from ambient
// application-default credentials and wires every store against cfg.
func New(ctx context.Context, cfg Config) (*Stores, error) {
	gcs, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("new gcs client: %w", err)
	}
	sm, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("new secretmanager client: %w", err)
	}
	retrier := resiliency.New(defaultRatePerSecond, defaultBurst, defaultMaxRetries, defaultBaseDelay)

	return &Stores{
		FPStore:         &FPStore{bucket: gcs.Bucket(cfg.FPBucket), retrier: retrier},
		ConsentStore:    &ConsentStore{bucket: gcs.Bucket(cfg.ConsentBucket), retrier: retrier},
		BlockCounter:    &BlockCounter{bucket: gcs.Bucket(cfg.CounterBucket), retrier: retrier},
		SecretStore:     &SecretStore{sm: sm, projectID: cfg.ProjectID, secretName: cfg.SecretName, retrier: retrier},
		BaselineStorage: &BaselineStorage{bucket: gcs.Bucket(cfg.BaselineBucket), retrier: retrier},
	}, nil
}
