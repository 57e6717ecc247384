package adapter

import (
	"context"
	"fmt"

	"github.com/dissonance-oracle/oracle/internal/oracleerr"
	"github.com/dissonance-oracle/oracle/pkg/adapter/aws"
	"github.com/dissonance-oracle/oracle/pkg/adapter/gcp"
	"github.com/dissonance-oracle/oracle/pkg/adapter/local"
)

// Config is the subset of oracle configuration the factory needs to
// validate and construct a Bundle.
type Config struct {
	Provider Provider

	// Local
	DataDir string

	// LocalBackend selects the local provider's storage engine for
	// FPStore/ConsentStore: "file" (default), "sqlite" for queryable history
	// via modernc.org/sqlite, or "postgres" for the same queryable history
	// shared across instances via lib/pq. Ignored for non-local providers.
	LocalBackend string

	// PostgresDSN is the lib/pq connection string used when LocalBackend is
	// "postgres". Required in that case, ignored otherwise.
	PostgresDSN string

	// RedisAddr, when set, replaces the local provider's file/sqlite/postgres
	// BlockCounter with one backed by a shared Redis instance — so the
	// circuit breaker's block count is consistent across every oracle
	// replica instead of being per-process. Orthogonal to LocalBackend.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Non-local table/parameter/bucket names, required per spec §6.
	FPTableName           string
	ConsentTableName      string
	BlockCounterTableName string
	NonceParameterName    string
	BaselineBucket        string

	// AWS-specific.
	AWSRegion string

	// GCP-specific.
	GCPProjectID string
}

// New resolves config.Provider and returns the fully constructed Bundle.
// Unknown provider or missing required config fails eagerly — no adapter is
// partially constructed.
func New(config Config) (*Bundle, error) {
	switch config.Provider {
	case ProviderLocal, "":
		return newLocal(config)
	case ProviderAWS:
		return newAWS(config)
	case ProviderGCP:
		return newGCP(config)
	default:
		return nil, oracleerr.New(oracleerr.KindInvalidInput, fmt.Sprintf("unknown adapter provider %q", config.Provider))
	}
}

func newLocal(config Config) (*Bundle, error) {
	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "./data"
	}

	var bundle *Bundle
	switch {
	case config.LocalBackend == "sqlite":
		stores, err := local.NewSQLite(dataDir)
		if err != nil {
			return nil, err
		}
		bundle = &Bundle{
			Provider:        ProviderLocal,
			FPStore:         stores.FPStore,
			ConsentStore:    stores.ConsentStore,
			BlockCounter:    stores.BlockCounter,
			SecretStore:     stores.SecretStore,
			BaselineStorage: stores.BaselineStorage,
		}
	case config.LocalBackend == "postgres":
		if config.PostgresDSN == "" {
			return nil, oracleerr.New(oracleerr.KindInvalidInput, "postgres local backend requires postgresDsn")
		}
		stores, err := local.NewPostgres(context.Background(), dataDir, config.PostgresDSN)
		if err != nil {
			return nil, err
		}
		bundle = &Bundle{
			Provider:        ProviderLocal,
			FPStore:         stores.FPStore,
			ConsentStore:    stores.ConsentStore,
			BlockCounter:    stores.BlockCounter,
			SecretStore:     stores.SecretStore,
			BaselineStorage: stores.BaselineStorage,
		}
	default:
		stores, err := local.New(dataDir)
		if err != nil {
			return nil, err
		}
		bundle = &Bundle{
			Provider:        ProviderLocal,
			FPStore:         stores.FPStore,
			ConsentStore:    stores.ConsentStore,
			BlockCounter:    stores.BlockCounter,
			SecretStore:     stores.SecretStore,
			BaselineStorage: stores.BaselineStorage,
		}
	}

	if config.RedisAddr != "" {
		bundle.BlockCounter = local.NewRedisBlockCounter(config.RedisAddr, config.RedisPassword, config.RedisDB)
	}
	return bundle, nil
}

func requireNonLocal(config Config) error {
	missing := make([]string, 0, 5)
	if config.FPTableName == "" {
		missing = append(missing, "fpTableName")
	}
	if config.ConsentTableName == "" {
		missing = append(missing, "consentTableName")
	}
	if config.BlockCounterTableName == "" {
		missing = append(missing, "blockCounterTableName")
	}
	if config.NonceParameterName == "" {
		missing = append(missing, "nonceParameterName")
	}
	if config.BaselineBucket == "" {
		missing = append(missing, "baselineBucket")
	}
	if len(missing) > 0 {
		return oracleerr.New(oracleerr.KindInvalidInput, fmt.Sprintf("missing required config for non-local provider: %v", missing))
	}
	return nil
}

func newAWS(config Config) (*Bundle, error) {
	if err := requireNonLocal(config); err != nil {
		return nil, err
	}
	stores, err := aws.New(aws.Config{
		Region:                config.AWSRegion,
		FPTableName:           config.FPTableName,
		ConsentTableName:      config.ConsentTableName,
		BlockCounterTableName: config.BlockCounterTableName,
		NonceParameterName:    config.NonceParameterName,
		BaselineBucket:        config.BaselineBucket,
	})
	if err != nil {
		return nil, err
	}
	return &Bundle{
		Provider:        ProviderAWS,
		FPStore:         stores.FPStore,
		ConsentStore:    stores.ConsentStore,
		BlockCounter:    stores.BlockCounter,
		SecretStore:     stores.SecretStore,
		BaselineStorage: stores.BaselineStorage,
	}, nil
}

func newGCP(config Config) (*Bundle, error) {
	if err := requireNonLocal(config); err != nil {
		return nil, err
	}
	// The config table's *TableName/*ParameterName fields are AWS-flavored
	// names for the same logical identifiers; on GCP they name GCS buckets
	// and the Secret Manager resource instead of DynamoDB tables.
	stores, err := gcp.New(context.Background(), gcp.Config{
		ProjectID:      config.GCPProjectID,
		FPBucket:       config.FPTableName,
		ConsentBucket:  config.ConsentTableName,
		CounterBucket:  config.BlockCounterTableName,
		BaselineBucket: config.BaselineBucket,
		SecretName:     config.NonceParameterName,
	})
	if err != nil {
		return nil, err
	}
	return &Bundle{
		Provider:        ProviderGCP,
		FPStore:         stores.FPStore,
		ConsentStore:    stores.ConsentStore,
		BlockCounter:    stores.BlockCounter,
		SecretStore:     stores.SecretStore,
		BaselineStorage: stores.BaselineStorage,
	}, nil
}
