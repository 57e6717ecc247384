// Package oracleconfig loads the oracle's configuration table from a YAML
// file with environment-variable overrides, matching spec §6's enumerated
// keys and defaults.
package oracleconfig

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dissonance-oracle/oracle/pkg/adapter"
)

const (
	defaultBlockThreshold  = 100
	defaultBlockWindowSec  = 3600
	defaultFPBatchWindowMs = 3_600_000
	defaultKAnonymity      = 10
	defaultNonceMaxAgeMs   = 3_600_000
	defaultDriftThreshold  = 0.3
	defaultRuleTimeoutMs   = 30_000
)

// Config is the full configuration table from spec §6, file("yaml")- and
// env-var-overridable.
type Config struct {
	Provider string `yaml:"provider"`

	DataDir string `yaml:"dataDir"`

	// LocalBackend selects the local provider's storage engine: "file"
	// (default), "sqlite" for queryable FP/consent history, or "postgres"
	// for the same history shared across instances.
	LocalBackend string `yaml:"localBackend"`

	// PostgresDSN is the lib/pq connection string used when LocalBackend
	// is "postgres".
	PostgresDSN string `yaml:"postgresDsn"`

	// RedisAddr, when set, moves the BlockCounter onto a shared Redis
	// instance regardless of LocalBackend, for multi-replica deployments.
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDb"`

	FPTableName           string `yaml:"fpTableName"`
	ConsentTableName      string `yaml:"consentTableName"`
	BlockCounterTableName string `yaml:"blockCounterTableName"`
	NonceParameterName    string `yaml:"nonceParameterName"`
	BaselineBucket        string `yaml:"baselineBucket"`

	AWSRegion    string `yaml:"awsRegion"`
	GCPProjectID string `yaml:"gcpProjectId"`

	// TelemetryEnabled turns on OTLP trace/metric export for rule
	// evaluation spans; OTLPEndpoint is the collector address (e.g.
	// "localhost:4317"). Telemetry is off by default — a hosting
	// deployment opts in once it has a collector to send to.
	TelemetryEnabled bool   `yaml:"telemetryEnabled"`
	OTLPEndpoint     string `yaml:"otlpEndpoint"`

	// ActorJWTSecret, when set, verifies the HS256 signature on a bearer
	// token carried in AnalysisContext.Actor. Empty means claims are
	// parsed but not signature-checked — fine, since actor identity here
	// is never used for an authorization decision.
	ActorJWTSecret string `yaml:"actorJwtSecret"`

	BlockThreshold  int     `yaml:"blockThreshold"`
	BlockWindowSec  int     `yaml:"blockWindowSec"`
	FPBatchWindowMs int     `yaml:"fpBatchWindowMs"`
	KAnonymity      int     `yaml:"kAnonymity"`
	NonceMaxAgeMs   int     `yaml:"nonceMaxAgeMs"`
	DriftThreshold  float64 `yaml:"driftThreshold"`
	RuleTimeoutMs   int     `yaml:"ruleTimeoutMs"`
}

// envOverrides lists the ORACLE_-prefixed environment variables that
// override a matching YAML key, checked after the file is loaded so a
// deployment can tune one value without forking the whole file.
var envOverrides = map[string]func(*Config, string) error{
	"ORACLE_PROVIDER":                 func(c *Config, v string) error { c.Provider = v; return nil },
	"ORACLE_DATA_DIR":                 func(c *Config, v string) error { c.DataDir = v; return nil },
	"ORACLE_LOCAL_BACKEND":            func(c *Config, v string) error { c.LocalBackend = v; return nil },
	"ORACLE_POSTGRES_DSN":             func(c *Config, v string) error { c.PostgresDSN = v; return nil },
	"ORACLE_REDIS_ADDR":               func(c *Config, v string) error { c.RedisAddr = v; return nil },
	"ORACLE_REDIS_PASSWORD":           func(c *Config, v string) error { c.RedisPassword = v; return nil },
	"ORACLE_REDIS_DB":                 intOverride(func(c *Config) *int { return &c.RedisDB }),
	"ORACLE_FP_TABLE_NAME":            func(c *Config, v string) error { c.FPTableName = v; return nil },
	"ORACLE_CONSENT_TABLE_NAME":       func(c *Config, v string) error { c.ConsentTableName = v; return nil },
	"ORACLE_BLOCK_COUNTER_TABLE_NAME": func(c *Config, v string) error { c.BlockCounterTableName = v; return nil },
	"ORACLE_NONCE_PARAMETER_NAME":     func(c *Config, v string) error { c.NonceParameterName = v; return nil },
	"ORACLE_BASELINE_BUCKET":          func(c *Config, v string) error { c.BaselineBucket = v; return nil },
	"ORACLE_AWS_REGION":               func(c *Config, v string) error { c.AWSRegion = v; return nil },
	"ORACLE_GCP_PROJECT_ID":           func(c *Config, v string) error { c.GCPProjectID = v; return nil },
	"ORACLE_TELEMETRY_ENABLED": func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ORACLE_TELEMETRY_ENABLED: %w", err)
		}
		c.TelemetryEnabled = b
		return nil
	},
	"ORACLE_OTLP_ENDPOINT":      func(c *Config, v string) error { c.OTLPEndpoint = v; return nil },
	"ORACLE_ACTOR_JWT_SECRET":   func(c *Config, v string) error { c.ActorJWTSecret = v; return nil },
	"ORACLE_BLOCK_THRESHOLD":    intOverride(func(c *Config) *int { return &c.BlockThreshold }),
	"ORACLE_BLOCK_WINDOW_SEC":   intOverride(func(c *Config) *int { return &c.BlockWindowSec }),
	"ORACLE_FP_BATCH_WINDOW_MS": intOverride(func(c *Config) *int { return &c.FPBatchWindowMs }),
	"ORACLE_K_ANONYMITY":        intOverride(func(c *Config) *int { return &c.KAnonymity }),
	"ORACLE_NONCE_MAX_AGE_MS":   intOverride(func(c *Config) *int { return &c.NonceMaxAgeMs }),
	"ORACLE_RULE_TIMEOUT_MS":    intOverride(func(c *Config) *int { return &c.RuleTimeoutMs }),
	"ORACLE_DRIFT_THRESHOLD": func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("ORACLE_DRIFT_THRESHOLD: %w", err)
		}
		c.DriftThreshold = f
		return nil
	},
}

func intOverride(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid int override %q: %w", v, err)
		}
		*field(c) = n
		return nil
	}
}

// Load reads path (if non-empty and present) as YAML, applies defaults for
// any zero-valued tunable, then applies ORACLE_-prefixed env overrides.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyDefaults(&cfg)

	for env, apply := range envOverrides {
		v, ok := os.LookupEnv(env)
		if !ok {
			continue
		}
		if err := apply(&cfg, v); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Provider == "" {
		cfg.Provider = string(adapter.ProviderLocal)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.LocalBackend == "" {
		cfg.LocalBackend = "file"
	}
	if cfg.BlockThreshold <= 0 {
		cfg.BlockThreshold = defaultBlockThreshold
	}
	if cfg.BlockWindowSec <= 0 {
		cfg.BlockWindowSec = defaultBlockWindowSec
	}
	if cfg.FPBatchWindowMs <= 0 {
		cfg.FPBatchWindowMs = defaultFPBatchWindowMs
	}
	if cfg.KAnonymity <= 0 {
		cfg.KAnonymity = defaultKAnonymity
	}
	if cfg.NonceMaxAgeMs <= 0 {
		cfg.NonceMaxAgeMs = defaultNonceMaxAgeMs
	}
	if cfg.DriftThreshold <= 0 {
		cfg.DriftThreshold = defaultDriftThreshold
	}
	if cfg.RuleTimeoutMs <= 0 {
		cfg.RuleTimeoutMs = defaultRuleTimeoutMs
	}
}

// AdapterConfig projects the table's provider/table-name fields into
// adapter.Config, the shape the factory actually consumes.
func (c Config) AdapterConfig() adapter.Config {
	return adapter.Config{
		Provider:              adapter.Provider(c.Provider),
		DataDir:               c.DataDir,
		LocalBackend:          c.LocalBackend,
		PostgresDSN:           c.PostgresDSN,
		RedisAddr:             c.RedisAddr,
		RedisPassword:         c.RedisPassword,
		RedisDB:               c.RedisDB,
		FPTableName:           c.FPTableName,
		ConsentTableName:      c.ConsentTableName,
		BlockCounterTableName: c.BlockCounterTableName,
		NonceParameterName:    c.NonceParameterName,
		BaselineBucket:        c.BaselineBucket,
		AWSRegion:             c.AWSRegion,
		GCPProjectID:          c.GCPProjectID,
	}
}

// BlockWindow is BlockWindowSec as a time.Duration.
func (c Config) BlockWindow() time.Duration {
	return time.Duration(c.BlockWindowSec) * time.Second
}

// RuleTimeout is RuleTimeoutMs as a time.Duration.
func (c Config) RuleTimeout() time.Duration {
	return time.Duration(c.RuleTimeoutMs) * time.Millisecond
}

// NonceMaxAge is NonceMaxAgeMs as a time.Duration.
func (c Config) NonceMaxAge() time.Duration {
	return time.Duration(c.NonceMaxAgeMs) * time.Millisecond
}

// FPBatchWindow is FPBatchWindowMs as a time.Duration.
func (c Config) FPBatchWindow() time.Duration {
	return time.Duration(c.FPBatchWindowMs) * time.Millisecond
}
