package oracleconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dissonance-oracle/oracle/internal/oracleconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithNoFileOrEnv(t *testing.T) {
	cfg, err := oracleconfig.Load("")
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Provider)
	assert.Equal(t, 100, cfg.BlockThreshold)
	assert.Equal(t, 3600, cfg.BlockWindowSec)
	assert.Equal(t, 3_600_000, cfg.FPBatchWindowMs)
	assert.Equal(t, 10, cfg.KAnonymity)
	assert.Equal(t, 3_600_000, cfg.NonceMaxAgeMs)
	assert.Equal(t, 0.3, cfg.DriftThreshold)
	assert.Equal(t, 30_000, cfg.RuleTimeoutMs)
}

func TestLoadReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "oracle.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
provider: aws
fpTableName: fp-events
consentTableName: consent-records
blockCounterTableName: block-counts
nonceParameterName: /oracle/nonce
baselineBucket: oracle-baselines
blockThreshold: 50
kAnonymity: 25
`), 0o600))

	cfg, err := oracleconfig.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "aws", cfg.Provider)
	assert.Equal(t, "fp-events", cfg.FPTableName)
	assert.Equal(t, 50, cfg.BlockThreshold)
	assert.Equal(t, 25, cfg.KAnonymity)
	// Untouched keys still fall back to their defaults.
	assert.Equal(t, 3600, cfg.BlockWindowSec)
}

func TestLoadToleratesMissingFile(t *testing.T) {
	cfg, err := oracleconfig.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Provider)
}

func TestEnvOverridesTakePriorityOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "oracle.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: local\nblockThreshold: 50\n"), 0o600))

	t.Setenv("ORACLE_PROVIDER", "gcp")
	t.Setenv("ORACLE_BLOCK_THRESHOLD", "200")
	t.Setenv("ORACLE_DRIFT_THRESHOLD", "0.5")

	cfg, err := oracleconfig.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gcp", cfg.Provider)
	assert.Equal(t, 200, cfg.BlockThreshold)
	assert.Equal(t, 0.5, cfg.DriftThreshold)
}

func TestEnvOverrideRejectsInvalidInt(t *testing.T) {
	t.Setenv("ORACLE_BLOCK_THRESHOLD", "not-a-number")
	_, err := oracleconfig.Load("")
	require.Error(t, err)
}

func TestAdapterConfigProjectsTableNames(t *testing.T) {
	cfg, err := oracleconfig.Load("")
	require.NoError(t, err)
	cfg.FPTableName = "fp"
	cfg.ConsentTableName = "consent"

	adapterCfg := cfg.AdapterConfig()
	assert.Equal(t, "fp", adapterCfg.FPTableName)
	assert.Equal(t, "consent", adapterCfg.ConsentTableName)
}

func TestDurationHelpersConvertMillisAndSeconds(t *testing.T) {
	cfg, err := oracleconfig.Load("")
	require.NoError(t, err)

	assert.Equal(t, float64(cfg.BlockWindowSec), cfg.BlockWindow().Seconds())
	assert.Equal(t, cfg.RuleTimeoutMs, int(cfg.RuleTimeout().Milliseconds()))
	assert.Equal(t, cfg.NonceMaxAgeMs, int(cfg.NonceMaxAge().Milliseconds()))
	assert.Equal(t, cfg.FPBatchWindowMs, int(cfg.FPBatchWindow().Milliseconds()))
}
