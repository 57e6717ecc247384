package l0

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func schemaPrefix(schema []byte) string {
	sum := sha256.Sum256(schema)
	return hex.EncodeToString(sum[:4])
}

func TestSchemaHashMatchesAndMismatches(t *testing.T) {
	schema := []byte(`{"type":"object"}`)
	require.True(t, SchemaHash(schema, schemaPrefix(schema)).Passed)
	require.False(t, SchemaHash(schema, "deadbeef").Passed)
}

func TestPermissionBitsReservedAndAllowed(t *testing.T) {
	require.True(t, PermissionBits(0b0010, 0b1000, 0b1111).Passed)
	require.False(t, PermissionBits(0b1010, 0b1000, 0b1111).Passed, "reserved bit set must fail")
	require.False(t, PermissionBits(0b0010, 0b1000, 0b0001).Passed, "bit outside allowed mask must fail")
}

func TestDriftMagnitudeBoundaryAtExactlyThreshold(t *testing.T) {
	// boundary: exactly threshold passes, threshold+epsilon fails
	require.True(t, DriftMagnitude(13, 10, 0.3).Passed, "abs(13-10)/10 == 0.3 must pass")
	require.False(t, DriftMagnitude(13.01, 10, 0.3).Passed)
}

func TestDriftMagnitudeBaselineFloorsAtOne(t *testing.T) {
	require.True(t, DriftMagnitude(1, 0, 0.3).Passed, "abs(1-0)/max(0,1) == 1.0 > 0.3 should fail")
}

func TestNonceFreshnessBoundaryAtExactlyMaxAge(t *testing.T) {
	now := time.Now()
	require.True(t, NonceFreshness(now, now.Add(-time.Hour), time.Hour).Passed)
	require.False(t, NonceFreshness(now, now.Add(-time.Hour-time.Millisecond), time.Hour).Passed)
}

func TestContractionWitnessRequiresBothConditions(t *testing.T) {
	require.True(t, ContractionWitness(0.1, 0.05, 20, 10).Passed)
	require.False(t, ContractionWitness(0.1, 0.2, 20, 10).Passed, "fprAfter > fprBefore must fail")
	require.False(t, ContractionWitness(0.1, 0.05, 5, 10).Passed, "insufficient witness count must fail")
}

func TestEvaluateAuthoritativeProducesBlockInvariantViolation(t *testing.T) {
	in := Input{
		DeclaredSchema:       []byte("schema"),
		ExpectedSchemaPrefix: "deadbeef", // forces a mismatch
		AllowedMask:          0xFF,
	}
	findings := Evaluate(in, true)
	require.NotEmpty(t, findings)
	for _, f := range findings {
		require.Equal(t, "block", string(f.Severity))
		require.Equal(t, "INVARIANT_VIOLATION", f.Metadata["code"])
	}
}

func TestEvaluateAdvisoryProducesWarn(t *testing.T) {
	in := Input{
		DeclaredSchema:       []byte("schema"),
		ExpectedSchemaPrefix: "deadbeef",
		AllowedMask:          0xFF,
	}
	findings := Evaluate(in, false)
	require.NotEmpty(t, findings)
	for _, f := range findings {
		require.Equal(t, "warn", string(f.Severity))
	}
}

func TestEvaluateAllPassingProducesNoFindings(t *testing.T) {
	schema := []byte("schema")
	now := time.Now()
	in := Input{
		DeclaredSchema:       schema,
		ExpectedSchemaPrefix: schemaPrefix(schema),
		AllowedMask:          0xFF,
		DriftCurrent:         10,
		DriftBaseline:        10,
		Now:                  now,
		NonceIssued:          now,
		FPRBefore:            0.1,
		FPRAfter:             0.05,
		WitnessCount:         10,
		MinRequiredEvents:    10,
	}
	require.Empty(t, Evaluate(in, true))
}
