// Package l0 implements the five L0 invariant checks: pure, allocation-free
// functions of fixed input size, each expected to run in well under 100ns
// so a full L0 pass never shows up in profiling next to rule evaluation.
//
// Every check returns a Result rather than an error — a failed check is an
// ordinary, expected outcome (most analyses pass all five), not a Go error.
package l0

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"
)

// Code identifies which of the five checks produced a Result.
type Code string

const (
	CodeSchemaHash         Code = "L0-001"
	CodePermissionBits     Code = "L0-002"
	CodeDriftMagnitude     Code = "L0-003"
	CodeNonceFreshness     Code = "L0-004"
	CodeContractionWitness Code = "L0-005"
)

// Result is one check's outcome.
type Result struct {
	Code   Code
	Passed bool
	Reason string
}

const defaultNonceMaxAge = time.Hour
const defaultDriftThreshold = 0.3

// SchemaHash checks that the prefix-8 hex SHA-256 of declaredSchema equals
// expectedPrefix. Comparison is constant-time over the fixed 8-byte prefix
// since a schema hash is not secret but the check must still behave
// uniformly regardless of where a mismatch occurs.
func SchemaHash(declaredSchema []byte, expectedPrefix string) Result {
	sum := sha256.Sum256(declaredSchema)
	got := hex.EncodeToString(sum[:4]) // 4 bytes = 8 hex chars
	ok := len(got) == len(expectedPrefix) && subtle.ConstantTimeCompare([]byte(got), []byte(expectedPrefix)) == 1
	if ok {
		return Result{Code: CodeSchemaHash, Passed: true}
	}
	return Result{Code: CodeSchemaHash, Passed: false, Reason: "schema hash prefix mismatch"}
}

// PermissionBits checks bits against a reserved mask (must be entirely
// clear) and an allowed mask (bits must be a subset of it).
func PermissionBits(bits, reservedMask, allowedMask uint64) Result {
	if bits&reservedMask != 0 {
		return Result{Code: CodePermissionBits, Passed: false, Reason: "reserved bits set"}
	}
	if bits&^allowedMask != 0 {
		return Result{Code: CodePermissionBits, Passed: false, Reason: "bits outside allowed mask"}
	}
	return Result{Code: CodePermissionBits, Passed: true}
}

// DriftMagnitude checks abs(current-baseline)/max(baseline,1) <= threshold.
// threshold <= 0 falls back to the default 0.3 bound from the
// configuration table.
func DriftMagnitude(current, baseline, threshold float64) Result {
	if threshold <= 0 {
		threshold = defaultDriftThreshold
	}
	denom := baseline
	if denom < 1 {
		denom = 1
	}
	diff := current - baseline
	if diff < 0 {
		diff = -diff
	}
	if diff/denom <= threshold {
		return Result{Code: CodeDriftMagnitude, Passed: true}
	}
	return Result{Code: CodeDriftMagnitude, Passed: false, Reason: "drift magnitude exceeds threshold"}
}

// NonceFreshness checks now-issuedAt <= maxAge. maxAge <= 0 falls back to
// the default 1h bound.
func NonceFreshness(now, issuedAt time.Time, maxAge time.Duration) Result {
	if maxAge <= 0 {
		maxAge = defaultNonceMaxAge
	}
	if now.Sub(issuedAt) <= maxAge {
		return Result{Code: CodeNonceFreshness, Passed: true}
	}
	return Result{Code: CodeNonceFreshness, Passed: false, Reason: "nonce older than max age"}
}

// ContractionWitness checks fprAfter <= fprBefore and witnessCount >=
// minRequiredEvents.
func ContractionWitness(fprBefore, fprAfter float64, witnessCount, minRequiredEvents int) Result {
	if fprAfter > fprBefore {
		return Result{Code: CodeContractionWitness, Passed: false, Reason: "fprAfter exceeds fprBefore"}
	}
	if witnessCount < minRequiredEvents {
		return Result{Code: CodeContractionWitness, Passed: false, Reason: "insufficient witness events"}
	}
	return Result{Code: CodeContractionWitness, Passed: true}
}
