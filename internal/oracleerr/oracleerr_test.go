package oracleerr

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(KindFPStoreUnavailable, "fp store dial failed", cause)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "FP_STORE_UNAVAILABLE")
}

func TestIsRetryable(t *testing.T) {
	require.True(t, New(KindRateLimited, "slow down").IsRetryable())
	require.True(t, New(KindFPStoreUnavailable, "down").IsRetryable())
	require.False(t, New(KindInvalidInput, "bad mode").IsRetryable())
	require.False(t, New(KindInvariantViolation, "l0 fail").IsRetryable())
}

func TestTriggersDegradedMode(t *testing.T) {
	require.True(t, New(KindBlockCounterUnavailable, "down").TriggersDegradedMode())
	require.False(t, New(KindInvariantViolation, "l0 fail").TriggersDegradedMode())
	require.False(t, New(KindTimeout, "rule timed out").TriggersDegradedMode())
}

func TestKAnonymityDetailsCarryOnlyCount(t *testing.T) {
	err := New(KindKAnonymityNotMet, "fewer than k orgs").WithDetails(map[string]any{"orgCount": 9})
	require.Equal(t, 9, err.Details["orgCount"])
	_, hasOrgIDs := err.Details["orgIds"]
	require.False(t, hasOrgIDs)
}

func TestWriteErrorRendersRFC7807(t *testing.T) {
	err := New(KindInvariantViolation, "schema hash mismatch").WithDetails(map[string]any{"checkId": "L0-001"})
	req := httptest.NewRequest(http.MethodPost, "/analyze", nil)
	rec := httptest.NewRecorder()

	WriteError(rec, req, err)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "INVARIANT_VIOLATION")
	require.Contains(t, rec.Body.String(), "/analyze")
}
