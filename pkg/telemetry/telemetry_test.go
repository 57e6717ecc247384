package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.Equal(t, "dissonance-oracle", config.ServiceName)
	require.Equal(t, "development", config.Environment)
	require.Equal(t, "localhost:4317", config.OTLPEndpoint)
	require.Equal(t, 1.0, config.SampleRate)
	require.True(t, config.Enabled)
	require.False(t, config.Insecure)
}

func TestNewDisabledIsNoop(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, &Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, p)

	// every Track call must be safe on a disabled provider
	_, done := p.TrackRule(ctx, "MD-001")
	done(nil)
	done2Ctx, done2 := p.TrackRule(ctx, "MD-002")
	_ = done2Ctx
	done2(errors.New("boom"))

	require.NoError(t, p.Shutdown(ctx))
}

func TestTrackRuleMeasuresDuration(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, &Config{Enabled: false})
	require.NoError(t, err)

	start := time.Now()
	_, done := p.TrackRule(ctx, "MD-003")
	time.Sleep(time.Millisecond)
	done(nil)
	require.Greater(t, time.Since(start), time.Duration(0))
}
