package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/dissonance-oracle/oracle/internal/logging"
	"github.com/stretchr/testify/require"
)

func TestNewTagsComponentAndRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, logging.LevelWarn)

	logger.Info("should be filtered")
	require.Empty(t, buf.String())

	logger.Warn("visible", "ruleId", "L0-001")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "oracle", line["component"])
	require.Equal(t, "L0-001", line["ruleId"])
	require.Equal(t, slog.LevelWarn.String(), line["level"])
}

func TestNewDefaultsToInfoOnUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, logging.Level("NOT_A_LEVEL"))

	logger.Debug("filtered")
	require.Empty(t, buf.String())

	logger.Info("kept")
	require.NotEmpty(t, buf.String())
}
