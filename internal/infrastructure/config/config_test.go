package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 3, cfg.MinBraidSize)
	assert.Equal(t, 8, cfg.MaxBraidSize)
	assert.Equal(t, 0.7, cfg.SimilarityThreshold)
	assert.Equal(t, 0.2, cfg.WRes)
	assert.InDelta(t, 15*1000, cfg.LLM.DeadlineMS, 0)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CIL_MIN_BRAID_SIZE", "5")
	t.Setenv("CIL_W_RES", "0.35")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.MinBraidSize)
	assert.Equal(t, 0.35, cfg.WRes)
}

func TestDefaultTimeframeWeights_StrictlyMonotonic(t *testing.T) {
	order := []string{"1m", "5m", "15m", "1h", "4h", "1d"}
	weights := DefaultTimeframeWeights()
	for i := 1; i < len(order); i++ {
		assert.Greater(t, weights[order[i]], weights[order[i-1]])
	}
}
