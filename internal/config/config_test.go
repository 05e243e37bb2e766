package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/cassava-api/internal/model"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "MODEL_PATH", "MODEL_BACKEND", "STORE_DSN", "INTRA_OP_THREADS", "DEBUG", "CONFIDENCE_THRESHOLD"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, model.BackendONNX, cfg.Backend)
	require.Equal(t, "sqlite://data/scans.db", cfg.StoreDSN)
	require.Equal(t, 0.8, cfg.ConfidenceThreshold)
	require.False(t, cfg.Debug)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("MODEL_PATH", "/srv/model.tflite")
	t.Setenv("MODEL_BACKEND", "tflite")
	t.Setenv("INTRA_OP_THREADS", "4")
	t.Setenv("DEBUG", "true")
	t.Setenv("CONFIDENCE_THRESHOLD", "0.9")
	t.Setenv("STORE_DSN", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "9000", cfg.Port)
	require.True(t, cfg.Debug)
	require.Equal(t, 0.9, cfg.ConfidenceThreshold)

	opts := cfg.ModelOptions()
	require.Equal(t, model.BackendTFLite, opts.Backend)
	require.Equal(t, "/srv/model.tflite", opts.ModelPath)
	require.Equal(t, 4, opts.IntraOpThreads)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("INTRA_OP_THREADS", "many")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("INTRA_OP_THREADS", "")
	t.Setenv("CONFIDENCE_THRESHOLD", "1.5")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("CONFIDENCE_THRESHOLD", "0.5")
	_, err = Load()
	require.Error(t, err)
}
