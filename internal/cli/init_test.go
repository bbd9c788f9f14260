package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/log"
)

func TestSetupLogger_JSONFromEnv(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "warn")

	var buf bytes.Buffer
	logger := SetupLogger(log.ComponentCLI, &buf)
	logger.Info("hidden")
	logger.Warn("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, log.ComponentCLI, entry[log.FieldComponent])
}

func TestLoadAndValidateConfig(t *testing.T) {
	logger := log.New(log.Config{Output: &bytes.Buffer{}})

	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("EXPORT_DIR", t.TempDir())
	cfg, err := LoadAndValidateConfig(logger)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.DataBackend)

	t.Setenv("DATA_BACKEND", "sheets")
	_, err = LoadAndValidateConfig(logger)
	assert.Error(t, err)
}

func TestOpenBackend_Memory(t *testing.T) {
	logger := log.New(log.Config{Output: &bytes.Buffer{}})
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("EXPORT_DIR", t.TempDir())
	t.Setenv("AMQP_URL", "")
	cfg, err := LoadAndValidateConfig(logger)
	require.NoError(t, err)

	result, err := OpenBackend(context.Background(), logger, cfg)
	require.NoError(t, err)
	assert.NoError(t, result.Cleanup())
}

func TestGracefulShutdown_ParentCancelRunsCleanup(t *testing.T) {
	logger := log.New(log.Config{Output: &bytes.Buffer{}})
	parent, cancel := context.WithCancel(context.Background())

	cleaned := make(chan struct{})
	ctx, done := GracefulShutdown(parent, logger, time.Second, func() { close(cleaned) })
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not finish")
	}
	assert.Error(t, ctx.Err())
	select {
	case <-cleaned:
	default:
		t.Error("cleanup was not called")
	}
}

func TestGracefulShutdown_Timeout(t *testing.T) {
	logger := log.New(log.Config{Output: &bytes.Buffer{}})
	parent, cancel := context.WithCancel(context.Background())
	block := make(chan struct{})
	defer close(block)

	_, done := GracefulShutdown(parent, logger, 50*time.Millisecond, func() { <-block })
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout did not release shutdown")
	}
}
