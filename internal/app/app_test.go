package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/khrees2412/callscreen/internal/config"
	"github.com/khrees2412/callscreen/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		DatabasePath:        filepath.Join(dir, "callscreen.db"),
		Timezone:            "UTC",
		AIProvider:          "openai", // no key, so the model is skipped
		WorkerInterval:      time.Second,
		WorkerMaxConcurrent: 1,
		QueueMaxAttempts:    2,
		IVRMaxRetries:       2,
		LogLevel:            "error",
	}
}

func TestNewWithoutOptionalServices(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	assert.IsType(t, events.Noop{}, a.Events)
	assert.NotNil(t, a.Server)
	assert.Equal(t, time.UTC, a.Store.Location())

	assert.False(t, a.Worker.Status().Running)

	// Calls fail until telephony is configured
	_, err = newDialer(a.Config, a.Logger).Dial(context.Background(), "+15550001", "s")
	assert.ErrorContains(t, err, "telephony not configured")
}

func TestNewRejectsBadTimezone(t *testing.T) {
	cfg := testConfig(t)
	cfg.Timezone = "Mars/Olympus"
	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "invalid timezone")
}

func TestContext(t *testing.T) {
	_, err := FromContext(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)

	a := &App{}
	got, err := FromContext(WithApp(context.Background(), a))
	require.NoError(t, err)
	assert.Same(t, a, got)
}
