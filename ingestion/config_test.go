package ingestion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.GreaterOrEqual(t, cfg.WorkerCount, 1)
	assert.Equal(t, 10*1024*1024, cfg.PayloadSizeThreshold)
	assert.Equal(t, 100, cfg.ObjectQueueSize)
	assert.Equal(t, 10, cfg.BatchQueueSize)
	assert.Equal(t, 2*time.Second, cfg.FlushTimeout)
	assert.Equal(t, 1000, cfg.TabularPageSize)
	assert.True(t, cfg.LogUploadErrors)
	assert.True(t, cfg.RaiseOnFailure)
	assert.False(t, cfg.WaitAfterSend)
	assert.Equal(t, "file", cfg.DefaultMethod)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"workers", func(c *Config) { c.WorkerCount = 0 }},
		{"threshold", func(c *Config) { c.PayloadSizeThreshold = 0 }},
		{"object queue", func(c *Config) { c.ObjectQueueSize = 0 }},
		{"batch queue", func(c *Config) { c.BatchQueueSize = -1 }},
		{"flush timeout", func(c *Config) { c.FlushTimeout = 0 }},
		{"page size", func(c *Config) { c.TabularPageSize = 0 }},
		{"shutdown timeout", func(c *Config) { c.ShutdownTimeout = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestOptions_OverrideConfig(t *testing.T) {
	base := DefaultConfig()
	base.WorkerCount = 7

	s, err := newSettings([]Option{
		WithConfig(base),
		WithQueueSizes(3, 2),
		WithName("store"),
		WithLogger(nil),
		WithClassifier(nil),
	})
	require.NoError(t, err)

	assert.Equal(t, 7, s.cfg.WorkerCount)
	assert.Equal(t, 3, s.cfg.ObjectQueueSize)
	assert.Equal(t, 2, s.cfg.BatchQueueSize)
	assert.Equal(t, "store", s.name)
	assert.NotNil(t, s.logger)
	assert.NotNil(t, s.classifier)
}
