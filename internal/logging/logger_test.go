package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{name: "nil config", cfg: nil},
		{name: "debug json", cfg: &Config{Level: "debug", Format: "json"}},
		{name: "console", cfg: &Config{Level: "info", Format: "console"}},
		{name: "bad level", cfg: &Config{Level: "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
		})
	}
}

func TestContextFields(t *testing.T) {
	ctx := WithSessionID(context.Background(), "sess-1")
	ctx = WithCorrelationID(ctx, "corr-9")

	fields := ContextFields(ctx)
	require.Len(t, fields, 2)
	assert.Equal(t, "session_id", fields[0].Key)
	assert.Equal(t, "correlation_id", fields[1].Key)

	assert.Empty(t, ContextFields(context.Background()))
}

func TestLogger_AttachesContextFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := FromZap(zap.New(core))

	ctx := WithSessionID(context.Background(), "sess-42")
	logger.Info(ctx, "stage advanced", zap.String("stage", "execution"))

	entries := logs.All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	assert.Equal(t, "sess-42", fields["session_id"])
	assert.Equal(t, "execution", fields["stage"])
}

func TestLogger_With(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := FromZap(zap.New(core)).With(zap.String("component", "gateway"))

	logger.Debug(context.Background(), "admitted")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "gateway", entries[0].ContextMap()["component"])
}
