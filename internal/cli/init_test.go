package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billtracker/internal/config"
	"billtracker/internal/log"
)

func TestLoadConfigRejectsInvalidEnvironment(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "not-a-port")
	t.Setenv("SQLITE_DB_PATH", filepath.Join(t.TempDir(), "bills.db"))

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")
}

func TestSetupLoggerFallsBackOnUnknownSettings(t *testing.T) {
	cfg := config.Defaults()
	cfg.LogLevel = "loud"
	cfg.LogFormat = "xml"

	logger := SetupLogger(cfg, log.ComponentWorker)
	require.NotNil(t, logger)
	assert.Equal(t, log.ComponentWorker, logger.Component())
	assert.True(t, logger.Enabled(context.Background(), 0))
}

func TestOpenBackendWithoutAMQP(t *testing.T) {
	cfg := config.Defaults()
	cfg.SQLiteDBPath = filepath.Join(t.TempDir(), "bills.db")
	cfg.AMQPURL = ""

	logger := log.New(log.DefaultConfig())
	res, err := NewBackend(context.Background(), logger, cfg, false)
	require.NoError(t, err)
	defer res.Cleanup()

	assert.Nil(t, res.Events)
	assert.NoError(t, res.Store.Ping(context.Background()))

	_, err = NewBackend(context.Background(), logger, cfg, true)
	assert.Error(t, err)
}
