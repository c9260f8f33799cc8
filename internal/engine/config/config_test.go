package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
app:
  name: surge-signal
logger:
  level: info
  encoding: json
scanner:
  top_markets: 20
  min_score: 65
  signal_validity: 2h
signal:
  stop_loss_percent: 4
  take_profit_percent: 9
`

func TestLoad_FileAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "surge-signal", cfg.App.Name)
	assert.Equal(t, 20, cfg.Scanner.TopMarkets)
	assert.Equal(t, 65.0, cfg.Scanner.MinScore)
	assert.Equal(t, 2*time.Hour, cfg.Scanner.SignalValidity)
	assert.Equal(t, 4.0, cfg.Signal.StopLossPercent)
	assert.Equal(t, 9.0, cfg.Signal.TakeProfitPercent)

	// untouched values fall back to defaults
	assert.Equal(t, 5.0, cfg.Signal.WinThresholdPercent)
	assert.Equal(t, 72*time.Hour, cfg.Monitor.MaxHoldingDuration)
	assert.Equal(t, "*/5 * * * *", cfg.Scanner.Schedule)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	cfg.Signal.MinTargetPercent = 20
	assert.Error(t, cfg.Validate())
}
