package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
exchange:
  api_key: k
  api_secret: s
trading:
  symbol: BTCUSDT
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.App.Env)
	assert.Equal(t, ":9991", cfg.App.HTTPAddr)
	assert.Equal(t, "binance", cfg.Exchange.Name)
	assert.Equal(t, 15, cfg.Exchange.TimeoutSeconds)
	assert.Equal(t, "15m", cfg.Trading.Interval)
	assert.Equal(t, 10, cfg.Trading.Leverage)
	assert.True(t, cfg.Trading.IsolatedMargin)
	assert.Equal(t, 0.01, cfg.Risk.RiskPerTrade)
	assert.Equal(t, 0.05, cfg.Risk.MaxDailyLossPct)
	assert.Equal(t, "ema_cross", cfg.Strategy.Name)
}

func TestLoadMergesIncludes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
exchange:
  api_key: k
  api_secret: s
trading:
  symbol: BTCUSDT
  leverage: 5
`)
	path := writeFile(t, dir, "config.yaml", `
include:
  - base.yaml
trading:
  leverage: 20
risk:
  risk_per_trade: 0.02
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", cfg.Trading.Symbol)
	assert.Equal(t, 20, cfg.Trading.Leverage)
	assert.Equal(t, 0.02, cfg.Risk.RiskPerTrade)
}

func TestLoadDetectsIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "include:\n  - b.yaml\n")
	writeFile(t, dir, "b.yaml", "include:\n  - a.yaml\n")

	_, err := Load(filepath.Join(dir, "a.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "include cycle")
}

func TestLoadRejectsMissingCredentials(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
trading:
  symbol: BTCUSDT
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}

func TestExplicitZeroSurvivesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
exchange:
  api_key: k
  api_secret: s
trading:
  symbol: BTCUSDT
  run_immediately: false
  isolated_margin: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Trading.RunImmediately)
	assert.False(t, cfg.Trading.IsolatedMargin)
}
