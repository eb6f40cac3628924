package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SYMBOLS", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.DryRun)
	assert.Equal(t, []string{"BTC", "ETH", "SOL", "XRP"}, cfg.Symbols)
	assert.Equal(t, "25", cfg.Sizing.BetSize.String())
	assert.Equal(t, 30*time.Second, cfg.Strategy.SignalCooldown)
	assert.Equal(t, []float64{0.10, 0.15, 0.20}, cfg.Strategy.ProgressiveTrigger)
	assert.Equal(t, 15*time.Minute, cfg.Risk.LossCooldown)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SYMBOLS", "btc, eth")
	t.Setenv("BET_SIZE", "10")
	t.Setenv("HEDGE_CONFIRM_SECONDS", "7")
	t.Setenv("LOSS_COOLDOWN_SECONDS", "2m")
	t.Setenv("PROGRESSIVE_TRIGGERS", "0.05,0.1")
	t.Setenv("DRY_RUN", "false")
	t.Setenv("TELEGRAM_CHAT_ID", "12345")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC", "ETH"}, cfg.Symbols)
	assert.Equal(t, "10", cfg.Sizing.BetSize.String())
	assert.Equal(t, 7*time.Second, cfg.Strategy.HedgeConfirm)
	assert.Equal(t, 2*time.Minute, cfg.Risk.LossCooldown)
	assert.Equal(t, []float64{0.05, 0.1}, cfg.Strategy.ProgressiveTrigger)
	assert.False(t, cfg.DryRun)
	assert.Equal(t, int64(12345), cfg.TelegramChatID)
}

func TestLoad_InvalidChatID(t *testing.T) {
	t.Setenv("TELEGRAM_CHAT_ID", "not-a-number")
	_, err := Load()
	assert.ErrorContains(t, err, "TELEGRAM_CHAT_ID")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"no symbols", func(c *Config) { c.Symbols = nil }, "SYMBOLS"},
		{"zero trail", func(c *Config) { c.Sizing.TrailSize = 0 }, "TRAIL_SIZE"},
		{"bad progressive", func(c *Config) { c.Strategy.ProgressiveTrigger = []float64{0.1, 1.5} }, "progressive"},
		{"no workers", func(c *Config) { c.WorkerCount = 0 }, "WORKER_COUNT"},
	}

	require.NoError(t, Default().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}
}

func TestLiveReady(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.LiveReady())
	cfg.WalletPrivateKey = "k"
	cfg.CLOBApiKey = "a"
	cfg.CLOBApiSecret = "s"
	cfg.CLOBPassphrase = "p"
	assert.True(t, cfg.LiveReady())
}
