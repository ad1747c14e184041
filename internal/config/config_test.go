package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfgPath := writeTempConfig(t, `
exchange:
  name: binance
  api_keyname: BINANCE_API_KEY
  secret_keyname: BINANCE_API_SECRET

bot:
  trade_with: usdt
  rebalance:
    - asset: btc
      ratio: "0.7"
  trading_pairs:
    - asset: BTC
      denominator: USDT
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Exchange.RestBaseURL != "https://testnet.binance.vision" {
		t.Fatalf("exchange.rest_base_url = %q, want binance testnet default", cfg.Exchange.RestBaseURL)
	}
	if cfg.Exchange.HTTPTimeoutSec != 10 {
		t.Fatalf("exchange.http_timeout_sec = %d, want 10", cfg.Exchange.HTTPTimeoutSec)
	}
	if cfg.Exchange.RecvWindowMs != 5000 {
		t.Fatalf("exchange.recv_window_ms = %d, want 5000", cfg.Exchange.RecvWindowMs)
	}
	if cfg.Bot.TradeWith != "USDT" {
		t.Fatalf("bot.trade_with = %q, want uppercased USDT", cfg.Bot.TradeWith)
	}
	if cfg.Bot.Rebalance[0].Asset != "BTC" {
		t.Fatalf("bot.rebalance[0].asset = %q, want BTC", cfg.Bot.Rebalance[0].Asset)
	}
	if !cfg.Bot.Rebalance[0].Ratio.Equal(decimal.RequireFromString("0.7")) {
		t.Fatalf("bot.rebalance[0].ratio = %s, want 0.7", cfg.Bot.Rebalance[0].Ratio.String())
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("server.addr = %q, want :8080", cfg.Server.Addr)
	}
}

func TestLoadRejectsUnknownExchange(t *testing.T) {
	cfgPath := writeTempConfig(t, `
exchange:
  name: kraken
  api_keyname: K
  secret_keyname: S

bot:
  trade_with: USD
`)
	if _, err := Load(cfgPath); err == nil || !strings.Contains(err.Error(), "unsupported exchange") {
		t.Fatalf("Load() error = %v, want unsupported exchange", err)
	}
}

func TestLoadRejectsRatioOutOfRange(t *testing.T) {
	cfgPath := writeTempConfig(t, `
exchange:
  name: bitflyer
  api_keyname: K
  secret_keyname: S

bot:
  trade_with: JPY
  rebalance:
    - asset: BTC
      ratio: "1.5"
`)
	if _, err := Load(cfgPath); err == nil || !strings.Contains(err.Error(), "within [0, 1]") {
		t.Fatalf("Load() error = %v, want ratio range error", err)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	cfgPath := writeTempConfig(t, `
exchange:
  name: binance
  api_keyname: K
  secret_keyname: S
  typo_field: true

bot:
  trade_with: USDT
`)
	if _, err := Load(cfgPath); err == nil {
		t.Fatalf("Load() error = nil, want unknown field error")
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
