package config

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type ExchangeName string

const (
	ExchangeBinance  ExchangeName = "binance"
	ExchangeBitFlyer ExchangeName = "bitflyer"
)

type Config struct {
	Exchange      ExchangeConfig      `yaml:"exchange"`
	Bot           BotConfig           `yaml:"bot"`
	Server        ServerConfig        `yaml:"server"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ExchangeConfig struct {
	Name           ExchangeName `yaml:"name"`
	RestBaseURL    string       `yaml:"rest_base_url"`
	APIKeyName     string       `yaml:"api_keyname"`
	SecretKeyName  string       `yaml:"secret_keyname"`
	RecvWindowMs   int64        `yaml:"recv_window_ms"`
	HTTPTimeoutSec int64        `yaml:"http_timeout_sec"`
}

type BotConfig struct {
	TradeWith    string             `yaml:"trade_with"`
	Rebalance    []RebalanceProfile `yaml:"rebalance"`
	TradingPairs []TradingPair      `yaml:"trading_pairs"`
}

// RebalanceProfile allocates a fraction of the quote balance to an asset when
// a buy arrives without an explicit amount.
type RebalanceProfile struct {
	Asset string  `yaml:"asset"`
	Ratio Decimal `yaml:"ratio"`
}

type TradingPair struct {
	Asset       string `yaml:"asset"`
	Denominator string `yaml:"denominator"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type ObservabilityConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BotToken   string `yaml:"bot_token"`
	ChatID     string `yaml:"chat_id"`
	APIBaseURL string `yaml:"api_base_url"`
	TimeoutSec int64  `yaml:"timeout_sec"`
}

func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return Config{}, fmt.Errorf("config must contain a single YAML document")
		}
		return Config{}, err
	}
	cfg.normalize()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Exchange.Name = ExchangeName(strings.ToLower(strings.TrimSpace(string(c.Exchange.Name))))
	c.Exchange.RestBaseURL = strings.TrimSpace(c.Exchange.RestBaseURL)
	c.Exchange.APIKeyName = strings.TrimSpace(c.Exchange.APIKeyName)
	c.Exchange.SecretKeyName = strings.TrimSpace(c.Exchange.SecretKeyName)
	c.Bot.TradeWith = strings.ToUpper(strings.TrimSpace(c.Bot.TradeWith))
	for i := range c.Bot.Rebalance {
		c.Bot.Rebalance[i].Asset = strings.ToUpper(strings.TrimSpace(c.Bot.Rebalance[i].Asset))
	}
	for i := range c.Bot.TradingPairs {
		c.Bot.TradingPairs[i].Asset = strings.ToUpper(strings.TrimSpace(c.Bot.TradingPairs[i].Asset))
		c.Bot.TradingPairs[i].Denominator = strings.ToUpper(strings.TrimSpace(c.Bot.TradingPairs[i].Denominator))
	}
	c.Server.Addr = strings.TrimSpace(c.Server.Addr)
	c.Observability.Telegram.BotToken = strings.TrimSpace(c.Observability.Telegram.BotToken)
	c.Observability.Telegram.ChatID = strings.TrimSpace(c.Observability.Telegram.ChatID)
	c.Observability.Telegram.APIBaseURL = strings.TrimSpace(c.Observability.Telegram.APIBaseURL)
}

func (c *Config) applyDefaults() {
	if c.Exchange.RestBaseURL == "" {
		switch c.Exchange.Name {
		case ExchangeBinance:
			c.Exchange.RestBaseURL = "https://testnet.binance.vision"
		case ExchangeBitFlyer:
			c.Exchange.RestBaseURL = "https://api.bitflyer.com"
		}
	}
	if c.Exchange.RecvWindowMs == 0 {
		c.Exchange.RecvWindowMs = 5000
	}
	if c.Exchange.HTTPTimeoutSec == 0 {
		c.Exchange.HTTPTimeoutSec = 10
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Observability.Telegram.APIBaseURL == "" {
		c.Observability.Telegram.APIBaseURL = "https://api.telegram.org"
	}
	if c.Observability.Telegram.TimeoutSec == 0 {
		c.Observability.Telegram.TimeoutSec = 10
	}
}

func (c *Config) Validate() error {
	switch c.Exchange.Name {
	case ExchangeBinance, ExchangeBitFlyer:
	case "":
		return fmt.Errorf("exchange.name is required")
	default:
		return fmt.Errorf("unsupported exchange %q", c.Exchange.Name)
	}
	if _, err := url.ParseRequestURI(c.Exchange.RestBaseURL); err != nil {
		return fmt.Errorf("exchange.rest_base_url %q: %w", c.Exchange.RestBaseURL, err)
	}
	if c.Exchange.APIKeyName == "" || c.Exchange.SecretKeyName == "" {
		return fmt.Errorf("exchange.api_keyname and exchange.secret_keyname are required")
	}
	if c.Bot.TradeWith == "" {
		return fmt.Errorf("bot.trade_with is required")
	}
	one := decimal.NewFromInt(1)
	for _, profile := range c.Bot.Rebalance {
		if profile.Asset == "" {
			return fmt.Errorf("bot.rebalance entries need an asset")
		}
		if profile.Ratio.IsNegative() || profile.Ratio.GreaterThan(one) {
			return fmt.Errorf("bot.rebalance ratio for %s must be within [0, 1], got %s", profile.Asset, profile.Ratio.String())
		}
	}
	for _, pair := range c.Bot.TradingPairs {
		if pair.Asset == "" || pair.Denominator == "" {
			return fmt.Errorf("bot.trading_pairs entries need asset and denominator")
		}
	}
	return nil
}
