package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/kalanyuz/gcp-cryptobot/internal/config"
	"github.com/kalanyuz/gcp-cryptobot/internal/exchange"
	"github.com/kalanyuz/gcp-cryptobot/internal/exchange/binance"
	"github.com/kalanyuz/gcp-cryptobot/internal/exchange/bitflyer"
	"github.com/kalanyuz/gcp-cryptobot/internal/secrets"
)

type checkStatus string

const (
	statusPass checkStatus = "PASS"
	statusFail checkStatus = "FAIL"
)

type checkResult struct {
	Name       string      `json:"name"`
	Status     checkStatus `json:"status"`
	DurationMs int64       `json:"duration_ms"`
	Detail     string      `json:"detail,omitempty"`
	Error      string      `json:"error,omitempty"`
}

type report struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Exchange   string        `json:"exchange"`
	Checks     []checkResult `json:"checks"`
}

func main() {
	var (
		configPath  string
		timeoutSec  int
		outJSONPath string
		asset       string
	)
	flag.StringVar(&configPath, "config", "config/config.yaml", "config yaml path")
	flag.IntVar(&timeoutSec, "timeout-sec", 60, "total timeout seconds")
	flag.StringVar(&outJSONPath, "out-json", "", "optional output report path")
	flag.StringVar(&asset, "asset", "", "asset to quote (defaults to the first configured trading pair)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		fatal(err.Error())
	}
	if timeoutSec < 10 {
		timeoutSec = 10
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
	defer cancel()

	store := secrets.NewEnvStore()
	ex, err := buildExchange(cfg, store)
	if err != nil {
		fatal(err.Error())
	}

	denominator := cfg.Bot.TradeWith
	if asset == "" {
		if len(cfg.Bot.TradingPairs) > 0 {
			asset = cfg.Bot.TradingPairs[0].Asset
			denominator = cfg.Bot.TradingPairs[0].Denominator
		} else {
			asset = "BTC"
		}
	}

	r := report{
		StartedAt: time.Now().UTC(),
		Exchange:  string(cfg.Exchange.Name),
	}

	run := func(name string, fn func() (string, error)) {
		start := time.Now()
		detail, err := fn()
		cr := checkResult{
			Name:       name,
			DurationMs: time.Since(start).Milliseconds(),
			Detail:     detail,
		}
		if err != nil {
			cr.Status = statusFail
			cr.Error = err.Error()
		} else {
			cr.Status = statusPass
		}
		r.Checks = append(r.Checks, cr)
		if cr.Status == statusPass {
			fmt.Printf("[PASS] %s (%dms)", name, cr.DurationMs)
			if cr.Detail != "" {
				fmt.Printf(" - %s", cr.Detail)
			}
			fmt.Println()
		} else {
			fmt.Printf("[FAIL] %s (%dms) - %s\n", name, cr.DurationMs, cr.Error)
		}
	}

	run("credentials_resolve", func() (string, error) {
		if _, err := store.GetSecret(ctx, cfg.Exchange.APIKeyName); err != nil {
			return "", err
		}
		if _, err := store.GetSecret(ctx, cfg.Exchange.SecretKeyName); err != nil {
			return "", err
		}
		return "key material present", nil
	})

	run("ticker_price", func() (string, error) {
		price, err := ex.GetPrice(ctx, asset, denominator)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("pair=%s/%s price=%s", asset, denominator, price.Amount.String()), nil
	})

	run("account_balance", func() (string, error) {
		balance, err := ex.GetBalance(ctx, cfg.Bot.TradeWith)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("holdings=%d total=%s %s", len(balance.Balances), balance.Total.Amount.String(), cfg.Bot.TradeWith), nil
	})

	r.FinishedAt = time.Now().UTC()

	if outJSONPath != "" {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			fatal(err.Error())
		}
		if err := os.WriteFile(outJSONPath, append(data, '\n'), 0o644); err != nil {
			fatal(err.Error())
		}
	}

	for _, cr := range r.Checks {
		if cr.Status == statusFail {
			os.Exit(1)
		}
	}
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

func buildExchange(cfg config.Config, store secrets.Store) (exchange.Exchange, error) {
	switch cfg.Exchange.Name {
	case config.ExchangeBinance:
		return binance.NewClient(cfg, store), nil
	case config.ExchangeBitFlyer:
		return bitflyer.NewClient(cfg, store)
	default:
		return nil, fmt.Errorf("unknown exchange %q", cfg.Exchange.Name)
	}
}
