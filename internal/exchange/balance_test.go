package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/kalanyuz/gcp-cryptobot/internal/core"
)

type stubPricer struct {
	prices map[string]string
	calls  int64
}

func (p *stubPricer) GetPrice(_ context.Context, asset, denominator string) (core.Asset, error) {
	atomic.AddInt64(&p.calls, 1)
	quote, ok := p.prices[asset]
	if !ok {
		return core.Asset{}, fmt.Errorf("%w: no ticker for %s", core.ErrPriceUnavailable, asset)
	}
	return core.Asset{Amount: decimal.RequireFromString(quote), CurrencyCode: denominator}, nil
}

func TestAggregateBalanceSumsConvertedHoldings(t *testing.T) {
	pricer := &stubPricer{prices: map[string]string{
		"BTC": "50000",
		"ETH": "2500",
	}}
	holdings := []core.Asset{
		{CurrencyCode: "BTC", Amount: decimal.RequireFromString("0.5"), Available: decimal.RequireFromString("0.5")},
		{CurrencyCode: "ETH", Amount: decimal.RequireFromString("2"), Available: decimal.RequireFromString("1")},
		{CurrencyCode: "USDT", Amount: decimal.RequireFromString("100"), Available: decimal.RequireFromString("100")},
	}

	balance, err := AggregateBalance(context.Background(), pricer, holdings, "USDT")
	if err != nil {
		t.Fatalf("AggregateBalance() error = %v", err)
	}
	// 0.5*50000 + 2*2500 + 100
	want := decimal.RequireFromString("30100")
	if !balance.Total.Amount.Equal(want) {
		t.Fatalf("total = %s, want %s", balance.Total.Amount.String(), want.String())
	}
	if balance.Total.CurrencyCode != "USDT" {
		t.Fatalf("total currency = %q, want USDT", balance.Total.CurrencyCode)
	}
	if len(balance.Balances) != 3 {
		t.Fatalf("len(balances) = %d, want 3", len(balance.Balances))
	}
	// the denominator holding itself must not trigger a price lookup
	if pricer.calls != 2 {
		t.Fatalf("price lookups = %d, want 2", pricer.calls)
	}
}

func TestAggregateBalanceDropsEmptyHoldings(t *testing.T) {
	pricer := &stubPricer{prices: map[string]string{}}
	holdings := []core.Asset{
		{CurrencyCode: "USDT", Amount: decimal.RequireFromString("42")},
		{CurrencyCode: "DOGE", Amount: decimal.Zero},
		{CurrencyCode: "SHIB", Amount: decimal.RequireFromString("-1")},
	}

	balance, err := AggregateBalance(context.Background(), pricer, holdings, "USDT")
	if err != nil {
		t.Fatalf("AggregateBalance() error = %v", err)
	}
	if len(balance.Balances) != 1 || balance.Balances[0].CurrencyCode != "USDT" {
		t.Fatalf("balances = %+v, want only the USDT holding", balance.Balances)
	}
}

func TestAggregateBalanceFailsWholeOnSingleLookup(t *testing.T) {
	pricer := &stubPricer{prices: map[string]string{"BTC": "50000"}}
	holdings := []core.Asset{
		{CurrencyCode: "BTC", Amount: decimal.RequireFromString("1")},
		{CurrencyCode: "XYZ", Amount: decimal.RequireFromString("10")},
	}

	_, err := AggregateBalance(context.Background(), pricer, holdings, "USDT")
	if !errors.Is(err, core.ErrBalanceUnavailable) {
		t.Fatalf("AggregateBalance() error = %v, want ErrBalanceUnavailable", err)
	}
	if !errors.Is(err, core.ErrPriceUnavailable) {
		t.Fatalf("AggregateBalance() error = %v, want wrapped ErrPriceUnavailable", err)
	}
}
