package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/kalanyuz/gcp-cryptobot/internal/core"
)

// Pricer quotes one unit of an asset in a denominator currency. It must be
// side-effect free: AggregateBalance calls it once per foreign holding.
type Pricer interface {
	GetPrice(ctx context.Context, asset, denominator string) (core.Asset, error)
}

// AggregateBalance drops empty holdings, values every remaining one in the
// denominator currency and sums them into Total. Conversions for distinct
// holdings run concurrently; the reduction waits for all of them. A single
// failed conversion fails the whole aggregation so the total is never partial.
func AggregateBalance(ctx context.Context, pricer Pricer, holdings []core.Asset, denominator string) (core.Balance, error) {
	held := lo.Filter(holdings, func(item core.Asset, _ int) bool {
		return item.Amount.GreaterThan(decimal.Zero)
	})

	values := make([]decimal.Decimal, len(held))
	errs := make([]error, len(held))
	var wg sync.WaitGroup
	for i, item := range held {
		if item.CurrencyCode == denominator {
			values[i] = item.Amount
			continue
		}
		wg.Add(1)
		go func(i int, item core.Asset) {
			defer wg.Done()
			price, err := pricer.GetPrice(ctx, item.CurrencyCode, denominator)
			if err != nil {
				errs[i] = fmt.Errorf("convert %s to %s: %w", item.CurrencyCode, denominator, err)
				return
			}
			values[i] = item.Amount.Mul(price.Amount)
		}(i, item)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return core.Balance{}, errors.Join(core.ErrBalanceUnavailable, err)
	}

	total := decimal.Zero
	for _, value := range values {
		total = total.Add(value)
	}
	return core.Balance{
		Balances: held,
		Total:    core.Asset{Amount: total, CurrencyCode: denominator},
	}, nil
}
