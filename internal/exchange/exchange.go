package exchange

import (
	"context"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/kalanyuz/gcp-cryptobot/internal/config"
	"github.com/kalanyuz/gcp-cryptobot/internal/core"
)

// Exchange is the capability set every venue adapter implements. Amounts are
// optional on Buy/Sell; adapters derive them from the account balance and the
// configured rebalance profiles when absent.
type Exchange interface {
	Name() string
	GetPrice(ctx context.Context, asset, denominator string) (core.Asset, error)
	GetBalance(ctx context.Context, denominator string) (core.Balance, error)
	Buy(ctx context.Context, req core.OrderRequest) (core.OrderResult, error)
	Sell(ctx context.Context, req core.OrderRequest) (core.OrderResult, error)
	Clear(ctx context.Context, asset, denominator string) (core.OrderResult, error)
	BidDips(ctx context.Context, asset, denominator string, levels []core.DipLevel) (core.OrderResult, error)
}

// RatioFor picks the rebalance ratio configured for asset. Without a matching
// profile the full balance is committed.
func RatioFor(profiles []core.RebalanceProfile, asset string) decimal.Decimal {
	profile, ok := lo.Find(profiles, func(item core.RebalanceProfile) bool {
		return item.Asset == asset
	})
	if !ok {
		return decimal.NewFromInt(1)
	}
	return profile.Ratio
}

// ProfilesFromConfig converts the configured rebalance entries into the
// domain representation adapters consume.
func ProfilesFromConfig(profiles []config.RebalanceProfile) []core.RebalanceProfile {
	return lo.Map(profiles, func(item config.RebalanceProfile, _ int) core.RebalanceProfile {
		return core.RebalanceProfile{Asset: item.Asset, Ratio: item.Ratio.Decimal}
	})
}
