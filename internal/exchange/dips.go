package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/kalanyuz/gcp-cryptobot/internal/core"
)

var dipLog = logrus.WithField("component", "dip_orchestrator")

var hundred = decimal.NewFromInt(100)

// RunDipLadder places a ladder of discounted limit buys: clear resting orders,
// read the available quote funds and the current price, then submit one LIMIT
// buy per level concurrently. The cycle is all-or-nothing — any failure after
// the first clear triggers a best-effort rollback clear before the error is
// surfaced, so the caller is never left with a partial ladder.
func RunDipLadder(ctx context.Context, ex Exchange, asset, denominator string, levels []core.DipLevel) (core.OrderResult, error) {
	if asset == "" || denominator == "" {
		return core.OrderResult{}, fmt.Errorf("%w: asset and denominator are required", core.ErrValidation)
	}
	if len(levels) == 0 {
		return core.OrderResult{}, fmt.Errorf("%w: dip schedule must not be empty", core.ErrValidation)
	}
	for _, level := range levels {
		if level.Percent.IsNegative() || level.Allocation.LessThanOrEqual(decimal.Zero) || level.Allocation.GreaterThan(hundred) {
			return core.OrderResult{}, fmt.Errorf("%w: dip level percent=%s allocation=%s out of range",
				core.ErrValidation, level.Percent.String(), level.Allocation.String())
		}
	}

	if _, err := ex.Clear(ctx, asset, denominator); err != nil {
		return core.OrderResult{}, rollback(ctx, ex, asset, denominator, err)
	}

	balance, err := ex.GetBalance(ctx, denominator)
	if err != nil {
		return core.OrderResult{}, rollback(ctx, ex, asset, denominator, err)
	}
	funds, ok := lo.Find(balance.Balances, func(item core.Asset) bool {
		return item.CurrencyCode == denominator
	})
	if !ok {
		err := fmt.Errorf("no %s funds available to bid with", denominator)
		return core.OrderResult{}, rollback(ctx, ex, asset, denominator, err)
	}

	price, err := ex.GetPrice(ctx, asset, denominator)
	if err != nil {
		return core.OrderResult{}, rollback(ctx, ex, asset, denominator, err)
	}

	errs := make([]error, len(levels))
	var wg sync.WaitGroup
	for i, level := range levels {
		wg.Add(1)
		go func(i int, level core.DipLevel) {
			defer wg.Done()
			errs[i] = bidLevel(ctx, ex, asset, denominator, funds.Available, price.Amount, level)
		}(i, level)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return core.OrderResult{}, rollback(ctx, ex, asset, denominator, err)
	}
	return core.ResultOK(), nil
}

func bidLevel(ctx context.Context, ex Exchange, asset, denominator string, available, price decimal.Decimal, level core.DipLevel) error {
	funds := available.Mul(level.Allocation).Div(hundred)
	limit := price.Mul(decimal.NewFromInt(1).Sub(level.Percent.Div(hundred))).Floor()
	if limit.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("discount of %s%% leaves no positive limit price", level.Percent.String())
	}
	quantity := core.RoundSignificant(funds.Div(limit), 4)

	dipLog.WithFields(logrus.Fields{
		"asset":       asset,
		"denominator": denominator,
		"limit":       limit.String(),
		"quantity":    quantity.String(),
		"percent":     level.Percent.String(),
		"allocation":  level.Allocation.String(),
	}).Info("bidding dip level")

	_, err := ex.Buy(ctx, core.OrderRequest{
		Asset:       asset,
		Denominator: denominator,
		Type:        core.Limit,
		Amount:      &quantity,
		Price:       &limit,
	})
	return err
}

// rollback cancels the whole ladder again. Compensation is deliberately
// coarse: cancelling already-accepted limit orders beats leaving an ambiguous
// order book behind.
func rollback(ctx context.Context, ex Exchange, asset, denominator string, cause error) error {
	if _, err := ex.Clear(ctx, asset, denominator); err != nil {
		dipLog.WithError(err).Warn("rollback clear failed")
	}
	return errors.Join(core.ErrDipBidFailed, cause)
}
