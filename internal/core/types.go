package core

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type Side string

type OrderType string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

const (
	Limit  OrderType = "LIMIT"
	Market OrderType = "MARKET"
)

// Asset is either a holding (Amount held, Available tradable) or a price
// quote (Amount = price of one unit expressed in CurrencyCode).
type Asset struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currency_code"`
	Available    decimal.Decimal `json:"available"`
}

// Balance holds every non-zero asset of an account plus their combined value
// expressed in the denominator currency the caller asked for.
type Balance struct {
	Balances []Asset `json:"balances"`
	Total    Asset   `json:"total"`
}

// RebalanceProfile maps an asset to the fraction of the available quote
// balance committed when a buy is auto-sized. Ratio must be within [0, 1].
type RebalanceProfile struct {
	Asset string
	Ratio decimal.Decimal
}

// LotConstraint is an exchange-imposed order increment. Quantities must be a
// multiple of StepSize and at least MinQty.
type LotConstraint struct {
	MinQty       decimal.Decimal
	StepSize     decimal.Decimal
	CurrencyCode string
}

// DipLevel commits Allocation percent of available funds to a limit buy at
// Percent below the current price.
type DipLevel struct {
	Percent    decimal.Decimal `json:"percent"`
	Allocation decimal.Decimal `json:"allocation"`
}

// BotRequest is the inbound order signal, shaped after a TradingView alert
// payload with the ticker pre-split into asset and denominator.
type BotRequest struct {
	Asset       string           `json:"asset"`
	Denominator string           `json:"denominator"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Time        string           `json:"time,omitempty"`
	Dip         []DipLevel       `json:"dip,omitempty"`
}

type OrderRequest struct {
	Asset       string
	Denominator string
	Type        OrderType
	Amount      *decimal.Decimal
	Price       *decimal.Decimal
}

// OrderResult passes the exchange response through unmodified. Data keeps the
// exchange-specific shape; callers must not expect a canonical schema.
type OrderResult struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func ResultOK() OrderResult {
	return OrderResult{Status: 200, Data: json.RawMessage(`"OK"`)}
}
