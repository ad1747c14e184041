package binance

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/kalanyuz/gcp-cryptobot/internal/core"
)

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type APIError struct {
	Code int
	Msg  string
}

func (e APIError) Error() string {
	return "binance api error " + strconv.Itoa(e.Code) + ": " + e.Msg
}

type tickerPriceResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

type accountResponse struct {
	Balances []struct {
		Asset  string `json:"asset"`
		Free   string `json:"free"`
		Locked string `json:"locked"`
	} `json:"balances"`
}

type exchangeInfoResponse struct {
	Symbols []symbolInfoResponse `json:"symbols"`
}

type symbolInfoResponse struct {
	Symbol     string `json:"symbol"`
	BaseAsset  string `json:"baseAsset"`
	QuoteAsset string `json:"quoteAsset"`
	Filters    []struct {
		FilterType string `json:"filterType"`
		MinQty     string `json:"minQty"`
		StepSize   string `json:"stepSize"`
	} `json:"filters"`
}

func parseLotConstraint(src symbolInfoResponse) core.LotConstraint {
	lot := core.LotConstraint{
		MinQty:       decimal.Zero,
		StepSize:     decimal.Zero,
		CurrencyCode: src.BaseAsset,
	}
	for _, f := range src.Filters {
		if f.FilterType != "LOT_SIZE" {
			continue
		}
		if f.MinQty != "" {
			if v, err := decimal.NewFromString(f.MinQty); err == nil {
				lot.MinQty = v
			}
		}
		if f.StepSize != "" {
			if v, err := decimal.NewFromString(f.StepSize); err == nil {
				lot.StepSize = v
			}
		}
	}
	return lot
}
