package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/kalanyuz/gcp-cryptobot/internal/config"
	"github.com/kalanyuz/gcp-cryptobot/internal/core"
	"github.com/kalanyuz/gcp-cryptobot/internal/exchange"
	"github.com/kalanyuz/gcp-cryptobot/internal/secrets"
)

type AuthType int

const (
	AuthNone AuthType = iota
	AuthAPIKey
	AuthSigned
)

var _ exchange.Exchange = (*Client)(nil)

// Client trades spot pairs over the Binance REST API. Authentication signs
// the encoded query with HMAC-SHA256 and sends the API key in a header; the
// key pair is resolved lazily from the secret store.
type Client struct {
	baseURL    string
	creds      *exchange.CredentialSource
	profiles   []core.RebalanceProfile
	recvWindow time.Duration
	httpClient *http.Client
	log        *logrus.Entry
}

type Options struct {
	RestBaseURL    string
	APIKeyName     string
	SecretKeyName  string
	RecvWindowMs   int64
	HTTPTimeoutSec int64
	Profiles       []core.RebalanceProfile
}

func NewClient(cfg config.Config, store secrets.Store) *Client {
	return NewClientWithOptions(store, Options{
		RestBaseURL:    cfg.Exchange.RestBaseURL,
		APIKeyName:     cfg.Exchange.APIKeyName,
		SecretKeyName:  cfg.Exchange.SecretKeyName,
		RecvWindowMs:   cfg.Exchange.RecvWindowMs,
		HTTPTimeoutSec: cfg.Exchange.HTTPTimeoutSec,
		Profiles:       exchange.ProfilesFromConfig(cfg.Bot.Rebalance),
	})
}

func NewClientWithOptions(store secrets.Store, opts Options) *Client {
	timeout := 10 * time.Second
	if opts.HTTPTimeoutSec > 0 {
		timeout = time.Duration(opts.HTTPTimeoutSec) * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.RestBaseURL, "/"),
		creds:      exchange.NewCredentialSource(store, opts.APIKeyName, opts.SecretKeyName),
		profiles:   opts.Profiles,
		recvWindow: time.Duration(opts.RecvWindowMs) * time.Millisecond,
		httpClient: &http.Client{Timeout: timeout},
		log:        logrus.WithField("component", "binance"),
	}
}

func (c *Client) Name() string { return "binance" }

func (c *Client) GetPrice(ctx context.Context, asset, denominator string) (core.Asset, error) {
	symbol := asset + denominator
	params := url.Values{}
	params.Set("symbol", symbol)
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v3/ticker/price", params, AuthNone)
	if err != nil {
		return core.Asset{}, errors.Join(core.ErrPriceUnavailable, err)
	}
	var resp tickerPriceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return core.Asset{}, errors.Join(core.ErrPriceUnavailable, err)
	}
	if resp.Symbol != symbol {
		return core.Asset{}, fmt.Errorf("%w: ticker returned %q, requested %q", core.ErrPriceUnavailable, resp.Symbol, symbol)
	}
	price, err := decimal.NewFromString(resp.Price)
	if err != nil {
		return core.Asset{}, errors.Join(core.ErrPriceUnavailable, err)
	}
	return core.Asset{Amount: price, CurrencyCode: denominator}, nil
}

func (c *Client) GetBalance(ctx context.Context, denominator string) (core.Balance, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v3/account", url.Values{}, AuthSigned)
	if err != nil {
		return core.Balance{}, errors.Join(core.ErrBalanceUnavailable, err)
	}
	var resp accountResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return core.Balance{}, errors.Join(core.ErrBalanceUnavailable, err)
	}
	holdings := make([]core.Asset, 0, len(resp.Balances))
	for _, b := range resp.Balances {
		free, err := decimal.NewFromString(b.Free)
		if err != nil {
			return core.Balance{}, errors.Join(core.ErrBalanceUnavailable, err)
		}
		locked, err := decimal.NewFromString(b.Locked)
		if err != nil {
			return core.Balance{}, errors.Join(core.ErrBalanceUnavailable, err)
		}
		holdings = append(holdings, core.Asset{
			CurrencyCode: b.Asset,
			Amount:       free.Add(locked),
			Available:    free,
		})
	}
	return exchange.AggregateBalance(ctx, c, holdings, denominator)
}

func (c *Client) Buy(ctx context.Context, req core.OrderRequest) (core.OrderResult, error) {
	if err := validateOrder(req); err != nil {
		return core.OrderResult{}, err
	}
	quantity, err := c.buyQuantity(ctx, req)
	if err != nil {
		return core.OrderResult{}, err
	}
	return c.placeOrder(ctx, req, core.Buy, quantity)
}

func (c *Client) Sell(ctx context.Context, req core.OrderRequest) (core.OrderResult, error) {
	if err := validateOrder(req); err != nil {
		return core.OrderResult{}, err
	}
	quantity, err := c.sellQuantity(ctx, req)
	if err != nil {
		return core.OrderResult{}, err
	}
	return c.placeOrder(ctx, req, core.Sell, quantity)
}

// Clear cancels every resting order for the pair. A venue complaint that no
// order exists counts as success so the call stays idempotent.
func (c *Client) Clear(ctx context.Context, asset, denominator string) (core.OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", asset+denominator)
	body, err := c.doRequest(ctx, http.MethodDelete, "/api/v3/openOrders", params, AuthSigned)
	if err != nil {
		if apiErr, ok := AsAPIError(err); ok && apiErr.Code == apiCodeCancelRejected {
			return core.ResultOK(), nil
		}
		return core.OrderResult{}, err
	}
	return core.OrderResult{Status: http.StatusOK, Data: body}, nil
}

func (c *Client) BidDips(ctx context.Context, asset, denominator string, levels []core.DipLevel) (core.OrderResult, error) {
	return exchange.RunDipLadder(ctx, c, asset, denominator, levels)
}

func (c *Client) placeOrder(ctx context.Context, req core.OrderRequest, side core.Side, quantity decimal.Decimal) (core.OrderResult, error) {
	symbol := req.Asset + req.Denominator
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", string(side))
	params.Set("type", string(req.Type))
	// un-padded decimal string: the venue rejects scientific notation
	params.Set("quantity", quantity.String())
	params.Set("newOrderRespType", "FULL")
	if req.Type == core.Limit {
		params.Set("price", req.Price.String())
		params.Set("timeInForce", "GTC")
	}

	fields := logrus.Fields{"symbol": symbol, "side": side, "type": req.Type, "quantity": quantity.String()}
	if req.Type == core.Limit {
		fields["price"] = req.Price.String()
	}
	c.log.WithFields(fields).Info("submitting order")

	body, err := c.doRequest(ctx, http.MethodPost, "/api/v3/order", params, AuthSigned)
	if err != nil {
		if _, ok := AsAPIError(err); ok {
			return core.OrderResult{}, errors.Join(core.ErrOrderRejected, err)
		}
		return core.OrderResult{}, err
	}
	return core.OrderResult{Status: http.StatusOK, Data: body}, nil
}

// buyQuantity sizes a buy when the caller supplied no explicit amount: quote
// budget from the aggregated balance and the rebalance ratio, converted into
// base units at the current price and floored to the venue's lot step.
func (c *Client) buyQuantity(ctx context.Context, req core.OrderRequest) (decimal.Decimal, error) {
	if req.Amount != nil {
		return *req.Amount, nil
	}
	balance, err := c.GetBalance(ctx, req.Denominator)
	if err != nil {
		return decimal.Zero, errors.Join(core.ErrInsufficientFunds, err)
	}
	budget := balance.Total.Amount.Mul(exchange.RatioFor(c.profiles, req.Asset))

	price, err := c.GetPrice(ctx, req.Asset, req.Denominator)
	if err != nil {
		return decimal.Zero, errors.Join(core.ErrInsufficientFunds, err)
	}
	lot, err := c.lotConstraint(ctx, req.Asset+req.Denominator)
	if err != nil {
		return decimal.Zero, errors.Join(core.ErrInsufficientFunds, err)
	}
	quantity := core.FloorToLot(budget.Div(price.Amount), lot)
	if quantity.LessThanOrEqual(decimal.Zero) || quantity.LessThan(lot.MinQty) {
		return decimal.Zero, fmt.Errorf("%w: %s budget %s sizes below the %s minimum of %s",
			core.ErrInsufficientFunds, req.Denominator, budget.String(), req.Asset, lot.MinQty.String())
	}
	return quantity, nil
}

// sellQuantity sizes a sell from the holding itself: everything held of the
// asset, floored to the lot step.
func (c *Client) sellQuantity(ctx context.Context, req core.OrderRequest) (decimal.Decimal, error) {
	if req.Amount != nil {
		return *req.Amount, nil
	}
	balance, err := c.GetBalance(ctx, req.Denominator)
	if err != nil {
		return decimal.Zero, errors.Join(core.ErrAssetNotFound, err)
	}
	holding, ok := lo.Find(balance.Balances, func(item core.Asset) bool {
		return item.CurrencyCode == req.Asset
	})
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no %s holding to sell", core.ErrAssetNotFound, req.Asset)
	}
	lot, err := c.lotConstraint(ctx, req.Asset+req.Denominator)
	if err != nil {
		return decimal.Zero, errors.Join(core.ErrAssetNotFound, err)
	}
	quantity := core.FloorToLot(holding.Amount, lot)
	if quantity.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("%w: %s holding of %s is below the lot step",
			core.ErrAssetNotFound, req.Asset, holding.Amount.String())
	}
	return quantity, nil
}

// lotConstraint reads the LOT_SIZE filter from exchangeInfo. Never cached:
// the venue may retune filters between calls.
func (c *Client) lotConstraint(ctx context.Context, symbol string) (core.LotConstraint, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v3/exchangeInfo", params, AuthNone)
	if err != nil {
		return core.LotConstraint{}, err
	}
	var resp exchangeInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return core.LotConstraint{}, err
	}
	if len(resp.Symbols) == 0 {
		return core.LotConstraint{}, fmt.Errorf("symbol %s not found in exchangeInfo", symbol)
	}
	return parseLotConstraint(resp.Symbols[0]), nil
}

func validateOrder(req core.OrderRequest) error {
	if req.Asset == "" || req.Denominator == "" {
		return fmt.Errorf("%w: asset and denominator are required", core.ErrValidation)
	}
	if req.Type == core.Limit && req.Price == nil {
		return fmt.Errorf("%w: limit orders need a price", core.ErrValidation)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values, auth AuthType) ([]byte, error) {
	var apiKey string
	if auth == AuthAPIKey || auth == AuthSigned {
		creds, err := c.creds.Get(ctx)
		if err != nil {
			return nil, err
		}
		apiKey = creds.Key
		if auth == AuthSigned {
			params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
			if c.recvWindow > 0 {
				params.Set("recvWindow", strconv.FormatInt(c.recvWindow.Milliseconds(), 10))
			}
			params.Set("signature", sign(creds.Secret, params.Encode()))
		}
	}
	var (
		req *http.Request
		err error
	)
	urlStr := c.baseURL + path
	if method == http.MethodGet || method == http.MethodDelete {
		if encoded := params.Encode(); encoded != "" {
			urlStr += "?" + encoded
		}
		req, err = http.NewRequestWithContext(ctx, method, urlStr, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, urlStr, strings.NewReader(params.Encode()))
	}
	if err != nil {
		return nil, err
	}
	if method != http.MethodGet && method != http.MethodDelete {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if apiKey != "" {
		req.Header.Set("X-MBX-APIKEY", apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, parseAPIError(resp.StatusCode, body)
	}
	return body, nil
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
