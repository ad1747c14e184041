package bitflyer

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
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

var _ exchange.Exchange = (*Client)(nil)

// Client trades spot pairs over the bitFlyer REST API. Authenticated calls
// carry ACCESS-KEY / ACCESS-TIMESTAMP / ACCESS-SIGN headers where the
// signature is HMAC-SHA256 over timestamp + method + path + body.
type Client struct {
	baseURL    string
	creds      *exchange.CredentialSource
	profiles   []core.RebalanceProfile
	httpClient *http.Client
	log        *logrus.Entry
}

type Options struct {
	RestBaseURL    string
	APIKeyName     string
	SecretKeyName  string
	HTTPTimeoutSec int64
	Profiles       []core.RebalanceProfile
}

// NewClient builds the adapter from configuration. bitFlyer spot markets are
// quoted in JPY only, so any other trade currency is refused up front.
func NewClient(cfg config.Config, store secrets.Store) (*Client, error) {
	if cfg.Bot.TradeWith != "JPY" {
		return nil, fmt.Errorf("bitflyer supports only JPY based trading pairs, got %q", cfg.Bot.TradeWith)
	}
	return NewClientWithOptions(store, Options{
		RestBaseURL:    cfg.Exchange.RestBaseURL,
		APIKeyName:     cfg.Exchange.APIKeyName,
		SecretKeyName:  cfg.Exchange.SecretKeyName,
		HTTPTimeoutSec: cfg.Exchange.HTTPTimeoutSec,
		Profiles:       exchange.ProfilesFromConfig(cfg.Bot.Rebalance),
	}), nil
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
		httpClient: &http.Client{Timeout: timeout},
		log:        logrus.WithField("component", "bitflyer"),
	}
}

func (c *Client) Name() string { return "bitflyer" }

func productCode(asset, denominator string) string {
	return asset + "_" + denominator
}

func (c *Client) GetPrice(ctx context.Context, asset, denominator string) (core.Asset, error) {
	code := productCode(asset, denominator)
	body, err := c.doRequest(ctx, http.MethodGet, "/v1/ticker?product_code="+code, nil, false)
	if err != nil {
		return core.Asset{}, errors.Join(core.ErrPriceUnavailable, err)
	}
	var resp tickerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return core.Asset{}, errors.Join(core.ErrPriceUnavailable, err)
	}
	if resp.ProductCode != code {
		return core.Asset{}, fmt.Errorf("%w: ticker returned %q, requested %q", core.ErrPriceUnavailable, resp.ProductCode, code)
	}
	bid, errBid := decimal.NewFromString(resp.BestBid.String())
	ask, errAsk := decimal.NewFromString(resp.BestAsk.String())
	if errBid != nil || errAsk != nil {
		return core.Asset{}, fmt.Errorf("%w: unparsable bid/ask %q/%q", core.ErrPriceUnavailable, resp.BestBid, resp.BestAsk)
	}
	// no last-trade price on this endpoint; quote the midpoint instead
	mid := bid.Add(ask).Div(decimal.NewFromInt(2))
	return core.Asset{Amount: mid, CurrencyCode: denominator}, nil
}

func (c *Client) GetBalance(ctx context.Context, denominator string) (core.Balance, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/v1/me/getbalance", nil, true)
	if err != nil {
		return core.Balance{}, errors.Join(core.ErrBalanceUnavailable, err)
	}
	var resp []balanceEntry
	if err := json.Unmarshal(body, &resp); err != nil {
		return core.Balance{}, errors.Join(core.ErrBalanceUnavailable, err)
	}
	holdings := make([]core.Asset, 0, len(resp))
	for _, entry := range resp {
		amount, errAmount := decimal.NewFromString(entry.Amount.String())
		available, errAvailable := decimal.NewFromString(entry.Available.String())
		if errAmount != nil || errAvailable != nil {
			return core.Balance{}, fmt.Errorf("%w: malformed balance entry for %s", core.ErrBalanceUnavailable, entry.CurrencyCode)
		}
		holdings = append(holdings, core.Asset{
			CurrencyCode: entry.CurrencyCode,
			Amount:       amount,
			Available:    available,
		})
	}
	return exchange.AggregateBalance(ctx, c, holdings, denominator)
}

func (c *Client) Buy(ctx context.Context, req core.OrderRequest) (core.OrderResult, error) {
	if err := validateOrder(req); err != nil {
		return core.OrderResult{}, err
	}
	size, err := c.buySize(ctx, req)
	if err != nil {
		return core.OrderResult{}, err
	}
	return c.sendChildOrder(ctx, req, core.Buy, size)
}

func (c *Client) Sell(ctx context.Context, req core.OrderRequest) (core.OrderResult, error) {
	if err := validateOrder(req); err != nil {
		return core.OrderResult{}, err
	}
	size, err := c.sellSize(ctx, req)
	if err != nil {
		return core.OrderResult{}, err
	}
	return c.sendChildOrder(ctx, req, core.Sell, size)
}

func (c *Client) Clear(ctx context.Context, asset, denominator string) (core.OrderResult, error) {
	payload, err := json.Marshal(cancelAllRequest{ProductCode: productCode(asset, denominator)})
	if err != nil {
		return core.OrderResult{}, err
	}
	body, err := c.doRequest(ctx, http.MethodPost, "/v1/me/cancelallchildorders", payload, true)
	if err != nil {
		return core.OrderResult{}, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return core.ResultOK(), nil
	}
	return core.OrderResult{Status: http.StatusOK, Data: body}, nil
}

func (c *Client) BidDips(ctx context.Context, asset, denominator string, levels []core.DipLevel) (core.OrderResult, error) {
	return exchange.RunDipLadder(ctx, c, asset, denominator, levels)
}

func (c *Client) sendChildOrder(ctx context.Context, req core.OrderRequest, side core.Side, size decimal.Decimal) (core.OrderResult, error) {
	order := childOrderRequest{
		ProductCode:    productCode(req.Asset, req.Denominator),
		ChildOrderType: string(req.Type),
		Side:           string(side),
		// fixed 8-decimal size: the venue rejects scientific notation
		Size:        json.Number(size.StringFixed(8)),
		TimeInForce: "GTC",
	}
	if req.Type == core.Limit {
		order.Price = json.Number(req.Price.String())
	}
	payload, err := json.Marshal(order)
	if err != nil {
		return core.OrderResult{}, err
	}

	fields := logrus.Fields{"product_code": order.ProductCode, "side": side, "type": req.Type, "size": string(order.Size)}
	if req.Type == core.Limit {
		fields["price"] = string(order.Price)
	}
	c.log.WithFields(fields).Info("submitting order")

	body, err := c.doRequest(ctx, http.MethodPost, "/v1/me/sendchildorder", payload, true)
	if err != nil {
		if _, ok := AsAPIError(err); ok {
			return core.OrderResult{}, errors.Join(core.ErrOrderRejected, err)
		}
		return core.OrderResult{}, err
	}
	return core.OrderResult{Status: http.StatusOK, Data: body}, nil
}

// buySize keeps the quote-derived amount as submitted size: the venue
// publishes no lot metadata, so no step conversion applies here.
func (c *Client) buySize(ctx context.Context, req core.OrderRequest) (decimal.Decimal, error) {
	if req.Amount != nil {
		return *req.Amount, nil
	}
	balance, err := c.GetBalance(ctx, req.Denominator)
	if err != nil {
		return decimal.Zero, errors.Join(core.ErrInsufficientFunds, err)
	}
	size := balance.Total.Amount.Mul(exchange.RatioFor(c.profiles, req.Asset))
	if size.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("%w: no %s funds to allocate", core.ErrInsufficientFunds, req.Denominator)
	}
	return size, nil
}

func (c *Client) sellSize(ctx context.Context, req core.OrderRequest) (decimal.Decimal, error) {
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
	return holding.Amount, nil
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

func (c *Client) doRequest(ctx context.Context, method, path string, payload []byte, signed bool) ([]byte, error) {
	var reader io.Reader
	if len(payload) > 0 {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if signed {
		creds, err := c.creds.Get(ctx)
		if err != nil {
			return nil, err
		}
		timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
		req.Header.Set("ACCESS-KEY", creds.Key)
		req.Header.Set("ACCESS-TIMESTAMP", timestamp)
		req.Header.Set("ACCESS-SIGN", sign(creds.Secret, timestamp, method, path, payload))
	}
	if len(payload) > 0 {
		req.Header.Set("Content-Type", "application/json")
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

// sign computes HMAC-SHA256 over timestamp + method + path + body, hex encoded.
func sign(secret, timestamp, method, path string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + method + path))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
