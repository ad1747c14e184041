package bitflyer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type tickerResponse struct {
	ProductCode string      `json:"product_code"`
	BestBid     json.Number `json:"best_bid"`
	BestAsk     json.Number `json:"best_ask"`
}

type balanceEntry struct {
	CurrencyCode string      `json:"currency_code"`
	Amount       json.Number `json:"amount"`
	Available    json.Number `json:"available"`
}

type childOrderRequest struct {
	ProductCode    string      `json:"product_code"`
	ChildOrderType string      `json:"child_order_type"`
	Side           string      `json:"side"`
	Price          json.Number `json:"price,omitempty"`
	Size           json.Number `json:"size"`
	TimeInForce    string      `json:"time_in_force"`
}

type cancelAllRequest struct {
	ProductCode string `json:"product_code"`
}

type apiError struct {
	Status       int    `json:"status"`
	ErrorMessage string `json:"error_message"`
}

type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	return "bitflyer api error " + strconv.Itoa(e.Status) + ": " + e.Message
}

func parseAPIError(status int, body []byte) error {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.ErrorMessage != "" {
		return APIError{Status: apiErr.Status, Message: apiErr.ErrorMessage}
	}
	return fmt.Errorf("bitflyer http error %d: %s", status, strings.TrimSpace(string(body)))
}

func AsAPIError(err error) (APIError, bool) {
	var apiErr APIError
	if err == nil || !errors.As(err, &apiErr) {
		return APIError{}, false
	}
	return apiErr, true
}
