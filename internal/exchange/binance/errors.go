package binance

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	apiCodeNewOrderRejected = -2010
	apiCodeCancelRejected   = -2011
	apiCodeOrderNotFound    = -2013
)

func parseAPIError(status int, body []byte) error {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Msg != "" {
		return APIError{Code: apiErr.Code, Msg: apiErr.Msg}
	}
	return fmt.Errorf("binance http error %d: %s", status, strings.TrimSpace(string(body)))
}

func AsAPIError(err error) (APIError, bool) {
	var apiErr APIError
	if err == nil || !errors.As(err, &apiErr) {
		return APIError{}, false
	}
	return apiErr, true
}
