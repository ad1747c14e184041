package core

import "errors"

var (
	// ErrValidation indicates a missing or empty required field, caught before any I/O.
	ErrValidation = errors.New("invalid request")
	// ErrPriceUnavailable indicates a ticker mismatch or an unparsable price.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrBalanceUnavailable indicates a balance endpoint failure or a malformed response.
	ErrBalanceUnavailable = errors.New("balance unavailable")
	// ErrAssetNotFound indicates sell-side sizing could not locate the holding.
	ErrAssetNotFound = errors.New("asset not found in balance")
	// ErrInsufficientFunds indicates buy-side sizing could not compute a usable amount.
	ErrInsufficientFunds = errors.New("could not compute available funds")
	// ErrCredentialsUnavailable indicates the secret store could not supply the API key pair.
	ErrCredentialsUnavailable = errors.New("credentials unavailable")
	// ErrOrderRejected indicates the exchange rejected the submission.
	ErrOrderRejected = errors.New("order rejected")
	// ErrDipBidFailed indicates a dip-bid cycle failed after the rollback attempt.
	ErrDipBidFailed = errors.New("dip bid failed")
)
