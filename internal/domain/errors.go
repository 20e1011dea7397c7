package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrSigningFailed = errors.New("signing failed")
	ErrLockHeld      = errors.New("lock already held")

	// Compilation failures. Either one aborts the whole path.
	ErrUnsupportedVenue    = errors.New("unsupported venue")
	ErrMissingVenueAddress = errors.New("missing venue address")

	ErrEmptyPath           = errors.New("empty path")
	ErrInvalidFill         = errors.New("invalid fill")
	ErrInvalidSlippage     = errors.New("invalid slippage tolerance")
	ErrNotERC20AssetData   = errors.New("asset data is not ERC20")
	ErrInvalidAssetData    = errors.New("invalid asset data")
	ErrInvalidQuoteRequest = errors.New("invalid quote request")
)
