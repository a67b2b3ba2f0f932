package domain

import "errors"

// Sentinel errors shared across packages.
var (
	// ErrAuthDenied means the user declined the device-flow authorization
	// or the provider rejected the grant outright.
	ErrAuthDenied = errors.New("authorization denied")

	// ErrAuthExpired means the device code expired before the user
	// completed authorization.
	ErrAuthExpired = errors.New("authorization code expired")

	// ErrRefreshFailed means the stored refresh token was rejected and a
	// full re-authentication is required.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrNotFound maps a 404 from the drive API.
	ErrNotFound = errors.New("item not found")

	// ErrConfigParse means the remote slideshow configuration could not be
	// parsed. Callers keep the previous configuration.
	ErrConfigParse = errors.New("config parse failed")
)
