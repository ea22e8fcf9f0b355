package services

import "errors"

// Typed failures returned by the wallet core. Handlers decide user-facing
// text and status codes; callers match with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInvalidReferralCode = errors.New("invalid referral code")
	ErrSelfReferral        = errors.New("self referral")
	ErrUnavailable         = errors.New("store unavailable")
)
