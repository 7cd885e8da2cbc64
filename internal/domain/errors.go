package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrRateLimited    = errors.New("rate limited")
	ErrInvalidNetwork = errors.New("invalid network")
	ErrInvalidAddress = errors.New("invalid token address")
	ErrZeroPrice      = errors.New("zero price")
)
