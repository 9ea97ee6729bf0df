package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrMalformedPayload    = errors.New("provider payload malformed")
)
