package money

import "errors"

var (
	ErrInvalidNumber   = errors.New("invalid_number")
	ErrInvalidCurrency = errors.New("invalid_currency")
)
