package core

import "errors"

var (
	ErrDataUnavailable     = errors.New("required market data unavailable")
	ErrInsufficientHistory = errors.New("insufficient history for warm-up")
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrInsufficientFunds   = errors.New("insufficient buying power")
	ErrInvalidQuantity     = errors.New("invalid quantity")
)
