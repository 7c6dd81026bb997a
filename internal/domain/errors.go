package domain

import (
	"errors"

	"github.com/faizu526/zerotohero/internal/pricing"
)

var (
	ErrInvalidRate         = pricing.ErrInvalidRate
	ErrInvalidAmount       = pricing.ErrInvalidAmount
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrNotFound            = errors.New("not found")
	ErrPriceAboveOriginal  = errors.New("our price exceeds original price")
)
