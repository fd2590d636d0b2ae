package service

import (
	"github.com/restory/server/internal/domain"
)

// Checkout errors
var (
	ErrEmptyCart           = domain.ErrCartEmpty
	ErrCheckoutInProgress  = domain.ErrCheckoutInProgress
	ErrAttemptNotFound     = domain.ErrCheckoutNotFound
	ErrPaymentNotCompleted = domain.Errorf(domain.EPAYMENT, "", "Payment has not been completed")
	ErrProviderTimeout     = domain.ErrCheckoutTimeout
)
