package domain

// =============================================================================
// CART DOMAIN ERRORS
// =============================================================================

var (
	ErrCartEmpty       = &Error{Code: EINVALID, Message: "Cart is empty"}
	ErrInvalidQuantity = &Error{Code: EINVALID, Message: "Quantity must be greater than 0"}
)

// =============================================================================
// CHECKOUT DOMAIN ERRORS
// =============================================================================

var (
	ErrCheckoutInProgress = &Error{Code: ECONFLICT, Message: "A checkout is already in progress"}
	ErrCheckoutNotFound   = &Error{Code: ENOTFOUND, Message: "Checkout attempt not found or expired"}
	ErrCheckoutTimeout    = &Error{Code: EPAYMENT, Message: "Payment provider did not respond in time"}
)
