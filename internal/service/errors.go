package service

import "errors"

// Sentinel errors surfaced to the API layer. Handlers map them to HTTP codes
// with errors.Is, so wrapped variants carrying detail still match.
var (
	ErrProductNotFound    = errors.New("product: not found")
	ErrProductUnavailable = errors.New("product: not available for rent")
	ErrInsufficientStock  = errors.New("product: insufficient stock")

	ErrOrderNotFound     = errors.New("order: not found")
	ErrAlreadyCancelled  = errors.New("order: already cancelled")
	ErrTerminalState     = errors.New("order: returned orders cannot be cancelled")
	ErrInvalidOrderState = errors.New("order: operation not valid for current status")

	ErrPaymentNotFound = errors.New("payment: not found")
	ErrInvalidAmount   = errors.New("payment: amount must be greater than zero")

	ErrCommentNotFound   = errors.New("comment: not found")
	ErrCommentOrderState = errors.New("comment: order must be confirmed before review")
	ErrProductNotInOrder = errors.New("comment: product is not part of the order")
	ErrDuplicateReview   = errors.New("comment: order has already been reviewed")
	ErrInvalidRating     = errors.New("comment: rating must be between 1 and 5")

	ErrUserNotFound = errors.New("user: not found")
	ErrForbidden    = errors.New("forbidden: caller does not own this resource")
)
