package domain

import "errors"

var (
	ErrInvalidQuantity       = errors.New("quantity must be positive")
	ErrInsufficientAvailable = errors.New("insufficient available stock")
	ErrInsufficientStock     = errors.New("insufficient stock on hand")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrInvariantViolation    = errors.New("stock invariant violation")
	ErrConflict              = errors.New("concurrent modification conflict")

	ErrStockRowNotFound     = errors.New("stock row not found")
	ErrAllocationNotFound   = errors.New("allocation not found")
	ErrTaskNotFound         = errors.New("putaway task not found")
	ErrBinNotFound          = errors.New("bin not found")
	ErrGoodsReceiptNotFound = errors.New("goods receipt not found")
	ErrOrderNotFound        = errors.New("order not found")

	ErrAllocationPicked    = errors.New("allocation already picked")
	ErrRowHasReservations  = errors.New("stock row has active reservations")
	ErrBinCapacityExceeded = errors.New("bin capacity exceeded")
)
