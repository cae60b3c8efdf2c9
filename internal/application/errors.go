package application

import (
	"errors"

	"github.com/wms-platform/allocation-service/internal/domain"
	apperrors "github.com/wms-platform/allocation-service/pkg/errors"
)

// mapDomainError translates domain sentinels into AppErrors carried across
// the transport boundary. Unknown errors pass through and surface as 500s.
func mapDomainError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, domain.ErrStockRowNotFound),
		errors.Is(err, domain.ErrAllocationNotFound),
		errors.Is(err, domain.ErrTaskNotFound),
		errors.Is(err, domain.ErrBinNotFound),
		errors.Is(err, domain.ErrGoodsReceiptNotFound),
		errors.Is(err, domain.ErrOrderNotFound):
		return apperrors.NewNotFound(err.Error()).WithCause(err)

	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrAllocationPicked),
		errors.Is(err, domain.ErrRowHasReservations):
		return apperrors.NewInvalidState(err.Error()).WithCause(err)

	case errors.Is(err, domain.ErrInsufficientAvailable):
		return apperrors.NewInsufficientAvailable(err.Error()).WithCause(err)

	case errors.Is(err, domain.ErrInsufficientStock):
		return apperrors.NewInsufficientStock(err.Error()).WithCause(err)

	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrBinCapacityExceeded):
		return apperrors.NewConflict(err.Error()).WithCause(err)

	case errors.Is(err, domain.ErrInvalidQuantity):
		return apperrors.NewValidation(err.Error()).WithCause(err)

	case errors.Is(err, domain.ErrInvariantViolation):
		return apperrors.NewInvariantViolation(err.Error()).WithCause(err)
	}
	return err
}
