package transport

import (
	"errors"
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/service"

	"go.uber.org/zap"
)

// respondServiceError maps a service error onto the error envelope. Anything
// unrecognised is logged and answered with a generic 500.
func respondServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, msg string, err error) {
	var invalid *service.InvalidProductsError

	switch {
	case errors.As(err, &invalid):
		middleware.RespondWithErrorDetails(w, http.StatusNotFound, "invalid products in cart", map[string]interface{}{
			"invalid_products": invalid.Lines,
		})
	case errors.Is(err, service.ErrCartNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "cart not found")
	case errors.Is(err, service.ErrProductNotInCart):
		middleware.RespondWithError(w, http.StatusNotFound, "product not found in cart")
	case errors.Is(err, service.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, service.ErrConcurrentUpdate):
		middleware.RespondWithError(w, http.StatusConflict, "cart was modified concurrently, retry the request")
	case errors.Is(err, service.ErrInvalidQuantity):
		middleware.RespondWithError(w, http.StatusBadRequest, "quantity must be between 1 and 2147483647")
	case errors.Is(err, service.ErrDuplicateLine):
		middleware.RespondWithError(w, http.StatusBadRequest, "each product may appear only once")
	default:
		middleware.RespondWithInternalError(w, r, logger, msg, err)
	}
}

// respondDecodeError answers a body that failed to decode or validate
func respondDecodeError(w http.ResponseWriter, err error) {
	if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
		middleware.RespondWithValidationErrors(w, validationErrors)
		return
	}
	middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
}
