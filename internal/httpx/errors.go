package httpx

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/arpit8955/ecommerce/internal/orders"
)

// writeError maps domain errors onto status codes. Anything unknown is a 500 with a generic body.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	var (
		stockErr *orders.StockError
		transErr *orders.TransitionError
	)
	switch {
	case errors.As(err, &stockErr):
		writeJSON(w, http.StatusBadRequest, errBody(stockErr.Error()))
	case errors.As(err, &transErr):
		writeJSON(w, http.StatusBadRequest, errBody(transErr.Error()))
	case errors.Is(err, orders.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, errBody(orders.ErrOrderNotFound.Error()))
	case errors.Is(err, orders.ErrProductNotFound):
		writeJSON(w, http.StatusNotFound, errBody(orders.ErrProductNotFound.Error()))
	case errors.Is(err, orders.ErrEmptyCart),
		errors.Is(err, orders.ErrInvalidQuantity),
		errors.Is(err, orders.ErrInvalidStatus),
		errors.Is(err, orders.ErrInvalidProduct),
		errors.Is(err, orders.ErrInvalidTransition):
		writeJSON(w, http.StatusBadRequest, errBody(err.Error()))
	case errors.Is(err, orders.ErrTxConflict):
		log.Warn("request gave up after transaction conflicts", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errBody("order system busy, retry shortly"))
	default:
		log.Error("internal error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errBody("internal server error"))
	}
}
