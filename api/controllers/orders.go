package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/craftandcart/shopfront-backend/api/responses"
	"github.com/craftandcart/shopfront-backend/internal/orders"
	pkgerrors "github.com/craftandcart/shopfront-backend/pkg/errors"
	"github.com/craftandcart/shopfront-backend/pkg/logger"
)

// OrderDetail returns a confirmed order by its public order number.
func OrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderNumber := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
		if orderNumber == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order number is required"))
			return
		}

		order, err := svc.GetByOrderNumber(ctx, orderNumber)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderPayload(order))
	}
}
