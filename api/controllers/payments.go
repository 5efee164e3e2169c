package controllers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/craftandcart/shopfront-backend/api/responses"
	"github.com/craftandcart/shopfront-backend/internal/gateway"
	"github.com/craftandcart/shopfront-backend/internal/orders"
	"github.com/craftandcart/shopfront-backend/internal/reconcile"
	pkgerrors "github.com/craftandcart/shopfront-backend/pkg/errors"
	"github.com/craftandcart/shopfront-backend/pkg/logger"
)

const callbackConsumer = "payment-callback"

// resultDuplicateDelivery answers a suppressed repeat delivery whose first
// processing produced no order, such as a declined or cancelled payment.
const resultDuplicateDelivery = "duplicate_delivery"

type callbackParser interface {
	ParseCallback(values url.Values) (*gateway.PaymentOutcome, error)
}

type CallbackGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Delete(ctx context.Context, consumer, eventID string) error
}

type reconcileService interface {
	Reconcile(ctx context.Context, outcome *gateway.PaymentOutcome) (*reconcile.ReconcileResult, error)
}

type callbackResponse struct {
	Result        string        `json:"result"`
	CheckoutToken string        `json:"checkout_token"`
	FailureReason string        `json:"failure_reason,omitempty"`
	Order         *orderPayload `json:"order,omitempty"`
}

// PaymentCallback handles the gateway's return leg. The adapter verifies the
// digest before anything else is trusted; the guard suppresses repeated
// deliveries of the same gateway transaction; the reconciler does the rest.
func PaymentCallback(parser callbackParser, guard CallbackGuard, reconciler reconcileService, ordersSvc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if parser == nil || reconciler == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment callback unavailable"))
			return
		}

		values, err := callbackValues(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		outcome, err := parser.ParseCallback(values)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			ctx = logg.WithCheckoutToken(ctx, outcome.CheckoutToken)
		}

		deliveryID := callbackDeliveryID(outcome)
		if guard != nil {
			alreadyProcessed, err := guard.CheckAndMarkProcessed(ctx, callbackConsumer, deliveryID)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check callback idempotency"))
				return
			}
			if alreadyProcessed {
				writeProcessedCallback(ctx, w, outcome, ordersSvc, logg)
				return
			}
		}

		result, err := reconciler.Reconcile(ctx, outcome)
		if err != nil {
			if guard != nil {
				_ = guard.Delete(ctx, callbackConsumer, deliveryID)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resp := callbackResponse{
			Result:        result.Result,
			CheckoutToken: outcome.CheckoutToken,
			FailureReason: result.FailureReason,
		}
		if result.Order != nil {
			payload := newOrderPayload(result.Order)
			resp.Order = &payload
		}
		responses.WriteSuccess(w, resp)
	}
}

// writeProcessedCallback answers a duplicate delivery. When the first
// processing confirmed an order the response carries it with the
// already-reconciled result; deliveries that never produced an order, like a
// repeated decline, get the duplicate-delivery result instead.
func writeProcessedCallback(ctx context.Context, w http.ResponseWriter, outcome *gateway.PaymentOutcome, ordersSvc orders.Service, logg *logger.Logger) {
	resp := callbackResponse{
		Result:        resultDuplicateDelivery,
		CheckoutToken: outcome.CheckoutToken,
	}
	if ordersSvc != nil {
		if order, err := ordersSvc.GetByCheckoutToken(ctx, outcome.CheckoutToken); err == nil {
			resp.Result = reconcile.ResultAlreadyReconciled
			payload := newOrderPayload(order)
			resp.Order = &payload
		}
	}
	if logg != nil {
		logg.Info(ctx, "duplicate payment callback suppressed")
	}
	responses.WriteSuccess(w, resp)
}

func callbackValues(r *http.Request) (url.Values, error) {
	if r.Method == http.MethodGet {
		return r.URL.Query(), nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse callback form")
	}
	return r.Form, nil
}

// callbackDeliveryID keys the idempotency guard. The transaction reference is
// preferred; status is included so a later terminal status for the same token
// is not swallowed by an earlier non-terminal one.
func callbackDeliveryID(outcome *gateway.PaymentOutcome) string {
	ref := outcome.GatewayTransactionID
	if ref == "" {
		ref = outcome.CheckoutToken
	}
	return ref + ":" + outcome.RawResponseCode
}
