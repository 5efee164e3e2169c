package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/craftandcart/shopfront-backend/api/responses"
	"github.com/craftandcart/shopfront-backend/api/validators"
	"github.com/craftandcart/shopfront-backend/internal/gateway"
	"github.com/craftandcart/shopfront-backend/internal/snapshot"
	"github.com/craftandcart/shopfront-backend/pkg/db/models"
	"github.com/craftandcart/shopfront-backend/pkg/enums"
	pkgerrors "github.com/craftandcart/shopfront-backend/pkg/errors"
	"github.com/craftandcart/shopfront-backend/pkg/logger"
	"github.com/craftandcart/shopfront-backend/pkg/types"
)

type checkoutSnapshotService interface {
	Create(ctx context.Context, input snapshot.CreateSnapshotInput) (*models.CartSnapshot, error)
	Get(ctx context.Context, token string) (*models.CartSnapshot, error)
}

type paymentRequestBuilder interface {
	BuildPaymentRequest(snap *models.CartSnapshot) (*gateway.PaymentRequest, error)
}

type beginCheckoutItem struct {
	ProductID      string `json:"product_id" validate:"required,uuid"`
	Name           string `json:"name" validate:"required"`
	Quantity       int    `json:"quantity" validate:"required,min=1"`
	UnitPriceCents int64  `json:"unit_price_cents" validate:"min=0"`
}

type beginCheckoutGuest struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
}

type beginCheckoutRequest struct {
	CustomerID      *string             `json:"customer_id,omitempty" validate:"omitempty,uuid"`
	Guest           *beginCheckoutGuest `json:"guest,omitempty" validate:"omitempty"`
	Currency        string              `json:"currency,omitempty"`
	ShippingAddress *types.Address      `json:"shipping_address,omitempty"`
	BillingAddress  *types.Address      `json:"billing_address,omitempty"`
	DiscountCents   int64               `json:"discount_cents,omitempty" validate:"min=0"`
	ShippingCents   int64               `json:"shipping_cents,omitempty" validate:"min=0"`
	TaxCents        int64               `json:"tax_cents,omitempty" validate:"min=0"`
	Items           []beginCheckoutItem `json:"items" validate:"required,min=1,dive"`
}

type checkoutSessionPayload struct {
	CheckoutToken   string             `json:"checkout_token"`
	Currency        string             `json:"currency"`
	SubtotalCents   int64              `json:"subtotal_cents"`
	DiscountCents   int64              `json:"discount_cents"`
	ShippingCents   int64              `json:"shipping_cents"`
	TaxCents        int64              `json:"tax_cents"`
	GrandTotalCents int64              `json:"grand_total_cents"`
	ExpiresAt       time.Time          `json:"expires_at"`
	Items           []orderLinePayload `json:"items"`
}

type paymentRequestPayload struct {
	Endpoint string            `json:"endpoint"`
	Method   string            `json:"method"`
	Fields   map[string]string `json:"fields"`
}

type beginCheckoutResponse struct {
	checkoutSessionPayload
	Payment paymentRequestPayload `json:"payment"`
}

// BeginCheckout freezes the submitted cart into a snapshot and hands back the
// signed redirect payload for the payment gateway.
func BeginCheckout(snapshots checkoutSnapshotService, builder paymentRequestBuilder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if snapshots == nil || builder == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var req beginCheckoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input, err := buildSnapshotInput(req)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		snap, err := snapshots.Create(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		payment, err := builder.BuildPaymentRequest(snap)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logCtx := logg.WithCheckoutToken(ctx, snap.Token)
			logg.Info(logCtx, "checkout session created")
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, beginCheckoutResponse{
			checkoutSessionPayload: newCheckoutSessionPayload(snap),
			Payment: paymentRequestPayload{
				Endpoint: payment.Endpoint,
				Method:   http.MethodPost,
				Fields:   flattenFields(payment),
			},
		})
	}
}

// GetCheckoutSession returns the frozen cart for a token, for the storefront
// to re-render after a cancelled payment attempt.
func GetCheckoutSession(snapshots checkoutSnapshotService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if snapshots == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		token := strings.TrimSpace(chi.URLParam(r, "token"))
		if token == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "checkout token is required"))
			return
		}

		snap, err := snapshots.Get(ctx, token)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCheckoutSessionPayload(snap))
	}
}

func buildSnapshotInput(req beginCheckoutRequest) (snapshot.CreateSnapshotInput, error) {
	input := snapshot.CreateSnapshotInput{
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		DiscountCents:   req.DiscountCents,
		ShippingCents:   req.ShippingCents,
		TaxCents:        req.TaxCents,
	}

	if req.CustomerID != nil && req.Guest != nil {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "provide either customer_id or guest, not both")
	}
	if req.CustomerID == nil && req.Guest == nil {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "either customer_id or guest is required")
	}
	if req.CustomerID != nil {
		id, err := uuid.Parse(*req.CustomerID)
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid customer id")
		}
		input.CustomerID = &id
	}
	if req.Guest != nil {
		input.Guest = &snapshot.GuestIdentity{
			Email:     req.Guest.Email,
			FirstName: req.Guest.FirstName,
			LastName:  req.Guest.LastName,
		}
	}

	if req.Currency != "" {
		currency, err := enums.ParseCurrency(req.Currency)
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency")
		}
		input.Currency = currency
	}

	items := make([]snapshot.CreateItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
		}
		items = append(items, snapshot.CreateItemInput{
			ProductID:      productID,
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	input.Items = items
	return input, nil
}

func newCheckoutSessionPayload(snap *models.CartSnapshot) checkoutSessionPayload {
	items := make([]orderLinePayload, 0, len(snap.Items))
	for _, item := range snap.Items {
		items = append(items, orderLinePayload{
			ProductID:      item.ProductID,
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			LineTotalCents: item.LineTotalCents,
		})
	}
	return checkoutSessionPayload{
		CheckoutToken:   snap.Token,
		Currency:        snap.Currency.String(),
		SubtotalCents:   snap.SubtotalCents,
		DiscountCents:   snap.DiscountCents,
		ShippingCents:   snap.ShippingCents,
		TaxCents:        snap.TaxCents,
		GrandTotalCents: snap.GrandTotalCents,
		ExpiresAt:       snap.ExpiresAt,
		Items:           items,
	}
}

func flattenFields(payment *gateway.PaymentRequest) map[string]string {
	fields := make(map[string]string, len(payment.Fields))
	for key := range payment.Fields {
		fields[key] = payment.Fields.Get(key)
	}
	return fields
}
