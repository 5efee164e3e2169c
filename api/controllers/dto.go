package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/craftandcart/shopfront-backend/pkg/db/models"
)

type orderLinePayload struct {
	ProductID      uuid.UUID `json:"product_id"`
	Name           string    `json:"name"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	LineTotalCents int64     `json:"line_total_cents"`
}

type orderPayload struct {
	OrderNumber     string             `json:"order_number"`
	Status          string             `json:"status"`
	PaymentStatus   string             `json:"payment_status"`
	Currency        string             `json:"currency"`
	SubtotalCents   int64              `json:"subtotal_cents"`
	DiscountCents   int64              `json:"discount_cents"`
	ShippingCents   int64              `json:"shipping_cents"`
	TaxCents        int64              `json:"tax_cents"`
	GrandTotalCents int64              `json:"grand_total_cents"`
	PlacedAt        time.Time          `json:"placed_at"`
	Items           []orderLinePayload `json:"items"`
}

func newOrderPayload(order *models.Order) orderPayload {
	items := make([]orderLinePayload, 0, len(order.LineItems))
	for _, item := range order.LineItems {
		items = append(items, orderLinePayload{
			ProductID:      item.ProductID,
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			LineTotalCents: item.LineTotalCents,
		})
	}
	return orderPayload{
		OrderNumber:     order.OrderNumber,
		Status:          order.Status.String(),
		PaymentStatus:   order.PaymentStatus.String(),
		Currency:        order.Currency.String(),
		SubtotalCents:   order.SubtotalCents,
		DiscountCents:   order.DiscountCents,
		ShippingCents:   order.ShippingCents,
		TaxCents:        order.TaxCents,
		GrandTotalCents: order.GrandTotalCents,
		PlacedAt:        order.PlacedAt,
		Items:           items,
	}
}
