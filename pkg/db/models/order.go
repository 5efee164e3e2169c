package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftandcart/shopfront-backend/pkg/enums"
	"github.com/craftandcart/shopfront-backend/pkg/types"
)

// Order is the confirmed order produced by reconciling an approved payment
// outcome with its cart snapshot. The unique index on checkout_token is what
// makes reconciliation idempotent under concurrent callbacks.
type Order struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber      string             `gorm:"column:order_number;not null;uniqueIndex:ux_orders_order_number"`
	CheckoutToken    string             `gorm:"column:checkout_token;not null;uniqueIndex:ux_orders_checkout_token"`
	CustomerID       *uuid.UUID         `gorm:"column:customer_id;type:uuid"`
	CustomerKind     enums.CustomerKind `gorm:"column:customer_kind;type:text;not null;default:'guest'"`
	GuestEmail       *string            `gorm:"column:guest_email"`
	GuestFirstName   *string            `gorm:"column:guest_first_name"`
	GuestLastName    *string            `gorm:"column:guest_last_name"`
	Currency         enums.Currency     `gorm:"column:currency;type:text;not null;default:'EUR'"`
	Status           enums.OrderStatus  `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	GatewayReference *string            `gorm:"column:gateway_reference"`
	SubtotalCents    int64              `gorm:"column:subtotal_cents;not null"`
	DiscountCents    int64              `gorm:"column:discount_cents;not null;default:0"`
	ShippingCents    int64              `gorm:"column:shipping_cents;not null;default:0"`
	TaxCents         int64              `gorm:"column:tax_cents;not null;default:0"`
	GrandTotalCents  int64              `gorm:"column:grand_total_cents;not null"`
	ShippingAddress  *types.Address     `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	BillingAddress   *types.Address     `gorm:"column:billing_address;type:jsonb;serializer:json"`
	LineItems        []OrderLineItem    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	PlacedAt         time.Time          `gorm:"column:placed_at;not null"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the primary key when the database does not.
func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
