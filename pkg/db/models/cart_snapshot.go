package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftandcart/shopfront-backend/pkg/enums"
	"github.com/craftandcart/shopfront-backend/pkg/types"
)

// CartSnapshot is the immutable cart copy taken when checkout begins. It is
// keyed by the checkout token handed to the payment gateway.
type CartSnapshot struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Token           string             `gorm:"column:token;not null;uniqueIndex:ux_cart_snapshots_token"`
	CustomerID      *uuid.UUID         `gorm:"column:customer_id;type:uuid"`
	CustomerKind    enums.CustomerKind `gorm:"column:customer_kind;type:text;not null;default:'guest'"`
	GuestEmail      *string            `gorm:"column:guest_email"`
	GuestFirstName  *string            `gorm:"column:guest_first_name"`
	GuestLastName   *string            `gorm:"column:guest_last_name"`
	Currency        enums.Currency     `gorm:"column:currency;type:text;not null;default:'EUR'"`
	ShippingAddress *types.Address     `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	BillingAddress  *types.Address     `gorm:"column:billing_address;type:jsonb;serializer:json"`
	SubtotalCents   int64              `gorm:"column:subtotal_cents;not null;default:0"`
	DiscountCents   int64              `gorm:"column:discount_cents;not null;default:0"`
	ShippingCents   int64              `gorm:"column:shipping_cents;not null;default:0"`
	TaxCents        int64              `gorm:"column:tax_cents;not null;default:0"`
	GrandTotalCents int64              `gorm:"column:grand_total_cents;not null;default:0"`
	ExpiresAt       time.Time          `gorm:"column:expires_at;not null"`
	DiscardedAt     *time.Time         `gorm:"column:discarded_at"`
	Items           []CartSnapshotItem `gorm:"foreignKey:SnapshotID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the primary key when the database does not.
func (s *CartSnapshot) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
