package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/craftandcart/shopfront-backend/pkg/enums"
)

// OrderConfirmedEvent is emitted in the same transaction that persists a
// reconciled order. Downstream notification consumers fan out from it.
type OrderConfirmedEvent struct {
	OrderID         uuid.UUID           `json:"order_id"`
	OrderNumber     string              `json:"order_number"`
	CheckoutToken   string              `json:"checkout_token"`
	CustomerID      *uuid.UUID          `json:"customer_id,omitempty"`
	Currency        enums.Currency      `json:"currency"`
	GrandTotalCents int64               `json:"grand_total_cents"`
	Status          enums.OrderStatus   `json:"status"`
	PaymentStatus   enums.PaymentStatus `json:"payment_status"`
	PlacedAt        time.Time           `json:"placed_at"`
}

// SnapshotExpiredEvent reports a cart snapshot discarded by the TTL sweep.
type SnapshotExpiredEvent struct {
	SnapshotID uuid.UUID `json:"snapshot_id"`
	Token      string    `json:"token"`
	ExpiredAt  time.Time `json:"expired_at"`
}
