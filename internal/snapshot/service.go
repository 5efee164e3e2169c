package snapshot

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftandcart/shopfront-backend/pkg/db/models"
	"github.com/craftandcart/shopfront-backend/pkg/enums"
	pkgerrors "github.com/craftandcart/shopfront-backend/pkg/errors"
	"github.com/craftandcart/shopfront-backend/pkg/types"
)

// CreateItemInput is one cart line frozen into the snapshot.
type CreateItemInput struct {
	ProductID      uuid.UUID
	Name           string
	Quantity       int
	UnitPriceCents int64
}

// GuestIdentity names the buyer when no registered customer id is present.
type GuestIdentity struct {
	Email     string
	FirstName string
	LastName  string
}

// CreateSnapshotInput carries everything needed to freeze a cart at checkout.
// Exactly one of CustomerID and Guest must be set.
type CreateSnapshotInput struct {
	CustomerID      *uuid.UUID
	Guest           *GuestIdentity
	Currency        enums.Currency
	ShippingAddress *types.Address
	BillingAddress  *types.Address
	DiscountCents   int64
	ShippingCents   int64
	TaxCents        int64
	Items           []CreateItemInput
}

// Service freezes carts when checkout begins and hands the frozen copy back
// to the reconciler once payment resolves.
type Service interface {
	Create(ctx context.Context, input CreateSnapshotInput) (*models.CartSnapshot, error)
	Get(ctx context.Context, token string) (*models.CartSnapshot, error)
	DiscardTx(ctx context.Context, tx *gorm.DB, token string) error
}

type service struct {
	repo Repository
	ttl  time.Duration
	now  func() time.Time
}

// NewService wires a snapshot service. TTL bounds how long a frozen cart
// stays redeemable.
func NewService(repo Repository, ttl time.Duration) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "snapshot repository required")
	}
	if ttl <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "snapshot ttl must be positive")
	}
	return &service{repo: repo, ttl: ttl, now: time.Now}, nil
}

func (s *service) Create(ctx context.Context, input CreateSnapshotInput) (*models.CartSnapshot, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart must contain at least one item")
	}
	if input.CustomerID != nil && input.Guest != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id and guest identity are mutually exclusive")
	}
	if input.CustomerID == nil && input.Guest == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "either customer id or guest identity is required")
	}
	kind := enums.CustomerKindRegistered
	if input.Guest != nil {
		kind = enums.CustomerKindGuest
		if strings.TrimSpace(input.Guest.Email) == "" || !strings.Contains(input.Guest.Email, "@") {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest email is required")
		}
		if strings.TrimSpace(input.Guest.FirstName) == "" || strings.TrimSpace(input.Guest.LastName) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest first and last name are required")
		}
	}
	if input.DiscountCents < 0 || input.ShippingCents < 0 || input.TaxCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total adjustments must not be negative")
	}
	currency := input.Currency
	if currency == "" {
		currency = enums.CurrencyEUR
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid currency")
	}

	items := make([]models.CartSnapshotItem, 0, len(input.Items))
	var subtotal int64
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item product id is required")
		}
		if strings.TrimSpace(item.Name) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item name is required").
				WithDetails(map[string]any{"product_id": item.ProductID.String()})
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive").
				WithDetails(map[string]any{"product_id": item.ProductID.String()})
		}
		if item.UnitPriceCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item price must not be negative").
				WithDetails(map[string]any{"product_id": item.ProductID.String()})
		}
		lineTotal := int64(item.Quantity) * item.UnitPriceCents
		subtotal += lineTotal
		items = append(items, models.CartSnapshotItem{
			ProductID:      item.ProductID,
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			LineTotalCents: lineTotal,
		})
	}

	if input.DiscountCents > subtotal {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount must not exceed the cart subtotal").
			WithDetails(map[string]any{"subtotal_cents": subtotal, "discount_cents": input.DiscountCents})
	}

	now := s.now()
	snap := &models.CartSnapshot{
		Token:           uuid.NewString(),
		CustomerID:      input.CustomerID,
		CustomerKind:    kind,
		Currency:        currency,
		ShippingAddress: input.ShippingAddress,
		BillingAddress:  input.BillingAddress,
		SubtotalCents:   subtotal,
		DiscountCents:   input.DiscountCents,
		ShippingCents:   input.ShippingCents,
		TaxCents:        input.TaxCents,
		GrandTotalCents: subtotal - input.DiscountCents + input.ShippingCents + input.TaxCents,
		ExpiresAt:       now.Add(s.ttl),
		Items:           items,
	}
	if input.Guest != nil {
		email := strings.TrimSpace(input.Guest.Email)
		first := strings.TrimSpace(input.Guest.FirstName)
		last := strings.TrimSpace(input.Guest.LastName)
		snap.GuestEmail = &email
		snap.GuestFirstName = &first
		snap.GuestLastName = &last
	}
	if err := s.repo.Create(ctx, snap); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart snapshot")
	}
	return snap, nil
}

// Get returns the snapshot for token. Unknown tokens map to not-found,
// discarded or out-of-TTL snapshots map to the expired error.
func (s *service) Get(ctx context.Context, token string) (*models.CartSnapshot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout token is required")
	}
	snap, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart snapshot")
	}
	if snap == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found").
			WithDetails(map[string]any{"token": token})
	}
	if snap.DiscardedAt != nil || !s.now().Before(snap.ExpiresAt) {
		return nil, pkgerrors.New(pkgerrors.CodeSnapshotExpired, "checkout session expired").
			WithDetails(map[string]any{"token": token})
	}
	return snap, nil
}

// DiscardTx marks the snapshot discarded inside the caller's transaction so
// the discard commits or rolls back together with the order.
func (s *service) DiscardTx(ctx context.Context, tx *gorm.DB, token string) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required for snapshot discard")
	}
	if err := s.repo.WithTx(tx).Discard(ctx, token, s.now()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "discard cart snapshot")
	}
	return nil
}
