package stock

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftandcart/shopfront-backend/pkg/db/models"
	pkgerrors "github.com/craftandcart/shopfront-backend/pkg/errors"
)

const reasonOrderDebit = "order_debit"

// DebitLine is one product quantity to remove from stock.
type DebitLine struct {
	ProductID uuid.UUID
	Quantity  int
}

// Service applies stock movements. Debits are all-or-nothing: the caller's
// transaction rolls back every line when any single line cannot be covered.
type Service interface {
	DebitAll(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, lines []DebitLine) error
	Available(ctx context.Context, productID uuid.UUID) (int, error)
}

type service struct {
	repo Repository
}

// NewService wires a stock service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stock repository required")
	}
	return &service{repo: repo}, nil
}

// DebitAll debits every line inside tx, visiting products in id order so
// concurrent reconciliations acquire row locks in the same sequence.
func (s *service) DebitAll(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, lines []DebitLine) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required for stock debit")
	}

	merged := mergeLines(lines)
	repo := s.repo.WithTx(tx)
	entries := make([]models.StockLedgerEntry, 0, len(merged))

	for _, line := range merged {
		if line.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "stock debit quantity must be positive").
				WithDetails(map[string]any{"product_id": line.ProductID.String()})
		}
		ok, err := repo.DebitConditional(ctx, line.ProductID, line.Quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit stock")
		}
		if !ok {
			available := 0
			if item, findErr := repo.FindItem(ctx, line.ProductID); findErr == nil && item != nil {
				available = item.AvailableQty
			}
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
				WithDetails(map[string]any{
					"product_id": line.ProductID.String(),
					"requested":  line.Quantity,
					"available":  available,
				})
		}
		oid := orderID
		entries = append(entries, models.StockLedgerEntry{
			ProductID: line.ProductID,
			OrderID:   &oid,
			Delta:     -line.Quantity,
			Reason:    reasonOrderDebit,
		})
	}

	if err := repo.CreateLedgerEntries(ctx, entries); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record stock ledger")
	}
	return nil
}

func (s *service) Available(ctx context.Context, productID uuid.UUID) (int, error) {
	item, err := s.repo.FindItem(ctx, productID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock item")
	}
	if item == nil {
		return 0, pkgerrors.New(pkgerrors.CodeNotFound, "stock item not found").
			WithDetails(map[string]any{"product_id": productID.String()})
	}
	return item.AvailableQty, nil
}

func mergeLines(lines []DebitLine) []DebitLine {
	byProduct := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		byProduct[line.ProductID] += line.Quantity
	}
	merged := make([]DebitLine, 0, len(byProduct))
	for id, qty := range byProduct {
		merged = append(merged, DebitLine{ProductID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].ProductID.String() < merged[j].ProductID.String()
	})
	return merged
}
