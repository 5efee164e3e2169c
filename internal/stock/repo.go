package stock

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftandcart/shopfront-backend/pkg/db/models"
)

// Repository exposes the persistence surface for stock levels and the
// movement ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindItem(ctx context.Context, productID uuid.UUID) (*models.StockItem, error)
	UpsertItem(ctx context.Context, item *models.StockItem) error
	DebitConditional(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	CreateLedgerEntries(ctx context.Context, entries []models.StockLedgerEntry) error
	LedgerForProduct(ctx context.Context, productID uuid.UUID) ([]models.StockLedgerEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a stock repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindItem(ctx context.Context, productID uuid.UUID) (*models.StockItem, error) {
	var item models.StockItem
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *repository) UpsertItem(ctx context.Context, item *models.StockItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// DebitConditional decrements available_qty only when enough stock remains.
// It reports false when the row was not touched, either because the product
// is unknown or the available count is short.
func (r *repository) DebitConditional(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE stock_items
		SET available_qty = available_qty - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND available_qty >= ?
	`, qty, productID, qty)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) CreateLedgerEntries(ctx context.Context, entries []models.StockLedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

func (r *repository) LedgerForProduct(ctx context.Context, productID uuid.UUID) ([]models.StockLedgerEntry, error) {
	var rows []models.StockLedgerEntry
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}
