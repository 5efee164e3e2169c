package snapshot

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/craftandcart/shopfront-backend/pkg/db/models"
)

// Repository persists cart snapshots and their frozen line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, snapshot *models.CartSnapshot) error
	FindByToken(ctx context.Context, token string) (*models.CartSnapshot, error)
	Discard(ctx context.Context, token string, at time.Time) error
	FindExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.CartSnapshot, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a snapshot repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, snapshot *models.CartSnapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

func (r *repository) FindByToken(ctx context.Context, token string) (*models.CartSnapshot, error) {
	var snap models.CartSnapshot
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("token = ?", token).
		First(&snap).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &snap, nil
}

func (r *repository) Discard(ctx context.Context, token string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.CartSnapshot{}).
		Where("token = ? AND discarded_at IS NULL", token).
		Update("discarded_at", at).Error
}

func (r *repository) FindExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.CartSnapshot, error) {
	var rows []models.CartSnapshot
	err := r.db.WithContext(ctx).
		Where("discarded_at IS NULL AND expires_at < ?", cutoff).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
