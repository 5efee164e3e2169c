package orders

import (
	"context"

	"gorm.io/gorm"

	"github.com/craftandcart/shopfront-backend/pkg/db/models"
)

// Repository defines persistence operations for the orders tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByCheckoutToken(ctx context.Context, token string) (*models.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
}
