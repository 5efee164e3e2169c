package models

import (
	"time"

	"github.com/google/uuid"
)

// StockItem tracks the available count per product.
type StockItem struct {
	ProductID    uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	SKU          string    `gorm:"column:sku;not null"`
	AvailableQty int       `gorm:"column:available_qty;not null;default:0"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
