package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartSnapshotItem is a frozen product line inside a cart snapshot.
type CartSnapshotItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SnapshotID     uuid.UUID `gorm:"column:snapshot_id;type:uuid;not null"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Name           string    `gorm:"column:name;not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	LineTotalCents int64     `gorm:"column:line_total_cents;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

// BeforeCreate assigns the primary key when the database does not.
func (i *CartSnapshotItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
