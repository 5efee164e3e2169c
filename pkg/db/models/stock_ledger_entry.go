package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockLedgerEntry is an append-only record of a stock movement. Debits are
// written in the same transaction as the order they belong to.
type StockLedgerEntry struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	OrderID   *uuid.UUID `gorm:"column:order_id;type:uuid"`
	Delta     int        `gorm:"column:delta;not null"`
	Reason    string     `gorm:"column:reason;not null"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// BeforeCreate assigns the primary key when the database does not.
func (e *StockLedgerEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
