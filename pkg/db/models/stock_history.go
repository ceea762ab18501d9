package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fatine-labs/souqly-backend/pkg/enums"
)

// StockHistory is the append-only audit ledger for stock mutations. Rows are
// never updated or deleted once written.
type StockHistory struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProductID     uuid.UUID             `gorm:"column:product_id;type:uuid;not null;index" json:"product_id"`
	UserID        uuid.UUID             `gorm:"column:user_id;type:uuid;not null" json:"user_id"`
	PreviousStock int                   `gorm:"column:previous_stock;not null" json:"previous_stock"`
	NewStock      int                   `gorm:"column:new_stock;not null" json:"new_stock"`
	Adjustment    int                   `gorm:"column:adjustment;not null" json:"adjustment"`
	Type          enums.StockChangeType `gorm:"column:type;type:text;not null" json:"type"`
	ReferenceID   *uuid.UUID            `gorm:"column:reference_id;type:uuid" json:"reference_id,omitempty"`
	Notes         *string               `gorm:"column:notes" json:"notes,omitempty"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (s *StockHistory) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
