package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fatine-labs/souqly-backend/pkg/enums"
)

// Payment records the simulated capture for an order. The unique index on
// order_id enforces the at-most-one-payment rule at the storage layer.
type Payment struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID       uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex" json:"order_id"`
	PaymentNumber string              `gorm:"column:payment_number;not null;uniqueIndex" json:"payment_number"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(10,2);not null" json:"amount"`
	Currency      enums.Currency      `gorm:"column:currency;type:text;not null;default:'EUR'" json:"currency"`
	Status        enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'" json:"status"`
	Method        enums.PaymentMethod `gorm:"column:method;type:text;not null" json:"method"`
	Details       JSONMap             `gorm:"column:details;type:jsonb;serializer:json" json:"details,omitempty"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
