package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a seller's listing. Stock is mutated only through order
// placement, return approval, or an explicit seller/admin adjustment; every
// mutation appends a StockHistory row.
type Product struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SellerID       uuid.UUID       `gorm:"column:seller_id;type:uuid;not null;index" json:"seller_id"`
	CategoryID     *uuid.UUID      `gorm:"column:category_id;type:uuid;index" json:"category_id,omitempty"`
	Name           string          `gorm:"column:name;not null" json:"name"`
	Slug           string          `gorm:"column:slug;not null;uniqueIndex" json:"slug"`
	Description    *string         `gorm:"column:description" json:"description,omitempty"`
	Price          decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null" json:"price"`
	Stock          int             `gorm:"column:stock;not null;default:0" json:"stock"`
	StockThreshold int             `gorm:"column:stock_threshold;not null;default:5" json:"stock_threshold"`
	Active         bool            `gorm:"column:active;not null;default:true" json:"active"`
	ImageURL       *string         `gorm:"column:image_url" json:"image_url,omitempty"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// LowStock reports whether the product sits at or below its alert threshold.
func (p *Product) LowStock() bool {
	return p.Stock <= p.StockThreshold
}
