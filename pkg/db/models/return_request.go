package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fatine-labs/souqly-backend/pkg/enums"
)

// ReturnRequest is a client-initiated, admin-adjudicated reversal of order
// lines. The unique index on order_id enforces at most one per order.
type ReturnRequest struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID      uuid.UUID          `gorm:"column:order_id;type:uuid;not null;uniqueIndex" json:"order_id"`
	UserID       uuid.UUID          `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	Reason       string             `gorm:"column:reason;not null" json:"reason"`
	Status       enums.ReturnStatus `gorm:"column:status;type:text;not null;default:'pending'" json:"status"`
	AdminNotes   *string            `gorm:"column:admin_notes" json:"admin_notes,omitempty"`
	RefundAmount *decimal.Decimal   `gorm:"column:refund_amount;type:numeric(10,2)" json:"refund_amount,omitempty"`
	IsRefunded   bool               `gorm:"column:is_refunded;not null;default:false" json:"is_refunded"`
	Items        []ReturnItem       `gorm:"foreignKey:ReturnID;constraint:OnDelete:CASCADE" json:"items"`
	Order        *Order             `gorm:"foreignKey:OrderID" json:"order,omitempty"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (r *ReturnRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// ReturnItem weakly references the order item being sent back; it never owns
// it. Requested quantity is bounded by the original order item quantity.
type ReturnItem struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ReturnID    uuid.UUID  `gorm:"column:return_id;type:uuid;not null;index" json:"return_id"`
	OrderItemID uuid.UUID  `gorm:"column:order_item_id;type:uuid;not null;index" json:"order_item_id"`
	Quantity    int        `gorm:"column:quantity;not null" json:"quantity"`
	Reason      *string    `gorm:"column:reason" json:"reason,omitempty"`
	OrderItem   *OrderItem `gorm:"foreignKey:OrderItemID" json:"order_item,omitempty"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (r *ReturnItem) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
