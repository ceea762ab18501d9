package products

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fatine-labs/souqly-backend/pkg/db/models"
)

// CreateProductInput carries the fields a seller supplies for a new listing.
type CreateProductInput struct {
	Name           string
	Description    *string
	Price          decimal.Decimal
	Stock          int
	StockThreshold int
	CategoryID     *uuid.UUID
	ImageURL       *string
}

// UpdateProductInput updates listing fields. Nil pointers leave the current
// value untouched. Stock is deliberately absent; stock changes go through the
// ledger so every mutation is audited.
type UpdateProductInput struct {
	Name           *string
	Description    *string
	Price          *decimal.Decimal
	StockThreshold *int
	CategoryID     *uuid.UUID
	ImageURL       *string
	Active         *bool
}

// ListFilters narrows the public catalogue listing.
type ListFilters struct {
	CategoryID *uuid.UUID
	SellerID   *uuid.UUID
	Search     string
}

// ProductList is a cursor page of products.
type ProductList struct {
	Products   []models.Product
	NextCursor string
}
