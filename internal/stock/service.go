package stock

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fatine-labs/souqly-backend/pkg/auth"
	"github.com/fatine-labs/souqly-backend/pkg/db/models"
	"github.com/fatine-labs/souqly-backend/pkg/enums"
	pkgerrors "github.com/fatine-labs/souqly-backend/pkg/errors"
	"github.com/fatine-labs/souqly-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Movement describes a single stock mutation to record in the ledger.
type Movement struct {
	ProductID   uuid.UUID
	Quantity    int
	ActorID     uuid.UUID
	Type        enums.StockChangeType
	ReferenceID *uuid.UUID
	Notes       *string
}

// Ledger mutates product stock and appends the matching audit entry in the
// caller's transaction. Deduct and Restore never commit on their own so order
// placement and return approval stay atomic.
type Ledger interface {
	Deduct(ctx context.Context, tx *gorm.DB, m Movement) (*models.Product, error)
	Restore(ctx context.Context, tx *gorm.DB, m Movement) (*models.Product, error)
	Adjust(ctx context.Context, actor auth.Actor, productID uuid.UUID, quantity int, notes *string) (*models.Product, error)
	History(ctx context.Context, actor auth.Actor, productID uuid.UUID, params pagination.Params) ([]models.StockHistory, error)
	LowStockReport(ctx context.Context, actor auth.Actor) ([]models.Product, error)
}

type ledger struct {
	repo Repository
	tx   txRunner
}

// NewLedger builds the stock ledger with the required dependencies.
func NewLedger(repo Repository, tx txRunner) (Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &ledger{repo: repo, tx: tx}, nil
}

func (l *ledger) Deduct(ctx context.Context, tx *gorm.DB, m Movement) (*models.Product, error) {
	if err := validateMovement(m); err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock deduction")
	}
	repo := l.repo.WithTx(tx)

	ok, err := repo.DecrementStock(ctx, m.ProductID, m.Quantity)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
	}
	if !ok {
		product, ferr := repo.FindProduct(ctx, m.ProductID)
		if ferr == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		if ferr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, ferr, "load product")
		}
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").WithDetails(map[string]any{
			"product_id": m.ProductID,
			"requested":  m.Quantity,
			"available":  product.Stock,
		})
	}

	product, err := repo.FindProduct(ctx, m.ProductID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload product")
	}

	entry := &models.StockHistory{
		ProductID:     m.ProductID,
		UserID:        m.ActorID,
		PreviousStock: product.Stock + m.Quantity,
		NewStock:      product.Stock,
		Adjustment:    -m.Quantity,
		Type:          m.Type,
		ReferenceID:   m.ReferenceID,
		Notes:         m.Notes,
	}
	if err := repo.CreateHistory(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append stock history")
	}
	return product, nil
}

func (l *ledger) Restore(ctx context.Context, tx *gorm.DB, m Movement) (*models.Product, error) {
	if err := validateMovement(m); err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock restore")
	}
	repo := l.repo.WithTx(tx)

	if _, err := repo.FindProduct(ctx, m.ProductID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if err := repo.IncrementStock(ctx, m.ProductID, m.Quantity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment stock")
	}

	product, err := repo.FindProduct(ctx, m.ProductID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload product")
	}

	entry := &models.StockHistory{
		ProductID:     m.ProductID,
		UserID:        m.ActorID,
		PreviousStock: product.Stock - m.Quantity,
		NewStock:      product.Stock,
		Adjustment:    m.Quantity,
		Type:          m.Type,
		ReferenceID:   m.ReferenceID,
		Notes:         m.Notes,
	}
	if err := repo.CreateHistory(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append stock history")
	}
	return product, nil
}

func (l *ledger) Adjust(ctx context.Context, actor auth.Actor, productID uuid.UUID, quantity int, notes *string) (*models.Product, error) {
	if !actor.Can(auth.CapAdjustStock) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to adjust stock")
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}

	var adjusted *models.Product
	err := l.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := l.repo.WithTx(tx)

		product, err := repo.FindProduct(ctx, productID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if !actor.IsAdmin() && product.SellerID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "product does not belong to seller")
		}
		if product.Stock == quantity {
			adjusted = product
			return nil
		}

		if err := repo.SetStock(ctx, productID, quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set stock")
		}

		entry := &models.StockHistory{
			ProductID:     productID,
			UserID:        actor.UserID,
			PreviousStock: product.Stock,
			NewStock:      quantity,
			Adjustment:    quantity - product.Stock,
			Type:          enums.StockChangeManualAdjustment,
			Notes:         notes,
		}
		if err := repo.CreateHistory(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append stock history")
		}

		product.Stock = quantity
		adjusted = product
		return nil
	})
	if err != nil {
		return nil, err
	}
	return adjusted, nil
}

func (l *ledger) History(ctx context.Context, actor auth.Actor, productID uuid.UUID, params pagination.Params) ([]models.StockHistory, error) {
	if !actor.Can(auth.CapViewStock) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to view stock history")
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	product, err := l.repo.FindProduct(ctx, productID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !actor.IsAdmin() && product.SellerID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "product does not belong to seller")
	}

	entries, err := l.repo.ListHistoryByProduct(ctx, productID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock history")
	}
	return entries, nil
}

func (l *ledger) LowStockReport(ctx context.Context, actor auth.Actor) ([]models.Product, error) {
	if !actor.Can(auth.CapViewStock) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to view stock levels")
	}

	var sellerID *uuid.UUID
	if !actor.IsAdmin() {
		id := actor.UserID
		sellerID = &id
	}
	products, err := l.repo.ListLowStock(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock products")
	}
	return products, nil
}

func validateMovement(m Movement) error {
	if m.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if m.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if !m.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid stock change type")
	}
	return nil
}
