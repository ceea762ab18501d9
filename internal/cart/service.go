package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fatine-labs/souqly-backend/pkg/auth"
	"github.com/fatine-labs/souqly-backend/pkg/db/models"
	pkgerrors "github.com/fatine-labs/souqly-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages the per-user pending selection. Adding an item checks the
// product's current stock but never reserves it; stock is only committed at
// order placement.
type Service interface {
	Get(ctx context.Context, actor auth.Actor) (*View, error)
	AddItem(ctx context.Context, actor auth.Actor, productID uuid.UUID, quantity int) (*View, error)
	UpdateItem(ctx context.Context, actor auth.Actor, itemID uuid.UUID, quantity int) (*View, error)
	RemoveItem(ctx context.Context, actor auth.Actor, itemID uuid.UUID) (*View, error)
	Clear(ctx context.Context, actor auth.Actor) error
	Count(ctx context.Context, actor auth.Actor) (int, error)
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService builds a cart service with the required dependencies.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Get(ctx context.Context, actor auth.Actor) (*View, error) {
	cart, err := s.findOrCreate(ctx, s.repo, actor.UserID)
	if err != nil {
		return nil, err
	}
	return buildView(cart), nil
}

func (s *service) AddItem(ctx context.Context, actor auth.Actor, productID uuid.UUID, quantity int) (*View, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		product, err := repo.FindProduct(ctx, productID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if !product.Active {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}

		cart, err := s.findOrCreate(ctx, repo, actor.UserID)
		if err != nil {
			return err
		}

		// an existing line for the same product merges by summing quantities
		existing, err := repo.FindItemByProduct(ctx, cart.ID, productID)
		if err != nil && err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}

		target := quantity
		if existing != nil {
			target += existing.Quantity
		}
		if target > product.Stock {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").WithDetails(map[string]any{
				"product_id": product.ID,
				"requested":  target,
				"available":  product.Stock,
			})
		}

		if existing != nil {
			return wrapDep(repo.UpdateItemQuantity(ctx, existing.ID, target), "update cart item")
		}
		item := &models.CartItem{
			CartID:    cart.ID,
			ProductID: product.ID,
			Quantity:  quantity,
			UnitPrice: product.Price,
		}
		return wrapDep(repo.CreateItem(ctx, item), "create cart item")
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, actor)
}

func (s *service) UpdateItem(ctx context.Context, actor auth.Actor, itemID uuid.UUID, quantity int) (*View, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		item, err := s.loadOwnedItem(ctx, repo, actor, itemID)
		if err != nil {
			return err
		}

		product, err := repo.FindProduct(ctx, item.ProductID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if quantity > product.Stock {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").WithDetails(map[string]any{
				"product_id": product.ID,
				"requested":  quantity,
				"available":  product.Stock,
			})
		}
		return wrapDep(repo.UpdateItemQuantity(ctx, item.ID, quantity), "update cart item")
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, actor)
}

func (s *service) RemoveItem(ctx context.Context, actor auth.Actor, itemID uuid.UUID) (*View, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := s.loadOwnedItem(ctx, repo, actor, itemID)
		if err != nil {
			return err
		}
		return wrapDep(repo.DeleteItem(ctx, item.ID), "delete cart item")
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, actor)
}

func (s *service) Clear(ctx context.Context, actor auth.Actor) error {
	cart, err := s.repo.FindByUser(ctx, actor.UserID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return wrapDep(s.repo.DeleteItemsByCart(ctx, cart.ID), "clear cart")
}

func (s *service) Count(ctx context.Context, actor auth.Actor) (int, error) {
	view, err := s.Get(ctx, actor)
	if err != nil {
		return 0, err
	}
	return view.ItemCount, nil
}

func (s *service) findOrCreate(ctx context.Context, repo Repository, userID uuid.UUID) (*models.Cart, error) {
	cart, err := repo.FindByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	created, err := repo.Create(ctx, &models.Cart{UserID: userID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return created, nil
}

func (s *service) loadOwnedItem(ctx context.Context, repo Repository, actor auth.Actor, itemID uuid.UUID) (*models.CartItem, error) {
	cart, err := repo.FindByUser(ctx, actor.UserID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	item, err := repo.FindItem(ctx, itemID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}
	if item.CartID != cart.ID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return item, nil
}

func wrapDep(err error, message string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}
