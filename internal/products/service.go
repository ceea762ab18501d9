package products

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fatine-labs/souqly-backend/internal/stock"
	"github.com/fatine-labs/souqly-backend/pkg/auth"
	"github.com/fatine-labs/souqly-backend/pkg/db"
	"github.com/fatine-labs/souqly-backend/pkg/db/models"
	"github.com/fatine-labs/souqly-backend/pkg/enums"
	pkgerrors "github.com/fatine-labs/souqly-backend/pkg/errors"
	"github.com/fatine-labs/souqly-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes catalogue management and public browsing.
type Service interface {
	Create(ctx context.Context, actor auth.Actor, input CreateProductInput) (*models.Product, error)
	Update(ctx context.Context, actor auth.Actor, productID uuid.UUID, input UpdateProductInput) (*models.Product, error)
	Deactivate(ctx context.Context, actor auth.Actor, productID uuid.UUID) error
	Get(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	GetBySlug(ctx context.Context, slug string) (*models.Product, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*ProductList, error)
	ListMine(ctx context.Context, actor auth.Actor, params pagination.Params) (*ProductList, error)
	Categories(ctx context.Context) ([]models.Category, error)
}

type service struct {
	repo   Repository
	ledger stock.Ledger
	tx     txRunner
}

// NewService builds a products service with the required dependencies.
func NewService(repo Repository, ledger stock.Ledger, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, ledger: ledger, tx: tx}, nil
}

func (s *service) Create(ctx context.Context, actor auth.Actor, input CreateProductInput) (*models.Product, error) {
	if !actor.Can(auth.CapManageCatalog) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to manage products")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name required")
	}
	if input.Price.IsNegative() || input.Price.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if input.Stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock must not be negative")
	}

	threshold := input.StockThreshold
	if threshold <= 0 {
		threshold = 5
	}

	product := &models.Product{
		SellerID:       actor.UserID,
		CategoryID:     input.CategoryID,
		Name:           strings.TrimSpace(input.Name),
		Slug:           buildSlug(input.Name),
		Description:    input.Description,
		Price:          input.Price,
		StockThreshold: threshold,
		Active:         true,
		ImageURL:       input.ImageURL,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.Create(ctx, product); err != nil {
			if db.IsUniqueViolation(err) {
				return pkgerrors.New(pkgerrors.CodeConflict, "product slug already taken")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
		}
		if input.Stock > 0 {
			updated, lerr := s.ledger.Restore(ctx, tx, stock.Movement{
				ProductID: product.ID,
				Quantity:  input.Stock,
				ActorID:   actor.UserID,
				Type:      enums.StockChangePurchase,
			})
			if lerr != nil {
				return lerr
			}
			product.Stock = updated.Stock
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *service) Update(ctx context.Context, actor auth.Actor, productID uuid.UUID, input UpdateProductInput) (*models.Product, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	product, err := s.loadOwned(ctx, actor, productID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name must not be empty")
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Price != nil {
		if input.Price.IsNegative() || input.Price.IsZero() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
		}
		updates["price"] = *input.Price
	}
	if input.StockThreshold != nil {
		if *input.StockThreshold < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock threshold must not be negative")
		}
		updates["stock_threshold"] = *input.StockThreshold
	}
	if input.CategoryID != nil {
		updates["category_id"] = *input.CategoryID
	}
	if input.ImageURL != nil {
		updates["image_url"] = *input.ImageURL
	}
	if input.Active != nil {
		updates["active"] = *input.Active
	}
	if len(updates) == 0 {
		return product, nil
	}

	if err := s.repo.Update(ctx, productID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}

	refreshed, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload product")
	}
	return refreshed, nil
}

// Deactivate retires a listing instead of deleting it so order history and
// the stock ledger keep their references.
func (s *service) Deactivate(ctx context.Context, actor auth.Actor, productID uuid.UUID) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if _, err := s.loadOwned(ctx, actor, productID); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, productID, map[string]any{"active": false}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate product")
	}
	return nil
}

func (s *service) Get(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *service) GetBySlug(ctx context.Context, slug string) (*models.Product, error) {
	if strings.TrimSpace(slug) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug required")
	}
	product, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *service) List(ctx context.Context, params pagination.Params, filters ListFilters) (*ProductList, error) {
	products, err := s.repo.List(ctx, params, filters, true)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return buildProductPage(products, params.Limit), nil
}

func (s *service) ListMine(ctx context.Context, actor auth.Actor, params pagination.Params) (*ProductList, error) {
	if !actor.Can(auth.CapManageCatalog) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to manage products")
	}
	filters := ListFilters{}
	if !actor.IsAdmin() {
		id := actor.UserID
		filters.SellerID = &id
	}
	products, err := s.repo.List(ctx, params, filters, false)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list seller products")
	}
	return buildProductPage(products, params.Limit), nil
}

func (s *service) Categories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	return categories, nil
}

func (s *service) loadOwned(ctx context.Context, actor auth.Actor, productID uuid.UUID) (*models.Product, error) {
	if !actor.Can(auth.CapManageCatalog) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to manage products")
	}
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !actor.IsAdmin() && product.SellerID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "product does not belong to seller")
	}
	return product, nil
}

func buildProductPage(products []models.Product, limit int) *ProductList {
	normalized := pagination.NormalizeLimit(limit)
	page := &ProductList{Products: products}
	if len(products) > normalized {
		page.Products = products[:normalized]
		last := page.Products[len(page.Products)-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page
}

var slugStripRe = regexp.MustCompile(`[^a-z0-9]+`)

func buildSlug(name string) string {
	base := strings.ToLower(strings.TrimSpace(name))
	base = slugStripRe.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-")
	if base == "" {
		base = "product"
	}
	// a short random suffix keeps slugs unique without a retry loop
	return base + "-" + uuid.NewString()[:8]
}
