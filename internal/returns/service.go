package returns

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fatine-labs/souqly-backend/internal/stock"
	"github.com/fatine-labs/souqly-backend/pkg/auth"
	"github.com/fatine-labs/souqly-backend/pkg/db"
	"github.com/fatine-labs/souqly-backend/pkg/db/models"
	"github.com/fatine-labs/souqly-backend/pkg/enums"
	pkgerrors "github.com/fatine-labs/souqly-backend/pkg/errors"
	"github.com/fatine-labs/souqly-backend/pkg/metrics"
	"github.com/fatine-labs/souqly-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Notifier receives return decisions after the transaction has committed.
type Notifier interface {
	ReturnDecided(ctx context.Context, request *models.ReturnRequest)
}

// Service adjudicates return requests. Clients open a return against their
// own order unless it was cancelled or declined; admins move the request
// through the state machine.
// Approval restores stock, the refund step marks the payment refunded.
type Service interface {
	Request(ctx context.Context, actor auth.Actor, orderID uuid.UUID, input RequestInput) (*models.ReturnRequest, error)
	UpdateStatus(ctx context.Context, actor auth.Actor, returnID uuid.UUID, input DecisionInput) (*models.ReturnRequest, error)
	Get(ctx context.Context, actor auth.Actor, returnID uuid.UUID) (*models.ReturnRequest, error)
	List(ctx context.Context, actor auth.Actor, params pagination.Params) (*ReturnList, error)
}

type service struct {
	repo     Repository
	ledger   stock.Ledger
	tx       txRunner
	notifier Notifier
	metrics  *metrics.CommerceMetrics
}

// NewService builds a returns service with the required dependencies.
func NewService(repo Repository, ledger stock.Ledger, tx txRunner, notifier Notifier, m *metrics.CommerceMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("returns repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	return &service{repo: repo, ledger: ledger, tx: tx, notifier: notifier, metrics: m}, nil
}

func (s *service) Request(ctx context.Context, actor auth.Actor, orderID uuid.UUID, input RequestInput) (*models.ReturnRequest, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return reason required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item required")
	}

	var request *models.ReturnRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.UserID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
		}
		if order.Status == enums.OrderStatusCancelled || order.Status == enums.OrderStatusDeclined {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not eligible for return").
				WithDetails(map[string]any{"status": order.Status.String()})
		}

		items, err := buildReturnItems(order, input.Items)
		if err != nil {
			return err
		}

		created, err := repo.Create(ctx, &models.ReturnRequest{
			OrderID: orderID,
			UserID:  actor.UserID,
			Reason:  input.Reason,
			Status:  enums.ReturnStatusPending,
		})
		if err != nil {
			if db.IsUniqueViolation(err) {
				return pkgerrors.New(pkgerrors.CodeConflict, "a return already exists for this order")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create return request")
		}
		for i := range items {
			items[i].ReturnID = created.ID
		}
		if err := repo.CreateItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create return items")
		}
		created.Items = items
		request = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (s *service) UpdateStatus(ctx context.Context, actor auth.Actor, returnID uuid.UUID, input DecisionInput) (*models.ReturnRequest, error) {
	if !actor.Can(auth.CapProcessReturns) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "insufficient permissions")
	}
	if returnID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid return status")
	}

	var request *models.ReturnRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		loaded, err := repo.FindByID(ctx, returnID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load return request")
		}
		if !loaded.Status.CanTransitionTo(input.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "invalid return status transition").
				WithDetails(map[string]any{
					"from": loaded.Status.String(),
					"to":   input.Status.String(),
				})
		}

		updates := map[string]any{"status": input.Status}
		if input.AdminNotes != nil {
			updates["admin_notes"] = *input.AdminNotes
		}

		switch input.Status {
		case enums.ReturnStatusApproved:
			if err := s.approve(ctx, tx, loaded); err != nil {
				return err
			}
		case enums.ReturnStatusRefunded:
			refund, err := refundAmount(input.RefundAmount)
			if err != nil {
				return err
			}
			updates["refund_amount"] = refund
			updates["is_refunded"] = true
			if err := repo.UpdatePaymentStatusByOrder(ctx, loaded.OrderID, enums.PaymentStatusRefunded); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment refunded")
			}
		}

		if err := repo.Update(ctx, returnID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update return request")
		}
		reloaded, err := repo.FindByID(ctx, returnID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload return request")
		}
		request = reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncReturnDecided(request.Status.String())
	s.notifier.ReturnDecided(ctx, request)
	return request, nil
}

func (s *service) Get(ctx context.Context, actor auth.Actor, returnID uuid.UUID) (*models.ReturnRequest, error) {
	if returnID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return id required")
	}
	request, err := s.repo.FindByID(ctx, returnID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load return request")
	}
	if request.UserID == actor.UserID || actor.IsAdmin() {
		return request, nil
	}
	if actor.IsVendor() {
		involved, err := s.repo.SellerHasLines(ctx, request.OrderID, actor.UserID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check seller lines")
		}
		if involved {
			return request, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeForbidden, "return request does not belong to user")
}

func (s *service) List(ctx context.Context, actor auth.Actor, params pagination.Params) (*ReturnList, error) {
	params.Limit = pagination.NormalizeLimit(params.Limit)

	var (
		requests []models.ReturnRequest
		err      error
	)
	switch {
	case actor.IsAdmin():
		requests, err = s.repo.ListAll(ctx, params)
	case actor.IsVendor():
		requests, err = s.repo.ListBySeller(ctx, actor.UserID, params)
	default:
		requests, err = s.repo.ListByUser(ctx, actor.UserID, params)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list return requests")
	}
	return buildReturnPage(requests, params.Limit), nil
}

// approve restores stock for every returned line inside the caller's
// transaction.
func (s *service) approve(ctx context.Context, tx *gorm.DB, request *models.ReturnRequest) error {
	for _, item := range request.Items {
		if item.OrderItem == nil {
			return pkgerrors.New(pkgerrors.CodeInternal, "return item missing order line")
		}
		refID := request.ID
		_, err := s.ledger.Restore(ctx, tx, stock.Movement{
			ProductID:   item.OrderItem.ProductID,
			Quantity:    item.Quantity,
			ActorID:     request.UserID,
			Type:        enums.StockChangeReturn,
			ReferenceID: &refID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// refundAmount validates the admin-provided figure. The amount is mandatory
// on the refunded transition and must not be negative.
func refundAmount(amount *decimal.Decimal) (decimal.Decimal, error) {
	if amount == nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "refund amount required when refunding")
	}
	if amount.IsNegative() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must not be negative")
	}
	return *amount, nil
}

func buildReturnItems(order *models.Order, lines []LineInput) ([]models.ReturnItem, error) {
	byID := make(map[uuid.UUID]*models.OrderItem, len(order.Items))
	for i := range order.Items {
		byID[order.Items[i].ID] = &order.Items[i]
	}

	seen := make(map[uuid.UUID]bool, len(lines))
	items := make([]models.ReturnItem, 0, len(lines))
	for _, line := range lines {
		if line.OrderItemID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "order item id required")
		}
		if seen[line.OrderItemID] {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate order item in return")
		}
		seen[line.OrderItemID] = true

		orderItem, ok := byID[line.OrderItemID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "order item does not belong to order").
				WithDetails(map[string]any{"order_item_id": line.OrderItemID})
		}
		if line.Quantity <= 0 || line.Quantity > orderItem.Quantity {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "return quantity exceeds ordered quantity").
				WithDetails(map[string]any{
					"order_item_id": line.OrderItemID,
					"requested":     line.Quantity,
					"ordered":       orderItem.Quantity,
				})
		}
		items = append(items, models.ReturnItem{
			OrderItemID: line.OrderItemID,
			Quantity:    line.Quantity,
			Reason:      line.Reason,
		})
	}
	return items, nil
}

func buildReturnPage(requests []models.ReturnRequest, limit int) *ReturnList {
	page := &ReturnList{Returns: requests}
	if len(requests) > limit {
		page.Returns = requests[:limit]
		last := page.Returns[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page
}
