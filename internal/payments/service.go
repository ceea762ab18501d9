package payments

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fatine-labs/souqly-backend/pkg/auth"
	"github.com/fatine-labs/souqly-backend/pkg/config"
	"github.com/fatine-labs/souqly-backend/pkg/db/models"
	"github.com/fatine-labs/souqly-backend/pkg/enums"
	pkgerrors "github.com/fatine-labs/souqly-backend/pkg/errors"
	"github.com/fatine-labs/souqly-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Notifier receives payment events after the transaction has committed.
type Notifier interface {
	PaymentCaptured(ctx context.Context, order *models.Order, payment *models.Payment)
}

// ProcessInput carries the simulated capture request.
type ProcessInput struct {
	Method  enums.PaymentMethod
	Details map[string]any
}

// Service processes simulated payments. No external gateway is involved; a
// capture always succeeds once validation passes. Processing is idempotent
// per order: a second attempt against a completed payment is rejected and a
// pending row is reused rather than duplicated.
type Service interface {
	Process(ctx context.Context, actor auth.Actor, orderID uuid.UUID, input ProcessInput) (*models.Payment, error)
	Details(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Payment, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	cfg      config.OrdersConfig
	notifier Notifier
	metrics  *metrics.CommerceMetrics
}

// NewService builds a payments service with the required dependencies.
func NewService(repo Repository, tx txRunner, cfg config.OrdersConfig, notifier Notifier, m *metrics.CommerceMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	return &service{repo: repo, tx: tx, cfg: cfg, notifier: notifier, metrics: m}, nil
}

func (s *service) Process(ctx context.Context, actor auth.Actor, orderID uuid.UUID, input ProcessInput) (*models.Payment, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	var (
		payment *models.Payment
		order   *models.Order
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		loaded, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if loaded.UserID != actor.UserID && !actor.IsAdmin() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
		}
		order = loaded

		existing, err := repo.FindByOrder(ctx, orderID)
		if err != nil && err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if existing != nil && existing.Status == enums.PaymentStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeConflict, "order already paid")
		}

		currency := enums.Currency(s.cfg.Currency)
		if !currency.IsValid() {
			currency = enums.CurrencyEUR
		}

		if existing != nil {
			// reuse the pending row so the unique order index holds
			updates := map[string]any{
				"status":  enums.PaymentStatusCompleted,
				"method":  input.Method,
				"amount":  order.TotalAmount,
				"details": models.JSONMap(input.Details),
			}
			if err := repo.Update(ctx, existing.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
			}
			existing.Status = enums.PaymentStatusCompleted
			existing.Method = input.Method
			existing.Amount = order.TotalAmount
			existing.Details = models.JSONMap(input.Details)
			payment = existing
		} else {
			number, err := newPaymentNumber()
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate payment number")
			}
			created, err := repo.Create(ctx, &models.Payment{
				OrderID:       orderID,
				PaymentNumber: number,
				Amount:        order.TotalAmount,
				Currency:      currency,
				Status:        enums.PaymentStatusCompleted,
				Method:        input.Method,
				Details:       models.JSONMap(input.Details),
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
			}
			payment = created
		}

		// a captured payment moves the order forward
		if err := repo.UpdateOrderStatus(ctx, orderID, enums.OrderStatusProcessing); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		order.Status = enums.OrderStatusProcessing
		return nil
	})
	if err != nil {
		s.metrics.IncPaymentProcessed("failed")
		return nil, err
	}

	s.metrics.IncPaymentProcessed(payment.Status.String())
	s.notifier.PaymentCaptured(ctx, order, payment)
	return payment, nil
}

func (s *service) Details(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Payment, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}

	payment, err := s.repo.FindByOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

const paymentAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func newPaymentNumber() (string, error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(paymentAlphabet)))
	for i := 0; i < 12; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(paymentAlphabet[n.Int64()])
	}
	return "PAY-" + sb.String(), nil
}
