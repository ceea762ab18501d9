package returns

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fatine-labs/souqly-backend/pkg/db/models"
	"github.com/fatine-labs/souqly-backend/pkg/enums"
)

// LineInput selects one order line (or part of it) for return.
type LineInput struct {
	OrderItemID uuid.UUID
	Quantity    int
	Reason      *string
}

// RequestInput opens a return for an order.
type RequestInput struct {
	Reason string
	Items  []LineInput
}

// DecisionInput moves a return through its state machine. RefundAmount is
// required on the refunded step and ignored elsewhere.
type DecisionInput struct {
	Status       enums.ReturnStatus
	AdminNotes   *string
	RefundAmount *decimal.Decimal
}

// ReturnList is a cursor page of return requests.
type ReturnList struct {
	Returns    []models.ReturnRequest
	NextCursor string
}
