package controllers

import (
	"net/http"

	"github.com/fatine-labs/souqly-backend/api/responses"
	"github.com/fatine-labs/souqly-backend/internal/invoices"
	"github.com/fatine-labs/souqly-backend/pkg/logger"
)

// OrderInvoice renders the invoice snapshot for an order.
func OrderInvoice(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoice, err := svc.Preview(r.Context(), actor, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoice)
	}
}
