package payment

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain/ports"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/middleware"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/services/reconciliation"
)

// RefundHandler issues refunds against settled orders. Endpoint:
// POST /api/v1/payments/refund, behind ActorAuth.
type RefundHandler struct {
	recon  *reconciliation.Service
	logger ports.Logger
}

// NewRefundHandler creates a refund handler
func NewRefundHandler(recon *reconciliation.Service, logger ports.Logger) *RefundHandler {
	return &RefundHandler{recon: recon, logger: logger}
}

// RefundRequest identifies the order and the amount to return
type RefundRequest struct {
	OrderID string          `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
}

// Refund handles POST /api/v1/payments/refund
func (h *RefundHandler) Refund(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing actor")
		return
	}

	var req RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrderID == "" {
		respondError(w, http.StatusBadRequest, "order_id is required")
		return
	}

	err := h.recon.Refund(r.Context(), actor, req.OrderID, req.Amount)
	if err != nil {
		// A credential rejection is the merchant's configuration problem,
		// not a refusal of this particular refund.
		if domain.IsDomainError(err, domain.ErrorCodeGatewayUnauthorized) {
			h.logger.Error("gateway rejected webservice credentials during refund",
				ports.String("order_id", req.OrderID))
			respondError(w, http.StatusBadGateway, "payment gateway rejected the webservice credentials")
			return
		}
		if domain.IsDecline(err) {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
