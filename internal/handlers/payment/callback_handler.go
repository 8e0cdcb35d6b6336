package payment

import (
	"net/http"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/adapters/trustpayments"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain/ports"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/services/reconciliation"
)

// CallbackHandler receives the browser redirect after the payment widget
// completes. Endpoint: GET /api/v1/payments/callback
type CallbackHandler struct {
	recon  *reconciliation.Service
	logger ports.Logger
}

// NewCallbackHandler creates a callback handler
func NewCallbackHandler(recon *reconciliation.Service, logger ports.Logger) *CallbackHandler {
	return &CallbackHandler{recon: recon, logger: logger}
}

// CallbackResponse tells the storefront where to send the shopper
type CallbackResponse struct {
	Success        bool   `json:"success"`
	OrderID        string `json:"order_id,omitempty"`
	Status         string `json:"status,omitempty"`
	ShopperMessage string `json:"shopper_message,omitempty"`
}

// Callback handles the widget redirect. The query parameters are
// client-carried and pass through server-side confirmation before any state
// changes.
func (h *CallbackHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	input := reconciliation.CallbackInput{
		OrderReference:       query.Get("orderreference"),
		TransactionReference: query.Get("transactionreference"),
		ErrorCode:            query.Get("errorcode"),
		SettleStatus:         query.Get("settlestatus"),
		Rules:                query["ruleidentifier"],
	}
	if input.OrderReference == "" {
		respondError(w, http.StatusBadRequest, "orderreference is required")
		return
	}

	outcome, err := h.recon.HandleCallback(r.Context(), input)
	if err != nil {
		h.logger.Error("callback reconciliation failed", ports.Err(err),
			ports.String("order_reference", input.OrderReference))
		respondDomainError(w, err)
		return
	}

	if outcome.Declined {
		// The attempt declined; the order itself is untouched so the
		// shopper can retry.
		respondJSON(w, http.StatusOK, CallbackResponse{
			Success:        false,
			OrderID:        outcome.Order.ID,
			Status:         "declined",
			ShopperMessage: trustpayments.ShopperMessage(outcome.ErrorCode, outcome.ErrorMessage, outcome.ErrorData),
		})
		return
	}

	respondJSON(w, http.StatusOK, CallbackResponse{
		Success: true,
		OrderID: outcome.Order.ID,
		Status:  string(outcome.Order.Status),
	})
}
