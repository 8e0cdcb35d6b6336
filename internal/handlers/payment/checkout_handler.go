package payment

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain/ports"
	paymentservice "github.com/common-repository/trust-payments-gateway-3ds2/internal/services/payment"
)

// CheckoutHandler renders the signed authorization payload for one checkout
// attempt. Endpoint: POST /api/v1/checkout
type CheckoutHandler struct {
	checkout *paymentservice.CheckoutService
	logger   ports.Logger
}

// NewCheckoutHandler creates a checkout handler
func NewCheckoutHandler(checkout *paymentservice.CheckoutService, logger ports.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, logger: logger}
}

// CheckoutRequest is the storefront's checkout submission
type CheckoutRequest struct {
	CustomerID  string         `json:"customer_id"`
	Currency    string         `json:"currency"`
	Billing     domain.Address `json:"billing"`
	Shipping    domain.Address `json:"shipping"`
	Items       []CheckoutItem `json:"items"`
	SavedCardID string         `json:"saved_card_id"`
	SaveCard    bool           `json:"save_card"`
}

// CheckoutItem is one cart line item
type CheckoutItem struct {
	Price        decimal.Decimal `json:"price"`
	SignUpFee    decimal.Decimal `json:"sign_up_fee"`
	Quantity     int             `json:"quantity"`
	Subscription bool            `json:"subscription"`
	Period       string          `json:"period"`
	Interval     int             `json:"interval"`
	Length       int             `json:"length"`
	TrialLength  int             `json:"trial_length"`
	TrialPeriod  string          `json:"trial_period"`
}

// CheckoutResponse hands the widget everything it needs to render
type CheckoutResponse struct {
	Success        bool   `json:"success"`
	OrderID        string `json:"order_id"`
	OrderReference string `json:"order_reference"`
	Payload        string `json:"payload"`
}

// Checkout handles POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "cart is empty")
		return
	}

	items := make([]domain.CartItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.CartItem{
			Price:        item.Price,
			SignUpFee:    item.SignUpFee,
			Quantity:     item.Quantity,
			Subscription: item.Subscription,
			Period:       domain.PeriodUnit(item.Period),
			Interval:     item.Interval,
			Length:       item.Length,
			TrialLength:  item.TrialLength,
			TrialPeriod:  domain.PeriodUnit(item.TrialPeriod),
		})
	}

	result, err := h.checkout.Checkout(r.Context(), paymentservice.CheckoutInput{
		CustomerID:  req.CustomerID,
		Currency:    req.Currency,
		Billing:     req.Billing,
		Shipping:    req.Shipping,
		Items:       items,
		SavedCardID: req.SavedCardID,
		SaveCard:    req.SaveCard,
	})
	if err != nil {
		h.logger.Error("checkout failed", ports.Err(err))
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, CheckoutResponse{
		Success:        true,
		OrderID:        result.Order.ID,
		OrderReference: result.Order.OrderReference,
		Payload:        result.Payload.Token,
	})
}
