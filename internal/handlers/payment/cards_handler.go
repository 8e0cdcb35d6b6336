package payment

import (
	"net/http"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain/ports"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/middleware"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/services/vault"
)

// CardsHandler exposes the saved-card vault:
//
//	GET    /api/v1/customers/{customerID}/cards
//	POST   /api/v1/customers/{customerID}/cards/{cardID}/activate
//	POST   /api/v1/customers/{customerID}/cards/deactivate
//	DELETE /api/v1/customers/{customerID}/cards/{cardID}
//	DELETE /api/v1/admin/customers/{customerID}/cards
type CardsHandler struct {
	vault  *vault.Service
	logger ports.Logger
}

// NewCardsHandler creates a cards handler
func NewCardsHandler(vault *vault.Service, logger ports.Logger) *CardsHandler {
	return &CardsHandler{vault: vault, logger: logger}
}

// CardView is the storefront-safe projection of a vault entry. The stored
// transaction reference never leaves the server.
type CardView struct {
	ID          string `json:"id"`
	MaskedPAN   string `json:"masked_pan"`
	PaymentType string `json:"payment_type"`
	Active      bool   `json:"active"`
}

// List handles GET /api/v1/customers/{customerID}/cards
func (h *CardsHandler) List(w http.ResponseWriter, r *http.Request) {
	customerID := r.PathValue("customerID")
	cards, err := h.vault.List(r.Context(), customerID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	views := make([]CardView, 0, len(cards))
	for _, card := range cards {
		views = append(views, CardView{
			ID:          card.ID,
			MaskedPAN:   card.MaskedPAN,
			PaymentType: card.PaymentType,
			Active:      card.Active,
		})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "cards": views})
}

// Activate handles POST /api/v1/customers/{customerID}/cards/{cardID}/activate
func (h *CardsHandler) Activate(w http.ResponseWriter, r *http.Request) {
	if err := h.vault.Activate(r.Context(), r.PathValue("customerID"), r.PathValue("cardID")); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// Deactivate handles POST /api/v1/customers/{customerID}/cards/deactivate.
// The shopper chose to enter a new card instead of reusing a stored one.
func (h *CardsHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.vault.DeactivateAll(r.Context(), r.PathValue("customerID")); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// Delete handles DELETE /api/v1/customers/{customerID}/cards/{cardID}
func (h *CardsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.vault.Delete(r.Context(), r.PathValue("customerID"), r.PathValue("cardID")); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// DeleteAll handles DELETE /api/v1/admin/customers/{customerID}/cards. The
// route sits behind ActorAuth; the service re-checks the actor's authority
// before anything is removed.
func (h *CardsHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing actor")
		return
	}

	deleted, err := h.vault.DeleteAll(r.Context(), actor, r.PathValue("customerID"))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	h.logger.Info("vault bulk delete completed",
		ports.String("customer_id", r.PathValue("customerID")),
		ports.String("actor_id", actor.ID),
		ports.Int("deleted", int(deleted)))
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "deleted": deleted})
}
