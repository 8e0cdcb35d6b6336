package payment

import (
	"net/http"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain/ports"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/middleware"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/services/reconciliation"
)

// NotificationHandler processes authenticated gateway notifications.
// Endpoint: POST /api/v1/payments/notification, always behind
// middleware.NotificationAuth.
type NotificationHandler struct {
	recon  *reconciliation.Service
	logger ports.Logger
}

// NewNotificationHandler creates a notification handler
func NewNotificationHandler(recon *reconciliation.Service, logger ports.Logger) *NotificationHandler {
	return &NotificationHandler{recon: recon, logger: logger}
}

// Notify handles an authenticated notification. Integrity problems are
// answered 200 so the gateway stops retrying a notification that will never
// become valid; only transient internal failures get a 5xx retry signal.
func (h *NotificationHandler) Notify(w http.ResponseWriter, r *http.Request) {
	event, ok := middleware.NotificationFromContext(r.Context())
	if !ok {
		h.logger.Error("notification handler reached without authenticated event")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if err := h.recon.HandleNotification(r.Context(), event); err != nil {
		if domain.IsIntegrityError(err) {
			h.logger.Warn("notification discarded",
				ports.String("reason", string(domain.GetErrorCode(err))),
				ports.String("source_ip", event.SourceIP))
			w.WriteHeader(http.StatusOK)
			return
		}
		h.logger.Error("notification processing failed", ports.Err(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
