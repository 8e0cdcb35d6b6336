package cron

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain/ports"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/services/billing"
	"github.com/common-repository/trust-payments-gateway-3ds2/pkg/observability"
	"github.com/common-repository/trust-payments-gateway-3ds2/pkg/timeutil"
)

// RenewalHandler drives merchant-side subscription renewals. The endpoint
// is called by the external scheduler; nothing in the gateway pushes
// renewals to us.
type RenewalHandler struct {
	renewals   *billing.RenewalService
	logger     ports.Logger
	cronSecret string
	batchSize  int
}

// NewRenewalHandler creates a renewal cron handler
func NewRenewalHandler(renewals *billing.RenewalService, logger ports.Logger, cronSecret string, batchSize int) *RenewalHandler {
	return &RenewalHandler{
		renewals:   renewals,
		logger:     logger,
		cronSecret: cronSecret,
		batchSize:  batchSize,
	}
}

// ProcessRenewalsRequest allows the scheduler to override the defaults
type ProcessRenewalsRequest struct {
	AsOfDate  *string `json:"as_of_date"` // ISO date, defaults to now
	BatchSize *int    `json:"batch_size"`
}

// ProcessRenewalsResponse reports one batch run
type ProcessRenewalsResponse struct {
	Success     bool   `json:"success"`
	Due         int    `json:"due"`
	Charged     int    `json:"charged"`
	Failed      int    `json:"failed"`
	Skipped     int    `json:"skipped"`
	ProcessedAt string `json:"processed_at"`
}

// ProcessRenewals handles POST /cron/process-renewals
func (h *RenewalHandler) ProcessRenewals(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("renewal cron triggered",
		ports.String("remote_addr", r.RemoteAddr),
		ports.String("user_agent", r.UserAgent()),
	)

	if !h.authenticateRequest(r) {
		h.logger.Warn("unauthorized cron request", ports.String("remote_addr", r.RemoteAddr))
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ProcessRenewalsRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.logger.Warn("failed to parse cron request body", ports.Err(err))
			// Continue with defaults
		}
	}

	asOf := timeutil.Now()
	if req.AsOfDate != nil {
		parsed, err := timeutil.ParseBillingDate(*req.AsOfDate)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid as_of_date format")
			return
		}
		asOf = parsed
	}

	batchSize := h.batchSize
	if req.BatchSize != nil {
		if *req.BatchSize < 1 || *req.BatchSize > 1000 {
			h.respondError(w, http.StatusBadRequest, "batch_size must be between 1 and 1000")
			return
		}
		batchSize = *req.BatchSize
	}

	start := time.Now()
	summary, err := h.renewals.ProcessDueRenewals(r.Context(), asOf, batchSize)
	observability.RecordRenewalBatch(time.Since(start).Seconds())
	if err != nil {
		h.logger.Error("renewal batch failed", ports.Err(err))
		h.respondError(w, http.StatusInternalServerError, "renewal batch failed")
		return
	}
	recordChargeCounts(summary)

	resp := ProcessRenewalsResponse{
		Success:     summary.Failed == 0,
		Due:         summary.Due,
		Charged:     summary.Charged,
		Failed:      summary.Failed,
		Skipped:     summary.Skipped,
		ProcessedAt: timeutil.Now().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if resp.Success {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusPartialContent)
	}
	json.NewEncoder(w).Encode(resp)
}

func recordChargeCounts(summary billing.RunSummary) {
	observability.RecordRenewalCharges("charged", summary.Charged)
	observability.RecordRenewalCharges("failed", summary.Failed)
	observability.RecordRenewalCharges("skipped", summary.Skipped)
}

// authenticateRequest verifies the scheduler's shared secret
func (h *RenewalHandler) authenticateRequest(r *http.Request) bool {
	if h.cronSecret == "" {
		return false
	}
	if r.Header.Get("X-Cron-Secret") == h.cronSecret {
		return true
	}
	return r.Header.Get("Authorization") == "Bearer "+h.cronSecret
}

func (h *RenewalHandler) respondError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
