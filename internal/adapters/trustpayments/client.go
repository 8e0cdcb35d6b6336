package trustpayments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain/ports"
	"github.com/common-repository/trust-payments-gateway-3ds2/pkg/observability"
)

// Config contains the Webservices API credentials for one site
type Config struct {
	BaseURL       string // e.g. "https://webservices.securetrading.us/json/"
	Alias         string // webservices username, repeated as the envelope alias
	Username      string
	Password      string
	SiteReference string
}

// Validate checks that every credential required for server-to-server calls
// is present.
func (c *Config) Validate() error {
	if c.Username == "" || c.Password == "" || c.SiteReference == "" {
		return domain.ErrMissingCredentials
	}
	return nil
}

// Client issues Webservices calls to the Trust Payments gateway. It
// implements ports.ProcessorClient. Calls are single-attempt; timeouts are
// bounded by the injected HTTP client.
type Client struct {
	config     Config
	httpClient ports.HTTPClient
	logger     ports.Logger
}

// NewClient creates a Webservices client
func NewClient(config Config, httpClient ports.HTTPClient, logger ports.Logger) *Client {
	return &Client{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
	}
}

// RecurringAuth submits a merchant-initiated AUTH against a stored card
// reference, sequenced by the subscription counter.
func (c *Client) RecurringAuth(ctx context.Context, req ports.RecurringAuthRequest) (*ports.ProcessorResult, error) {
	request := Request{
		RequestTypeDescriptions:    []string{RequestTypeAuth},
		SiteReference:              c.config.SiteReference,
		AccountTypeDescription:     "RECUR",
		ParentTransactionReference: req.ParentTransactionReference,
		BaseAmount:                 strconv.FormatInt(req.BaseAmountMinorUnits, 10),
		OrderReference:             req.OrderReference,
		SubscriptionType:           "RECURRING",
		SubscriptionNumber:         strconv.Itoa(req.SubscriptionNumber),
		CredentialsOnFile:          "2",
	}

	return c.call(ctx, request)
}

// Refund returns captured funds against a parent transaction
func (c *Client) Refund(ctx context.Context, req ports.RefundRequest) (*ports.ProcessorResult, error) {
	if req.BaseAmountMinorUnits <= 0 {
		return nil, domain.ErrValidationAmountInvalid.WithDetail("baseamount", req.BaseAmountMinorUnits)
	}

	request := Request{
		RequestTypeDescriptions:    []string{RequestTypeRefund},
		SiteReference:              c.config.SiteReference,
		ParentTransactionReference: req.ParentTransactionReference,
		BaseAmount:                 strconv.FormatInt(req.BaseAmountMinorUnits, 10),
		OrderReference:             req.OrderReference,
	}

	return c.call(ctx, request)
}

// TransactionQuery confirms a transaction server-side. The caller checks
// result.ErrorMessage == "Ok" before trusting any client-supplied data.
func (c *Client) TransactionQuery(ctx context.Context, transactionReference, orderReference string) (*ports.ProcessorResult, error) {
	filter := &Filter{
		SiteReference: []FilterValue{{Value: c.config.SiteReference}},
	}
	if transactionReference != "" {
		filter.TransactionReference = []FilterValue{{Value: transactionReference}}
	}
	if orderReference != "" {
		filter.OrderReference = []FilterValue{{Value: orderReference}}
	}

	request := Request{
		RequestTypeDescriptions: []string{RequestTypeTransactionQuery},
		Filter:                  filter,
	}

	return c.call(ctx, request)
}

// TransactionUpdate attaches the merchant order reference to a gateway
// transaction.
func (c *Client) TransactionUpdate(ctx context.Context, transactionReference, orderReference string) (*ports.ProcessorResult, error) {
	request := Request{
		RequestTypeDescriptions: []string{RequestTypeTransactionUpdate},
		Filter: &Filter{
			SiteReference:        []FilterValue{{Value: c.config.SiteReference}},
			TransactionReference: []FilterValue{{Value: transactionReference}},
		},
		Updates: &Updates{OrderReference: orderReference},
	}

	return c.call(ctx, request)
}

func (c *Client) call(ctx context.Context, request Request) (*ports.ProcessorResult, error) {
	if err := c.config.Validate(); err != nil {
		return nil, err
	}

	envelope := Envelope{
		Alias:   c.config.Alias,
		Version: "1.0",
		Request: []Request{request},
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.config.Username, c.config.Password)

	if c.logger != nil {
		c.logger.Info("making request to Trust Payments Webservices",
			ports.String("request_type", strings.Join(request.RequestTypeDescriptions, ",")),
			ports.String("site_reference", c.config.SiteReference),
		)
	}

	requestType := strings.Join(request.RequestTypeDescriptions, ",")
	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		observability.RecordGatewayRequest(requestType, "transport", time.Since(start).Seconds())
		return nil, domain.WrapError(domain.ErrorCodeGatewayError, "failed to reach payment gateway", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	// The gateway answers a credential failure with a bare "Unauthorized"
	// body rather than the JSON envelope. This is a merchant configuration
	// problem, not a card decline.
	if strings.Contains(strings.TrimSpace(string(body)), "Unauthorized") {
		observability.RecordGatewayRequest(requestType, "unauthorized", time.Since(start).Seconds())
		return nil, domain.ErrGatewayUnauthorized
	}

	var respEnvelope ResponseEnvelope
	if err := json.Unmarshal(body, &respEnvelope); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeGatewayError, "invalid gateway response", err)
	}
	if len(respEnvelope.Response) == 0 {
		return nil, domain.NewDomainError(domain.ErrorCodeGatewayError, "gateway response contains no entries")
	}

	first := respEnvelope.Response[0]
	result := &ports.ProcessorResult{
		ErrorCode:            first.ErrorCode,
		ErrorMessage:         first.ErrorMessage,
		TransactionReference: first.TransactionReference,
		SettleStatus:         first.SettleStatus,
		MaskedPAN:            first.MaskedPAN,
		PaymentType:          first.PaymentTypeDescription,
		Records:              first.Records,
		Raw:                  rawResponseFields(body),
	}

	observability.RecordGatewayRequest(requestType, first.ErrorCode, time.Since(start).Seconds())
	return result, nil
}

// rawResponseFields re-decodes the first response entry as a generic map so
// callers can persist the untyped transaction data blob.
func rawResponseFields(body []byte) map[string]interface{} {
	var generic struct {
		Response []map[string]interface{} `json:"response"`
	}
	if err := json.Unmarshal(body, &generic); err != nil || len(generic.Response) == 0 {
		return nil
	}
	return generic.Response[0]
}
