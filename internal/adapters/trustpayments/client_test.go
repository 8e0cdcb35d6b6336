package trustpayments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain/ports"
	"github.com/common-repository/trust-payments-gateway-3ds2/test/mocks"
)

func setupClientTest(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)

	config := Config{
		BaseURL:       server.URL,
		Alias:         "webservices@merchant.example",
		Username:      "webservices@merchant.example",
		Password:      "test-password",
		SiteReference: "test_site12345",
	}

	client := NewClient(config, &http.Client{}, mocks.NewMockLogger())
	return client, server
}

func TestRecurringAuthSuccess(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)

		username, password, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "webservices@merchant.example", username)
		assert.Equal(t, "test-password", password)

		var env Envelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&env))
		assert.Equal(t, "webservices@merchant.example", env.Alias)
		assert.Equal(t, "1.0", env.Version)
		require.Len(t, env.Request, 1)

		req := env.Request[0]
		assert.Equal(t, []string{"AUTH"}, req.RequestTypeDescriptions)
		assert.Equal(t, "RECUR", req.AccountTypeDescription)
		assert.Equal(t, "24-9-12345", req.ParentTransactionReference)
		assert.Equal(t, "1999", req.BaseAmount)
		assert.Equal(t, "RECURRING", req.SubscriptionType)
		assert.Equal(t, "3", req.SubscriptionNumber)
		assert.Equal(t, "2", req.CredentialsOnFile)

		json.NewEncoder(w).Encode(ResponseEnvelope{Response: []Response{{
			ErrorCode:            "0",
			ErrorMessage:         "Ok",
			TransactionReference: "24-9-67890",
		}}})
	}

	client, server := setupClientTest(t, handler)
	defer server.Close()

	result, err := client.RecurringAuth(context.Background(), ports.RecurringAuthRequest{
		ParentTransactionReference: "24-9-12345",
		OrderReference:             "Ref-a1b2c3d4e5",
		BaseAmountMinorUnits:       1999,
		SubscriptionNumber:         3,
	})

	require.NoError(t, err)
	assert.True(t, result.Ok())
	assert.Equal(t, "24-9-67890", result.TransactionReference)
}

func TestRecurringAuthDeclined(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ResponseEnvelope{Response: []Response{{
			ErrorCode:    "70000",
			ErrorMessage: "Decline",
		}}})
	}

	client, server := setupClientTest(t, handler)
	defer server.Close()

	result, err := client.RecurringAuth(context.Background(), ports.RecurringAuthRequest{
		ParentTransactionReference: "24-9-12345",
		BaseAmountMinorUnits:       1999,
		SubscriptionNumber:         3,
	})

	// A decline is a structured result, not a transport error
	require.NoError(t, err)
	assert.False(t, result.Ok())
	assert.Equal(t, "70000", result.ErrorCode)
	assert.Equal(t, "Decline", result.ErrorMessage)
}

func TestCallUnauthorizedBody(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("Unauthorized"))
	}

	client, server := setupClientTest(t, handler)
	defer server.Close()

	_, err := client.TransactionQuery(context.Background(), "24-9-12345", "")
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeGatewayUnauthorized))
}

func TestTransactionQueryFilter(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		var env Envelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&env))

		req := env.Request[0]
		assert.Equal(t, []string{"TRANSACTIONQUERY"}, req.RequestTypeDescriptions)
		require.NotNil(t, req.Filter)
		assert.Equal(t, "test_site12345", req.Filter.SiteReference[0].Value)
		assert.Equal(t, "24-9-12345", req.Filter.TransactionReference[0].Value)
		assert.Empty(t, req.Filter.OrderReference)

		json.NewEncoder(w).Encode(ResponseEnvelope{Response: []Response{{
			ErrorCode:    "0",
			ErrorMessage: "Ok",
			SettleStatus: "0",
		}}})
	}

	client, server := setupClientTest(t, handler)
	defer server.Close()

	result, err := client.TransactionQuery(context.Background(), "24-9-12345", "")
	require.NoError(t, err)
	assert.Equal(t, "Ok", result.ErrorMessage)
	assert.Equal(t, "0", result.SettleStatus)
}

func TestTransactionUpdate(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		var env Envelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&env))

		req := env.Request[0]
		assert.Equal(t, []string{"TRANSACTIONUPDATE"}, req.RequestTypeDescriptions)
		require.NotNil(t, req.Updates)
		assert.Equal(t, "Ref-a1b2c3d4e5", req.Updates.OrderReference)

		json.NewEncoder(w).Encode(ResponseEnvelope{Response: []Response{{ErrorCode: "0"}}})
	}

	client, server := setupClientTest(t, handler)
	defer server.Close()

	result, err := client.TransactionUpdate(context.Background(), "24-9-12345", "Ref-a1b2c3d4e5")
	require.NoError(t, err)
	assert.True(t, result.Ok())
}

func TestRefundValidation(t *testing.T) {
	client := NewClient(Config{
		BaseURL:       "http://unused.invalid",
		Username:      "u",
		Password:      "p",
		SiteReference: "s",
	}, mocks.NewMockHTTPClient(nil), mocks.NewMockLogger())

	_, err := client.Refund(context.Background(), ports.RefundRequest{
		ParentTransactionReference: "24-9-12345",
		BaseAmountMinorUnits:       0,
	})
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeValidationAmountInvalid))
}

func TestCallMissingCredentials(t *testing.T) {
	client := NewClient(Config{}, mocks.NewMockHTTPClient(nil), mocks.NewMockLogger())
	_, err := client.TransactionQuery(context.Background(), "24-9-12345", "")
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeConfigMissingCredentials))
}
