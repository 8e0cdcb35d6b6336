package payment

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain"
	"github.com/common-repository/trust-payments-gateway-3ds2/test/mocks"
)

func testBuilder() *SignedRequestBuilder {
	b := NewSignedRequestBuilder(BuilderConfig{
		JWTUsername:   "jwt@merchant.example",
		JWTSecret:     "test-jwt-secret",
		SiteReference: "test_site12345",
		Locale:        "en_GB",
		AuthMethod:    "PRE",
	}, mocks.NewMockLogger())
	b.now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }
	return b
}

func testOrder() *domain.Order {
	return &domain.Order{
		ID:               "11111111-1111-1111-1111-111111111111",
		OrderReference:   "Ref-a1b2c3d4e5",
		AmountMinorUnits: 2500,
		Currency:         "GBP",
		Billing: domain.Address{
			FirstName: "Ada",
			LastName:  "Lovelace",
			Street:    "12 High Street",
			Town:      "London",
			Postcode:  "N1 9GU",
			CountryISO2: "GB",
			Email:     "ada@example.com",
		},
		Status: domain.SettlementStatusInitiated,
	}
}

// decodeClaims parses the token back with the signing secret so each test
// asserts against what the widget will actually see.
func decodeClaims(t *testing.T, token string) *requestClaims {
	t.Helper()
	var claims requestClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(tok *jwt.Token) (interface{}, error) {
		return []byte("test-jwt-secret"), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	return &claims
}

func TestBuildDefaultPayload(t *testing.T) {
	builder := testBuilder()

	payload, err := builder.Build(BuildInput{Order: testOrder()})
	require.NoError(t, err)
	assert.Equal(t, "Ref-a1b2c3d4e5", payload.OrderReference)

	claims := decodeClaims(t, payload.Token)
	assert.Equal(t, "jwt@merchant.example", claims.Issuer)
	assert.Equal(t, "2500", claims.Payload.BaseAmount)
	assert.Equal(t, "GBP", claims.Payload.CurrencyISO3A)
	assert.Equal(t, "ECOM", claims.Payload.AccountTypeDescription)
	assert.Equal(t, []string{"THREEDQUERY", "AUTH"}, claims.Payload.RequestTypeDescriptions)
	assert.Equal(t, []string{"STR-8", "STR-9"}, claims.Payload.RuleIdentifier)
	assert.Equal(t, "Ada", claims.Payload.BillingFirstName)
	assert.Empty(t, claims.Payload.CredentialsOnFile)
	assert.Empty(t, claims.Payload.SubscriptionType)
}

func TestBuildSaveCard(t *testing.T) {
	builder := testBuilder()

	payload, err := builder.Build(BuildInput{Order: testOrder(), SaveCard: true})
	require.NoError(t, err)

	claims := decodeClaims(t, payload.Token)
	assert.Equal(t, "1", claims.Payload.CredentialsOnFile)
	assert.Empty(t, claims.Payload.ParentTransactionReference)
}

func TestBuildSavedCardReuse(t *testing.T) {
	builder := testBuilder()
	card := &domain.SavedCard{
		ID:                   "22222222-2222-2222-2222-222222222222",
		TransactionReference: "24-9-12345",
		MaskedPAN:            "411111######1111",
		Active:               true,
	}

	payload, err := builder.Build(BuildInput{Order: testOrder(), SavedCard: card})
	require.NoError(t, err)

	claims := decodeClaims(t, payload.Token)
	assert.Equal(t, "2", claims.Payload.CredentialsOnFile)
	assert.Equal(t, "24-9-12345", claims.Payload.ParentTransactionReference)
}

func TestBuildSubscriptionSchedule(t *testing.T) {
	builder := testBuilder()
	plan := &domain.BillingPlan{
		Unit:             domain.PeriodUnitDay,
		Interval:         14,
		TotalOccurrences: 12,
		RecurringAmount:  decimal.RequireFromString("9.99"),
	}

	payload, err := builder.Build(BuildInput{Order: testOrder(), Plan: plan})
	require.NoError(t, err)

	claims := decodeClaims(t, payload.Token)
	assert.Equal(t, "RECURRING", claims.Payload.SubscriptionType)
	assert.Equal(t, "DAY", claims.Payload.SubscriptionUnit)
	assert.Equal(t, "14", claims.Payload.SubscriptionFrequency)
	assert.Equal(t, "1", claims.Payload.SubscriptionNumber)
	assert.Equal(t, "12", claims.Payload.SubscriptionFinalNumber)
	assert.Equal(t, []string{"THREEDQUERY", "AUTH"}, claims.Payload.RequestTypeDescriptions)
}

func TestBuildTrialDefersAuthorization(t *testing.T) {
	builder := testBuilder()
	plan := &domain.BillingPlan{
		Unit:        domain.PeriodUnitMonth,
		Interval:    1,
		TrialLength: 14,
		TrialUnit:   domain.PeriodUnitDay,
	}

	payload, err := builder.Build(BuildInput{Order: testOrder(), Plan: plan})
	require.NoError(t, err)

	claims := decodeClaims(t, payload.Token)
	assert.Equal(t, []string{"THREEDQUERY", "ACCOUNTCHECK"}, claims.Payload.RequestTypeDescriptions)
	assert.Equal(t, "2026-03-29", claims.Payload.SubscriptionBeginDate)
}

func TestBuildMixedCartBootstrap(t *testing.T) {
	builder := testBuilder()
	plan := &domain.BillingPlan{Unit: domain.PeriodUnitDay, Interval: 7}

	payload, err := builder.Build(BuildInput{Order: testOrder(), Plan: plan, MixedCart: true})
	require.NoError(t, err)

	claims := decodeClaims(t, payload.Token)
	assert.Equal(t, "MONTH", claims.Payload.SubscriptionUnit)
	assert.Equal(t, "999", claims.Payload.SubscriptionFrequency)
	assert.Empty(t, claims.Payload.SubscriptionFinalNumber)
}

func TestBuildByteReproducible(t *testing.T) {
	builder := testBuilder()

	first, err := builder.Build(BuildInput{Order: testOrder(), SaveCard: true})
	require.NoError(t, err)
	second, err := builder.Build(BuildInput{Order: testOrder(), SaveCard: true})
	require.NoError(t, err)

	assert.Equal(t, first.Token, second.Token)
}

func TestBuildMissingCredentials(t *testing.T) {
	builder := NewSignedRequestBuilder(BuilderConfig{JWTSecret: "secret"}, mocks.NewMockLogger())
	_, err := builder.Build(BuildInput{Order: testOrder()})
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeConfigMissingCredentials))

	builder = NewSignedRequestBuilder(BuilderConfig{
		JWTUsername:   "jwt@merchant.example",
		SiteReference: "test_site12345",
	}, mocks.NewMockLogger())
	_, err = builder.Build(BuildInput{Order: testOrder()})
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeConfigMissingSecret))
}
