package payment

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain/ports"
)

// BuilderConfig carries the per-merchant signing material. JWTUsername and
// JWTSecret are issued by the gateway alongside the site reference.
type BuilderConfig struct {
	JWTUsername   string
	JWTSecret     string
	SiteReference string
	Locale        string
	AuthMethod    string // "PRE" or "FINAL"
}

// BuildInput collects everything the signed payload is derived from
type BuildInput struct {
	Order     *domain.Order
	Plan      *domain.BillingPlan // nil when the cart has no subscription
	SavedCard *domain.SavedCard   // non-nil when reusing a vaulted card
	MixedCart bool                // subscription mixed with ordinary products
	SaveCard  bool                // shopper opted to vault the new card
}

// SignedPayload is the single-use token handed to the browser widget. It is
// never persisted; its lifetime is one checkout render.
type SignedPayload struct {
	Token          string
	OrderReference string
}

// requestClaims fixes the JWT serialization contract: given the same secret
// and clock value the token is byte-reproducible, because encoding/json
// emits struct fields in declaration order.
type requestClaims struct {
	Payload requestPayload `json:"payload"`
	jwt.RegisteredClaims
}

type requestPayload struct {
	AccountTypeDescription     string   `json:"accounttypedescription"`
	BaseAmount                 string   `json:"baseamount"`
	CurrencyISO3A              string   `json:"currencyiso3a"`
	SiteReference              string   `json:"sitereference"`
	RequestTypeDescriptions    []string `json:"requesttypedescriptions"`
	OrderReference             string   `json:"orderreference"`
	RuleIdentifier             []string `json:"ruleidentifier"`
	Locale                     string   `json:"locale,omitempty"`
	AuthMethod                 string   `json:"authmethod,omitempty"`
	BillingFirstName           string   `json:"billingfirstname,omitempty"`
	BillingLastName            string   `json:"billinglastname,omitempty"`
	BillingPremise             string   `json:"billingpremise,omitempty"`
	BillingStreet              string   `json:"billingstreet,omitempty"`
	BillingTown                string   `json:"billingtown,omitempty"`
	BillingCounty              string   `json:"billingcounty,omitempty"`
	BillingPostcode            string   `json:"billingpostcode,omitempty"`
	BillingCountryISO2A        string   `json:"billingcountryiso2a,omitempty"`
	BillingEmail               string   `json:"billingemail,omitempty"`
	BillingTelephone           string   `json:"billingtelephone,omitempty"`
	CustomerFirstName          string   `json:"customerfirstname,omitempty"`
	CustomerLastName           string   `json:"customerlastname,omitempty"`
	CustomerPremise            string   `json:"customerpremise,omitempty"`
	CustomerStreet             string   `json:"customerstreet,omitempty"`
	CustomerTown               string   `json:"customertown,omitempty"`
	CustomerCounty             string   `json:"customercounty,omitempty"`
	CustomerPostcode           string   `json:"customerpostcode,omitempty"`
	CustomerCountryISO2A       string   `json:"customercountryiso2a,omitempty"`
	CredentialsOnFile          string   `json:"credentialsonfile,omitempty"`
	ParentTransactionReference string   `json:"parenttransactionreference,omitempty"`
	SubscriptionType           string   `json:"subscriptiontype,omitempty"`
	SubscriptionUnit           string   `json:"subscriptionunit,omitempty"`
	SubscriptionFrequency      string   `json:"subscriptionfrequency,omitempty"`
	SubscriptionNumber         string   `json:"subscriptionnumber,omitempty"`
	SubscriptionFinalNumber    string   `json:"subscriptionfinalnumber,omitempty"`
	SubscriptionBeginDate      string   `json:"subscriptionbegindate,omitempty"`
}

// The mixed-cart bootstrap schedule: a frequency no shopper will live to
// see, so the gateway accepts the initial charge while the merchant-side
// scheduler owns every real renewal.
const (
	bootstrapFrequency = 999
	bootstrapUnit      = domain.PeriodUnitMonth
)

// SignedRequestBuilder constructs the processor-specific signed
// authorization payload consumed by the browser widget
type SignedRequestBuilder struct {
	now    func() time.Time
	logger ports.Logger
	config BuilderConfig
}

// NewSignedRequestBuilder creates a builder
func NewSignedRequestBuilder(config BuilderConfig, logger ports.Logger) *SignedRequestBuilder {
	return &SignedRequestBuilder{
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// Build produces the signed payload for one checkout render. A missing
// credential is a configuration error: the caller must not render the
// payment form.
func (b *SignedRequestBuilder) Build(input BuildInput) (*SignedPayload, error) {
	if b.config.JWTUsername == "" || b.config.SiteReference == "" {
		return nil, domain.ErrMissingCredentials
	}
	if b.config.JWTSecret == "" {
		return nil, domain.ErrMissingSecret
	}

	order := input.Order
	payload := requestPayload{
		AccountTypeDescription:  "ECOM",
		BaseAmount:              strconv.FormatInt(order.AmountMinorUnits, 10),
		CurrencyISO3A:           order.Currency,
		SiteReference:           b.config.SiteReference,
		RequestTypeDescriptions: []string{"THREEDQUERY", "AUTH"},
		OrderReference:          order.OrderReference,
		RuleIdentifier:          []string{domain.RuleSuccess, domain.RuleDecline},
		Locale:                  b.config.Locale,
		AuthMethod:              b.config.AuthMethod,

		BillingFirstName:    order.Billing.FirstName,
		BillingLastName:     order.Billing.LastName,
		BillingPremise:      order.Billing.Premise,
		BillingStreet:       order.Billing.Street,
		BillingTown:         order.Billing.Town,
		BillingCounty:       order.Billing.County,
		BillingPostcode:     order.Billing.Postcode,
		BillingCountryISO2A: order.Billing.CountryISO2,
		BillingEmail:        order.Billing.Email,
		BillingTelephone:    order.Billing.Phone,

		CustomerFirstName:    order.Shipping.FirstName,
		CustomerLastName:     order.Shipping.LastName,
		CustomerPremise:      order.Shipping.Premise,
		CustomerStreet:       order.Shipping.Street,
		CustomerTown:         order.Shipping.Town,
		CustomerCounty:       order.Shipping.County,
		CustomerPostcode:     order.Shipping.Postcode,
		CustomerCountryISO2A: order.Shipping.CountryISO2,
	}

	switch {
	case input.SavedCard != nil:
		payload.CredentialsOnFile = "2"
		payload.ParentTransactionReference = input.SavedCard.TransactionReference
	case input.SaveCard:
		payload.CredentialsOnFile = "1"
	}

	if input.Plan != nil {
		b.applySchedule(&payload, input.Plan, input.MixedCart)
	}

	claims := requestClaims{
		Payload: payload,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   b.config.JWTUsername,
			IssuedAt: jwt.NewNumericDate(b.now()),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(b.config.JWTSecret))
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeInternalError, "failed to sign request payload", err)
	}

	if b.logger != nil {
		b.logger.Debug("signed payload built",
			ports.String("order_reference", order.OrderReference),
			ports.String("credentials_on_file", payload.CredentialsOnFile),
		)
	}

	return &SignedPayload{Token: token, OrderReference: order.OrderReference}, nil
}

func (b *SignedRequestBuilder) applySchedule(payload *requestPayload, plan *domain.BillingPlan, mixedCart bool) {
	payload.SubscriptionType = "RECURRING"
	payload.SubscriptionNumber = "1"

	if mixedCart || plan.Bootstrap {
		// Gateway accepts the initial charge; renewals are merchant-driven
		payload.SubscriptionUnit = string(bootstrapUnit)
		payload.SubscriptionFrequency = strconv.Itoa(bootstrapFrequency)
		return
	}

	payload.SubscriptionUnit = string(plan.Unit)
	payload.SubscriptionFrequency = strconv.Itoa(plan.Interval)
	if plan.TotalOccurrences > 0 {
		payload.SubscriptionFinalNumber = strconv.Itoa(plan.TotalOccurrences)
	}

	if plan.HasTrial() {
		// No funds move during the trial; the authorization becomes an
		// account check and capture is deferred until the trial ends.
		payload.RequestTypeDescriptions = []string{"THREEDQUERY", "ACCOUNTCHECK"}
		payload.SubscriptionBeginDate = b.trialEnd(plan).Format("2006-01-02")
	}
}

func (b *SignedRequestBuilder) trialEnd(plan *domain.BillingPlan) time.Time {
	start := b.now()
	switch plan.TrialUnit {
	case domain.PeriodUnitDay:
		return start.AddDate(0, 0, plan.TrialLength)
	case domain.PeriodUnitWeek:
		return start.AddDate(0, 0, 7*plan.TrialLength)
	case domain.PeriodUnitMonth:
		return start.AddDate(0, plan.TrialLength, 0)
	case domain.PeriodUnitYear:
		return start.AddDate(plan.TrialLength, 0, 0)
	default:
		return start.AddDate(0, 0, plan.TrialLength)
	}
}
