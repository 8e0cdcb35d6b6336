package trustpayments

// Request type descriptions accepted by the Webservices API
const (
	RequestTypeAuth              = "AUTH"
	RequestTypeAccountCheck      = "ACCOUNTCHECK"
	RequestTypeThreeDQuery       = "THREEDQUERY"
	RequestTypeRefund            = "REFUND"
	RequestTypeTransactionQuery  = "TRANSACTIONQUERY"
	RequestTypeTransactionUpdate = "TRANSACTIONUPDATE"
)

// Envelope is the outer Webservices request body. Every call carries the
// webservice alias and protocol version around a single request entry.
type Envelope struct {
	Alias   string    `json:"alias"`
	Version string    `json:"version"`
	Request []Request `json:"request"`
}

// Request is one entry of the request array. Fields are serialized through
// the canonical encoder only; user-controlled values never reach the wire by
// string concatenation.
type Request struct {
	Filter                     *Filter  `json:"filter,omitempty"`
	Updates                    *Updates `json:"updates,omitempty"`
	RequestTypeDescriptions    []string `json:"requesttypedescriptions,omitempty"`
	SiteReference              string   `json:"sitereference,omitempty"`
	AccountTypeDescription     string   `json:"accounttypedescription,omitempty"`
	CurrencyISO3A              string   `json:"currencyiso3a,omitempty"`
	ParentTransactionReference string   `json:"parenttransactionreference,omitempty"`
	BaseAmount                 string   `json:"baseamount,omitempty"`
	OrderReference             string   `json:"orderreference,omitempty"`
	SubscriptionType           string   `json:"subscriptiontype,omitempty"`
	SubscriptionNumber         string   `json:"subscriptionnumber,omitempty"`
	CredentialsOnFile          string   `json:"credentialsonfile,omitempty"`
}

// Filter narrows TRANSACTIONQUERY / TRANSACTIONUPDATE to specific records
type Filter struct {
	SiteReference        []FilterValue `json:"sitereference,omitempty"`
	TransactionReference []FilterValue `json:"transactionreference,omitempty"`
	OrderReference       []FilterValue `json:"orderreference,omitempty"`
}

// FilterValue wraps a single filter operand
type FilterValue struct {
	Value string `json:"value"`
}

// Updates carries the mutable fields of a TRANSACTIONUPDATE
type Updates struct {
	OrderReference string `json:"orderreference,omitempty"`
}

// ResponseEnvelope is the outer Webservices response body
type ResponseEnvelope struct {
	Response []Response `json:"response"`
}

// Response is one entry of the response array. ErrorCode "0" is success;
// anything else is a business failure described by ErrorMessage.
type Response struct {
	ErrorCode              string   `json:"errorcode"`
	ErrorMessage           string   `json:"errormessage"`
	ErrorData              []string `json:"errordata,omitempty"`
	TransactionReference   string   `json:"transactionreference,omitempty"`
	SettleStatus           string   `json:"settlestatus,omitempty"`
	MaskedPAN              string   `json:"maskedpan,omitempty"`
	PaymentTypeDescription string   `json:"paymenttypedescription,omitempty"`
	RequestTypeDescription string   `json:"requesttypedescription,omitempty"`
	AccountTypeDescription string   `json:"accounttypedescription,omitempty"`
	BaseAmount             string   `json:"baseamount,omitempty"`
	Records                []map[string]interface{} `json:"records,omitempty"`
}
