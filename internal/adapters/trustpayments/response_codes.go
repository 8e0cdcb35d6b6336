package trustpayments

// Shopper-facing messages for gateway error codes, per
// https://webapp.securetrading.net/errorcodes.html. Unmapped codes fall back
// to a generic decline message; transport errors never reach this table.

const genericDeclineMessage = "Unfortunately your transaction has been declined. Please try again or contact the merchant."

var shopperMessages = map[string]string{
	"70000": "Transaction declined by card issuer. Please re-attempt with another card or contact your card issuer.",
	"71000": "Transaction declined by card issuer. SCA Required. Please contact the merchant.",
	"60010": "Unable to process transaction. Please try again and contact the merchant if the issue persists.",
	"60110": "Unable to process transaction.",
	"60022": "Transaction declined, 3-D Secure authentication has failed.",
	"60102": "Transaction has been declined.",
	"60103": "Transaction has been declined.",
	"60104": "Transaction has been declined.",
	"60105": "Transaction has been declined.",
	"60106": "Transaction has been declined.",
	"60108": "Transaction declined, 3-D Secure authentication has failed.",
	"50003": "jwt invalid field - Invalid data has been submitted. Please check the below fields and try again, if the issue persists please contact the merchant.",
	"30006": "incorrect sitereference, please contact the merchant - Invalid data received (30006)",
	"30000": "Invalid data has been submitted. Please check the below fields and try again, if the issue persists please contact the merchant.",
}

// ShopperMessage translates a gateway error code (and its errordata field
// hints) into the text shown to the shopper. Code 30000 with an
// "Invalid field" message is narrowed to the offending field when the
// gateway names one.
func ShopperMessage(errorCode, errorMessage string, errorData []string) string {
	if errorCode == "30000" && errorMessage == "Invalid field" && len(errorData) > 0 {
		switch errorData[0] {
		case "billingpostcode":
			return "Invalid Billing Postcode"
		case "expirydate":
			return "Invalid Expiry Date"
		}
	}

	if msg, ok := shopperMessages[errorCode]; ok {
		return msg
	}
	return genericDeclineMessage
}
