package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain"
	"github.com/common-repository/trust-payments-gateway-3ds2/test/mocks"
)

const testSecret = "notification-shared-secret"

var gatewayRanges = []string{"3.250.209.64"}

func newTestAuth(cloudflare []string) *NotificationAuth {
	return NewNotificationAuth(testSecret, gatewayRanges, cloudflare, mocks.NewMockLogger())
}

// signedBody builds a form body the way the gateway does: digest over the
// values in body order plus the secret, appended as responsesitesecurity.
func signedBody(pairs [][2]string) string {
	var fields []domain.NotificationField
	for _, p := range pairs {
		fields = append(fields, domain.NotificationField{Key: p[0], Value: p[1]})
	}
	digest := ComputeDigest(fields, testSecret)

	var parts []string
	for _, p := range pairs {
		parts = append(parts, url.QueryEscape(p[0])+"="+url.QueryEscape(p[1]))
	}
	parts = append(parts, "responsesitesecurity="+digest)
	return strings.Join(parts, "&")
}

func notificationRequest(body, remoteAddr string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/payments/notification", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.RemoteAddr = remoteAddr
	return r
}

func standardPairs() [][2]string {
	return [][2]string{
		{"errorcode", "0"},
		{"orderreference", "Ref-abcde12345"},
		{"transactionreference", "24-9-3001"},
		{"settlestatus", "0"},
	}
}

func TestAuthenticateAcceptsSignedNotification(t *testing.T) {
	auth := newTestAuth(nil)
	r := notificationRequest(signedBody(standardPairs()), "3.250.209.64:41000")

	event, err := auth.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, "Ref-abcde12345", event.Get("orderreference"))
	assert.Equal(t, "3.250.209.64", event.SourceIP)
}

func TestAuthenticateRejectsTamperedValue(t *testing.T) {
	auth := newTestAuth(nil)
	body := signedBody(standardPairs())
	body = strings.Replace(body, "settlestatus=0", "settlestatus=2", 1)

	_, err := auth.Authenticate(notificationRequest(body, "3.250.209.64:41000"))
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeNotifyBadSignature))
}

func TestAuthenticateDigestDependsOnFieldOrder(t *testing.T) {
	auth := newTestAuth(nil)

	pairs := standardPairs()
	digestBody := signedBody(pairs)
	// Swap two fields after signing: same values, different order
	reordered := strings.Replace(digestBody,
		"errorcode=0&orderreference=Ref-abcde12345",
		"orderreference=Ref-abcde12345&errorcode=0", 1)

	_, err := auth.Authenticate(notificationRequest(reordered, "3.250.209.64:41000"))
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeNotifyBadSignature))
}

func TestAuthenticateIgnoresEdgeInjectedFields(t *testing.T) {
	auth := newTestAuth(nil)
	// The edge appends metadata after the gateway signed the body
	body := signedBody(standardPairs()) + "&notification_access_ip=10.0.0.1"

	_, err := auth.Authenticate(notificationRequest(body, "3.250.209.64:41000"))
	require.NoError(t, err)
}

func TestAuthenticateRejectsDisallowedIP(t *testing.T) {
	auth := newTestAuth(nil)
	r := notificationRequest(signedBody(standardPairs()), "198.51.100.7:41000")

	_, err := auth.Authenticate(r)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeNotifyDisallowedIP))
}

func TestAuthenticateDisabledWithoutSecret(t *testing.T) {
	auth := NewNotificationAuth("", gatewayRanges, nil, mocks.NewMockLogger())
	r := notificationRequest(signedBody(standardPairs()), "3.250.209.64:41000")

	_, err := auth.Authenticate(r)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeNotifyDisabled))
}

func TestClientIPUnwrapsCloudflareOnlyFromCloudflare(t *testing.T) {
	auth := newTestAuth([]string{"173.245.48.0/20"})

	r := notificationRequest("", "173.245.48.5:443")
	r.Header.Set("CF-Connecting-IP", "3.250.209.64")
	assert.Equal(t, "3.250.209.64", auth.ClientIP(r))

	// Same header from a non-Cloudflare peer is spoofed and ignored
	r = notificationRequest("", "198.51.100.7:443")
	r.Header.Set("CF-Connecting-IP", "3.250.209.64")
	assert.Equal(t, "198.51.100.7", auth.ClientIP(r))
}

func TestClientIPPrecedence(t *testing.T) {
	auth := newTestAuth(nil)

	r := notificationRequest("", "198.51.100.7:443")
	r.Header.Set("Client-IP", "3.250.209.64")
	r.Header.Set("X-Forwarded-For", "192.0.2.1, 198.51.100.7")
	assert.Equal(t, "3.250.209.64", auth.ClientIP(r))

	r = notificationRequest("", "198.51.100.7:443")
	r.Header.Set("X-Forwarded-For", "192.0.2.1, 198.51.100.7")
	assert.Equal(t, "192.0.2.1", auth.ClientIP(r))

	r = notificationRequest("", "198.51.100.7:443")
	assert.Equal(t, "198.51.100.7", auth.ClientIP(r))

	r = notificationRequest("", "")
	assert.Equal(t, "0.0.0.0", auth.ClientIP(r))
}

func TestMiddlewareRejectsWithForbidden(t *testing.T) {
	auth := newTestAuth(nil)
	called := false
	handler := auth.Middleware(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	w := httptest.NewRecorder()
	handler(w, notificationRequest("errorcode=0", "198.51.100.7:41000"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, called)
}

func TestMiddlewarePassesEventThroughContext(t *testing.T) {
	auth := newTestAuth(nil)
	var got *domain.NotificationEvent
	handler := auth.Middleware(func(w http.ResponseWriter, r *http.Request) {
		got, _ = NotificationFromContext(r.Context())
	})

	w := httptest.NewRecorder()
	handler(w, notificationRequest(signedBody(standardPairs()), "3.250.209.64:41000"))
	require.NotNil(t, got)
	assert.Equal(t, "24-9-3001", got.Get("transactionreference"))
}
