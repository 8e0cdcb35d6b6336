package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain/ports"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/util"
	"github.com/common-repository/trust-payments-gateway-3ds2/pkg/observability"
)

// Fields excluded from the digest: the signature itself plus metadata the
// edge injects after the gateway signed the body.
var digestExcludedFields = map[string]bool{
	"responsesitesecurity":         true,
	"notificationreference":        true,
	"notification_access_ip":       true,
	"notification_requested_by_ip": true,
}

type notificationContextKey struct{}

// NotificationAuth authenticates asynchronous gateway notifications before
// any handler sees them: the source address must fall inside the configured
// allow-list and the site-security digest must match exactly.
type NotificationAuth struct {
	secret           string
	allowedRanges    []string
	cloudflareRanges []string
	logger           ports.Logger
}

// NewNotificationAuth creates a notification authenticator. An empty secret
// disables the endpoint entirely.
func NewNotificationAuth(secret string, allowedRanges, cloudflareRanges []string, logger ports.Logger) *NotificationAuth {
	return &NotificationAuth{
		secret:           secret,
		allowedRanges:    allowedRanges,
		cloudflareRanges: cloudflareRanges,
		logger:           logger,
	}
}

// Middleware parses and authenticates the notification, then passes it to
// the next handler through the request context. A rejected notification is
// discarded with a 403; it never reaches business logic.
func (a *NotificationAuth) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		event, err := a.Authenticate(r)
		if err != nil {
			observability.RecordNotification(metricOutcome(err))
			a.logger.Warn("notification rejected",
				ports.String("reason", string(domain.GetErrorCode(err))),
				ports.String("source_ip", a.ClientIP(r)),
			)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		observability.RecordNotification("accepted")
		next(w, r.WithContext(context.WithValue(r.Context(), notificationContextKey{}, event)))
	}
}

// NotificationFromContext retrieves the authenticated event placed by the
// middleware.
func NotificationFromContext(ctx context.Context) (*domain.NotificationEvent, bool) {
	event, ok := ctx.Value(notificationContextKey{}).(*domain.NotificationEvent)
	return event, ok
}

// Authenticate parses the notification body and verifies source address and
// digest. The event is returned only when every check passes.
func (a *NotificationAuth) Authenticate(r *http.Request) (*domain.NotificationEvent, error) {
	if a.secret == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeNotifyDisabled, "notification secret is not configured")
	}

	event, err := ParseNotification(r)
	if err != nil {
		return nil, err
	}
	event.SourceIP = a.ClientIP(r)

	if !util.IPInAnyRange(event.SourceIP, a.allowedRanges) {
		return nil, domain.NewDomainError(domain.ErrorCodeNotifyDisallowedIP, "notification source address not in allow-list").
			WithDetail("source_ip", event.SourceIP)
	}

	expected := ComputeDigest(event.Fields, a.secret)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(event.ClaimedSignature)) != 1 {
		return nil, domain.NewDomainError(domain.ErrorCodeNotifyBadSignature, "notification digest mismatch")
	}

	return event, nil
}

// ParseNotification decodes the form-encoded body while preserving field
// order. The digest is computed over values in arrival order, so the
// standard form parser (which loads into a map) cannot be used here.
func ParseNotification(r *http.Request) (*domain.NotificationEvent, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeValidationFailed, "failed to read notification body", err)
	}

	event := &domain.NotificationEvent{}
	for _, pair := range strings.Split(string(body), "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			continue
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			continue
		}
		if key == "responsesitesecurity" {
			event.ClaimedSignature = value
		}
		event.Fields = append(event.Fields, domain.NotificationField{Key: key, Value: value})
	}
	return event, nil
}

// ComputeDigest derives the site-security hash: SHA-256 over the field
// values concatenated in arrival order followed by the shared secret.
func ComputeDigest(fields []domain.NotificationField, secret string) string {
	var b strings.Builder
	for _, f := range fields {
		if digestExcludedFields[f.Key] {
			continue
		}
		b.WriteString(f.Value)
	}
	b.WriteString(secret)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// ClientIP resolves the notification's source address. A CDN-forwarded
// address is trusted only when the direct peer actually is the CDN;
// otherwise the header would be spoofable by anyone.
func (a *NotificationAuth) ClientIP(r *http.Request) string {
	peer := remoteHost(r)

	if cf := r.Header.Get("CF-Connecting-IP"); cf != "" && util.IPInAnyRange(peer, a.cloudflareRanges) {
		return strings.TrimSpace(cf)
	}
	if v := r.Header.Get("Client-IP"); v != "" {
		return strings.TrimSpace(v)
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if peer != "" {
		return peer
	}
	return "0.0.0.0"
}

func metricOutcome(err error) string {
	switch domain.GetErrorCode(err) {
	case domain.ErrorCodeNotifyBadSignature:
		return "bad_signature"
	case domain.ErrorCodeNotifyDisallowedIP:
		return "disallowed_ip"
	case domain.ErrorCodeNotifyDisabled:
		return "disabled"
	default:
		return "rejected"
	}
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
