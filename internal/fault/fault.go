// Package fault defines the error taxonomy shared by every pipeline stage
// and the classification helpers that map backend HTTP and network failures
// onto it.
package fault

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Kind identifies one failure class.
type Kind string

const (
	// KindConfiguration marks missing or malformed credentials, detected
	// before any network call.
	KindConfiguration Kind = "configuration"
	// KindAuthentication marks a 401 from any backend.
	KindAuthentication Kind = "authentication"
	// KindAuthorization marks a 403 from any backend.
	KindAuthorization Kind = "authorization"
	// KindRateLimit marks a 429, or a 400-class body carrying limit
	// language such as concurrency caps.
	KindRateLimit Kind = "rate_limit"
	// KindValidation marks a 400 without limit language, e.g. a bad
	// persona or replica identifier.
	KindValidation Kind = "validation"
	// KindConnectivity marks DNS and connection-level failures.
	KindConnectivity Kind = "connectivity"
	// KindTimeout marks a deadline or cancellation firing mid-call.
	KindTimeout Kind = "timeout"
	// KindUpstream marks 5xx responses and unrecognized 4xx responses.
	KindUpstream Kind = "upstream"
	// KindPersistence marks record-store failures. Always non-fatal.
	KindPersistence Kind = "persistence"
)

// Error carries a classified backend failure.
type Error struct {
	Kind    Kind
	Backend string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	parts := make([]string, 0, 4)
	if e.Backend != "" {
		parts = append(parts, e.Backend)
	}
	parts = append(parts, string(e.Kind))
	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.Status))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a classified error without a wrapped cause.
func New(kind Kind, backend, message string) *Error {
	return &Error{Kind: kind, Backend: backend, Message: message}
}

// Wrap classifies an existing error.
func Wrap(kind Kind, backend string, err error) *Error {
	return &Error{Kind: kind, Backend: backend, Err: err}
}

// KindOf extracts the failure class, or KindUpstream for foreign errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUpstream
}

// Retryable reports whether an automatic retry is reasonable for the class.
func Retryable(kind Kind) bool {
	switch kind {
	case KindTimeout, KindConnectivity, KindUpstream, KindRateLimit:
		return true
	default:
		return false
	}
}

// limitLanguage marks 400-class bodies that describe quota or concurrency
// ceilings rather than malformed requests.
var limitLanguage = []string{"concurrent", "maximum", "limit", "quota"}

// FromStatus classifies a non-2xx HTTP response. The body sample is used
// both for 400-class disambiguation and as the error message.
func FromStatus(backend string, status int, body []byte) *Error {
	message := strings.TrimSpace(string(body))
	e := &Error{Backend: backend, Status: status, Message: message}
	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindAuthentication
	case status == http.StatusForbidden:
		e.Kind = KindAuthorization
	case status == http.StatusTooManyRequests:
		e.Kind = KindRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		e.Kind = KindTimeout
	case status >= 400 && status < 500:
		if containsLimitLanguage(message) {
			e.Kind = KindRateLimit
		} else if status == http.StatusBadRequest {
			e.Kind = KindValidation
		} else {
			e.Kind = KindUpstream
		}
	default:
		e.Kind = KindUpstream
	}
	return e
}

// FromNetwork classifies a transport-level failure.
func FromNetwork(backend string, err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &Error{Kind: KindTimeout, Backend: backend, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Backend: backend, Err: err}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Error{Kind: KindConnectivity, Backend: backend, Err: err}
	}
	return &Error{Kind: KindConnectivity, Backend: backend, Err: err}
}

func containsLimitLanguage(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range limitLanguage {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// UserNotice renders a dismissable, user-facing message for faults the
// presentation layer must surface. Rate-limit conditions get a friendlier
// wait suggestion; everything else suggests a retry.
func UserNotice(err error) string {
	if err == nil {
		return ""
	}
	switch KindOf(err) {
	case KindRateLimit:
		return "The video service has reached its generation limit. Please wait for current videos to finish and try again."
	case KindConfiguration:
		return "Video is unavailable until the service is configured. The conversation can continue without it."
	case KindConnectivity:
		return "Unable to reach the video service. Check your connection and try again."
	case KindTimeout:
		return "The video took too long to generate. Please try again."
	default:
		return "Video generation failed. Please try again."
	}
}
