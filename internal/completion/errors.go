package completion

import "fmt"

// Kind classifies a completion failure so callers can choose user messaging
// (e.g. "update your API key" for auth failures vs "try again later" for
// rate limits and outages).
type Kind string

const (
	KindBadRequest    Kind = "bad_request"     // 400
	KindUnauthorized  Kind = "unauthorized"    // 401
	KindForbidden     Kind = "forbidden"       // 403
	KindNotFound      Kind = "not_found"       // 404
	KindUnprocessable Kind = "unprocessable"   // 422
	KindRateLimited   Kind = "rate_limited"    // 429
	KindUnavailable   Kind = "unavailable"     // >= 500
	KindConnection    Kind = "connection"      // transport failure, no status
	KindEmptyResponse Kind = "empty_response"  // 2xx with no generated text
	KindUnexpected    Kind = "unexpected"      // anything else
)

// Error is the normalized completion failure. Message is safe to show to
// the user directly; Cause preserves the original error for diagnostics.
type Error struct {
	Provider string
	Status   int // HTTP status, 0 when no response was received
	Kind     Kind
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// classifyStatus maps an HTTP status code to an error kind.
func classifyStatus(status int) Kind {
	switch {
	case status == 400:
		return KindBadRequest
	case status == 401:
		return KindUnauthorized
	case status == 403:
		return KindForbidden
	case status == 404:
		return KindNotFound
	case status == 422:
		return KindUnprocessable
	case status == 429:
		return KindRateLimited
	case status >= 500:
		return KindUnavailable
	default:
		return KindUnexpected
	}
}

// kindMessage is the user-facing message for each status-derived kind.
func kindMessage(kind Kind, provider string) string {
	switch kind {
	case KindBadRequest:
		return "the request was rejected as invalid; check the configured model"
	case KindUnauthorized:
		return "authentication failed; update your " + provider + " API key"
	case KindForbidden:
		return "permission denied; your " + provider + " API key lacks access to this model"
	case KindNotFound:
		return "the requested model or endpoint was not found"
	case KindUnprocessable:
		return "the request could not be processed; check the prompt and model settings"
	case KindRateLimited:
		return "rate limited by " + provider + "; wait a moment and try again"
	case KindUnavailable:
		return provider + " is temporarily unavailable; try again later"
	default:
		return "unexpected error from " + provider
	}
}

// statusError builds an *Error from a non-2xx HTTP response. body is the
// raw response body, preserved as the cause for a "more details" view.
func statusError(provider string, status int, body []byte) *Error {
	kind := classifyStatus(status)
	return &Error{
		Provider: provider,
		Status:   status,
		Kind:     kind,
		Message:  kindMessage(kind, provider),
		Cause:    fmt.Errorf("%s returned status %d: %s", provider, status, string(body)),
	}
}

// emptyError builds the error for a successful response with no text.
func emptyError(provider string) *Error {
	return &Error{
		Provider: provider,
		Kind:     KindEmptyResponse,
		Message:  provider + " returned an empty response",
	}
}

// decodeError builds the error for an unparseable success response.
func decodeError(provider string, err error) *Error {
	return &Error{
		Provider: provider,
		Kind:     KindUnexpected,
		Message:  "unexpected response from " + provider,
		Cause:    err,
	}
}
