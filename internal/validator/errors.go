package validator

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Kind is a stable error code.
type Kind string

const (
	KindEmailMustBeString   Kind = "EMAIL_MUST_BE_STRING"
	KindEmailCannotBeEmpty  Kind = "EMAIL_CANNOT_BE_EMPTY"
	KindInvalidEmailFormat  Kind = "INVALID_EMAIL_FORMAT"
	KindDisposableEmail     Kind = "DISPOSABLE_EMAIL"
	KindNoMXRecords         Kind = "NO_MX_RECORDS"
	KindDNSLookupTimeout    Kind = "DNS_LOOKUP_TIMEOUT"
	KindDNSLookupFailed     Kind = "DNS_LOOKUP_FAILED"
	KindInvalidTimeoutValue Kind = "INVALID_TIMEOUT_VALUE"
	KindUnknown             Kind = "UNKNOWN_ERROR"
)

var messages = map[Kind]string{
	KindEmailMustBeString:   "email must be a string",
	KindEmailCannotBeEmpty:  "email cannot be empty",
	KindInvalidEmailFormat:  "invalid email format",
	KindDisposableEmail:     "email domain is a disposable provider",
	KindNoMXRecords:         "no MX records found for domain",
	KindDNSLookupTimeout:    "DNS lookup timed out",
	KindDNSLookupFailed:     "DNS lookup failed",
	KindInvalidTimeoutValue: "timeout must be a non-negative duration",
	KindUnknown:             "unknown error",
}

// Message returns the default human readable text for k.
func (k Kind) Message() string {
	if m, ok := messages[k]; ok {
		return m
	}
	return messages[KindUnknown]
}

// Error carries a Kind plus an optional cause. errors.Is matches any *Error
// of the same Kind, so callers can test against the sentinels below.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func NewError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Message: kind.Message(), Err: cause}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Message()
	}
	if e.Err != nil {
		return string(e.Kind) + ": " + msg + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrEmailMustBeString   = &Error{Kind: KindEmailMustBeString}
	ErrEmailCannotBeEmpty  = &Error{Kind: KindEmailCannotBeEmpty}
	ErrInvalidEmailFormat  = &Error{Kind: KindInvalidEmailFormat}
	ErrDisposableEmail     = &Error{Kind: KindDisposableEmail}
	ErrNoMXRecords         = &Error{Kind: KindNoMXRecords}
	ErrDNSLookupTimeout    = &Error{Kind: KindDNSLookupTimeout}
	ErrDNSLookupFailed     = &Error{Kind: KindDNSLookupFailed}
	ErrInvalidTimeoutValue = &Error{Kind: KindInvalidTimeoutValue}
	ErrUnknown             = &Error{Kind: KindUnknown}
)

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Classify maps a resolver error to a Kind. Typed information (an *Error,
// context deadlines, *net.DNSError flags, net.Error timeouts) is trusted
// first; only then is the message matched against known substrings, and
// anything left over is DNS_LOOKUP_FAILED.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}

	if k := KindOf(err); k != "" {
		return k
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindDNSLookupTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		switch {
		case dnsErr.IsNotFound:
			return KindNoMXRecords
		case dnsErr.IsTimeout:
			return KindDNSLookupTimeout
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindDNSLookupTimeout
	}

	if k, ok := classifyMessage(err.Error()); ok {
		return k
	}

	return KindDNSLookupFailed
}

// Substrings seen in resolver error text. This is the lowest-trust path:
// the wording is not stable across platforms or DNS backends, so only
// patterns with a clear meaning belong here.
var messagePatterns = []struct {
	substr string
	kind   Kind
}{
	{"no such host", KindNoMXRecords},
	{"nxdomain", KindNoMXRecords},
	{"enotfound", KindNoMXRecords},
	{"enodata", KindNoMXRecords},
	{"no mx records", KindNoMXRecords},
	{"etimeout", KindDNSLookupTimeout},
	{"i/o timeout", KindDNSLookupTimeout},
	{"timed out", KindDNSLookupTimeout},
}

func classifyMessage(msg string) (Kind, bool) {
	msg = strings.ToLower(msg)
	for _, p := range messagePatterns {
		if strings.Contains(msg, p.substr) {
			return p.kind, true
		}
	}
	return "", false
}
