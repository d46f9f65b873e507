package validator

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cruxstack/email-mx-validator-go/internal/mxcache"
)

const DefaultTimeout = 5 * time.Second

// Options controls a single validation call.
type Options struct {
	CheckMX         bool
	CheckDisposable bool

	// Timeout bounds the MX lookup race. Zero selects DefaultTimeout;
	// negative values are rejected with INVALID_TIMEOUT_VALUE.
	Timeout time.Duration

	// Detailed runs every applicable phase even after a failure so the
	// result carries a complete diagnostic picture.
	Detailed bool

	// Debug emits phase boundary events to the configured Observer.
	Debug bool
}

func DefaultOptions() Options {
	return Options{
		CheckMX:         true,
		CheckDisposable: true,
		Timeout:         DefaultTimeout,
	}
}

func (o Options) Validate() error {
	if o.Timeout < 0 {
		return &Error{
			Kind:    KindInvalidTimeoutValue,
			Message: fmt.Sprintf("timeout must be a non-negative duration, got %s", o.Timeout),
		}
	}
	return nil
}

func (o Options) timeout() time.Duration {
	if o.Timeout == 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

// Option overrides a single field of Options for one call.
type Option func(*Options)

func WithCheckMX(enabled bool) Option {
	return func(o *Options) { o.CheckMX = enabled }
}

func WithCheckDisposable(enabled bool) Option {
	return func(o *Options) { o.CheckDisposable = enabled }
}

func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

func WithDetailed(enabled bool) Option {
	return func(o *Options) { o.Detailed = enabled }
}

func WithDebug(enabled bool) Option {
	return func(o *Options) { o.Debug = enabled }
}

// CacheOptions configures the cache a Validator creates for itself when none
// is injected.
type CacheOptions struct {
	Enabled    bool
	DefaultTTL time.Duration
	MaxSize    int

	// SweepInterval of zero uses the cache default; negative disables it.
	SweepInterval time.Duration
}

func DefaultCacheOptions() CacheOptions {
	return CacheOptions{
		Enabled:       true,
		DefaultTTL:    mxcache.DefaultTTL,
		MaxSize:       mxcache.DefaultMaxSize,
		SweepInterval: mxcache.DefaultSweepInterval,
	}
}

// ParseTimeout accepts a Go duration ("750ms", "5s") or a bare integer in
// milliseconds. Anything else, including negative values, is an
// INVALID_TIMEOUT_VALUE error.
func ParseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ms < 0 {
			return 0, invalidTimeout(s, nil)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, invalidTimeout(s, err)
	}
	if d < 0 {
		return 0, invalidTimeout(s, nil)
	}
	return d, nil
}

func invalidTimeout(value string, cause error) *Error {
	return &Error{
		Kind:    KindInvalidTimeoutValue,
		Message: fmt.Sprintf("invalid timeout value %q", value),
		Err:     cause,
	}
}
