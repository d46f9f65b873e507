// Package validator sequences the format, disposable-domain and MX checks
// for an email address and reports a boolean or detailed result.
package validator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cruxstack/email-mx-validator-go/internal/disposable"
	"github.com/cruxstack/email-mx-validator-go/internal/format"
	"github.com/cruxstack/email-mx-validator-go/internal/mxcache"
	"github.com/cruxstack/email-mx-validator-go/internal/resolver"
	"github.com/cruxstack/email-mx-validator-go/internal/types"
)

// DefaultLookupCeiling bounds how long an abandoned resolver call may keep
// running after its caller has already timed out.
const DefaultLookupCeiling = 30 * time.Second

type DisposableChecker interface {
	IsDisposable(domain string) bool
}

// Config wires the validator's collaborators. Nil fields get defaults: the
// regex format check, the embedded disposable list, the system resolver and
// a cache built from CacheOptions.
type Config struct {
	Format     func(email string) bool
	Disposable DisposableChecker
	Resolver   resolver.Resolver

	// Cache, when set, is shared and not closed by the validator.
	Cache        *mxcache.Cache
	CacheOptions *CacheOptions

	// Options are the base options every call starts from.
	Options *Options

	Observer      Observer
	Logger        *slog.Logger
	LookupCeiling time.Duration
}

type Validator struct {
	format        func(string) bool
	disposable    DisposableChecker
	resolver      resolver.Resolver
	cache         *mxcache.Cache
	ownsCache     bool
	options       Options
	observer      Observer
	logger        *slog.Logger
	lookupCeiling time.Duration
}

func New(cfg Config) (*Validator, error) {
	opts := DefaultOptions()
	if cfg.Options != nil {
		opts = *cfg.Options
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	v := &Validator{
		format:        cfg.Format,
		disposable:    cfg.Disposable,
		resolver:      cfg.Resolver,
		cache:         cfg.Cache,
		options:       opts,
		observer:      cfg.Observer,
		logger:        cfg.Logger,
		lookupCeiling: cfg.LookupCeiling,
	}

	if v.format == nil {
		v.format = format.IsValidFormat
	}
	if v.disposable == nil {
		v.disposable = disposable.NewDefault()
	}
	if v.resolver == nil {
		v.resolver = resolver.NewNetResolver()
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}
	if v.observer == nil {
		v.observer = LogObserver(v.logger)
	}
	if v.lookupCeiling <= 0 {
		v.lookupCeiling = DefaultLookupCeiling
	}

	if v.cache == nil {
		co := DefaultCacheOptions()
		if cfg.CacheOptions != nil {
			co = *cfg.CacheOptions
		}
		if co.Enabled {
			v.cache = mxcache.New(mxcache.Config{
				DefaultTTL:    co.DefaultTTL,
				MaxSize:       co.MaxSize,
				SweepInterval: co.SweepInterval,
			})
			v.ownsCache = true
		}
	}

	return v, nil
}

// Cache returns the MX cache, or nil when caching is disabled.
func (v *Validator) Cache() *mxcache.Cache {
	return v.cache
}

// Options returns the base options.
func (v *Validator) Options() Options {
	return v.options
}

// Close releases a cache the validator created itself.
func (v *Validator) Close() {
	if v.ownsCache {
		v.cache.Close()
	}
}

// Validate checks email and returns the aggregated result. The error is
// reserved for configuration problems such as a negative timeout; failed
// checks are reported in the Result.
func (v *Validator) Validate(ctx context.Context, email string, opts ...Option) (*Result, error) {
	o := v.options
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}

	return v.run(ctx, email, o), nil
}

// ValidateValue accepts untyped input such as decoded JSON. Anything other
// than a string is rejected with EMAIL_MUST_BE_STRING.
func (v *Validator) ValidateValue(ctx context.Context, input any, opts ...Option) (*Result, error) {
	switch s := input.(type) {
	case string:
		return v.Validate(ctx, s, opts...)
	case *string:
		if s != nil {
			return v.Validate(ctx, *s, opts...)
		}
	}
	return nil, &Error{
		Kind:    KindEmailMustBeString,
		Message: fmt.Sprintf("email must be a string, got %T", input),
	}
}

// IsValid is the boolean mode: it always short-circuits on the first
// failing check.
func (v *Validator) IsValid(ctx context.Context, email string, opts ...Option) (bool, error) {
	opts = append(slices.Clip(opts), WithDetailed(false))
	res, err := v.Validate(ctx, email, opts...)
	if err != nil {
		return false, err
	}
	return res.Valid, nil
}

func (v *Validator) run(ctx context.Context, email string, o Options) *Result {
	hooks := phaseHooks{
		id:       uuid.NewString(),
		debug:    o.Debug,
		observer: v.observer,
	}

	res := &Result{Email: email}

	res.Checks.Format = hooks.run(ctx, PhaseFormat, func(context.Context) CheckResult {
		return v.checkFormat(email)
	})
	formatOK := res.Checks.Format.Valid
	domain := format.Domain(email)

	switch {
	case !o.CheckDisposable:
		res.Checks.Disposable = skipped(skipDisabled)
	case !formatOK:
		res.Checks.Disposable = skipped(skipFormatFailed)
	default:
		res.Checks.Disposable = hooks.run(ctx, PhaseDisposable, func(context.Context) CheckResult {
			return v.checkDisposable(domain)
		})
	}

	switch {
	case !o.CheckMX:
		res.Checks.MX = skipped(skipDisabled)
	case !formatOK:
		res.Checks.MX = skipped(skipFormatFailed)
	case !o.Detailed && res.Checks.Disposable.Status == StatusFailed:
		res.Checks.MX = skipped(skipShortCircuit)
	default:
		res.Checks.MX = hooks.run(ctx, PhaseMX, func(ctx context.Context) CheckResult {
			return v.checkMX(ctx, domain, o.timeout())
		})
	}

	res.aggregate()

	if o.Detailed && v.cache != nil {
		stats := v.cache.Statistics()
		res.CacheStats = &stats
	}

	return res
}

func (v *Validator) checkFormat(email string) CheckResult {
	if strings.TrimSpace(email) == "" {
		return failed(KindEmailCannotBeEmpty, "")
	}
	if !v.format(email) {
		return failed(KindInvalidEmailFormat, "")
	}
	return passed()
}

func (v *Validator) checkDisposable(domain string) CheckResult {
	if v.disposable.IsDisposable(domain) {
		return failed(KindDisposableEmail, "domain "+domain+" is a known disposable provider")
	}
	return passed()
}

type lookupResult struct {
	records []types.MXRecord
	err     error
}

// checkMX consults the cache, then races the resolver against the timeout
// and the caller's context. A lookup that loses the race is not cancelled;
// if it later succeeds it still fills the cache.
func (v *Validator) checkMX(ctx context.Context, domain string, timeout time.Duration) CheckResult {
	if v.cache != nil {
		if records, found := v.cache.Get(domain); found {
			if len(records) == 0 {
				res := failed(KindNoMXRecords, "cached entry for "+domain+" has no records")
				res.Cached = true
				return res
			}
			res := passed()
			res.Cached = true
			res.Records = records
			return res
		}
	}

	results := v.lookup(ctx, domain, timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case lr := <-results:
		if lr.err != nil {
			return failed(Classify(lr.err), lr.err.Error())
		}
		if len(lr.records) == 0 {
			return failed(KindNoMXRecords, "resolver returned no records for "+domain)
		}
		res := passed()
		res.Records = lr.records
		return res

	case <-timer.C:
		v.logger.WarnContext(ctx, "mx lookup timed out", "domain", domain, "timeout", timeout)
		return failed(KindDNSLookupTimeout, fmt.Sprintf("no answer for %s within %s", domain, timeout))

	case <-ctx.Done():
		kind := KindDNSLookupFailed
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = KindDNSLookupTimeout
		}
		return failed(kind, ctx.Err().Error())
	}
}

// lookup starts the resolver call in its own goroutine. The channel is
// buffered so the goroutine can always deliver and exit, whether or not the
// caller is still waiting; that send is the only path back to the caller.
func (v *Validator) lookup(ctx context.Context, domain string, timeout time.Duration) <-chan lookupResult {
	out := make(chan lookupResult, 1)

	ceiling := v.lookupCeiling
	if ceiling < timeout {
		ceiling = timeout
	}
	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ceiling)

	go func() {
		defer cancel()

		var res lookupResult
		defer func() {
			if p := recover(); p != nil {
				v.logger.ErrorContext(ctx, "mx resolver panicked", "domain", domain, "panic", p)
				res = lookupResult{err: NewError(KindUnknown, fmt.Errorf("resolver panic: %v", p))}
			}
			out <- res
		}()

		res.records, res.err = v.resolver.LookupMX(lctx, domain)
		if res.err == nil && len(res.records) > 0 && v.cache != nil {
			v.cache.Set(domain, res.records, 0)
		}
	}()

	return out
}

var (
	defaultOnce      sync.Once
	defaultValidator *Validator
)

// Default returns a process-wide validator with default options and its own
// cache. Prefer New with an explicit Config; this exists for callers that
// only need a one-line check.
func Default() *Validator {
	defaultOnce.Do(func() {
		v, err := New(Config{})
		if err != nil {
			panic(fmt.Sprintf("validator: default options invalid: %v", err))
		}
		defaultValidator = v
	})
	return defaultValidator
}
