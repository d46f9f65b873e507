package validator

import (
	"time"

	"github.com/cruxstack/email-mx-validator-go/internal/mxcache"
	"github.com/cruxstack/email-mx-validator-go/internal/types"
)

type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// reasons recorded on skipped checks
const (
	skipDisabled     = "disabled"
	skipFormatFailed = "format check failed"
	skipShortCircuit = "skipped after earlier failure"
)

// CheckResult is the outcome of one phase.
type CheckResult struct {
	Status    Status        `json:"status"`
	Valid     bool          `json:"valid"`
	ErrorCode Kind          `json:"errorCode,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Detail    string        `json:"detail,omitempty"`
	Duration  time.Duration `json:"duration"`

	// MX phase only
	Cached  bool             `json:"cached,omitempty"`
	Records []types.MXRecord `json:"records,omitempty"`
}

func (c CheckResult) Ran() bool {
	return c.Status == StatusPassed || c.Status == StatusFailed
}

type Checks struct {
	Format     CheckResult `json:"format"`
	Disposable CheckResult `json:"disposable"`
	MX         CheckResult `json:"mx"`
}

// Result is built fresh for every call and never shared.
type Result struct {
	Email      string         `json:"email"`
	Valid      bool           `json:"valid"`
	Reason     string         `json:"reason,omitempty"`
	ErrorCode  Kind           `json:"errorCode,omitempty"`
	Checks     Checks         `json:"checks"`
	CacheStats *mxcache.Stats `json:"cacheStats,omitempty"`
}

// Err returns nil for a valid result and an *Error describing the first
// failing check otherwise.
func (r *Result) Err() error {
	if r.Valid {
		return nil
	}
	kind := r.ErrorCode
	if kind == "" {
		kind = KindUnknown
	}
	return &Error{Kind: kind, Message: r.Reason}
}

func passed() CheckResult {
	return CheckResult{Status: StatusPassed, Valid: true}
}

func failed(kind Kind, detail string) CheckResult {
	return CheckResult{
		Status:    StatusFailed,
		ErrorCode: kind,
		Reason:    kind.Message(),
		Detail:    detail,
	}
}

func skipped(reason string) CheckResult {
	return CheckResult{Status: StatusSkipped, Reason: reason}
}

// aggregate sets the top level verdict from the checks, in phase order.
func (r *Result) aggregate() {
	r.Valid = true
	for _, c := range []CheckResult{r.Checks.Format, r.Checks.Disposable, r.Checks.MX} {
		if c.Status == StatusFailed {
			r.Valid = false
			r.ErrorCode = c.ErrorCode
			r.Reason = c.Reason
			return
		}
	}
}
