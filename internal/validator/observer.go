package validator

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Phase string

const (
	PhaseFormat     Phase = "format"
	PhaseDisposable Phase = "disposable"
	PhaseMX         Phase = "mx"
)

type Stage string

const (
	StageStart    Stage = "start"
	StageComplete Stage = "complete"
)

// Event describes a phase boundary. Elapsed, HeapDelta and the outcome
// fields are only set on StageComplete.
type Event struct {
	ValidationID string
	Phase        Phase
	Stage        Stage
	Time         time.Time
	Elapsed      time.Duration
	HeapDelta    int64
	Status       Status
	ErrorCode    Kind
}

// Observer receives debug events. It must not block for long; it runs
// inline with the validation call.
type Observer interface {
	Observe(ctx context.Context, e Event)
}

type ObserverFunc func(ctx context.Context, e Event)

func (f ObserverFunc) Observe(ctx context.Context, e Event) {
	f(ctx, e)
}

// LogObserver writes events to logger at debug level.
func LogObserver(logger *slog.Logger) Observer {
	return ObserverFunc(func(ctx context.Context, e Event) {
		if e.Stage == StageStart {
			logger.DebugContext(ctx, "validation phase started",
				"validation_id", e.ValidationID,
				"phase", e.Phase,
			)
			return
		}
		logger.DebugContext(ctx, "validation phase completed",
			"validation_id", e.ValidationID,
			"phase", e.Phase,
			"status", e.Status,
			"error_code", e.ErrorCode,
			"elapsed", e.Elapsed,
			"heap_delta_bytes", e.HeapDelta,
		)
	})
}

const tracerName = "github.com/cruxstack/email-mx-validator-go/internal/validator"

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// phaseHooks wraps one phase with a trace span and, in debug mode, start and
// complete events. It never changes the phase outcome.
type phaseHooks struct {
	id       string
	debug    bool
	observer Observer
}

func (h phaseHooks) run(ctx context.Context, phase Phase, fn func(context.Context) CheckResult) CheckResult {
	ctx, span := tracer().Start(ctx, "validate."+string(phase),
		trace.WithAttributes(attribute.String("validation.id", h.id)))
	defer span.End()

	var heapBefore uint64
	if h.debug {
		heapBefore = heapAlloc()
		h.observer.Observe(ctx, Event{
			ValidationID: h.id,
			Phase:        phase,
			Stage:        StageStart,
			Time:         time.Now(),
		})
	}

	start := time.Now()
	res := fn(ctx)
	res.Duration = time.Since(start)

	span.SetAttributes(
		attribute.String("validation.status", string(res.Status)),
		attribute.Bool("validation.cached", res.Cached),
	)
	if res.Status == StatusFailed {
		span.SetStatus(codes.Error, string(res.ErrorCode))
	}

	if h.debug {
		h.observer.Observe(ctx, Event{
			ValidationID: h.id,
			Phase:        phase,
			Stage:        StageComplete,
			Time:         time.Now(),
			Elapsed:      res.Duration,
			HeapDelta:    int64(heapAlloc()) - int64(heapBefore),
			Status:       res.Status,
			ErrorCode:    res.ErrorCode,
		})
	}

	return res
}

func heapAlloc() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapAlloc
}
