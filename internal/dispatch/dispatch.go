// Package dispatch executes batches of tool calls selected by the
// orchestrator. Every call moves through validation, execution and
// normalization and always comes back as an envelope; a tool failure
// never aborts the batch.
package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/juniperhq/valet/internal/audit"
	"github.com/juniperhq/valet/internal/envelope"
	"github.com/juniperhq/valet/internal/fault"
	votel "github.com/juniperhq/valet/internal/otel"
	"github.com/juniperhq/valet/internal/tools"
)

// Call is one tool invocation request. An empty ID gets a generated one
// so the outcome can always be correlated.
type Call struct {
	ID   string          `json:"id"`
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args"`
}

// Outcome pairs a call with its result envelope.
type Outcome struct {
	CallID   string            `json:"call_id"`
	Tool     string            `json:"tool"`
	Envelope envelope.Envelope `json:"envelope"`
}

// RemoteCaller executes a method on a remote MCP service.
type RemoteCaller interface {
	Call(ctx context.Context, service, method string, args map[string]any) (*envelope.Result, error)
}

// Options configures a Dispatcher. Zero Workers, RetryBackoff and
// CallTimeout fall back to 4 workers, 500ms and 30s. MaxRetries is
// taken as configured: 0 means a single attempt, no retries.
type Options struct {
	Registry *tools.Registry
	Remote   RemoteCaller
	Logger   *slog.Logger
	Tracer   trace.Tracer
	Metrics  *votel.Metrics
	Journal  *audit.Journal

	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	CallTimeout  time.Duration
}

// Dispatcher runs calls on a bounded worker pool. Only transient service
// failures are retried; everything else fails the call on first contact.
type Dispatcher struct {
	registry *tools.Registry
	remote   RemoteCaller
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *votel.Metrics
	journal  *audit.Journal

	workers      int
	maxRetries   int
	retryBackoff time.Duration
	callTimeout  time.Duration
}

func New(opts Options) *Dispatcher {
	d := &Dispatcher{
		registry:     opts.Registry,
		remote:       opts.Remote,
		logger:       opts.Logger,
		tracer:       opts.Tracer,
		metrics:      opts.Metrics,
		journal:      opts.Journal,
		workers:      opts.Workers,
		maxRetries:   opts.MaxRetries,
		retryBackoff: opts.RetryBackoff,
		callTimeout:  opts.CallTimeout,
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.tracer == nil {
		d.tracer = nooptrace.NewTracerProvider().Tracer(votel.ScopeName)
	}
	if d.workers <= 0 {
		d.workers = 4
	}
	if d.maxRetries < 0 {
		d.maxRetries = 0
	}
	if d.retryBackoff <= 0 {
		d.retryBackoff = 500 * time.Millisecond
	}
	if d.callTimeout <= 0 {
		d.callTimeout = 30 * time.Second
	}
	return d
}

// Dispatch runs the batch and returns outcomes in issue order. Calls
// execute concurrently up to the worker bound.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []Call) []Outcome {
	outcomes := make([]Outcome, len(calls))
	sem := make(chan struct{}, d.workers)
	var wg sync.WaitGroup

	for i, call := range calls {
		if call.ID == "" {
			call.ID = uuid.NewString()
		}
		wg.Add(1)
		go func(i int, call Call) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[i] = Outcome{
				CallID:   call.ID,
				Tool:     call.Tool,
				Envelope: d.dispatchOne(ctx, call),
			}
		}(i, call)
	}
	wg.Wait()
	return outcomes
}

func (d *Dispatcher) dispatchOne(ctx context.Context, call Call) envelope.Envelope {
	log := d.logger.With("call_id", call.ID, "tool", call.Tool)
	log.Debug("call received")

	ctx, span := votel.StartSpan(ctx, d.tracer, "dispatch.call",
		votel.AttrCallID.String(call.ID),
		votel.AttrToolName.String(call.Tool),
	)
	defer span.End()

	inv, err := d.registry.Resolve(call.Tool, call.Args)
	if err != nil {
		log.Warn("call rejected", "error", err)
		env := envelope.Normalize(nil, err)
		d.recordError(ctx, span, env)
		d.journal.Append(audit.Record{
			CallID: call.ID, Tool: call.Tool,
			Status: string(env.Status), ErrorKind: env.ErrorKind,
		})
		return env
	}
	span.SetAttributes(votel.AttrToolKind.String(string(inv.Spec.Kind)))

	if d.metrics != nil {
		d.metrics.ActiveCalls.Add(ctx, 1)
		defer d.metrics.ActiveCalls.Add(ctx, -1)
	}
	start := time.Now()

	var res *envelope.Result
	attempts := 0
	backoff := d.retryBackoff
retrying:
	for attempt := 0; ; attempt++ {
		attempts = attempt + 1
		span.SetAttributes(votel.AttrAttempt.Int(attempt + 1))
		res, err = d.execute(ctx, inv)
		if err == nil || !fault.Retryable(err) || attempt >= d.maxRetries {
			break
		}

		log.Warn("transient failure, retrying", "attempt", attempt+1, "backoff", backoff, "error", err)
		if d.metrics != nil {
			d.metrics.ToolCallRetries.Add(ctx, 1)
		}
		select {
		case <-ctx.Done():
			err = fault.Wrap(fault.KindTransient, ctx.Err(), "interrupted while awaiting retry")
			break retrying
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	env := envelope.Normalize(res, err)
	if d.metrics != nil {
		d.metrics.ToolCallDuration.Record(ctx, time.Since(start).Seconds())
	}
	d.journal.Append(audit.Record{
		CallID: call.ID, Tool: call.Tool,
		Status: string(env.Status), ErrorKind: env.ErrorKind,
		DurationMS: time.Since(start).Milliseconds(),
		Attempts:   attempts,
	})
	if env.Status == envelope.StatusError {
		log.Warn("call failed", "kind", env.ErrorKind, "error", env.ErrorMessage)
		d.recordError(ctx, span, env)
	} else {
		log.Debug("call returned", "duration", time.Since(start))
	}
	return env
}

func (d *Dispatcher) execute(ctx context.Context, inv *tools.Invocation) (*envelope.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	switch inv.Spec.Kind {
	case tools.KindLocal:
		return inv.Spec.Handler(ctx, inv.Args)
	case tools.KindMCP:
		if d.remote == nil {
			return nil, fault.New(fault.KindConfig, "no mcp gateway for tool %q", inv.Spec.Name)
		}
		return d.remote.Call(ctx, inv.Spec.Service, inv.Spec.Method, inv.Args)
	default:
		return nil, fault.New(fault.KindUnknown, "tool %q has kind %q", inv.Spec.Name, inv.Spec.Kind)
	}
}

func (d *Dispatcher) recordError(ctx context.Context, span trace.Span, env envelope.Envelope) {
	span.SetAttributes(votel.AttrErrorKind.String(env.ErrorKind))
	if d.metrics != nil {
		d.metrics.ToolCallErrors.Add(ctx, 1)
	}
}
