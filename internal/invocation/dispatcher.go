// Package invocation routes typed invocation records to their handlers.
// Every entrypoint (managed scheduler target, local cron, internal HTTP
// endpoint, ops CLI) goes through a Dispatcher.
package invocation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/heartmarshall/zengin-sync/internal/domain"
	"github.com/heartmarshall/zengin-sync/internal/service/processor"
	"github.com/heartmarshall/zengin-sync/pkg/ctxutil"
)

type diffProcessor interface {
	Run(ctx context.Context, inv domain.Invocation) (*processor.RunResult, error)
}

type diffExecutor interface {
	Execute(ctx context.Context, inv domain.Invocation) (domain.ExecutionResult, error)
}

type recorder interface {
	ObserveInvocation(kind string, err error, elapsed time.Duration)
	ObserveChanges(additions, updates, deletions int)
	ObserveRowsApplied(rows int64)
}

// Result is what a dispatched invocation produced. Exactly one field is set.
type Result struct {
	Run       *processor.RunResult    `json:"run,omitempty"`
	Execution *domain.ExecutionResult `json:"execution,omitempty"`
}

// Dispatcher validates invocations and hands them to the matching service.
type Dispatcher struct {
	processor diffProcessor
	executor  diffExecutor
	metrics   recorder
	log       *slog.Logger
}

// NewDispatcher creates a Dispatcher. metrics may be nil.
func NewDispatcher(log *slog.Logger, proc diffProcessor, exec diffExecutor, metrics recorder) *Dispatcher {
	return &Dispatcher{
		processor: proc,
		executor:  exec,
		metrics:   metrics,
		log:       log.With("component", "dispatcher"),
	}
}

// Dispatch runs inv and discards its result.
func (d *Dispatcher) Dispatch(ctx context.Context, inv domain.Invocation) error {
	_, err := d.Handle(ctx, inv)
	return err
}

// Handle runs inv and returns what the handler produced.
func (d *Dispatcher) Handle(ctx context.Context, inv domain.Invocation) (Result, error) {
	ctx, reqID := ctxutil.EnsureRequestID(ctx)
	if inv.IssuedAt.IsZero() {
		inv.IssuedAt = time.Now().UTC()
	}
	if err := inv.Validate(); err != nil {
		d.log.WarnContext(ctx, "invalid invocation", slog.String("request_id", reqID), slog.String("error", err.Error()))
		return Result{}, err
	}

	log := d.log.With(
		slog.String("request_id", reqID),
		slog.String("kind", string(inv.Kind)),
		slog.String("trigger", string(inv.Trigger)),
	)
	if inv.DiffID != "" {
		log = log.With(slog.String("diff_id", inv.DiffID))
	}
	log.InfoContext(ctx, "invocation started")

	start := time.Now()
	var (
		res Result
		err error
	)
	switch inv.Kind {
	case domain.InvocationProcess:
		res.Run, err = d.processor.Run(ctx, inv)
		if res.Run != nil && d.metrics != nil {
			s := res.Run.Summary
			d.metrics.ObserveChanges(s.Additions, s.Updates, s.Deletions)
		}
	case domain.InvocationExecute:
		var out domain.ExecutionResult
		out, err = d.executor.Execute(ctx, inv)
		if out != (domain.ExecutionResult{}) {
			res.Execution = &out
		}
		if err == nil && d.metrics != nil {
			d.metrics.ObserveRowsApplied(out.RowsAffected)
		}
	default:
		err = domain.NewValidationError("kind", fmt.Sprintf("unknown kind %q", inv.Kind))
	}

	elapsed := time.Since(start)
	if d.metrics != nil {
		d.metrics.ObserveInvocation(string(inv.Kind), err, elapsed)
	}
	if err != nil {
		log.ErrorContext(ctx, "invocation failed", slog.Duration("elapsed", elapsed), slog.String("error", err.Error()))
		return res, err
	}
	log.InfoContext(ctx, "invocation finished", slog.Duration("elapsed", elapsed))
	return res, nil
}

// Decode parses an invocation record from JSON.
func Decode(data []byte) (domain.Invocation, error) {
	var inv domain.Invocation
	if err := json.Unmarshal(data, &inv); err != nil {
		return domain.Invocation{}, domain.NewValidationError("body", "malformed invocation: "+err.Error())
	}
	return inv, nil
}
