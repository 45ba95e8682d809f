// Package local runs one-shot and daily triggers in-process with robfig/cron.
// It stands in for the managed scheduler when the service runs on its own.
package local

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

// minLead keeps a one-shot that is already due from being dropped by cron,
// which never fires an entry whose first Next is zero.
const minLead = time.Second

// Dispatcher handles a fired invocation.
type Dispatcher interface {
	Dispatch(ctx context.Context, inv domain.Invocation) error
}

// once fires a single time at at.
type once struct {
	at time.Time
}

func (o once) Next(t time.Time) time.Time {
	if t.Before(o.at) {
		return o.at
	}
	return time.Time{}
}

type entry struct {
	id     cron.EntryID
	handle domain.ScheduleHandle
}

// Scheduler manages cron-based triggers.
type Scheduler struct {
	cron     *cron.Cron
	dispatch Dispatcher
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]entry // schedule name -> cron entry
}

// New creates a scheduler evaluating cron expressions in loc.
func New(dispatch Dispatcher, loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		dispatch: dispatch,
		logger:   logger.With("component", "local_scheduler"),
		now:      time.Now,
		entries:  make(map[string]entry),
	}
}

// Start begins firing triggers.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("local scheduler started")
}

// Stop halts the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("local scheduler stopped")
}

// AddDaily registers the recurring diff detection trigger.
func (s *Scheduler) AddDaily(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		inv := domain.Invocation{Kind: domain.InvocationProcess, Trigger: domain.TriggerScheduled, IssuedAt: s.now().UTC()}
		if err := s.dispatch.Dispatch(context.Background(), inv); err != nil {
			s.logger.Warn("daily trigger failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("add daily trigger %q: %w", spec, err)
	}
	s.logger.Info("daily trigger scheduled", "spec", spec)
	return nil
}

// CreateOneShot schedules payload to be dispatched once at executeAt.
// Repeating a call with the same name and time returns the existing handle;
// the same name with a different time is a conflict.
func (s *Scheduler) CreateOneShot(ctx context.Context, name string, executeAt time.Time, payload domain.Invocation) (domain.ScheduleHandle, error) {
	if err := ctx.Err(); err != nil {
		return domain.ScheduleHandle{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[name]; ok {
		if existing.handle.ExecuteAt.Equal(executeAt) {
			return existing.handle, nil
		}
		return domain.ScheduleHandle{}, fmt.Errorf("schedule %s at %s: %w", name, existing.handle.Expression, domain.ErrConflict)
	}

	fireAt := executeAt
	if earliest := s.now().Add(minLead); fireAt.Before(earliest) {
		fireAt = earliest
	}

	handle := domain.ScheduleHandle{
		Name:       name,
		Expression: domain.AtExpression(executeAt),
		ExecuteAt:  executeAt,
		TargetRef:  "local",
		Payload:    payload,
	}

	id := s.cron.Schedule(once{at: fireAt}, cron.FuncJob(func() { s.fire(name, payload) }))
	s.entries[name] = entry{id: id, handle: handle}

	s.logger.InfoContext(ctx, "one-shot scheduled",
		slog.String("name", name),
		slog.Time("execute_at", executeAt),
	)
	return handle, nil
}

// Lister reads records by status.
type Lister interface {
	ListByStatus(ctx context.Context, status domain.DiffStatus, since time.Time, limit int) ([]*domain.DiffRecord, error)
}

// Restore re-creates the one-shots of approved records. In-process triggers
// do not survive a restart, so the server calls this before Start. A
// trigger whose time has passed fires right after Start. Approved records
// without a stored schedule are logged and left to the operator.
func (s *Scheduler) Restore(ctx context.Context, store Lister) (int, error) {
	recs, err := store.ListByStatus(ctx, domain.StatusApproved, time.Time{}, 0)
	if err != nil {
		return 0, fmt.Errorf("list approved diffs: %w", err)
	}

	restored := 0
	for _, rec := range recs {
		if rec.Schedule == nil {
			s.logger.WarnContext(ctx, "approved diff has no schedule to restore", slog.String("diff_id", rec.ID))
			continue
		}
		issued := rec.Schedule.ExecuteAt
		if rec.ApprovedAt != nil {
			issued = *rec.ApprovedAt
		}
		inv := domain.NewExecuteInvocation(rec.ID, rec.ApprovedBy, rec.Schedule.Option, issued)
		if _, err := s.CreateOneShot(ctx, rec.Schedule.Name, rec.Schedule.ExecuteAt, inv); err != nil {
			return restored, fmt.Errorf("restore %s: %w", rec.ID, err)
		}
		restored++
	}
	s.logger.InfoContext(ctx, "one-shots restored", slog.Int("count", restored))
	return restored, nil
}

// Cancel removes a pending one-shot. Unknown names are ignored.
func (s *Scheduler) Cancel(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[name]; ok {
		s.cron.Remove(e.id)
		delete(s.entries, name)
	}
	return nil
}

// Pending returns the one-shots that have not fired, ordered by time.
func (s *Scheduler) Pending() []domain.ScheduleHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.ScheduleHandle, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.handle)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExecuteAt.Before(out[j].ExecuteAt) })
	return out
}

func (s *Scheduler) fire(name string, payload domain.Invocation) {
	s.mu.Lock()
	if e, ok := s.entries[name]; ok {
		s.cron.Remove(e.id)
		delete(s.entries, name)
	}
	s.mu.Unlock()

	s.logger.Info("one-shot fired", slog.String("name", name), slog.String("kind", string(payload.Kind)))
	if err := s.dispatch.Dispatch(context.Background(), payload); err != nil {
		s.logger.Error("one-shot dispatch failed", slog.String("name", name), slog.String("error", err.Error()))
	}
}
