// Package storetest is a behavioural suite every diffstore.Store backend runs.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/zengin-sync/internal/adapter/diffstore"
	"github.com/heartmarshall/zengin-sync/internal/domain"
)

// Factory returns an empty store owned by t.
type Factory func(t *testing.T) diffstore.Store

var idSeq atomic.Int64

// NewRecord returns a pending record with a fresh id created at now.
func NewRecord(now time.Time) *domain.DiffRecord {
	after := &domain.BankBranch{SwiftCode: "0001", BranchCode: "001", BankName: "みずほ銀行", BranchName: "東京営業部"}
	changes := []domain.Change{{Kind: domain.ChangeAddition, Key: after.Key(), After: after}}
	id := domain.NewDiffID(now, int(idSeq.Add(1)))
	return domain.NewDiffRecord(id, now, changes, domain.DiffPayload{Changes: changes})
}

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newStore(t)) })
	t.Run("CreateDuplicate", func(t *testing.T) { testCreateDuplicate(t, newStore(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("Transition", func(t *testing.T) { testTransition(t, newStore(t)) })
	t.Run("TransitionStale", func(t *testing.T) { testTransitionStale(t, newStore(t)) })
	t.Run("TransitionOutsideLifecycle", func(t *testing.T) { testTransitionOutsideLifecycle(t, newStore(t)) })
	t.Run("RevertApproval", func(t *testing.T) { testRevertApproval(t, newStore(t)) })
	t.Run("SetScheduleAndNotification", func(t *testing.T) { testSetters(t, newStore(t)) })
	t.Run("ListByStatus", func(t *testing.T) { testListByStatus(t, newStore(t)) })
	t.Run("NextSequence", func(t *testing.T) { testNextSequence(t, newStore(t)) })
	t.Run("ConcurrentApproval", func(t *testing.T) { testConcurrentApproval(t, newStore(t)) })
}

func testCreateAndGet(t *testing.T, s diffstore.Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	rec := NewRecord(now)

	require.NoError(t, s.Create(ctx, rec))

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec.ID, got.ID)
	require.True(t, rec.Timestamp.Equal(got.Timestamp))
	require.Equal(t, domain.StatusPending, got.Status)
	require.Equal(t, now.Add(domain.DiffRetention).Unix(), got.TTL)
	require.Equal(t, rec.Summary.Total, got.Summary.Total)
	require.Len(t, got.Payload.Changes, 1)
}

func testCreateDuplicate(t *testing.T, s diffstore.Store) {
	ctx := context.Background()
	rec := NewRecord(time.Now())

	require.NoError(t, s.Create(ctx, rec))
	require.ErrorIs(t, s.Create(ctx, rec), domain.ErrAlreadyExists)
}

func testGetMissing(t *testing.T, s diffstore.Store) {
	_, err := s.Get(context.Background(), "diff-20000101-999")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func testTransition(t *testing.T, s diffstore.Store) {
	ctx := context.Background()
	rec := NewRecord(time.Now())
	require.NoError(t, s.Create(ctx, rec))

	at := time.Now().UTC().Truncate(time.Millisecond)
	got, err := s.Transition(ctx, rec.ID, domain.Transition{From: domain.StatusPending, To: domain.StatusApproved, At: at, Actor: "U1"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusApproved, got.Status)
	require.Equal(t, "U1", got.ApprovedBy)

	got, err = s.Transition(ctx, rec.ID, domain.Transition{From: domain.StatusApproved, To: domain.StatusExecuting, At: at})
	require.NoError(t, err)
	require.NotNil(t, got.ExecutedAt)

	res := &domain.ExecutionResult{Success: true, RowsAffected: 3, DurationMs: 10}
	_, err = s.Transition(ctx, rec.ID, domain.Transition{From: domain.StatusExecuting, To: domain.StatusCompleted, At: at, Result: res})
	require.NoError(t, err)

	stored, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, stored.Status)
	require.Equal(t, res, stored.Result)
	require.Equal(t, "U1", stored.ApprovedBy)
}

func testTransitionStale(t *testing.T, s diffstore.Store) {
	ctx := context.Background()
	rec := NewRecord(time.Now())
	require.NoError(t, s.Create(ctx, rec))

	_, err := s.Transition(ctx, rec.ID, domain.Transition{From: domain.StatusPending, To: domain.StatusRejected, At: time.Now(), Actor: "U1"})
	require.NoError(t, err)

	_, err = s.Transition(ctx, rec.ID, domain.Transition{From: domain.StatusPending, To: domain.StatusApproved, At: time.Now(), Actor: "U2"})
	require.ErrorIs(t, err, domain.ErrConflict)

	var stateErr *domain.StateError
	require.True(t, errors.As(err, &stateErr), "expected StateError, got %v", err)
	require.Equal(t, domain.StatusRejected, stateErr.Actual)

	stored, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusRejected, stored.Status)
	require.Empty(t, stored.ApprovedBy)
}

func testTransitionOutsideLifecycle(t *testing.T, s diffstore.Store) {
	ctx := context.Background()
	rec := NewRecord(time.Now())
	require.NoError(t, s.Create(ctx, rec))

	_, err := s.Transition(ctx, rec.ID, domain.Transition{From: domain.StatusPending, To: domain.StatusExecuting, At: time.Now()})
	require.ErrorIs(t, err, domain.ErrInvalidState)

	stored, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, stored.Status)
}

func testRevertApproval(t *testing.T, s diffstore.Store) {
	ctx := context.Background()
	rec := NewRecord(time.Now())
	require.NoError(t, s.Create(ctx, rec))

	_, err := s.RevertApproval(ctx, rec.ID)
	require.ErrorIs(t, err, domain.ErrConflict)

	_, err = s.Transition(ctx, rec.ID, domain.Transition{From: domain.StatusPending, To: domain.StatusApproved, At: time.Now(), Actor: "U1"})
	require.NoError(t, err)

	got, err := s.RevertApproval(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, got.Status)
	require.Empty(t, got.ApprovedBy)

	pending, err := s.ListByStatus(ctx, domain.StatusPending, rec.Timestamp.Add(-time.Second), 0)
	require.NoError(t, err)
	require.True(t, containsID(pending, rec.ID))
}

func testSetters(t *testing.T, s diffstore.Store) {
	ctx := context.Background()
	rec := NewRecord(time.Now())
	require.NoError(t, s.Create(ctx, rec))

	execAt := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, s.SetSchedule(ctx, rec.ID, domain.ScheduleRef{Name: domain.ScheduleName(rec.ID), ExecuteAt: execAt, Option: domain.ScheduleIn1h}))
	require.NoError(t, s.SetNotification(ctx, rec.ID, domain.MessageRef{Channel: "C1", TS: "1700000000.000100"}))

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Schedule)
	require.Equal(t, domain.ScheduleIn1h, got.Schedule.Option)
	require.True(t, execAt.Equal(got.Schedule.ExecuteAt))
	require.Equal(t, &domain.MessageRef{Channel: "C1", TS: "1700000000.000100"}, got.Notification)

	require.ErrorIs(t, s.SetNotification(ctx, "diff-20000101-998", domain.MessageRef{}), domain.ErrNotFound)
}

func testListByStatus(t *testing.T, s diffstore.Store) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	old := NewRecord(base.Add(-time.Hour))
	recent := NewRecord(base.Add(-time.Minute))
	newest := NewRecord(base)
	for _, r := range []*domain.DiffRecord{old, recent, newest} {
		require.NoError(t, s.Create(ctx, r))
	}

	got, err := s.ListByStatus(ctx, domain.StatusPending, base.Add(-10*time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, newest.ID, got[0].ID)
	require.Equal(t, recent.ID, got[1].ID)

	limited, err := s.ListByStatus(ctx, domain.StatusPending, base.Add(-2*time.Hour), 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	require.Equal(t, newest.ID, limited[0].ID)

	_, err = s.Transition(ctx, newest.ID, domain.Transition{From: domain.StatusPending, To: domain.StatusApproved, At: base, Actor: "U1"})
	require.NoError(t, err)

	pending, err := s.ListByStatus(ctx, domain.StatusPending, base.Add(-2*time.Hour), 0)
	require.NoError(t, err)
	require.False(t, containsID(pending, newest.ID))

	approved, err := s.ListByStatus(ctx, domain.StatusApproved, base.Add(-2*time.Hour), 0)
	require.NoError(t, err)
	require.True(t, containsID(approved, newest.ID))
}

func testNextSequence(t *testing.T, s diffstore.Store) {
	ctx := context.Background()
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for want := 1; want <= 3; want++ {
		got, err := s.NextSequence(ctx, day)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	other, err := s.NextSequence(ctx, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Equal(t, 1, other)
}

// testConcurrentApproval races many approvers on one record: exactly one wins.
func testConcurrentApproval(t *testing.T, s diffstore.Store) {
	ctx := context.Background()
	rec := NewRecord(time.Now())
	require.NoError(t, s.Create(ctx, rec))

	const approvers = 16
	var (
		wg        sync.WaitGroup
		wins      atomic.Int32
		conflicts atomic.Int32
		start     = make(chan struct{})
	)
	for i := range approvers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.Transition(ctx, rec.ID, domain.Transition{
				From: domain.StatusPending, To: domain.StatusApproved, At: time.Now(), Actor: fmt.Sprintf("U%d", i),
			})
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, domain.ErrConflict):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.EqualValues(t, 1, wins.Load())
	require.EqualValues(t, approvers-1, conflicts.Load())

	stored, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusApproved, stored.Status)
	require.NotEmpty(t, stored.ApprovedBy)
}

func containsID(recs []*domain.DiffRecord, id string) bool {
	for _, r := range recs {
		if r.ID == id {
			return true
		}
	}
	return false
}
