package approval

import (
	"context"
	"sync"
	"time"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

var _ scheduler = &schedulerMock{}

type schedulerMock struct {
	CancelFunc func(ctx context.Context, name string) error

	CreateOneShotFunc func(ctx context.Context, name string, executeAt time.Time, payload domain.Invocation) (domain.ScheduleHandle, error)

	calls struct {
		Cancel []struct {
			Ctx  context.Context
			Name string
		}
		CreateOneShot []struct {
			Ctx       context.Context
			Name      string
			ExecuteAt time.Time
			Payload   domain.Invocation
		}
	}
	lockCancel        sync.RWMutex
	lockCreateOneShot sync.RWMutex
}

func (mock *schedulerMock) Cancel(ctx context.Context, name string) error {
	if mock.CancelFunc == nil {
		panic("schedulerMock.CancelFunc: method is nil but scheduler.Cancel was just called")
	}
	callInfo := struct {
		Ctx  context.Context
		Name string
	}{
		Ctx:  ctx,
		Name: name,
	}
	mock.lockCancel.Lock()
	mock.calls.Cancel = append(mock.calls.Cancel, callInfo)
	mock.lockCancel.Unlock()
	return mock.CancelFunc(ctx, name)
}

func (mock *schedulerMock) CancelCalls() []struct {
	Ctx  context.Context
	Name string
} {
	mock.lockCancel.RLock()
	calls := mock.calls.Cancel
	mock.lockCancel.RUnlock()
	return calls
}

func (mock *schedulerMock) CreateOneShot(ctx context.Context, name string, executeAt time.Time, payload domain.Invocation) (domain.ScheduleHandle, error) {
	if mock.CreateOneShotFunc == nil {
		panic("schedulerMock.CreateOneShotFunc: method is nil but scheduler.CreateOneShot was just called")
	}
	callInfo := struct {
		Ctx       context.Context
		Name      string
		ExecuteAt time.Time
		Payload   domain.Invocation
	}{
		Ctx:       ctx,
		Name:      name,
		ExecuteAt: executeAt,
		Payload:   payload,
	}
	mock.lockCreateOneShot.Lock()
	mock.calls.CreateOneShot = append(mock.calls.CreateOneShot, callInfo)
	mock.lockCreateOneShot.Unlock()
	return mock.CreateOneShotFunc(ctx, name, executeAt, payload)
}

func (mock *schedulerMock) CreateOneShotCalls() []struct {
	Ctx       context.Context
	Name      string
	ExecuteAt time.Time
	Payload   domain.Invocation
} {
	mock.lockCreateOneShot.RLock()
	calls := mock.calls.CreateOneShot
	mock.lockCreateOneShot.RUnlock()
	return calls
}
