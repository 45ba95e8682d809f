package executor

import (
	"context"
	"sync"
)

var _ scheduleCanceler = &scheduleCancelerMock{}

type scheduleCancelerMock struct {
	CancelFunc func(ctx context.Context, name string) error

	calls struct {
		Cancel []struct {
			Ctx  context.Context
			Name string
		}
	}
	lockCancel sync.RWMutex
}

func (mock *scheduleCancelerMock) Cancel(ctx context.Context, name string) error {
	if mock.CancelFunc == nil {
		panic("scheduleCancelerMock.CancelFunc: method is nil but scheduleCanceler.Cancel was just called")
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

func (mock *scheduleCancelerMock) CancelCalls() []struct {
	Ctx  context.Context
	Name string
} {
	mock.lockCancel.RLock()
	calls := mock.calls.Cancel
	mock.lockCancel.RUnlock()
	return calls
}
