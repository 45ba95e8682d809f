package approval

import (
	"context"
	"sync"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

var _ diffStore = &diffStoreMock{}

type diffStoreMock struct {
	GetFunc            func(ctx context.Context, id string) (*domain.DiffRecord, error)
	TransitionFunc     func(ctx context.Context, id string, t domain.Transition) (*domain.DiffRecord, error)
	RevertApprovalFunc func(ctx context.Context, id string) (*domain.DiffRecord, error)
	SetScheduleFunc    func(ctx context.Context, id string, ref domain.ScheduleRef) error

	calls struct {
		Get []struct {
			Ctx context.Context
			Id  string
		}
		Transition []struct {
			Ctx context.Context
			Id  string
			T   domain.Transition
		}
		RevertApproval []struct {
			Ctx context.Context
			Id  string
		}
		SetSchedule []struct {
			Ctx context.Context
			Id  string
			Ref domain.ScheduleRef
		}
	}
	lockGet            sync.RWMutex
	lockTransition     sync.RWMutex
	lockRevertApproval sync.RWMutex
	lockSetSchedule    sync.RWMutex
}

func (mock *diffStoreMock) Get(ctx context.Context, id string) (*domain.DiffRecord, error) {
	if mock.GetFunc == nil {
		panic("diffStoreMock.GetFunc: method is nil but diffStore.Get was just called")
	}
	callInfo := struct {
		Ctx context.Context
		Id  string
	}{
		Ctx: ctx,
		Id:  id,
	}
	mock.lockGet.Lock()
	mock.calls.Get = append(mock.calls.Get, callInfo)
	mock.lockGet.Unlock()
	return mock.GetFunc(ctx, id)
}

func (mock *diffStoreMock) GetCalls() []struct {
	Ctx context.Context
	Id  string
} {
	mock.lockGet.RLock()
	calls := mock.calls.Get
	mock.lockGet.RUnlock()
	return calls
}

func (mock *diffStoreMock) Transition(ctx context.Context, id string, t domain.Transition) (*domain.DiffRecord, error) {
	if mock.TransitionFunc == nil {
		panic("diffStoreMock.TransitionFunc: method is nil but diffStore.Transition was just called")
	}
	callInfo := struct {
		Ctx context.Context
		Id  string
		T   domain.Transition
	}{
		Ctx: ctx,
		Id:  id,
		T:   t,
	}
	mock.lockTransition.Lock()
	mock.calls.Transition = append(mock.calls.Transition, callInfo)
	mock.lockTransition.Unlock()
	return mock.TransitionFunc(ctx, id, t)
}

func (mock *diffStoreMock) TransitionCalls() []struct {
	Ctx context.Context
	Id  string
	T   domain.Transition
} {
	mock.lockTransition.RLock()
	calls := mock.calls.Transition
	mock.lockTransition.RUnlock()
	return calls
}

func (mock *diffStoreMock) RevertApproval(ctx context.Context, id string) (*domain.DiffRecord, error) {
	if mock.RevertApprovalFunc == nil {
		panic("diffStoreMock.RevertApprovalFunc: method is nil but diffStore.RevertApproval was just called")
	}
	callInfo := struct {
		Ctx context.Context
		Id  string
	}{
		Ctx: ctx,
		Id:  id,
	}
	mock.lockRevertApproval.Lock()
	mock.calls.RevertApproval = append(mock.calls.RevertApproval, callInfo)
	mock.lockRevertApproval.Unlock()
	return mock.RevertApprovalFunc(ctx, id)
}

func (mock *diffStoreMock) RevertApprovalCalls() []struct {
	Ctx context.Context
	Id  string
} {
	mock.lockRevertApproval.RLock()
	calls := mock.calls.RevertApproval
	mock.lockRevertApproval.RUnlock()
	return calls
}

func (mock *diffStoreMock) SetSchedule(ctx context.Context, id string, ref domain.ScheduleRef) error {
	if mock.SetScheduleFunc == nil {
		panic("diffStoreMock.SetScheduleFunc: method is nil but diffStore.SetSchedule was just called")
	}
	callInfo := struct {
		Ctx context.Context
		Id  string
		Ref domain.ScheduleRef
	}{
		Ctx: ctx,
		Id:  id,
		Ref: ref,
	}
	mock.lockSetSchedule.Lock()
	mock.calls.SetSchedule = append(mock.calls.SetSchedule, callInfo)
	mock.lockSetSchedule.Unlock()
	return mock.SetScheduleFunc(ctx, id, ref)
}

func (mock *diffStoreMock) SetScheduleCalls() []struct {
	Ctx context.Context
	Id  string
	Ref domain.ScheduleRef
} {
	mock.lockSetSchedule.RLock()
	calls := mock.calls.SetSchedule
	mock.lockSetSchedule.RUnlock()
	return calls
}
