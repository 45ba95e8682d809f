package processor

import (
	"context"
	"sync"
	"time"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

var _ diffStore = &diffStoreMock{}

type diffStoreMock struct {
	CreateFunc          func(ctx context.Context, rec *domain.DiffRecord) error
	SetNotificationFunc func(ctx context.Context, id string, ref domain.MessageRef) error
	ListByStatusFunc    func(ctx context.Context, status domain.DiffStatus, since time.Time, limit int) ([]*domain.DiffRecord, error)
	NextSequenceFunc    func(ctx context.Context, day time.Time) (int, error)

	calls struct {
		Create []struct {
			Ctx context.Context
			Rec *domain.DiffRecord
		}
		SetNotification []struct {
			Ctx context.Context
			Id  string
			Ref domain.MessageRef
		}
		ListByStatus []struct {
			Ctx    context.Context
			Status domain.DiffStatus
			Since  time.Time
			Limit  int
		}
		NextSequence []struct {
			Ctx context.Context
			Day time.Time
		}
	}
	lockCreate          sync.RWMutex
	lockSetNotification sync.RWMutex
	lockListByStatus    sync.RWMutex
	lockNextSequence    sync.RWMutex
}

func (mock *diffStoreMock) Create(ctx context.Context, rec *domain.DiffRecord) error {
	if mock.CreateFunc == nil {
		panic("diffStoreMock.CreateFunc: method is nil but diffStore.Create was just called")
	}
	callInfo := struct {
		Ctx context.Context
		Rec *domain.DiffRecord
	}{
		Ctx: ctx,
		Rec: rec,
	}
	mock.lockCreate.Lock()
	mock.calls.Create = append(mock.calls.Create, callInfo)
	mock.lockCreate.Unlock()
	return mock.CreateFunc(ctx, rec)
}

func (mock *diffStoreMock) CreateCalls() []struct {
	Ctx context.Context
	Rec *domain.DiffRecord
} {
	mock.lockCreate.RLock()
	calls := mock.calls.Create
	mock.lockCreate.RUnlock()
	return calls
}

func (mock *diffStoreMock) SetNotification(ctx context.Context, id string, ref domain.MessageRef) error {
	if mock.SetNotificationFunc == nil {
		panic("diffStoreMock.SetNotificationFunc: method is nil but diffStore.SetNotification was just called")
	}
	callInfo := struct {
		Ctx context.Context
		Id  string
		Ref domain.MessageRef
	}{
		Ctx: ctx,
		Id:  id,
		Ref: ref,
	}
	mock.lockSetNotification.Lock()
	mock.calls.SetNotification = append(mock.calls.SetNotification, callInfo)
	mock.lockSetNotification.Unlock()
	return mock.SetNotificationFunc(ctx, id, ref)
}

func (mock *diffStoreMock) SetNotificationCalls() []struct {
	Ctx context.Context
	Id  string
	Ref domain.MessageRef
} {
	mock.lockSetNotification.RLock()
	calls := mock.calls.SetNotification
	mock.lockSetNotification.RUnlock()
	return calls
}

func (mock *diffStoreMock) ListByStatus(ctx context.Context, status domain.DiffStatus, since time.Time, limit int) ([]*domain.DiffRecord, error) {
	if mock.ListByStatusFunc == nil {
		panic("diffStoreMock.ListByStatusFunc: method is nil but diffStore.ListByStatus was just called")
	}
	callInfo := struct {
		Ctx    context.Context
		Status domain.DiffStatus
		Since  time.Time
		Limit  int
	}{
		Ctx:    ctx,
		Status: status,
		Since:  since,
		Limit:  limit,
	}
	mock.lockListByStatus.Lock()
	mock.calls.ListByStatus = append(mock.calls.ListByStatus, callInfo)
	mock.lockListByStatus.Unlock()
	return mock.ListByStatusFunc(ctx, status, since, limit)
}

func (mock *diffStoreMock) ListByStatusCalls() []struct {
	Ctx    context.Context
	Status domain.DiffStatus
	Since  time.Time
	Limit  int
} {
	mock.lockListByStatus.RLock()
	calls := mock.calls.ListByStatus
	mock.lockListByStatus.RUnlock()
	return calls
}

func (mock *diffStoreMock) NextSequence(ctx context.Context, day time.Time) (int, error) {
	if mock.NextSequenceFunc == nil {
		panic("diffStoreMock.NextSequenceFunc: method is nil but diffStore.NextSequence was just called")
	}
	callInfo := struct {
		Ctx context.Context
		Day time.Time
	}{
		Ctx: ctx,
		Day: day,
	}
	mock.lockNextSequence.Lock()
	mock.calls.NextSequence = append(mock.calls.NextSequence, callInfo)
	mock.lockNextSequence.Unlock()
	return mock.NextSequenceFunc(ctx, day)
}

func (mock *diffStoreMock) NextSequenceCalls() []struct {
	Ctx context.Context
	Day time.Time
} {
	mock.lockNextSequence.RLock()
	calls := mock.calls.NextSequence
	mock.lockNextSequence.RUnlock()
	return calls
}
