package eventbridge

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/scheduler"
)

var _ API = &APIMock{}

type APIMock struct {
	CreateScheduleFunc func(ctx context.Context, in *scheduler.CreateScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.CreateScheduleOutput, error)
	GetScheduleFunc    func(ctx context.Context, in *scheduler.GetScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.GetScheduleOutput, error)
	DeleteScheduleFunc func(ctx context.Context, in *scheduler.DeleteScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.DeleteScheduleOutput, error)

	calls struct {
		CreateSchedule []*scheduler.CreateScheduleInput
		GetSchedule    []*scheduler.GetScheduleInput
		DeleteSchedule []*scheduler.DeleteScheduleInput
	}
	lock sync.RWMutex
}

func (mock *APIMock) CreateSchedule(ctx context.Context, in *scheduler.CreateScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.CreateScheduleOutput, error) {
	if mock.CreateScheduleFunc == nil {
		panic("APIMock.CreateScheduleFunc: method is nil but API.CreateSchedule was just called")
	}
	mock.lock.Lock()
	mock.calls.CreateSchedule = append(mock.calls.CreateSchedule, in)
	mock.lock.Unlock()
	return mock.CreateScheduleFunc(ctx, in, optFns...)
}

func (mock *APIMock) CreateScheduleCalls() []*scheduler.CreateScheduleInput {
	mock.lock.RLock()
	defer mock.lock.RUnlock()
	return mock.calls.CreateSchedule
}

func (mock *APIMock) GetSchedule(ctx context.Context, in *scheduler.GetScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.GetScheduleOutput, error) {
	if mock.GetScheduleFunc == nil {
		panic("APIMock.GetScheduleFunc: method is nil but API.GetSchedule was just called")
	}
	mock.lock.Lock()
	mock.calls.GetSchedule = append(mock.calls.GetSchedule, in)
	mock.lock.Unlock()
	return mock.GetScheduleFunc(ctx, in, optFns...)
}

func (mock *APIMock) GetScheduleCalls() []*scheduler.GetScheduleInput {
	mock.lock.RLock()
	defer mock.lock.RUnlock()
	return mock.calls.GetSchedule
}

func (mock *APIMock) DeleteSchedule(ctx context.Context, in *scheduler.DeleteScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.DeleteScheduleOutput, error) {
	if mock.DeleteScheduleFunc == nil {
		panic("APIMock.DeleteScheduleFunc: method is nil but API.DeleteSchedule was just called")
	}
	mock.lock.Lock()
	mock.calls.DeleteSchedule = append(mock.calls.DeleteSchedule, in)
	mock.lock.Unlock()
	return mock.DeleteScheduleFunc(ctx, in, optFns...)
}

func (mock *APIMock) DeleteScheduleCalls() []*scheduler.DeleteScheduleInput {
	mock.lock.RLock()
	defer mock.lock.RUnlock()
	return mock.calls.DeleteSchedule
}
