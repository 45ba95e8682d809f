package invocation

import (
	"context"
	"sync"

	"github.com/heartmarshall/zengin-sync/internal/domain"
	"github.com/heartmarshall/zengin-sync/internal/service/processor"
)

var _ diffProcessor = &diffProcessorMock{}

type diffProcessorMock struct {
	RunFunc func(ctx context.Context, inv domain.Invocation) (*processor.RunResult, error)

	calls struct {
		Run []struct {
			Ctx context.Context
			Inv domain.Invocation
		}
	}
	lockRun sync.RWMutex
}

func (mock *diffProcessorMock) Run(ctx context.Context, inv domain.Invocation) (*processor.RunResult, error) {
	if mock.RunFunc == nil {
		panic("diffProcessorMock.RunFunc: method is nil but diffProcessor.Run was just called")
	}
	callInfo := struct {
		Ctx context.Context
		Inv domain.Invocation
	}{
		Ctx: ctx,
		Inv: inv,
	}
	mock.lockRun.Lock()
	mock.calls.Run = append(mock.calls.Run, callInfo)
	mock.lockRun.Unlock()
	return mock.RunFunc(ctx, inv)
}

func (mock *diffProcessorMock) RunCalls() []struct {
	Ctx context.Context
	Inv domain.Invocation
} {
	mock.lockRun.RLock()
	calls := mock.calls.Run
	mock.lockRun.RUnlock()
	return calls
}
