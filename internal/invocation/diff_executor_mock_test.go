package invocation

import (
	"context"
	"sync"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

var _ diffExecutor = &diffExecutorMock{}

type diffExecutorMock struct {
	ExecuteFunc func(ctx context.Context, inv domain.Invocation) (domain.ExecutionResult, error)

	calls struct {
		Execute []struct {
			Ctx context.Context
			Inv domain.Invocation
		}
	}
	lockExecute sync.RWMutex
}

func (mock *diffExecutorMock) Execute(ctx context.Context, inv domain.Invocation) (domain.ExecutionResult, error) {
	if mock.ExecuteFunc == nil {
		panic("diffExecutorMock.ExecuteFunc: method is nil but diffExecutor.Execute was just called")
	}
	callInfo := struct {
		Ctx context.Context
		Inv domain.Invocation
	}{
		Ctx: ctx,
		Inv: inv,
	}
	mock.lockExecute.Lock()
	mock.calls.Execute = append(mock.calls.Execute, callInfo)
	mock.lockExecute.Unlock()
	return mock.ExecuteFunc(ctx, inv)
}

func (mock *diffExecutorMock) ExecuteCalls() []struct {
	Ctx context.Context
	Inv domain.Invocation
} {
	mock.lockExecute.RLock()
	calls := mock.calls.Execute
	mock.lockExecute.RUnlock()
	return calls
}
