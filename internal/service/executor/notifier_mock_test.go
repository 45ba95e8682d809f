package executor

import (
	"context"
	"sync"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

var _ notifier = &notifierMock{}

type notifierMock struct {
	PostCompletionFunc func(ctx context.Context, ref domain.MessageRef, rec *domain.DiffRecord, res domain.ExecutionResult) error

	calls struct {
		PostCompletion []struct {
			Ctx context.Context
			Ref domain.MessageRef
			Rec *domain.DiffRecord
			Res domain.ExecutionResult
		}
	}
	lockPostCompletion sync.RWMutex
}

func (mock *notifierMock) PostCompletion(ctx context.Context, ref domain.MessageRef, rec *domain.DiffRecord, res domain.ExecutionResult) error {
	if mock.PostCompletionFunc == nil {
		panic("notifierMock.PostCompletionFunc: method is nil but notifier.PostCompletion was just called")
	}
	callInfo := struct {
		Ctx context.Context
		Ref domain.MessageRef
		Rec *domain.DiffRecord
		Res domain.ExecutionResult
	}{
		Ctx: ctx,
		Ref: ref,
		Rec: rec,
		Res: res,
	}
	mock.lockPostCompletion.Lock()
	mock.calls.PostCompletion = append(mock.calls.PostCompletion, callInfo)
	mock.lockPostCompletion.Unlock()
	return mock.PostCompletionFunc(ctx, ref, rec, res)
}

func (mock *notifierMock) PostCompletionCalls() []struct {
	Ctx context.Context
	Ref domain.MessageRef
	Rec *domain.DiffRecord
	Res domain.ExecutionResult
} {
	mock.lockPostCompletion.RLock()
	calls := mock.calls.PostCompletion
	mock.lockPostCompletion.RUnlock()
	return calls
}
