package processor

import (
	"context"
	"sync"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

var _ notifier = &notifierMock{}

type notifierMock struct {
	PostDiffFunc      func(ctx context.Context, rec *domain.DiffRecord) (domain.MessageRef, error)
	PostNoChangesFunc func(ctx context.Context) error
	PostRunFailedFunc func(ctx context.Context, stage string, correlationID string) error

	calls struct {
		PostDiff []struct {
			Ctx context.Context
			Rec *domain.DiffRecord
		}
		PostNoChanges []struct {
			Ctx context.Context
		}
		PostRunFailed []struct {
			Ctx           context.Context
			Stage         string
			CorrelationID string
		}
	}
	lockPostDiff      sync.RWMutex
	lockPostNoChanges sync.RWMutex
	lockPostRunFailed sync.RWMutex
}

func (mock *notifierMock) PostDiff(ctx context.Context, rec *domain.DiffRecord) (domain.MessageRef, error) {
	if mock.PostDiffFunc == nil {
		panic("notifierMock.PostDiffFunc: method is nil but notifier.PostDiff was just called")
	}
	callInfo := struct {
		Ctx context.Context
		Rec *domain.DiffRecord
	}{
		Ctx: ctx,
		Rec: rec,
	}
	mock.lockPostDiff.Lock()
	mock.calls.PostDiff = append(mock.calls.PostDiff, callInfo)
	mock.lockPostDiff.Unlock()
	return mock.PostDiffFunc(ctx, rec)
}

func (mock *notifierMock) PostDiffCalls() []struct {
	Ctx context.Context
	Rec *domain.DiffRecord
} {
	mock.lockPostDiff.RLock()
	calls := mock.calls.PostDiff
	mock.lockPostDiff.RUnlock()
	return calls
}

func (mock *notifierMock) PostNoChanges(ctx context.Context) error {
	if mock.PostNoChangesFunc == nil {
		panic("notifierMock.PostNoChangesFunc: method is nil but notifier.PostNoChanges was just called")
	}
	callInfo := struct {
		Ctx context.Context
	}{
		Ctx: ctx,
	}
	mock.lockPostNoChanges.Lock()
	mock.calls.PostNoChanges = append(mock.calls.PostNoChanges, callInfo)
	mock.lockPostNoChanges.Unlock()
	return mock.PostNoChangesFunc(ctx)
}

func (mock *notifierMock) PostNoChangesCalls() []struct {
	Ctx context.Context
} {
	mock.lockPostNoChanges.RLock()
	calls := mock.calls.PostNoChanges
	mock.lockPostNoChanges.RUnlock()
	return calls
}

func (mock *notifierMock) PostRunFailed(ctx context.Context, stage string, correlationID string) error {
	if mock.PostRunFailedFunc == nil {
		panic("notifierMock.PostRunFailedFunc: method is nil but notifier.PostRunFailed was just called")
	}
	callInfo := struct {
		Ctx           context.Context
		Stage         string
		CorrelationID string
	}{
		Ctx:           ctx,
		Stage:         stage,
		CorrelationID: correlationID,
	}
	mock.lockPostRunFailed.Lock()
	mock.calls.PostRunFailed = append(mock.calls.PostRunFailed, callInfo)
	mock.lockPostRunFailed.Unlock()
	return mock.PostRunFailedFunc(ctx, stage, correlationID)
}

func (mock *notifierMock) PostRunFailedCalls() []struct {
	Ctx           context.Context
	Stage         string
	CorrelationID string
} {
	mock.lockPostRunFailed.RLock()
	calls := mock.calls.PostRunFailed
	mock.lockPostRunFailed.RUnlock()
	return calls
}
