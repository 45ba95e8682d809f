package executor

import (
	"context"
	"sync"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

var _ bankRepo = &bankRepoMock{}

type bankRepoMock struct {
	ApplyFunc func(ctx context.Context, changes []domain.Change, updatedUser string) (domain.ApplyResult, error)

	calls struct {
		Apply []struct {
			Ctx         context.Context
			Changes     []domain.Change
			UpdatedUser string
		}
	}
	lockApply sync.RWMutex
}

func (mock *bankRepoMock) Apply(ctx context.Context, changes []domain.Change, updatedUser string) (domain.ApplyResult, error) {
	if mock.ApplyFunc == nil {
		panic("bankRepoMock.ApplyFunc: method is nil but bankRepo.Apply was just called")
	}
	callInfo := struct {
		Ctx         context.Context
		Changes     []domain.Change
		UpdatedUser string
	}{
		Ctx:         ctx,
		Changes:     changes,
		UpdatedUser: updatedUser,
	}
	mock.lockApply.Lock()
	mock.calls.Apply = append(mock.calls.Apply, callInfo)
	mock.lockApply.Unlock()
	return mock.ApplyFunc(ctx, changes, updatedUser)
}

func (mock *bankRepoMock) ApplyCalls() []struct {
	Ctx         context.Context
	Changes     []domain.Change
	UpdatedUser string
} {
	mock.lockApply.RLock()
	calls := mock.calls.Apply
	mock.lockApply.RUnlock()
	return calls
}
