package processor

import (
	"context"
	"sync"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

var _ referenceSource = &referenceSourceMock{}

type referenceSourceMock struct {
	FetchAllFunc func(ctx context.Context) ([]domain.BankBranch, error)

	calls struct {
		FetchAll []struct {
			Ctx context.Context
		}
	}
	lockFetchAll sync.RWMutex
}

func (mock *referenceSourceMock) FetchAll(ctx context.Context) ([]domain.BankBranch, error) {
	if mock.FetchAllFunc == nil {
		panic("referenceSourceMock.FetchAllFunc: method is nil but referenceSource.FetchAll was just called")
	}
	callInfo := struct {
		Ctx context.Context
	}{
		Ctx: ctx,
	}
	mock.lockFetchAll.Lock()
	mock.calls.FetchAll = append(mock.calls.FetchAll, callInfo)
	mock.lockFetchAll.Unlock()
	return mock.FetchAllFunc(ctx)
}

func (mock *referenceSourceMock) FetchAllCalls() []struct {
	Ctx context.Context
} {
	mock.lockFetchAll.RLock()
	calls := mock.calls.FetchAll
	mock.lockFetchAll.RUnlock()
	return calls
}
