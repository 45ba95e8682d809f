package processor

import (
	"context"
	"sync"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

var _ bankRepo = &bankRepoMock{}

type bankRepoMock struct {
	ListActiveFunc  func(ctx context.Context) ([]domain.BankBranch, error)
	ImpactStatsFunc func(ctx context.Context, keys []string) (map[string]domain.Impact, error)

	calls struct {
		ListActive []struct {
			Ctx context.Context
		}
		ImpactStats []struct {
			Ctx  context.Context
			Keys []string
		}
	}
	lockListActive  sync.RWMutex
	lockImpactStats sync.RWMutex
}

func (mock *bankRepoMock) ListActive(ctx context.Context) ([]domain.BankBranch, error) {
	if mock.ListActiveFunc == nil {
		panic("bankRepoMock.ListActiveFunc: method is nil but bankRepo.ListActive was just called")
	}
	callInfo := struct {
		Ctx context.Context
	}{
		Ctx: ctx,
	}
	mock.lockListActive.Lock()
	mock.calls.ListActive = append(mock.calls.ListActive, callInfo)
	mock.lockListActive.Unlock()
	return mock.ListActiveFunc(ctx)
}

func (mock *bankRepoMock) ListActiveCalls() []struct {
	Ctx context.Context
} {
	mock.lockListActive.RLock()
	calls := mock.calls.ListActive
	mock.lockListActive.RUnlock()
	return calls
}

func (mock *bankRepoMock) ImpactStats(ctx context.Context, keys []string) (map[string]domain.Impact, error) {
	if mock.ImpactStatsFunc == nil {
		panic("bankRepoMock.ImpactStatsFunc: method is nil but bankRepo.ImpactStats was just called")
	}
	callInfo := struct {
		Ctx  context.Context
		Keys []string
	}{
		Ctx:  ctx,
		Keys: keys,
	}
	mock.lockImpactStats.Lock()
	mock.calls.ImpactStats = append(mock.calls.ImpactStats, callInfo)
	mock.lockImpactStats.Unlock()
	return mock.ImpactStatsFunc(ctx, keys)
}

func (mock *bankRepoMock) ImpactStatsCalls() []struct {
	Ctx  context.Context
	Keys []string
} {
	mock.lockImpactStats.RLock()
	calls := mock.calls.ImpactStats
	mock.lockImpactStats.RUnlock()
	return calls
}
