package auditlog

import (
	"context"
	"sync"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

var _ auditRepo = &auditRepoMock{}

type auditRepoMock struct {
	AppendFunc func(ctx context.Context, e domain.AuditEntry) error
	ListFunc   func(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEntry, error)

	calls struct {
		Append []struct {
			Ctx context.Context
			E   domain.AuditEntry
		}
		List []struct {
			Ctx context.Context
			F   domain.AuditFilter
		}
	}
	lockAppend sync.RWMutex
	lockList   sync.RWMutex
}

func (mock *auditRepoMock) Append(ctx context.Context, e domain.AuditEntry) error {
	if mock.AppendFunc == nil {
		panic("auditRepoMock.AppendFunc: method is nil but auditRepo.Append was just called")
	}
	mock.lockAppend.Lock()
	mock.calls.Append = append(mock.calls.Append, struct {
		Ctx context.Context
		E   domain.AuditEntry
	}{Ctx: ctx, E: e})
	mock.lockAppend.Unlock()
	return mock.AppendFunc(ctx, e)
}

func (mock *auditRepoMock) AppendCalls() []struct {
	Ctx context.Context
	E   domain.AuditEntry
} {
	mock.lockAppend.RLock()
	defer mock.lockAppend.RUnlock()
	return mock.calls.Append
}

func (mock *auditRepoMock) List(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEntry, error) {
	if mock.ListFunc == nil {
		panic("auditRepoMock.ListFunc: method is nil but auditRepo.List was just called")
	}
	mock.lockList.Lock()
	mock.calls.List = append(mock.calls.List, struct {
		Ctx context.Context
		F   domain.AuditFilter
	}{Ctx: ctx, F: f})
	mock.lockList.Unlock()
	return mock.ListFunc(ctx, f)
}

func (mock *auditRepoMock) ListCalls() []struct {
	Ctx context.Context
	F   domain.AuditFilter
} {
	mock.lockList.RLock()
	defer mock.lockList.RUnlock()
	return mock.calls.List
}
