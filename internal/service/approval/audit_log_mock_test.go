package approval

import (
	"context"
	"sync"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

var _ auditLog = &auditLogMock{}

type auditLogMock struct {
	AppendFunc func(ctx context.Context, e domain.AuditEntry)

	calls struct {
		Append []struct {
			Ctx context.Context
			E   domain.AuditEntry
		}
	}
	lockAppend sync.RWMutex
}

func (mock *auditLogMock) Append(ctx context.Context, e domain.AuditEntry) {
	if mock.AppendFunc == nil {
		panic("auditLogMock.AppendFunc: method is nil but auditLog.Append was just called")
	}
	callInfo := struct {
		Ctx context.Context
		E   domain.AuditEntry
	}{
		Ctx: ctx,
		E:   e,
	}
	mock.lockAppend.Lock()
	mock.calls.Append = append(mock.calls.Append, callInfo)
	mock.lockAppend.Unlock()
	mock.AppendFunc(ctx, e)
}

func (mock *auditLogMock) AppendCalls() []struct {
	Ctx context.Context
	E   domain.AuditEntry
} {
	mock.lockAppend.RLock()
	calls := mock.calls.Append
	mock.lockAppend.RUnlock()
	return calls
}
