package approval

import (
	"context"
	"sync"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

var _ notifier = &notifierMock{}

type notifierMock struct {
	UpdateDecisionFunc       func(ctx context.Context, ref domain.MessageRef, rec *domain.DiffRecord) error
	PostDuplicateWarningFunc func(ctx context.Context, ref domain.MessageRef, userID string, action string, status domain.DiffStatus) error
	UploadCSVFunc            func(ctx context.Context, ref domain.MessageRef, filename string, data []byte) error

	calls struct {
		UpdateDecision []struct {
			Ctx context.Context
			Ref domain.MessageRef
			Rec *domain.DiffRecord
		}
		PostDuplicateWarning []struct {
			Ctx    context.Context
			Ref    domain.MessageRef
			UserID string
			Action string
			Status domain.DiffStatus
		}
		UploadCSV []struct {
			Ctx      context.Context
			Ref      domain.MessageRef
			Filename string
			Data     []byte
		}
	}
	lockUpdateDecision       sync.RWMutex
	lockPostDuplicateWarning sync.RWMutex
	lockUploadCSV            sync.RWMutex
}

func (mock *notifierMock) UpdateDecision(ctx context.Context, ref domain.MessageRef, rec *domain.DiffRecord) error {
	if mock.UpdateDecisionFunc == nil {
		panic("notifierMock.UpdateDecisionFunc: method is nil but notifier.UpdateDecision was just called")
	}
	callInfo := struct {
		Ctx context.Context
		Ref domain.MessageRef
		Rec *domain.DiffRecord
	}{
		Ctx: ctx,
		Ref: ref,
		Rec: rec,
	}
	mock.lockUpdateDecision.Lock()
	mock.calls.UpdateDecision = append(mock.calls.UpdateDecision, callInfo)
	mock.lockUpdateDecision.Unlock()
	return mock.UpdateDecisionFunc(ctx, ref, rec)
}

func (mock *notifierMock) UpdateDecisionCalls() []struct {
	Ctx context.Context
	Ref domain.MessageRef
	Rec *domain.DiffRecord
} {
	mock.lockUpdateDecision.RLock()
	calls := mock.calls.UpdateDecision
	mock.lockUpdateDecision.RUnlock()
	return calls
}

func (mock *notifierMock) PostDuplicateWarning(ctx context.Context, ref domain.MessageRef, userID string, action string, status domain.DiffStatus) error {
	if mock.PostDuplicateWarningFunc == nil {
		panic("notifierMock.PostDuplicateWarningFunc: method is nil but notifier.PostDuplicateWarning was just called")
	}
	callInfo := struct {
		Ctx    context.Context
		Ref    domain.MessageRef
		UserID string
		Action string
		Status domain.DiffStatus
	}{
		Ctx:    ctx,
		Ref:    ref,
		UserID: userID,
		Action: action,
		Status: status,
	}
	mock.lockPostDuplicateWarning.Lock()
	mock.calls.PostDuplicateWarning = append(mock.calls.PostDuplicateWarning, callInfo)
	mock.lockPostDuplicateWarning.Unlock()
	return mock.PostDuplicateWarningFunc(ctx, ref, userID, action, status)
}

func (mock *notifierMock) PostDuplicateWarningCalls() []struct {
	Ctx    context.Context
	Ref    domain.MessageRef
	UserID string
	Action string
	Status domain.DiffStatus
} {
	mock.lockPostDuplicateWarning.RLock()
	calls := mock.calls.PostDuplicateWarning
	mock.lockPostDuplicateWarning.RUnlock()
	return calls
}

func (mock *notifierMock) UploadCSV(ctx context.Context, ref domain.MessageRef, filename string, data []byte) error {
	if mock.UploadCSVFunc == nil {
		panic("notifierMock.UploadCSVFunc: method is nil but notifier.UploadCSV was just called")
	}
	callInfo := struct {
		Ctx      context.Context
		Ref      domain.MessageRef
		Filename string
		Data     []byte
	}{
		Ctx:      ctx,
		Ref:      ref,
		Filename: filename,
		Data:     data,
	}
	mock.lockUploadCSV.Lock()
	mock.calls.UploadCSV = append(mock.calls.UploadCSV, callInfo)
	mock.lockUploadCSV.Unlock()
	return mock.UploadCSVFunc(ctx, ref, filename, data)
}

func (mock *notifierMock) UploadCSVCalls() []struct {
	Ctx      context.Context
	Ref      domain.MessageRef
	Filename string
	Data     []byte
} {
	mock.lockUploadCSV.RLock()
	calls := mock.calls.UploadCSV
	mock.lockUploadCSV.RUnlock()
	return calls
}
