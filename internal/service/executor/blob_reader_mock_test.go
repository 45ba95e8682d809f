package executor

import (
	"context"
	"sync"
)

var _ blobReader = &blobReaderMock{}

type blobReaderMock struct {
	GetFunc func(ctx context.Context, location string) ([]byte, error)

	calls struct {
		Get []struct {
			Ctx      context.Context
			Location string
		}
	}
	lockGet sync.RWMutex
}

func (mock *blobReaderMock) Get(ctx context.Context, location string) ([]byte, error) {
	if mock.GetFunc == nil {
		panic("blobReaderMock.GetFunc: method is nil but blobReader.Get was just called")
	}
	callInfo := struct {
		Ctx      context.Context
		Location string
	}{
		Ctx:      ctx,
		Location: location,
	}
	mock.lockGet.Lock()
	mock.calls.Get = append(mock.calls.Get, callInfo)
	mock.lockGet.Unlock()
	return mock.GetFunc(ctx, location)
}

func (mock *blobReaderMock) GetCalls() []struct {
	Ctx      context.Context
	Location string
} {
	mock.lockGet.RLock()
	calls := mock.calls.Get
	mock.lockGet.RUnlock()
	return calls
}
