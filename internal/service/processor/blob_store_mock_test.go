package processor

import (
	"context"
	"sync"
)

var _ blobStore = &blobStoreMock{}

type blobStoreMock struct {
	PutFunc func(ctx context.Context, key string, data []byte) (string, error)

	calls struct {
		Put []struct {
			Ctx  context.Context
			Key  string
			Data []byte
		}
	}
	lockPut sync.RWMutex
}

func (mock *blobStoreMock) Put(ctx context.Context, key string, data []byte) (string, error) {
	if mock.PutFunc == nil {
		panic("blobStoreMock.PutFunc: method is nil but blobStore.Put was just called")
	}
	callInfo := struct {
		Ctx  context.Context
		Key  string
		Data []byte
	}{
		Ctx:  ctx,
		Key:  key,
		Data: data,
	}
	mock.lockPut.Lock()
	mock.calls.Put = append(mock.calls.Put, callInfo)
	mock.lockPut.Unlock()
	return mock.PutFunc(ctx, key, data)
}

func (mock *blobStoreMock) PutCalls() []struct {
	Ctx  context.Context
	Key  string
	Data []byte
} {
	mock.lockPut.RLock()
	calls := mock.calls.Put
	mock.lockPut.RUnlock()
	return calls
}
