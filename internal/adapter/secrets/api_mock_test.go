package secrets

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

var _ API = &APIMock{}

type APIMock struct {
	GetSecretValueFunc func(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)

	calls struct {
		GetSecretValue []*secretsmanager.GetSecretValueInput
	}
	lockGetSecretValue sync.RWMutex
}

func (mock *APIMock) GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	if mock.GetSecretValueFunc == nil {
		panic("APIMock.GetSecretValueFunc: method is nil but API.GetSecretValue was just called")
	}
	mock.lockGetSecretValue.Lock()
	mock.calls.GetSecretValue = append(mock.calls.GetSecretValue, in)
	mock.lockGetSecretValue.Unlock()
	return mock.GetSecretValueFunc(ctx, in, optFns...)
}

func (mock *APIMock) GetSecretValueCalls() []*secretsmanager.GetSecretValueInput {
	mock.lockGetSecretValue.RLock()
	defer mock.lockGetSecretValue.RUnlock()
	return mock.calls.GetSecretValue
}
