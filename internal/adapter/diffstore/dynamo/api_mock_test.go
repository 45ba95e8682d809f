package dynamo

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

var _ API = &APIMock{}

type APIMock struct {
	PutItemFunc    func(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItemFunc func(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	QueryFunc      func(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)

	calls struct {
		PutItem    []*dynamodb.PutItemInput
		UpdateItem []*dynamodb.UpdateItemInput
		Query      []*dynamodb.QueryInput
	}
	lockPutItem    sync.RWMutex
	lockUpdateItem sync.RWMutex
	lockQuery      sync.RWMutex
}

func (mock *APIMock) PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if mock.PutItemFunc == nil {
		panic("APIMock.PutItemFunc: method is nil but API.PutItem was just called")
	}
	mock.lockPutItem.Lock()
	mock.calls.PutItem = append(mock.calls.PutItem, in)
	mock.lockPutItem.Unlock()
	return mock.PutItemFunc(ctx, in, optFns...)
}

func (mock *APIMock) PutItemCalls() []*dynamodb.PutItemInput {
	mock.lockPutItem.RLock()
	defer mock.lockPutItem.RUnlock()
	return mock.calls.PutItem
}

func (mock *APIMock) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if mock.UpdateItemFunc == nil {
		panic("APIMock.UpdateItemFunc: method is nil but API.UpdateItem was just called")
	}
	mock.lockUpdateItem.Lock()
	mock.calls.UpdateItem = append(mock.calls.UpdateItem, in)
	mock.lockUpdateItem.Unlock()
	return mock.UpdateItemFunc(ctx, in, optFns...)
}

func (mock *APIMock) UpdateItemCalls() []*dynamodb.UpdateItemInput {
	mock.lockUpdateItem.RLock()
	defer mock.lockUpdateItem.RUnlock()
	return mock.calls.UpdateItem
}

func (mock *APIMock) Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if mock.QueryFunc == nil {
		panic("APIMock.QueryFunc: method is nil but API.Query was just called")
	}
	mock.lockQuery.Lock()
	mock.calls.Query = append(mock.calls.Query, in)
	mock.lockQuery.Unlock()
	return mock.QueryFunc(ctx, in, optFns...)
}

func (mock *APIMock) QueryCalls() []*dynamodb.QueryInput {
	mock.lockQuery.RLock()
	defer mock.lockQuery.RUnlock()
	return mock.calls.Query
}
