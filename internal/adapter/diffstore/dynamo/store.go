// Package dynamo implements the diff store on a DynamoDB table.
//
// Table: partition key "id" (S), sort key "timestamp" (S), TTL attribute
// "ttl", and a global secondary index on ("status", "timestamp"). Per-day id
// counters live in the same table under "seq#{yyyymmdd}".
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/heartmarshall/zengin-sync/internal/adapter/diffstore"
	"github.com/heartmarshall/zengin-sync/internal/domain"
)

// API is the subset of the DynamoDB client the store uses.
type API interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Store is a diffstore.Store backed by DynamoDB.
type Store struct {
	api         API
	table       string
	statusIndex string
	now         func() time.Time
}

var _ diffstore.Store = (*Store)(nil)

// New creates a store over table. statusIndex names the status/timestamp GSI.
func New(api API, table, statusIndex string) *Store {
	return &Store{api: api, table: table, statusIndex: statusIndex, now: time.Now}
}

// NewFromConfig builds the DynamoDB client from an AWS config.
func NewFromConfig(cfg aws.Config, table, statusIndex, endpoint string) *Store {
	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return New(client, table, statusIndex)
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// Ping issues a one-item key query against the table.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.api.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		KeyConditionExpression:    aws.String("#id = :id"),
		ExpressionAttributeNames:  map[string]string{"#id": attrID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":id": &types.AttributeValueMemberS{Value: "ping"}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return mapError(err, "ping")
	}
	return nil
}

// Create puts the record unless an item with the same id exists.
func (s *Store) Create(ctx context.Context, rec *domain.DiffRecord) error {
	if err := domain.ValidateDiffID(rec.ID); err != nil {
		return err
	}
	it, err := toItem(rec)
	if err != nil {
		return fmt.Errorf("encode diff %s: %w", rec.ID, err)
	}
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return fmt.Errorf("marshal diff %s: %w", rec.ID, err)
	}

	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.table),
		Item:                     av,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": attrID},
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("diff %s: %w", rec.ID, domain.ErrAlreadyExists)
	}
	return mapError(err, rec.ID)
}

// Get returns the newest item for id. Expired items return domain.ErrNotFound
// even before DynamoDB removes them.
func (s *Store) Get(ctx context.Context, id string) (*domain.DiffRecord, error) {
	out, err := s.api.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		KeyConditionExpression:    aws.String("#id = :id"),
		ExpressionAttributeNames:  map[string]string{"#id": attrID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":id": &types.AttributeValueMemberS{Value: id}},
		ScanIndexForward:          aws.Bool(false),
		ConsistentRead:            aws.Bool(true),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, mapError(err, id)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("diff %s: %w", id, domain.ErrNotFound)
	}

	rec, err := decode(out.Items[0])
	if err != nil {
		return nil, err
	}
	if diffstore.Expired(rec, s.now()) {
		return nil, fmt.Errorf("diff %s expired: %w", id, domain.ErrNotFound)
	}
	return rec, nil
}

// Transition applies t with a conditional update on the current status.
func (s *Store) Transition(ctx context.Context, id string, t domain.Transition) (*domain.DiffRecord, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	u := newUpdate()
	u.set(attrStatus, str(string(t.To)))
	at := diffstore.FormatTimestamp(t.At)
	switch t.To {
	case domain.StatusApproved:
		u.set("approved_by", str(t.Actor))
		u.set("approved_at", str(at))
	case domain.StatusRejected:
		u.set("rejected_by", str(t.Actor))
		u.set("rejected_at", str(at))
		if t.Reason != "" {
			u.set("reject_reason", str(t.Reason))
		}
	case domain.StatusExecuting:
		u.set("executed_at", str(at))
	case domain.StatusCompleted, domain.StatusFailed:
		if t.Result != nil {
			v, err := jsonString(t.Result)
			if err != nil {
				return nil, fmt.Errorf("encode execution_result: %w", err)
			}
			u.set("execution_result", str(v))
		}
	}
	u.condition(attrStatus, str(string(t.From)))

	return s.conditionalUpdate(ctx, rec, u, t.From)
}

// RevertApproval moves an approved record back to pending and clears the approver.
func (s *Store) RevertApproval(ctx context.Context, id string) (*domain.DiffRecord, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	u := newUpdate()
	u.set(attrStatus, str(string(domain.StatusPending)))
	u.remove("approved_by", "approved_at", "schedule")
	u.condition(attrStatus, str(string(domain.StatusApproved)))

	return s.conditionalUpdate(ctx, rec, u, domain.StatusApproved)
}

// SetSchedule records the trigger created for an approved record.
func (s *Store) SetSchedule(ctx context.Context, id string, ref domain.ScheduleRef) error {
	return s.setJSON(ctx, id, "schedule", ref)
}

// SetNotification records where the record was announced.
func (s *Store) SetNotification(ctx context.Context, id string, ref domain.MessageRef) error {
	return s.setJSON(ctx, id, "notification", ref)
}

// ListByStatus queries the status index for records created at or after since, newest first.
func (s *Store) ListByStatus(ctx context.Context, status domain.DiffStatus, since time.Time, limit int) ([]*domain.DiffRecord, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		IndexName:              aws.String(s.statusIndex),
		KeyConditionExpression: aws.String("#status = :status AND #ts >= :since"),
		ExpressionAttributeNames: map[string]string{
			"#status": attrStatus,
			"#ts":     attrTimestamp,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": str(string(status)),
			":since":  str(diffstore.FormatTimestamp(since)),
		},
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}

	var out []*domain.DiffRecord
	now := s.now()
	for {
		page, err := s.api.Query(ctx, in)
		if err != nil {
			return nil, mapError(err, "status="+string(status))
		}
		for _, av := range page.Items {
			rec, err := decode(av)
			if err != nil {
				return nil, err
			}
			if diffstore.Expired(rec, now) {
				continue
			}
			out = append(out, rec)
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
		if len(page.LastEvaluatedKey) == 0 {
			return out, nil
		}
		in.ExclusiveStartKey = page.LastEvaluatedKey
	}
}

// NextSequence atomically increments the counter for day and returns the new value.
func (s *Store) NextSequence(ctx context.Context, day time.Time) (int, error) {
	key := "seq#" + diffstore.SequenceDay(day)
	out, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			attrID:        str(key),
			attrTimestamp: str("0"),
		},
		UpdateExpression:         aws.String("SET #ttl = if_not_exists(#ttl, :ttl) ADD #seq :one"),
		ExpressionAttributeNames: map[string]string{"#ttl": attrTTL, "#seq": attrSeq},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ttl": &types.AttributeValueMemberN{Value: strconv.FormatInt(domain.ExpiresAt(s.now()), 10)},
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, mapError(err, key)
	}

	n, ok := out.Attributes[attrSeq].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("sequence %s: missing counter in response", key)
	}
	seq, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("sequence %s: %w", key, err)
	}
	return seq, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *Store) setJSON(ctx context.Context, id, attr string, v any) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	encoded, err := jsonString(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", attr, err)
	}

	u := newUpdate()
	u.set(attr, str(encoded))
	u.exists(attrID)

	in := u.input(s.table, rec)
	in.ReturnValues = types.ReturnValueNone
	_, err = s.api.UpdateItem(ctx, in)
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("diff %s: %w", id, domain.ErrNotFound)
	}
	return mapError(err, id)
}

func (s *Store) conditionalUpdate(ctx context.Context, rec *domain.DiffRecord, u *update, expected domain.DiffStatus) (*domain.DiffRecord, error) {
	in := u.input(s.table, rec)
	in.ReturnValues = types.ReturnValueAllNew
	in.ReturnValuesOnConditionCheckFailure = types.ReturnValuesOnConditionCheckFailureAllOld

	out, err := s.api.UpdateItem(ctx, in)
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		actual := domain.DiffStatus("")
		if v, ok := ccf.Item[attrStatus].(*types.AttributeValueMemberS); ok {
			actual = domain.DiffStatus(v.Value)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrConflict, &domain.StateError{DiffID: rec.ID, Expected: expected, Actual: actual})
	}
	if err != nil {
		return nil, mapError(err, rec.ID)
	}
	return decode(out.Attributes)
}

func decode(av map[string]types.AttributeValue) (*domain.DiffRecord, error) {
	var it item
	if err := attributevalue.UnmarshalMap(av, &it); err != nil {
		return nil, fmt.Errorf("unmarshal diff item: %w", err)
	}
	return it.toDomain()
}

func str(v string) *types.AttributeValueMemberS { return &types.AttributeValueMemberS{Value: v} }

// mapError converts SDK errors into domain errors.
func mapError(err error, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("diff %s: %w", id, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ResourceNotFoundException":
			return fmt.Errorf("diff %s: table missing: %w: %w", id, domain.ErrDependency, err)
		case "ProvisionedThroughputExceededException", "ThrottlingException",
			"RequestLimitExceeded", "InternalServerError", "ServiceUnavailable":
			return fmt.Errorf("diff %s: %w: %w", id, domain.ErrDependency, err)
		case "TransactionConflictException":
			return fmt.Errorf("diff %s: %w: %w", id, domain.ErrConflict, err)
		}
	}
	return fmt.Errorf("diff %s: %w", id, err)
}
