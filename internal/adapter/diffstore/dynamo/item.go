package dynamo

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/heartmarshall/zengin-sync/internal/adapter/diffstore"
	"github.com/heartmarshall/zengin-sync/internal/domain"
)

// Attribute names.
const (
	attrID        = "id"
	attrTimestamp = "timestamp"
	attrStatus    = "status"
	attrTTL       = "ttl"
	attrSeq       = "seq"
)

// item is the table representation of a diff record. Nested values are
// stored as JSON strings so the serialized size matches what the overflow
// threshold measures.
type item struct {
	ID           string `dynamodbav:"id"`
	Timestamp    string `dynamodbav:"timestamp"`
	Status       string `dynamodbav:"status"`
	DiffType     string `dynamodbav:"diff_type"`
	Summary      string `dynamodbav:"summary"`
	Payload      string `dynamodbav:"payload"`
	ApprovedBy   string `dynamodbav:"approved_by,omitempty"`
	ApprovedAt   string `dynamodbav:"approved_at,omitempty"`
	RejectedBy   string `dynamodbav:"rejected_by,omitempty"`
	RejectedAt   string `dynamodbav:"rejected_at,omitempty"`
	RejectReason string `dynamodbav:"reject_reason,omitempty"`
	ExecutedAt   string `dynamodbav:"executed_at,omitempty"`
	Result       string `dynamodbav:"execution_result,omitempty"`
	Schedule     string `dynamodbav:"schedule,omitempty"`
	Notification string `dynamodbav:"notification,omitempty"`
	TTL          int64  `dynamodbav:"ttl"`
}

func toItem(rec *domain.DiffRecord) (item, error) {
	it := item{
		ID:           rec.ID,
		Timestamp:    diffstore.FormatTimestamp(rec.Timestamp),
		Status:       string(rec.Status),
		DiffType:     string(rec.DiffType),
		ApprovedBy:   rec.ApprovedBy,
		ApprovedAt:   formatOptional(rec.ApprovedAt),
		RejectedBy:   rec.RejectedBy,
		RejectedAt:   formatOptional(rec.RejectedAt),
		RejectReason: rec.RejectReason,
		ExecutedAt:   formatOptional(rec.ExecutedAt),
		TTL:          rec.TTL,
	}

	var err error
	if it.Summary, err = jsonString(rec.Summary); err != nil {
		return item{}, fmt.Errorf("summary: %w", err)
	}
	if it.Payload, err = jsonString(rec.Payload); err != nil {
		return item{}, fmt.Errorf("payload: %w", err)
	}
	if rec.Result != nil {
		if it.Result, err = jsonString(rec.Result); err != nil {
			return item{}, fmt.Errorf("execution_result: %w", err)
		}
	}
	if rec.Schedule != nil {
		if it.Schedule, err = jsonString(rec.Schedule); err != nil {
			return item{}, fmt.Errorf("schedule: %w", err)
		}
	}
	if rec.Notification != nil {
		if it.Notification, err = jsonString(rec.Notification); err != nil {
			return item{}, fmt.Errorf("notification: %w", err)
		}
	}
	return it, nil
}

func (it item) toDomain() (*domain.DiffRecord, error) {
	ts, err := diffstore.ParseTimestamp(it.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("diff %s timestamp: %w", it.ID, err)
	}

	rec := &domain.DiffRecord{
		ID:           it.ID,
		Timestamp:    ts,
		Status:       domain.DiffStatus(it.Status),
		DiffType:     domain.DiffType(it.DiffType),
		ApprovedBy:   it.ApprovedBy,
		RejectedBy:   it.RejectedBy,
		RejectReason: it.RejectReason,
		TTL:          it.TTL,
	}

	if rec.ApprovedAt, err = parseOptional(it.ApprovedAt); err != nil {
		return nil, err
	}
	if rec.RejectedAt, err = parseOptional(it.RejectedAt); err != nil {
		return nil, err
	}
	if rec.ExecutedAt, err = parseOptional(it.ExecutedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(it.Summary), &rec.Summary); err != nil {
		return nil, fmt.Errorf("diff %s summary: %w", it.ID, err)
	}
	if err := json.Unmarshal([]byte(it.Payload), &rec.Payload); err != nil {
		return nil, fmt.Errorf("diff %s payload: %w", it.ID, err)
	}
	if it.Result != "" {
		rec.Result = &domain.ExecutionResult{}
		if err := json.Unmarshal([]byte(it.Result), rec.Result); err != nil {
			return nil, fmt.Errorf("diff %s execution_result: %w", it.ID, err)
		}
	}
	if it.Schedule != "" {
		rec.Schedule = &domain.ScheduleRef{}
		if err := json.Unmarshal([]byte(it.Schedule), rec.Schedule); err != nil {
			return nil, fmt.Errorf("diff %s schedule: %w", it.ID, err)
		}
	}
	if it.Notification != "" {
		rec.Notification = &domain.MessageRef{}
		if err := json.Unmarshal([]byte(it.Notification), rec.Notification); err != nil {
			return nil, fmt.Errorf("diff %s notification: %w", it.ID, err)
		}
	}
	return rec, nil
}

func jsonString(v any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return diffstore.FormatTimestamp(*t)
}

func parseOptional(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := diffstore.ParseTimestamp(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
