// Package diffstore holds what the diff record backends share: the store
// contract and the sortable timestamp encoding used for keys.
package diffstore

import (
	"context"
	"time"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

// Store persists diff records. Status changes are conditional on the
// expected current status; a stale expectation returns domain.ErrConflict.
type Store interface {
	Create(ctx context.Context, rec *domain.DiffRecord) error
	Get(ctx context.Context, id string) (*domain.DiffRecord, error)
	Transition(ctx context.Context, id string, t domain.Transition) (*domain.DiffRecord, error)
	RevertApproval(ctx context.Context, id string) (*domain.DiffRecord, error)
	SetSchedule(ctx context.Context, id string, ref domain.ScheduleRef) error
	SetNotification(ctx context.Context, id string, ref domain.MessageRef) error
	ListByStatus(ctx context.Context, status domain.DiffStatus, since time.Time, limit int) ([]*domain.DiffRecord, error)
	NextSequence(ctx context.Context, day time.Time) (int, error)
	Ping(ctx context.Context) error
}

// TimestampLayout is fixed width so encoded timestamps sort lexicographically.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTimestamp encodes t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string { return t.UTC().Format(TimestampLayout) }

// ParseTimestamp decodes a value written by FormatTimestamp.
func ParseTimestamp(s string) (time.Time, error) { return time.Parse(TimestampLayout, s) }

// SequenceDay is the counter partition for a day: "20240101".
func SequenceDay(day time.Time) string { return day.Format("20060102") }

// Expired reports whether a record's TTL has passed at now. Backends
// delete expired items lazily, so reads check it themselves.
func Expired(rec *domain.DiffRecord, now time.Time) bool {
	return rec.TTL > 0 && now.Unix() >= rec.TTL
}
