// Package badgerstore implements the diff store on an embedded BadgerDB.
//
// Layout:
//
//	diff/{id}                  -> JSON record
//	status/{status}/{ts}/{id}  -> id (secondary index)
//	seq/{yyyymmdd}             -> big-endian counter
//	blob/{key}                 -> overflow payload (BlobStore)
//
// Every key carries the record TTL. Conditional updates run inside
// optimistic transactions; commits that lose a race are retried.
package badgerstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/heartmarshall/zengin-sync/internal/adapter/diffstore"
	"github.com/heartmarshall/zengin-sync/internal/domain"
)

const maxCommitAttempts = 8

// Config holds configuration for a store instance.
type Config struct {
	// Dir is the database directory. Ignored when InMemory is true.
	Dir      string
	InMemory bool
	// Logger receives BadgerDB internal logs. Nil disables them.
	Logger *slog.Logger
}

// Store is a diffstore.Store backed by BadgerDB.
type Store struct {
	db  *badger.DB
	now func() time.Time
}

var _ diffstore.Store = (*Store)(nil)

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any)   { l.logger.Error(fmt.Sprintf(format, args...)) }
func (l *badgerLogger) Warningf(format string, args ...any) { l.logger.Warn(fmt.Sprintf(format, args...)) }
func (l *badgerLogger) Infof(format string, args ...any)    { l.logger.Debug(fmt.Sprintf(format, args...)) }
func (l *badgerLogger) Debugf(format string, args ...any)   { l.logger.Debug(fmt.Sprintf(format, args...)) }

// Open opens (or creates) a store.
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Dir == "" {
			return nil, errors.New("badgerstore: dir is required for persistent database")
		}
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// OpenInMemory opens a store that lives only as long as the process.
func OpenInMemory() (*Store, error) {
	return Open(Config{InMemory: true})
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// Ping reports whether the database is still open.
func (s *Store) Ping(context.Context) error {
	if s.db.IsClosed() {
		return fmt.Errorf("badger: %w: database closed", domain.ErrDependency)
	}
	return nil
}

// RunGC runs value log garbage collection until nothing is left to reclaim.
func (s *Store) RunGC() {
	for s.db.RunValueLogGC(0.5) == nil {
	}
}

// ---------------------------------------------------------------------------
// Keys
// ---------------------------------------------------------------------------

func recordKey(id string) []byte { return []byte("diff/" + id) }

func statusPrefix(status domain.DiffStatus) []byte { return []byte("status/" + string(status) + "/") }

func statusKey(rec *domain.DiffRecord) []byte {
	return append(statusPrefix(rec.Status), []byte(diffstore.FormatTimestamp(rec.Timestamp)+"/"+rec.ID)...)
}

func seqKey(day time.Time) []byte { return []byte("seq/" + diffstore.SequenceDay(day)) }

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// Create stores a new record. An existing id returns domain.ErrAlreadyExists.
func (s *Store) Create(ctx context.Context, rec *domain.DiffRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := domain.ValidateDiffID(rec.ID); err != nil {
		return err
	}

	return s.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(recordKey(rec.ID)); err == nil {
			return fmt.Errorf("diff %s: %w", rec.ID, domain.ErrAlreadyExists)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return s.put(txn, rec)
	})
}

// Get loads a record. Missing and expired records return domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*domain.DiffRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *domain.DiffRecord
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = s.load(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Transition applies t if the record is currently at t.From.
func (s *Store) Transition(ctx context.Context, id string, t domain.Transition) (*domain.DiffRecord, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(rec *domain.DiffRecord) error { return rec.Apply(t) })
}

// RevertApproval moves an approved record back to pending.
func (s *Store) RevertApproval(ctx context.Context, id string) (*domain.DiffRecord, error) {
	return s.mutate(ctx, id, func(rec *domain.DiffRecord) error { return rec.RevertApproval() })
}

// SetSchedule records the trigger created for an approved record.
func (s *Store) SetSchedule(ctx context.Context, id string, ref domain.ScheduleRef) error {
	_, err := s.mutate(ctx, id, func(rec *domain.DiffRecord) error {
		rec.Schedule = &ref
		return nil
	})
	return err
}

// SetNotification records where the record was announced.
func (s *Store) SetNotification(ctx context.Context, id string, ref domain.MessageRef) error {
	_, err := s.mutate(ctx, id, func(rec *domain.DiffRecord) error {
		rec.Notification = &ref
		return nil
	})
	return err
}

// ListByStatus returns records in status created at or after since, newest first.
// limit <= 0 means no limit.
func (s *Store) ListByStatus(ctx context.Context, status domain.DiffStatus, since time.Time, limit int) ([]*domain.DiffRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []*domain.DiffRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := statusPrefix(status)
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		var ids []string
		start := append(bytes.Clone(prefix), []byte(diffstore.FormatTimestamp(since))...)
		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			id, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			ids = append(ids, string(id))
		}

		slices.Reverse(ids)
		for _, id := range ids {
			if limit > 0 && len(out) >= limit {
				break
			}
			rec, err := s.load(txn, id)
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// NextSequence increments and returns the per-day counter, starting at 1.
func (s *Store) NextSequence(ctx context.Context, day time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var next uint64
	err := s.update(func(txn *badger.Txn) error {
		key := seqKey(day)
		next = 1
		item, err := txn.Get(key)
		switch {
		case err == nil:
			if err := item.Value(func(v []byte) error {
				if len(v) != 8 {
					return fmt.Errorf("corrupt sequence %s", key)
				}
				next = binary.BigEndian.Uint64(v) + 1
				return nil
			}); err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, next)
		return txn.SetEntry(badger.NewEntry(key, buf).WithTTL(domain.DiffRetention))
	})
	if err != nil {
		return 0, err
	}
	return int(next), nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// update runs fn in a read-write transaction, retrying commits that conflict
// with a concurrent writer. fn sees fresh state on each attempt.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	var err error
	for range maxCommitAttempts {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrConflict, err)
}

func (s *Store) mutate(ctx context.Context, id string, fn func(rec *domain.DiffRecord) error) (*domain.DiffRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out *domain.DiffRecord
	err := s.update(func(txn *badger.Txn) error {
		rec, err := s.load(txn, id)
		if err != nil {
			return err
		}
		oldIndex := statusKey(rec)

		if err := fn(rec); err != nil {
			return err
		}

		if newIndex := statusKey(rec); !bytes.Equal(oldIndex, newIndex) {
			if err := txn.Delete(oldIndex); err != nil {
				return err
			}
		}
		out = rec
		return s.put(txn, rec)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) load(txn *badger.Txn, id string) (*domain.DiffRecord, error) {
	item, err := txn.Get(recordKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("diff %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("diff %s: %w", id, err)
	}

	var rec domain.DiffRecord
	if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &rec) }); err != nil {
		return nil, fmt.Errorf("decode diff %s: %w", id, err)
	}
	if diffstore.Expired(&rec, s.now()) {
		return nil, fmt.Errorf("diff %s expired: %w", id, domain.ErrNotFound)
	}
	return &rec, nil
}

func (s *Store) put(txn *badger.Txn, rec *domain.DiffRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode diff %s: %w", rec.ID, err)
	}

	ttl := time.Unix(rec.TTL, 0).Sub(s.now())
	if rec.TTL > 0 && ttl <= 0 {
		// Already past retention: the record reads as missing, so drop it.
		if err := txn.Delete(recordKey(rec.ID)); err != nil {
			return err
		}
		return txn.Delete(statusKey(rec))
	}
	withTTL := func(e *badger.Entry) *badger.Entry {
		if rec.TTL > 0 {
			return e.WithTTL(ttl)
		}
		return e
	}

	if err := txn.SetEntry(withTTL(badger.NewEntry(recordKey(rec.ID), data))); err != nil {
		return err
	}
	return txn.SetEntry(withTTL(badger.NewEntry(statusKey(rec), []byte(rec.ID))))
}
