// Package executor applies an approved diff to the bank master in a single
// transaction.
package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

type diffStore interface {
	Get(ctx context.Context, id string) (*domain.DiffRecord, error)
	Transition(ctx context.Context, id string, t domain.Transition) (*domain.DiffRecord, error)
}

type blobReader interface {
	Get(ctx context.Context, location string) ([]byte, error)
}

type bankRepo interface {
	Apply(ctx context.Context, changes []domain.Change, updatedUser string) (domain.ApplyResult, error)
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type notifier interface {
	PostCompletion(ctx context.Context, ref domain.MessageRef, rec *domain.DiffRecord, res domain.ExecutionResult) error
}

type auditLog interface {
	Append(ctx context.Context, e domain.AuditEntry)
}

type scheduleCanceler interface {
	Cancel(ctx context.Context, name string) error
}

// Config holds executor settings.
type Config struct {
	ConnectAttempts int
	UpdatedUser     string
}

// Service executes approved diffs.
type Service struct {
	store    diffStore
	blobs    blobReader
	bank     bankRepo
	tx       txManager
	notifier notifier
	audit    auditLog
	schedule scheduleCanceler
	cfg      Config
	now      func() time.Time
	initial  time.Duration
	log      *slog.Logger
}

// NewService creates an executor service.
func NewService(
	log *slog.Logger,
	cfg Config,
	store diffStore,
	blobs blobReader,
	bank bankRepo,
	tx txManager,
	notifier notifier,
	audit auditLog,
) *Service {
	if cfg.ConnectAttempts < 1 {
		cfg.ConnectAttempts = 3
	}
	if cfg.UpdatedUser == "" {
		cfg.UpdatedUser = "zengin-updater"
	}
	return &Service{
		store:    store,
		blobs:    blobs,
		bank:     bank,
		tx:       tx,
		notifier: notifier,
		audit:    audit,
		cfg:      cfg,
		now:      time.Now,
		initial:  500 * time.Millisecond,
		log:      log.With("service", "executor"),
	}
}

// UseScheduleCanceler lets a manual execution remove the pending one-shot
// trigger of the diff it runs. The scheduler is built after the executor,
// so it is attached here rather than in NewService.
func (s *Service) UseScheduleCanceler(c scheduleCanceler) {
	s.schedule = c
}
