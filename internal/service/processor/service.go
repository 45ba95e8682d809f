// Package processor detects differences between the reference dataset and
// the bank master, persists them as a pending diff record and asks for approval.
package processor

import (
	"context"
	"log/slog"
	"time"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

type referenceSource interface {
	FetchAll(ctx context.Context) ([]domain.BankBranch, error)
}

type bankRepo interface {
	ListActive(ctx context.Context) ([]domain.BankBranch, error)
	ImpactStats(ctx context.Context, keys []string) (map[string]domain.Impact, error)
}

type diffStore interface {
	Create(ctx context.Context, rec *domain.DiffRecord) error
	SetNotification(ctx context.Context, id string, ref domain.MessageRef) error
	ListByStatus(ctx context.Context, status domain.DiffStatus, since time.Time, limit int) ([]*domain.DiffRecord, error)
	NextSequence(ctx context.Context, day time.Time) (int, error)
}

type blobStore interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
}

type notifier interface {
	PostDiff(ctx context.Context, rec *domain.DiffRecord) (domain.MessageRef, error)
	PostNoChanges(ctx context.Context) error
	PostRunFailed(ctx context.Context, stage, correlationID string) error
}

// Config holds processor settings.
type Config struct {
	Environment     string
	BlobPrefix      string
	MaxAttempts     int
	ReadTimeout     time.Duration
	DuplicateWindow time.Duration
	Location        *time.Location
}

// Service runs diff detection.
type Service struct {
	source   referenceSource
	bank     bankRepo
	store    diffStore
	blobs    blobStore
	notifier notifier
	cfg      Config
	now      func() time.Time
	initial  time.Duration
	log      *slog.Logger
}

// NewService creates a processor service.
func NewService(
	log *slog.Logger,
	cfg Config,
	source referenceSource,
	bank bankRepo,
	store diffStore,
	blobs blobStore,
	notifier notifier,
) *Service {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.BlobPrefix == "" {
		cfg.BlobPrefix = "diffs"
	}
	return &Service{
		source:   source,
		bank:     bank,
		store:    store,
		blobs:    blobs,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		initial:  time.Second,
		log:      log.With("service", "processor"),
	}
}
