package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/heartmarshall/zengin-sync/internal/adapter/blob"
	"github.com/heartmarshall/zengin-sync/internal/domain"
	"github.com/heartmarshall/zengin-sync/pkg/ctxutil"
)

// Failure stages reported in the run-failed notification.
const (
	StageFetchReference = "fetch_reference"
	StageReadMaster     = "read_master"
	StageStore          = "store_diff"
)

// Run executes one detection run. Nothing is persisted when either side of
// the comparison cannot be read.
func (s *Service) Run(ctx context.Context, inv domain.Invocation) (*RunResult, error) {
	ctx, reqID := ctxutil.EnsureRequestID(ctx)
	now := s.now()
	log := s.log.With(slog.String("request_id", reqID), slog.String("trigger", string(inv.Trigger)))

	if inv.Trigger == domain.TriggerScheduled && s.isDuplicateRun(ctx, now) {
		log.InfoContext(ctx, "pending diff created recently, skipping scheduled run")
		return &RunResult{Skipped: true}, nil
	}

	reference, current, stage, err := s.load(ctx)
	if err != nil {
		log.ErrorContext(ctx, "diff detection failed", slog.String("stage", stage), slog.String("error", err.Error()))
		s.reportFailure(ctx, stage, reqID)
		return nil, fmt.Errorf("processor %s: %w", stage, err)
	}

	changes := Compare(reference, current)
	if len(changes) == 0 {
		log.InfoContext(ctx, "no changes detected",
			slog.Int("reference", len(reference)),
			slog.Int("current", len(current)),
		)
		if err := s.notifier.PostNoChanges(ctx); err != nil {
			log.WarnContext(ctx, "no-changes notification failed", slog.String("error", err.Error()))
		}
		return &RunResult{NoChanges: true}, nil
	}

	s.attachImpact(ctx, changes)

	rec, overflow, err := s.persist(ctx, changes)
	if err != nil {
		log.ErrorContext(ctx, "persist diff failed", slog.String("error", err.Error()))
		s.reportFailure(ctx, StageStore, reqID)
		return nil, fmt.Errorf("processor %s: %w", StageStore, err)
	}

	result := &RunResult{DiffID: rec.ID, Summary: rec.Summary, Overflow: overflow}
	log.InfoContext(ctx, "diff stored",
		slog.String("diff_id", rec.ID),
		slog.String("diff_type", rec.DiffType.String()),
		slog.Int("total", rec.Summary.Total),
		slog.Bool("overflow", overflow),
	)

	ref, err := s.notifier.PostDiff(ctx, rec)
	if err != nil {
		log.ErrorContext(ctx, "diff notification failed", slog.String("diff_id", rec.ID), slog.String("error", err.Error()))
		return result, fmt.Errorf("notify %s: %w", rec.ID, err)
	}
	result.Notified = true

	if err := s.store.SetNotification(ctx, rec.ID, ref); err != nil {
		log.WarnContext(ctx, "save message ref failed", slog.String("diff_id", rec.ID), slog.String("error", err.Error()))
	}
	return result, nil
}

func (s *Service) isDuplicateRun(ctx context.Context, now time.Time) bool {
	if s.cfg.DuplicateWindow <= 0 {
		return false
	}
	recent, err := s.store.ListByStatus(ctx, domain.StatusPending, now.Add(-s.cfg.DuplicateWindow), 1)
	if err != nil {
		s.log.WarnContext(ctx, "duplicate run check failed", slog.String("error", err.Error()))
		return false
	}
	return len(recent) > 0
}

// load reads both sides concurrently. The master read is retried with
// backoff; the reference source retries each request itself.
func (s *Service) load(ctx context.Context) (reference, current []domain.BankBranch, stage string, err error) {
	var refErr, curErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		reference, refErr = s.source.FetchAll(gctx)
		return refErr
	})
	g.Go(func() error {
		current, curErr = s.readMaster(gctx)
		return curErr
	})
	if err := g.Wait(); err != nil {
		if refErr != nil {
			return nil, nil, StageFetchReference, refErr
		}
		return nil, nil, StageReadMaster, curErr
	}
	return reference, current, "", nil
}

func (s *Service) readMaster(ctx context.Context) ([]domain.BankBranch, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initial
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.cfg.MaxAttempts-1)), ctx)

	return backoff.RetryWithData(func() ([]domain.BankBranch, error) {
		actx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
		defer cancel()
		rows, err := s.bank.ListActive(actx)
		if err != nil && ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return rows, err
	}, policy)
}

// attachImpact adds account counts to updates and deletions. A failed
// lookup leaves the counts at zero.
func (s *Service) attachImpact(ctx context.Context, changes []domain.Change) {
	keys := impactKeys(changes)
	if len(keys) == 0 {
		return
	}
	impact, err := s.bank.ImpactStats(ctx, keys)
	if err != nil {
		s.log.WarnContext(ctx, "impact statistics unavailable", slog.String("error", err.Error()))
		return
	}
	domain.WithImpact(changes, impact)
}

func (s *Service) persist(ctx context.Context, changes []domain.Change) (*domain.DiffRecord, bool, error) {
	now := s.now()
	day := now.In(s.cfg.Location)

	seq, err := s.store.NextSequence(ctx, day)
	if err != nil {
		return nil, false, fmt.Errorf("next sequence: %w", err)
	}
	id := domain.NewDiffID(day, seq)

	data, err := json.Marshal(changes)
	if err != nil {
		return nil, false, fmt.Errorf("encode changes: %w", err)
	}

	payload := domain.DiffPayload{Changes: changes}
	overflow := domain.NeedsOverflow(len(data))
	if overflow {
		gz, err := blob.Compress(data)
		if err != nil {
			return nil, false, err
		}
		location, err := s.blobs.Put(ctx, blob.Key(s.cfg.BlobPrefix, s.cfg.Environment, id), gz)
		if err != nil {
			return nil, false, fmt.Errorf("upload changes: %w", err)
		}
		payload = domain.DiffPayload{Pointer: &domain.PayloadPointer{Location: location, Size: int64(len(data))}}
	}

	rec := domain.NewDiffRecord(id, now, changes, payload)
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, false, fmt.Errorf("create %s: %w", id, err)
	}
	return rec, overflow, nil
}

func (s *Service) reportFailure(ctx context.Context, stage, reqID string) {
	if err := s.notifier.PostRunFailed(context.WithoutCancel(ctx), stage, reqID); err != nil {
		s.log.WarnContext(ctx, "failure notification failed", slog.String("error", err.Error()))
	}
}
