package approval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/heartmarshall/zengin-sync/internal/adapter/blob"
	"github.com/heartmarshall/zengin-sync/internal/domain"
)

// exportCSV uploads the full change list of a diff into its thread. Any
// status is accepted and nothing is mutated.
func (h *handling) exportCSV(ctx context.Context) Response {
	rec, resp := h.load(ctx)
	if resp != nil {
		return *resp
	}

	changes, err := h.changes(ctx, rec)
	if err != nil {
		h.log.ErrorContext(ctx, "load changes failed", slog.String("error", err.Error()))
		return h.internalError()
	}

	data, err := RenderCSV(changes)
	if err != nil {
		h.log.ErrorContext(ctx, "render csv failed", slog.String("error", err.Error()))
		return h.internalError()
	}

	filename := fmt.Sprintf("zengin_diff_%s_%s.csv", rec.ID, h.svc.now().In(h.svc.cfg.Location).Format("20060102_150405"))
	if err := h.svc.notifier.UploadCSV(ctx, h.ref, filename, data); err != nil {
		h.log.ErrorContext(ctx, "csv upload failed", slog.String("error", err.Error()))
		return h.internalError()
	}

	h.audit(ctx, domain.AuditCSVExported, map[string]any{"filename": filename, "rows": len(changes)})
	h.log.InfoContext(ctx, "csv exported", slog.Int("rows", len(changes)))
	return ephemeral(OutcomeExported, fmt.Sprintf("📄 CSVを出力しました (%d件)", len(changes)))
}

func (h *handling) changes(ctx context.Context, rec *domain.DiffRecord) ([]domain.Change, error) {
	if !rec.Payload.IsOverflow() {
		return rec.Payload.Changes, nil
	}
	data, err := h.svc.blobs.Get(ctx, rec.Payload.Pointer.Location)
	if err != nil {
		return nil, fmt.Errorf("load payload: %w", err)
	}
	return blob.DecodeChanges(data)
}
