package approval

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/slack-go/slack/slackevents"

	"github.com/heartmarshall/zengin-sync/internal/domain"
	"github.com/heartmarshall/zengin-sync/pkg/ctxutil"
)

var ackBody = map[string]string{"status": "ok"}

// HandleEvent answers the events callback: URL verification challenges are
// echoed, everything else is logged and acknowledged.
func (s *Service) HandleEvent(ctx context.Context, req Request) Response {
	ctx, reqID := ctxutil.EnsureRequestID(ctx)
	log := s.log.With(slog.String("request_id", reqID))

	if err := s.verifier.Verify(req.Headers, req.Body, s.cfg.SigningSecret); err != nil {
		log.WarnContext(ctx, "event signature rejected", slog.String("error", err.Error()))
		s.audit.Append(ctx, domain.AuditEntry{
			EventType: domain.AuditInvalidSignature,
			Details:   map[string]any{"endpoint": "events", "reason": err.Error()},
		})
		return failure(http.StatusUnauthorized, OutcomeInvalidSignature, "invalid signature")
	}

	var envelope slackevents.EventsAPICallbackEvent
	if err := json.Unmarshal(req.Body, &envelope); err != nil {
		log.WarnContext(ctx, "malformed event", slog.String("error", err.Error()))
		return failure(http.StatusBadRequest, OutcomeInvalid, "malformed event")
	}

	switch envelope.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(req.Body, &challenge); err != nil || challenge.Challenge == "" {
			return failure(http.StatusBadRequest, OutcomeInvalid, "challenge missing")
		}
		log.InfoContext(ctx, "url verification answered")
		return Response{Status: http.StatusOK, Body: map[string]string{"challenge": challenge.Challenge}, Outcome: OutcomeVerified}

	case slackevents.CallbackEvent:
		var inner struct {
			Type string `json:"type"`
		}
		if envelope.InnerEvent != nil {
			_ = json.Unmarshal(*envelope.InnerEvent, &inner)
		}
		log.InfoContext(ctx, "event received",
			slog.String("event_id", envelope.EventID),
			slog.String("event_type", inner.Type),
			slog.String("team_id", envelope.TeamID),
		)
	default:
		log.InfoContext(ctx, "event acknowledged", slog.String("type", envelope.Type))
	}
	return Response{Status: http.StatusOK, Body: ackBody, Outcome: OutcomeAcknowledged}
}
