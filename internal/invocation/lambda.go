package invocation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"github.com/heartmarshall/zengin-sync/internal/domain"
	"github.com/heartmarshall/zengin-sync/pkg/ctxutil"
)

const scheduledEventType = "Scheduled Event"

// HandleLambda is the Lambda handler. It accepts either an invocation record
// (one-shot schedule targets carry one as input) or a scheduled rule event,
// which starts a detection run.
func (d *Dispatcher) HandleLambda(ctx context.Context, raw json.RawMessage) (Result, error) {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		ctx = ctxutil.WithRequestID(ctx, lc.AwsRequestID)
	}

	inv, err := decodeLambdaEvent(raw)
	if err != nil {
		d.log.WarnContext(ctx, "undecodable lambda event", "error", err.Error())
		return Result{}, err
	}
	return d.Handle(ctx, inv)
}

func decodeLambdaEvent(raw json.RawMessage) (domain.Invocation, error) {
	var probe struct {
		Kind       string `json:"kind"`
		DetailType string `json:"detail-type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return domain.Invocation{}, domain.NewValidationError("event", "malformed lambda event: "+err.Error())
	}

	if probe.Kind == "" && probe.DetailType == scheduledEventType {
		var ev events.CloudWatchEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return domain.Invocation{}, domain.NewValidationError("event", "malformed scheduled event: "+err.Error())
		}
		issued := ev.Time
		if issued.IsZero() {
			issued = time.Now()
		}
		return domain.Invocation{
			Kind:     domain.InvocationProcess,
			Trigger:  domain.TriggerScheduled,
			IssuedAt: issued.UTC(),
		}, nil
	}
	return Decode(raw)
}
