// Package eventbridge creates one-shot execution triggers with EventBridge Scheduler.
package eventbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/scheduler"
	"github.com/aws/aws-sdk-go-v2/service/scheduler/types"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

// API is the subset of the EventBridge Scheduler client used here.
type API interface {
	CreateSchedule(ctx context.Context, in *scheduler.CreateScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.CreateScheduleOutput, error)
	GetSchedule(ctx context.Context, in *scheduler.GetScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.GetScheduleOutput, error)
	DeleteSchedule(ctx context.Context, in *scheduler.DeleteScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.DeleteScheduleOutput, error)
}

// Config names the schedule group and the target every trigger invokes.
type Config struct {
	GroupName string
	TargetARN string
	RoleARN   string
}

// Scheduler creates and cancels one-shot schedules.
type Scheduler struct {
	api    API
	cfg    Config
	logger *slog.Logger
}

// New creates a scheduler over api.
func New(api API, cfg Config, logger *slog.Logger) *Scheduler {
	return &Scheduler{api: api, cfg: cfg, logger: logger.With("component", "eventbridge_scheduler")}
}

// NewFromConfig builds the client from an AWS config.
func NewFromConfig(awsCfg aws.Config, cfg Config, logger *slog.Logger) *Scheduler {
	return New(scheduler.NewFromConfig(awsCfg), cfg, logger)
}

// CreateOneShot creates a schedule that invokes the target once at executeAt
// and deletes itself afterwards. An existing schedule with the same name and
// expression counts as success.
func (s *Scheduler) CreateOneShot(ctx context.Context, name string, executeAt time.Time, payload domain.Invocation) (domain.ScheduleHandle, error) {
	input, err := json.Marshal(payload)
	if err != nil {
		return domain.ScheduleHandle{}, fmt.Errorf("encode schedule payload: %w", err)
	}

	expr := domain.AtExpression(executeAt)
	handle := domain.ScheduleHandle{
		Name:       name,
		Expression: expr,
		ExecuteAt:  executeAt,
		TargetRef:  s.cfg.TargetARN,
		Payload:    payload,
	}

	_, err = s.api.CreateSchedule(ctx, &scheduler.CreateScheduleInput{
		Name:                       aws.String(name),
		GroupName:                  aws.String(s.cfg.GroupName),
		ScheduleExpression:         aws.String(expr),
		ScheduleExpressionTimezone: aws.String("UTC"),
		FlexibleTimeWindow:         &types.FlexibleTimeWindow{Mode: types.FlexibleTimeWindowModeOff},
		ActionAfterCompletion:      types.ActionAfterCompletionDelete,
		State:                      types.ScheduleStateEnabled,
		Description:                aws.String(fmt.Sprintf("%s for %s", payload.Kind, payload.DiffID)),
		Target: &types.Target{
			Arn:     aws.String(s.cfg.TargetARN),
			RoleArn: aws.String(s.cfg.RoleARN),
			Input:   aws.String(string(input)),
		},
	})

	var conflict *types.ConflictException
	if errors.As(err, &conflict) {
		return s.resolveConflict(ctx, handle)
	}
	if err != nil {
		return domain.ScheduleHandle{}, fmt.Errorf("create schedule %s: %w: %w", name, domain.ErrDependency, err)
	}

	s.logger.InfoContext(ctx, "one-shot scheduled",
		slog.String("name", name),
		slog.String("expression", expr),
	)
	return handle, nil
}

func (s *Scheduler) resolveConflict(ctx context.Context, want domain.ScheduleHandle) (domain.ScheduleHandle, error) {
	out, err := s.api.GetSchedule(ctx, &scheduler.GetScheduleInput{
		Name:      aws.String(want.Name),
		GroupName: aws.String(s.cfg.GroupName),
	})
	if err != nil {
		return domain.ScheduleHandle{}, fmt.Errorf("get existing schedule %s: %w: %w", want.Name, domain.ErrDependency, err)
	}
	if got := aws.ToString(out.ScheduleExpression); got != want.Expression {
		return domain.ScheduleHandle{}, fmt.Errorf("schedule %s exists with %s: %w", want.Name, got, domain.ErrConflict)
	}

	s.logger.InfoContext(ctx, "one-shot already scheduled", slog.String("name", want.Name))
	return want, nil
}

// Cancel deletes a schedule. A schedule that no longer exists is not an error.
func (s *Scheduler) Cancel(ctx context.Context, name string) error {
	_, err := s.api.DeleteSchedule(ctx, &scheduler.DeleteScheduleInput{
		Name:      aws.String(name),
		GroupName: aws.String(s.cfg.GroupName),
	})
	var notFound *types.ResourceNotFoundException
	if err == nil || errors.As(err, &notFound) {
		return nil
	}
	return fmt.Errorf("delete schedule %s: %w: %w", name, domain.ErrDependency, err)
}
