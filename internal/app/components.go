package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/zengin-sync/internal/adapter/blob"
	"github.com/heartmarshall/zengin-sync/internal/adapter/diffstore"
	"github.com/heartmarshall/zengin-sync/internal/adapter/diffstore/badgerstore"
	"github.com/heartmarshall/zengin-sync/internal/adapter/diffstore/dynamo"
	"github.com/heartmarshall/zengin-sync/internal/adapter/postgres"
	"github.com/heartmarshall/zengin-sync/internal/adapter/postgres/audit"
	"github.com/heartmarshall/zengin-sync/internal/adapter/postgres/bank"
	"github.com/heartmarshall/zengin-sync/internal/adapter/provider/zengin"
	"github.com/heartmarshall/zengin-sync/internal/adapter/scheduler/eventbridge"
	"github.com/heartmarshall/zengin-sync/internal/adapter/scheduler/local"
	"github.com/heartmarshall/zengin-sync/internal/adapter/secrets"
	"github.com/heartmarshall/zengin-sync/internal/adapter/slack"
	"github.com/heartmarshall/zengin-sync/internal/auth"
	"github.com/heartmarshall/zengin-sync/internal/config"
	"github.com/heartmarshall/zengin-sync/internal/domain"
	"github.com/heartmarshall/zengin-sync/internal/invocation"
	"github.com/heartmarshall/zengin-sync/internal/metrics"
	"github.com/heartmarshall/zengin-sync/internal/service/approval"
	"github.com/heartmarshall/zengin-sync/internal/service/auditlog"
	"github.com/heartmarshall/zengin-sync/internal/service/executor"
	"github.com/heartmarshall/zengin-sync/internal/service/processor"
	"github.com/heartmarshall/zengin-sync/internal/transport/rest"
)

type blobStore interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
	Get(ctx context.Context, location string) ([]byte, error)
}

type oneShotScheduler interface {
	CreateOneShot(ctx context.Context, name string, executeAt time.Time, payload domain.Invocation) (domain.ScheduleHandle, error)
	Cancel(ctx context.Context, name string) error
}

// Components is the wired object graph shared by every entrypoint.
type Components struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	Pool      *pgxpool.Pool
	Store     diffstore.Store
	Blobs     blobStore
	AuditRepo *audit.Repo
	Audit     *auditlog.Logger
	Notifier  *slack.Notifier

	Processor  *processor.Service
	Executor   *executor.Service
	Approval   *approval.Service
	Dispatcher *invocation.Dispatcher

	// Local is set when the in-process scheduler backend is selected.
	Local *local.Scheduler
	// Badger is set when the embedded store backend is selected.
	Badger *badgerstore.Store
	// Signer is nil when no invocation secret is configured.
	Signer *auth.InvocationSigner

	Checks []rest.Check

	closers []func()
}

// Build resolves secrets and constructs every adapter and service.
// Failures here are startup failures.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	c := &Components{Config: cfg, Logger: logger, Metrics: metrics.New()}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	awsCfg, err := loadAWS(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}

	reader := secrets.NewCachedReader(secrets.NewReaderFromConfig(awsCfg, logger), cfg.Secrets.CacheTTL)
	botToken, err := secrets.Resolve(ctx, reader, cfg.Slack.BotToken, cfg.Slack.BotTokenRef)
	if err != nil {
		return nil, fmt.Errorf("resolve slack bot token: %w", err)
	}
	signingSecret, err := secrets.Resolve(ctx, reader, cfg.Slack.SigningSecret, cfg.Slack.SigningSecretRef)
	if err != nil {
		return nil, fmt.Errorf("resolve slack signing secret: %w", err)
	}
	dbCfg := cfg.Database
	if dbCfg.DSN, err = secrets.Resolve(ctx, reader, dbCfg.DSN, dbCfg.DSNRef); err != nil {
		return nil, fmt.Errorf("resolve database dsn: %w", err)
	}

	c.Pool, err = postgres.NewPool(ctx, dbCfg)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, c.Pool.Close)
	c.Checks = append(c.Checks, rest.Check{Name: "database", Pinger: c.Pool})

	if err := c.openStore(awsCfg); err != nil {
		return nil, err
	}
	c.Checks = append(c.Checks, rest.Check{Name: "diff_store", Pinger: c.Store})

	switch cfg.Blob.Backend {
	case "s3":
		s3 := blob.NewS3StoreFromConfig(awsCfg, cfg.Blob.Bucket, cfg.AWS.Endpoint)
		c.Blobs = s3
		c.Checks = append(c.Checks, rest.Check{Name: "blob_store", Pinger: s3})
	case "badger":
		c.Blobs = c.Badger.Blobs()
	default:
		c.Blobs = blob.NewMemoryStore()
	}

	loc := cfg.Scheduler.Location
	c.Notifier = slack.NewNotifier(botToken, slack.Options{
		ChannelID:   cfg.Slack.ChannelID,
		APIURL:      cfg.Slack.APIURL,
		Timeout:     cfg.Slack.Timeout,
		MaxAttempts: cfg.Slack.MaxAttempts,
		Location:    loc,
	}, logger)
	c.Checks = append(c.Checks, rest.Check{Name: "slack", Pinger: c.Notifier})

	c.AuditRepo = audit.New(c.Pool)
	c.Audit = auditlog.NewLogger(logger, c.AuditRepo, cfg.Audit.WriteTimeout)

	bankRepo := bank.New(c.Pool)
	source := zengin.NewSource(zengin.Options{
		BaseURL:     cfg.Processor.SourceURL,
		Timeout:     cfg.Processor.FetchTimeout,
		MaxAttempts: cfg.Processor.MaxAttempts,
		Concurrency: cfg.Processor.FetchConcurrency,
	}, logger)

	c.Processor = processor.NewService(logger, processor.Config{
		Environment:     cfg.App.Environment,
		BlobPrefix:      cfg.Blob.Prefix,
		MaxAttempts:     cfg.Processor.MaxAttempts,
		ReadTimeout:     cfg.Processor.FetchTimeout,
		DuplicateWindow: cfg.Processor.DuplicateWindow,
		Location:        loc,
	}, source, bankRepo, c.Store, c.Blobs, c.Notifier)

	c.Executor = executor.NewService(logger, executor.Config{
		ConnectAttempts: cfg.Executor.ConnectAttempts,
		UpdatedUser:     cfg.Executor.UpdatedUser,
	}, c.Store, c.Blobs, bankRepo, postgres.NewTxManager(c.Pool, cfg.Executor.LockTimeout), c.Notifier, c.Audit)

	c.Dispatcher = invocation.NewDispatcher(logger, c.Processor, c.Executor, c.Metrics)

	var sched oneShotScheduler
	switch cfg.Scheduler.Backend {
	case "eventbridge":
		sched = eventbridge.NewFromConfig(awsCfg, eventbridge.Config{
			GroupName: cfg.Scheduler.GroupName,
			TargetARN: cfg.Scheduler.TargetARN,
			RoleARN:   cfg.Scheduler.RoleARN,
		}, logger)
	default:
		c.Local = local.New(c.Dispatcher, loc, logger)
		sched = c.Local
	}
	c.Executor.UseScheduleCanceler(sched)

	c.Approval = approval.NewService(logger, approval.Config{
		SigningSecret: signingSecret,
		Location:      loc,
	}, auth.NewSignatureVerifier(cfg.Slack.MaxSkew), cfg.Auth, c.Store, sched, c.Blobs, c.Notifier, c.Audit)

	if cfg.Invocation.Secret != "" {
		c.Signer = auth.NewInvocationSigner(cfg.Invocation.Secret, cfg.Invocation.Issuer, cfg.Invocation.TTL)
	}

	ok = true
	return c, nil
}

func (c *Components) openStore(awsCfg aws.Config) error {
	cfg := c.Config.Store
	switch cfg.Backend {
	case "dynamodb":
		c.Store = dynamo.NewFromConfig(awsCfg, cfg.DynamoTable, cfg.StatusIndex, c.Config.AWS.Endpoint)
		return nil
	default:
		s, err := badgerstore.Open(badgerstore.Config{
			Dir:      cfg.BadgerDir,
			InMemory: cfg.BadgerInMemory,
			Logger:   c.Logger.With("component", "badger"),
		})
		if err != nil {
			return err
		}
		c.closers = append(c.closers, func() {
			if err := s.Close(); err != nil {
				c.Logger.Warn("close badger store", slog.String("error", err.Error()))
			}
		})
		c.Badger = s
		c.Store = s
		return nil
	}
}

// Close releases pools and stores in reverse construction order.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// ResolveDSN returns the database DSN, reading the secret reference when no
// literal DSN is configured.
func ResolveDSN(ctx context.Context, cfg *config.Config, logger *slog.Logger) (string, error) {
	if cfg.Database.DSN != "" {
		return cfg.Database.DSN, nil
	}
	awsCfg, err := loadAWS(ctx, cfg.AWS)
	if err != nil {
		return "", err
	}
	dsn, err := secrets.Resolve(ctx, secrets.NewReaderFromConfig(awsCfg, logger), "", cfg.Database.DSNRef)
	if err != nil {
		return "", fmt.Errorf("resolve database dsn: %w", err)
	}
	return dsn, nil
}

// OpenPool connects to Postgres without building the rest of the graph.
func OpenPool(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	dbCfg := cfg.Database
	dsn, err := ResolveDSN(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	dbCfg.DSN = dsn
	return postgres.NewPool(ctx, dbCfg)
}

func loadAWS(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w: %w", domain.ErrDependency, err)
	}
	return awsCfg, nil
}
