package config

import (
	"fmt"
	"time"
	_ "time/tzdata" // Asia/Tokyo must resolve on minimal images

	"github.com/robfig/cron/v3"
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if c.Database.DSN == "" && c.Database.DSNRef == "" {
		return fmt.Errorf("database: dsn or dsn_ref is required")
	}

	if c.Slack.SigningSecret == "" && c.Slack.SigningSecretRef == "" {
		return fmt.Errorf("slack: signing_secret or signing_secret_ref is required")
	}
	if c.Slack.BotToken == "" && c.Slack.BotTokenRef == "" {
		return fmt.Errorf("slack: bot_token or bot_token_ref is required")
	}
	if c.Slack.MaxSkew <= 0 {
		return fmt.Errorf("slack.max_skew must be > 0 (got %s)", c.Slack.MaxSkew)
	}

	if len(c.Auth.AllowedUsers) == 0 && len(c.Auth.AllowedTeams) == 0 {
		return fmt.Errorf("auth: at least one allowed user or team must be configured")
	}

	if c.Server.MaxInFlight <= 0 {
		return fmt.Errorf("server.max_in_flight must be > 0 (got %d)", c.Server.MaxInFlight)
	}

	if err := c.Store.validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.Blob.validate(c.Store); err != nil {
		return fmt.Errorf("blob: %w", err)
	}
	if err := c.Scheduler.validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if err := c.Processor.validate(); err != nil {
		return fmt.Errorf("processor: %w", err)
	}

	if c.Executor.ConnectAttempts < 1 {
		return fmt.Errorf("executor.connect_attempts must be >= 1 (got %d)", c.Executor.ConnectAttempts)
	}

	if c.Executor.LockTimeout < 0 {
		return fmt.Errorf("executor.lock_timeout must be >= 0 (got %s)", c.Executor.LockTimeout)
	}

	if c.Invocation.Secret != "" && len(c.Invocation.Secret) < 32 {
		return fmt.Errorf("invocation.secret must be at least 32 characters (got %d)", len(c.Invocation.Secret))
	}

	return nil
}

func (s *StoreConfig) validate() error {
	switch s.Backend {
	case "dynamodb":
		if s.DynamoTable == "" {
			return fmt.Errorf("dynamo_table is required for the dynamodb backend")
		}
	case "badger":
		if s.BadgerDir == "" && !s.BadgerInMemory {
			return fmt.Errorf("badger_dir is required unless badger_in_memory is set")
		}
	default:
		return fmt.Errorf("unknown backend %q", s.Backend)
	}
	return nil
}

// validate also checks that payloads outlive a restart whenever the
// records referencing them do.
func (b *BlobConfig) validate(store StoreConfig) error {
	switch b.Backend {
	case "s3":
		if b.Bucket == "" {
			return fmt.Errorf("bucket is required for the s3 backend")
		}
	case "badger":
		if store.Backend != "badger" {
			return fmt.Errorf("the badger backend shares the diff store and requires store.backend badger")
		}
	case "memory":
		if store.Backend != "badger" || !store.BadgerInMemory {
			return fmt.Errorf("the memory backend is only allowed with store.badger_in_memory")
		}
	default:
		return fmt.Errorf("unknown backend %q", b.Backend)
	}
	return nil
}

func (s *SchedulerConfig) validate() error {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", s.Timezone, err)
	}
	s.Location = loc

	switch s.Backend {
	case "eventbridge":
		if s.TargetARN == "" || s.RoleARN == "" {
			return fmt.Errorf("target_arn and role_arn are required for the eventbridge backend")
		}
	case "local":
	default:
		return fmt.Errorf("unknown backend %q", s.Backend)
	}

	if s.DailyEnabled {
		if _, err := cron.ParseStandard(s.DailyCron); err != nil {
			return fmt.Errorf("daily_cron %q: %w", s.DailyCron, err)
		}
	}
	return nil
}

func (p *ProcessorConfig) validate() error {
	if p.SourceURL == "" {
		return fmt.Errorf("source_url is required")
	}
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be >= 1 (got %d)", p.MaxAttempts)
	}
	if p.FetchConcurrency < 1 {
		return fmt.Errorf("fetch_concurrency must be >= 1 (got %d)", p.FetchConcurrency)
	}
	if p.DuplicateWindow < 0 {
		return fmt.Errorf("duplicate_window must be >= 0 (got %s)", p.DuplicateWindow)
	}
	return nil
}
