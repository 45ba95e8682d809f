package config

import (
	"slices"
	"time"
)

// Config is the root application configuration.
type Config struct {
	App        AppConfig        `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Log        LogConfig        `yaml:"log"`
	Slack      SlackConfig      `yaml:"slack"`
	Auth       AuthConfig       `yaml:"auth"`
	AWS        AWSConfig        `yaml:"aws"`
	Store      StoreConfig      `yaml:"store"`
	Blob       BlobConfig       `yaml:"blob"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Processor  ProcessorConfig  `yaml:"processor"`
	Executor   ExecutorConfig   `yaml:"executor"`
	Audit      AuditConfig      `yaml:"audit"`
	Secrets    SecretsConfig    `yaml:"secrets"`
	Invocation InvocationConfig `yaml:"invocation"`
}

// AppConfig holds deployment identity.
type AppConfig struct {
	Environment string `yaml:"environment" env:"APP_ENV" env-default:"dev"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
	MaxInFlight     int64         `yaml:"max_in_flight"    env:"SERVER_MAX_IN_FLIGHT"    env-default:"32"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps"   env:"SERVER_RATE_LIMIT_RPS"   env-default:"10"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" env:"SERVER_RATE_LIMIT_BURST" env-default:"20"`
}

// DatabaseConfig holds PostgreSQL connection settings. The DSN is given
// directly or as a secret reference resolved at startup.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"`
	DSNRef          string        `yaml:"dsn_ref"            env:"DATABASE_DSN_REF"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"10"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"1"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// SlackConfig holds messaging settings. Token and signing secret are given
// either directly or as secret references resolved at startup.
type SlackConfig struct {
	BotToken         string        `yaml:"bot_token"          env:"SLACK_BOT_TOKEN"`
	BotTokenRef      string        `yaml:"bot_token_ref"      env:"SLACK_BOT_TOKEN_REF"`
	SigningSecret    string        `yaml:"signing_secret"     env:"SLACK_SIGNING_SECRET"`
	SigningSecretRef string        `yaml:"signing_secret_ref" env:"SLACK_SIGNING_SECRET_REF"`
	ChannelID        string        `yaml:"channel_id"         env:"SLACK_CHANNEL_ID"         env-required:"true"`
	APIURL           string        `yaml:"api_url"            env:"SLACK_API_URL"`
	Timeout          time.Duration `yaml:"timeout"            env:"SLACK_TIMEOUT"            env-default:"30s"`
	MaxAttempts      int           `yaml:"max_attempts"       env:"SLACK_MAX_ATTEMPTS"       env-default:"3"`
	MaxSkew          time.Duration `yaml:"max_skew"           env:"SLACK_MAX_SKEW"           env-default:"5m"`
}

// AuthConfig holds the approver allow-list.
type AuthConfig struct {
	AllowedUsers []string `yaml:"allowed_users" env:"AUTH_ALLOWED_USERS" env-separator:","`
	AllowedTeams []string `yaml:"allowed_teams" env:"AUTH_ALLOWED_TEAMS" env-separator:","`
}

// IsAllowed reports whether an actor may act on diffs. Each non-empty list
// must contain the corresponding id.
func (c AuthConfig) IsAllowed(userID, teamID string) bool {
	if len(c.AllowedUsers) > 0 && !slices.Contains(c.AllowedUsers, userID) {
		return false
	}
	if len(c.AllowedTeams) > 0 && !slices.Contains(c.AllowedTeams, teamID) {
		return false
	}
	return len(c.AllowedUsers) > 0 || len(c.AllowedTeams) > 0
}

// AWSConfig holds shared AWS client settings. Static credentials are
// optional; the default chain is used when they are empty.
type AWSConfig struct {
	Region          string `yaml:"region"            env:"AWS_REGION"            env-default:"ap-northeast-1"`
	Endpoint        string `yaml:"endpoint"          env:"AWS_ENDPOINT_URL"`
	AccessKeyID     string `yaml:"access_key_id"     env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"AWS_SECRET_ACCESS_KEY"`
}

// StoreConfig selects the diff store backend.
type StoreConfig struct {
	Backend        string `yaml:"backend"          env:"STORE_BACKEND"          env-default:"badger"`
	DynamoTable    string `yaml:"dynamo_table"     env:"STORE_DYNAMO_TABLE"     env-default:"zengin-diffs"`
	StatusIndex    string `yaml:"status_index"     env:"STORE_STATUS_INDEX"     env-default:"status-timestamp-index"`
	BadgerDir      string `yaml:"badger_dir"       env:"STORE_BADGER_DIR"       env-default:"./data/diffs"`
	BadgerInMemory bool   `yaml:"badger_in_memory" env:"STORE_BADGER_IN_MEMORY" env-default:"false"`
}

// BlobConfig selects the overflow blob store.
type BlobConfig struct {
	Backend string `yaml:"backend" env:"BLOB_BACKEND" env-default:"badger"`
	Bucket  string `yaml:"bucket"  env:"BLOB_BUCKET"`
	Prefix  string `yaml:"prefix"  env:"BLOB_PREFIX"  env-default:"diffs"`
}

// SchedulerConfig selects the one-shot scheduler backend and the daily trigger.
type SchedulerConfig struct {
	Backend      string `yaml:"backend"       env:"SCHEDULER_BACKEND"       env-default:"local"`
	GroupName    string `yaml:"group_name"    env:"SCHEDULER_GROUP_NAME"    env-default:"default"`
	TargetARN    string `yaml:"target_arn"    env:"SCHEDULER_TARGET_ARN"`
	RoleARN      string `yaml:"role_arn"      env:"SCHEDULER_ROLE_ARN"`
	Timezone     string `yaml:"timezone"      env:"SCHEDULER_TIMEZONE"      env-default:"Asia/Tokyo"`
	DailyCron    string `yaml:"daily_cron"    env:"SCHEDULER_DAILY_CRON"    env-default:"0 9 * * *"`
	DailyEnabled bool   `yaml:"daily_enabled" env:"SCHEDULER_DAILY_ENABLED" env-default:"true"`

	// Location is parsed from Timezone during validation.
	Location *time.Location `yaml:"-" env:"-"`
}

// ProcessorConfig holds diff detection settings.
type ProcessorConfig struct {
	SourceURL        string        `yaml:"source_url"        env:"PROCESSOR_SOURCE_URL"        env-default:"https://raw.githubusercontent.com/zengin-code/source-data/master/data"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout"     env:"PROCESSOR_FETCH_TIMEOUT"     env-default:"30s"`
	MaxAttempts      int           `yaml:"max_attempts"      env:"PROCESSOR_MAX_ATTEMPTS"      env-default:"3"`
	FetchConcurrency int           `yaml:"fetch_concurrency" env:"PROCESSOR_FETCH_CONCURRENCY" env-default:"8"`
	DuplicateWindow  time.Duration `yaml:"duplicate_window"  env:"PROCESSOR_DUPLICATE_WINDOW"  env-default:"5m"`
}

// ExecutorConfig holds diff execution settings.
type ExecutorConfig struct {
	ConnectAttempts int           `yaml:"connect_attempts" env:"EXECUTOR_CONNECT_ATTEMPTS" env-default:"3"`
	UpdatedUser     string        `yaml:"updated_user"     env:"EXECUTOR_UPDATED_USER"     env-default:"zengin-updater"`
	LockTimeout     time.Duration `yaml:"lock_timeout"     env:"EXECUTOR_LOCK_TIMEOUT"     env-default:"10s"`
}

// AuditConfig holds audit log settings.
type AuditConfig struct {
	WriteTimeout time.Duration `yaml:"write_timeout" env:"AUDIT_WRITE_TIMEOUT" env-default:"2s"`
}

// SecretsConfig holds secret reader settings.
type SecretsConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl" env:"SECRETS_CACHE_TTL" env-default:"5m"`
}

// InvocationConfig holds settings for signed invocation tokens accepted by
// the internal HTTP entrypoint. An empty secret disables the endpoint.
type InvocationConfig struct {
	Secret string        `yaml:"secret" env:"INVOCATION_SECRET"`
	Issuer string        `yaml:"issuer" env:"INVOCATION_ISSUER" env-default:"zengin-sync"`
	TTL    time.Duration `yaml:"ttl"    env:"INVOCATION_TTL"    env-default:"15m"`
}
