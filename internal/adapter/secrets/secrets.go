// Package secrets resolves secret references from AWS Secrets Manager or the
// process environment.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

// EnvPrefix marks a reference that is read from an environment variable.
const EnvPrefix = "env:"

// API is the subset of the Secrets Manager client used here.
type API interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Reader resolves a reference of the form "name-or-arn", "name-or-arn#jsonKey"
// or "env:NAME".
type Reader struct {
	api    API
	log    *slog.Logger
	getenv func(string) (string, bool)
}

// NewReader creates a reader. api may be nil when only env references are used.
func NewReader(api API, logger *slog.Logger) *Reader {
	return &Reader{api: api, log: logger.With("adapter", "secrets"), getenv: os.LookupEnv}
}

// NewReaderFromConfig builds the Secrets Manager client from an AWS config.
func NewReaderFromConfig(cfg aws.Config, logger *slog.Logger) *Reader {
	return NewReader(secretsmanager.NewFromConfig(cfg), logger)
}

// Get returns the secret value for ref.
func (r *Reader) Get(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", domain.NewValidationError("secret_ref", "empty reference")
	}

	if name, ok := strings.CutPrefix(ref, EnvPrefix); ok {
		v, found := r.getenv(name)
		if !found || v == "" {
			return "", fmt.Errorf("secret env %s: %w", name, domain.ErrNotFound)
		}
		return v, nil
	}

	if r.api == nil {
		return "", fmt.Errorf("secret %s: no secrets manager client: %w", ref, domain.ErrDependency)
	}

	id, key, hasKey := strings.Cut(ref, "#")
	out, err := r.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(id)})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("secret %s: %w", id, domain.ErrNotFound)
		}
		r.log.ErrorContext(ctx, "get secret failed", slog.String("secret_id", id), slog.String("error", err.Error()))
		return "", fmt.Errorf("secret %s: %w: %w", id, domain.ErrDependency, err)
	}

	value := aws.ToString(out.SecretString)
	if !hasKey {
		return value, nil
	}
	return extractKey(id, value, key)
}

func extractKey(id, raw, key string) (string, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return "", fmt.Errorf("secret %s is not a JSON object: %w", id, domain.NewValidationError("secret_ref", err.Error()))
	}
	v, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("secret %s has no key %q: %w", id, key, domain.ErrNotFound)
	}
	switch s := v.(type) {
	case string:
		return s, nil
	default:
		b, _ := json.Marshal(s)
		return string(b), nil
	}
}

// Getter is satisfied by Reader and CachedReader.
type Getter interface {
	Get(ctx context.Context, ref string) (string, error)
}

type cacheEntry struct {
	value   string
	expires time.Time
}

// CachedReader keeps resolved values for ttl. A zero ttl disables caching.
type CachedReader struct {
	next Getter
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCachedReader wraps next with a bounded TTL cache.
func NewCachedReader(next Getter, ttl time.Duration) *CachedReader {
	return &CachedReader{next: next, ttl: ttl, now: time.Now, entries: make(map[string]cacheEntry)}
}

// Get returns a cached value while it is fresh and refreshes it otherwise.
// Errors are never cached.
func (c *CachedReader) Get(ctx context.Context, ref string) (string, error) {
	if c.ttl <= 0 {
		return c.next.Get(ctx, ref)
	}

	c.mu.Lock()
	e, ok := c.entries[ref]
	c.mu.Unlock()
	if ok && c.now().Before(e.expires) {
		return e.value, nil
	}

	v, err := c.next.Get(ctx, ref)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[ref] = cacheEntry{value: v, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return v, nil
}

// Resolve returns direct when it is set and otherwise reads ref.
func Resolve(ctx context.Context, g Getter, direct, ref string) (string, error) {
	if direct != "" {
		return direct, nil
	}
	if ref == "" {
		return "", domain.NewValidationError("secret_ref", "neither value nor reference configured")
	}
	return g.Get(ctx, ref)
}
