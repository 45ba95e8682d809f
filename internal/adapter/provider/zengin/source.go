// Package zengin fetches the Japanese bank and branch reference dataset
// published by the zengin-code project.
package zengin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

// DefaultBaseURL is the raw source-data directory.
const DefaultBaseURL = "https://raw.githubusercontent.com/zengin-code/source-data/master/data"

// Head office defaults for banks published without branches.
const (
	headOfficeCode = "001"
	headOfficeName = "本店"
	headOfficeKana = "ホンテン"
)

// Options tune the HTTP fetcher.
type Options struct {
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int
	Concurrency int
}

// Source fetches and normalizes the reference dataset.
type Source struct {
	baseURL     string
	httpClient  *http.Client
	maxAttempts int
	concurrency int
	initial     time.Duration
	log         *slog.Logger
}

// NewSource creates a Source. Zero options fall back to the public dataset,
// a 30s timeout, three attempts and eight parallel branch requests.
func NewSource(opts Options, logger *slog.Logger) *Source {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 8
	}
	return &Source{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		httpClient:  &http.Client{Timeout: opts.Timeout},
		maxAttempts: opts.MaxAttempts,
		concurrency: opts.Concurrency,
		initial:     time.Second,
		log:         logger.With("adapter", "zengin"),
	}
}

// FetchAll returns every branch of every bank, normalized and sorted by key.
func (s *Source) FetchAll(ctx context.Context) ([]domain.BankBranch, error) {
	var banks map[string]entry
	if err := s.getJSON(ctx, "/banks.json", &banks); err != nil {
		return nil, fmt.Errorf("zengin: banks: %w", err)
	}
	if len(banks) == 0 {
		return nil, fmt.Errorf("zengin: empty bank list: %w", domain.ErrDependency)
	}

	var (
		mu  sync.Mutex
		out = make([]domain.BankBranch, 0, len(banks)*16)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for code, bank := range banks {
		if bank.Code == "" {
			bank.Code = code
		}
		g.Go(func() error {
			branches, err := s.fetchBranches(gctx, bank)
			if err != nil {
				return err
			}
			mu.Lock()
			out = append(out, branches...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b domain.BankBranch) int { return strings.Compare(a.Key(), b.Key()) })

	s.log.InfoContext(ctx, "reference dataset fetched",
		slog.Int("banks", len(banks)),
		slog.Int("branches", len(out)),
	)
	return out, nil
}

func (s *Source) fetchBranches(ctx context.Context, bank entry) ([]domain.BankBranch, error) {
	var raw map[string]entry
	err := s.getJSON(ctx, "/branches/"+url.PathEscape(bank.Code)+".json", &raw)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("zengin: branches of %s: %w", bank.Code, err)
	}

	if len(raw) == 0 {
		return []domain.BankBranch{newBranch(bank, entry{Code: headOfficeCode, Name: headOfficeName, Kana: headOfficeKana})}, nil
	}

	out := make([]domain.BankBranch, 0, len(raw))
	for code, br := range raw {
		if br.Code == "" {
			br.Code = code
		}
		out = append(out, newBranch(bank, br))
	}
	return out, nil
}

func newBranch(bank, branch entry) domain.BankBranch {
	return domain.BankBranch{
		SwiftCode:      bank.Code,
		BranchCode:     branch.Code,
		BankName:       domain.NormalizeBankName(bank.Name),
		BankNameKana:   domain.HalfWidthKana(bank.Kana),
		BranchName:     domain.NormalizeBranchName(branch.Name),
		BranchNameKana: domain.HalfWidthKana(branch.Kana),
	}
}

// getJSON decodes path into v. 404 is ErrNotFound and is not retried; 5xx
// and transport errors are retried with exponential backoff.
func (s *Source) getJSON(ctx context.Context, path string, v any) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initial
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.maxAttempts-1)), ctx)

	body, err := backoff.RetryWithData(func() ([]byte, error) {
		return s.get(ctx, path)
	}, policy)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w: %w", path, domain.ErrDependency, err)
	}
	return nil
}

func (s *Source) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		s.log.WarnContext(ctx, "zengin request failed", slog.String("path", path), slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %w", domain.ErrDependency, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(fmt.Errorf("%s: %w", path, domain.ErrNotFound))
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%s: status %d: %w", path, resp.StatusCode, domain.ErrDependency)
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(fmt.Errorf("%s: unexpected status %d: %w", path, resp.StatusCode, domain.ErrDependency))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", path, domain.ErrDependency, err)
	}
	return body, nil
}
