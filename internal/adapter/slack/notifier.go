// Package slack posts diff notifications and follow-ups to a Slack channel.
package slack

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	goslack "github.com/slack-go/slack"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

// Options configure the notifier.
type Options struct {
	ChannelID   string
	APIURL      string
	Timeout     time.Duration
	MaxAttempts int
	Location    *time.Location
}

// Notifier is the messaging client for one channel.
type Notifier struct {
	api         *goslack.Client
	channel     string
	loc         *time.Location
	maxAttempts int
	initial     time.Duration
	now         func() time.Time
	log         *slog.Logger
}

// NewNotifier creates a Notifier authenticated with a bot token.
func NewNotifier(token string, opts Options, logger *slog.Logger) *Notifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	clientOpts := []goslack.Option{goslack.OptionHTTPClient(&http.Client{Timeout: opts.Timeout})}
	if opts.APIURL != "" {
		clientOpts = append(clientOpts, goslack.OptionAPIURL(strings.TrimRight(opts.APIURL, "/")+"/"))
	}

	return &Notifier{
		api:         goslack.New(token, clientOpts...),
		channel:     opts.ChannelID,
		loc:         opts.Location,
		maxAttempts: opts.MaxAttempts,
		initial:     500 * time.Millisecond,
		now:         time.Now,
		log:         logger.With("adapter", "slack"),
	}
}

// PostDiff posts the approval request for rec and returns its message reference.
func (n *Notifier) PostDiff(ctx context.Context, rec *domain.DiffRecord) (domain.MessageRef, error) {
	return n.post(ctx, "", diffFallbackText(rec), diffBlocks(rec)...)
}

// PostNoChanges reports a run that found nothing to do.
func (n *Notifier) PostNoChanges(ctx context.Context) error {
	_, err := n.post(ctx, "", "銀行情報の更新はありませんでした", noChangesBlocks(n.now().In(n.loc))...)
	return err
}

// PostRunFailed reports a detection run that could not complete. stage names
// the failing step; raw errors are never included.
func (n *Notifier) PostRunFailed(ctx context.Context, stage, correlationID string) error {
	text := fmt.Sprintf("🚨 *差分検出エラー*\n*タイプ*: %s\n*時刻*: %s JST\n_Request ID: %s_",
		stage, n.now().In(n.loc).Format(time.DateTime), correlationID)
	_, err := n.post(ctx, "", text)
	return err
}

// UpdateDecision replaces the buttons of the original message with the outcome.
func (n *Notifier) UpdateDecision(ctx context.Context, ref domain.MessageRef, rec *domain.DiffRecord) error {
	text := decisionText(rec, n.loc)
	blocks := []goslack.Block{section(text)}
	return n.retry(ctx, "chat.update", func() error {
		_, _, _, err := n.api.UpdateMessageContext(ctx, channelOf(ref, n.channel), ref.TS,
			goslack.MsgOptionText(text, false),
			goslack.MsgOptionBlocks(blocks...),
		)
		return err
	})
}

// ReplyInThread posts text under the original message.
func (n *Notifier) ReplyInThread(ctx context.Context, ref domain.MessageRef, text string) error {
	_, err := n.post(ctx, ref.TS, text)
	return err
}

// PostDuplicateWarning tells the thread that an action hit a diff that was
// already decided.
func (n *Notifier) PostDuplicateWarning(ctx context.Context, ref domain.MessageRef, userID, action string, status domain.DiffStatus) error {
	text := fmt.Sprintf("⚠️ *重複操作検知*\n*ユーザー*: <@%s>\n*操作*: %s\n*状態*: %s\n*時刻*: %s JST",
		userID, action, statusLabel(status), n.now().In(n.loc).Format(time.DateTime))
	return n.ReplyInThread(ctx, ref, text)
}

// PostCompletion reports the execution outcome in the original thread.
func (n *Notifier) PostCompletion(ctx context.Context, ref domain.MessageRef, rec *domain.DiffRecord, res domain.ExecutionResult) error {
	return n.ReplyInThread(ctx, ref, completionText(rec, res, n.now().In(n.loc)))
}

// UploadCSV attaches a CSV file to the thread of ref.
func (n *Notifier) UploadCSV(ctx context.Context, ref domain.MessageRef, filename string, data []byte) error {
	return n.retry(ctx, "files.upload", func() error {
		_, err := n.api.UploadFileV2Context(ctx, goslack.UploadFileV2Parameters{
			Channel:         channelOf(ref, n.channel),
			ThreadTimestamp: ref.TS,
			Reader:          bytes.NewReader(data),
			FileSize:        len(data),
			Filename:        filename,
			Title:           "全銀データ差分一覧",
			InitialComment:  "📄 全ての差分データをCSVファイルで出力しました。",
		})
		return err
	})
}

func (n *Notifier) post(ctx context.Context, threadTS, text string, blocks ...goslack.Block) (domain.MessageRef, error) {
	opts := []goslack.MsgOption{goslack.MsgOptionText(text, false)}
	if len(blocks) > 0 {
		opts = append(opts, goslack.MsgOptionBlocks(blocks...))
	}
	if threadTS != "" {
		opts = append(opts, goslack.MsgOptionTS(threadTS))
	}

	var ref domain.MessageRef
	err := n.retry(ctx, "chat.postMessage", func() error {
		channel, ts, err := n.api.PostMessageContext(ctx, n.channel, opts...)
		if err != nil {
			return err
		}
		ref = domain.MessageRef{Channel: channel, TS: ts}
		return nil
	})
	return ref, err
}

// Ping checks the bot token with auth.test. It is not retried.
func (n *Notifier) Ping(ctx context.Context) error {
	if _, err := n.api.AuthTestContext(ctx); err != nil {
		return fmt.Errorf("slack auth.test: %w: %w", domain.ErrDependency, err)
	}
	return nil
}

// retry runs op with exponential backoff. Rate limits, 5xx responses and
// transport errors are retried; Slack API errors are not.
func (n *Notifier) retry(ctx context.Context, method string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = n.initial
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(n.maxAttempts-1)), ctx)

	err := backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		n.log.WarnContext(ctx, "slack call failed, retrying",
			slog.String("method", method),
			slog.String("error", err.Error()),
		)
		return err
	}, policy)
	if err != nil {
		n.log.ErrorContext(ctx, "slack call failed",
			slog.String("method", method),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("slack %s: %w: %w", method, domain.ErrDependency, err)
	}
	return nil
}

func retryable(err error) bool {
	var rateLimited *goslack.RateLimitedError
	if errors.As(err, &rateLimited) {
		return true
	}
	var status goslack.StatusCodeError
	if errors.As(err, &status) {
		return status.Code >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func channelOf(ref domain.MessageRef, fallback string) string {
	if ref.Channel != "" {
		return ref.Channel
	}
	return fallback
}
