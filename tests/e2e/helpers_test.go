//go:build e2e

package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/zengin-sync/internal/adapter/postgres/testhelper"
	"github.com/heartmarshall/zengin-sync/internal/app"
	"github.com/heartmarshall/zengin-sync/internal/auth"
	"github.com/heartmarshall/zengin-sync/internal/config"
	"github.com/heartmarshall/zengin-sync/internal/domain"
)

const (
	signingSecret    = "e2e-slack-signing-secret"
	invocationSecret = "e2e-invocation-secret-at-least-32-chars"
	approverID       = "UAPPROVER"
	channelID        = "C0E2E"
)

// ---------------------------------------------------------------------------
// testServer wraps the full-stack HTTP server for E2E tests.
// ---------------------------------------------------------------------------

type testServer struct {
	URL    string
	Client *http.Client
	Pool   *pgxpool.Pool
	C      *app.Components
	Slack  *fakeSlack
}

// testLogWriter adapts testing.T to io.Writer for slog.
type testLogWriter struct{ t *testing.T }

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

// ---------------------------------------------------------------------------
// Fake messaging API
// ---------------------------------------------------------------------------

// fakeSlack records form posts per API method and answers like the real API.
type fakeSlack struct {
	mu    sync.Mutex
	forms map[string][]map[string]string
}

func (f *fakeSlack) calls(method string) []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forms[method]
}

func (f *fakeSlack) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := strings.TrimPrefix(r.URL.Path, "/")
	_ = r.ParseForm()
	form := map[string]string{}
	for k := range r.Form {
		form[k] = r.Form.Get(k)
	}

	f.mu.Lock()
	if f.forms == nil {
		f.forms = map[string][]map[string]string{}
	}
	f.forms[method] = append(f.forms[method], form)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "chat.postMessage":
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "channel": form["channel"], "ts": "1700000000.000100"})
	case "chat.update":
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "channel": form["channel"], "ts": form["ts"]})
	case "auth.test":
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "user_id": "UBOT", "team_id": "T1"})
	default:
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "unknown_method"})
	}
}

// ---------------------------------------------------------------------------
// Fake reference dataset
// ---------------------------------------------------------------------------

type sourceEntry struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Kana string `json:"kana"`
}

// fakeSource serves banks.json and branches/<code>.json. Banks without a
// branch list answer 404, like banks with only a head office.
type fakeSource struct {
	banks    map[string]sourceEntry
	branches map[string]map[string]sourceEntry
}

func (s *fakeSource) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var v any
	switch {
	case r.URL.Path == "/banks.json":
		v = s.banks
	case strings.HasPrefix(r.URL.Path, "/branches/"):
		code := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/branches/"), ".json")
		list, ok := s.branches[code]
		if !ok {
			http.NotFound(w, r)
			return
		}
		v = list
	default:
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// ---------------------------------------------------------------------------
// setupTestServer bootstraps the full application stack from a YAML config
// backed by a real PostgreSQL container (shared via testhelper), an
// in-memory diff store, the in-process scheduler and fake upstream APIs.
// ---------------------------------------------------------------------------

func setupTestServer(t *testing.T, src *fakeSource) *testServer {
	t.Helper()

	dsn := testhelper.DSN(t)

	slackAPI := &fakeSlack{}
	slackSrv := httptest.NewServer(slackAPI)
	t.Cleanup(slackSrv.Close)

	if src == nil {
		src = &fakeSource{}
	}
	sourceSrv := httptest.NewServer(src)
	t.Cleanup(sourceSrv.Close)

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	yaml := fmt.Sprintf(`app:
  environment: e2e
server:
  max_in_flight: 8
  rate_limit_rps: 100
  rate_limit_burst: 100
database:
  dsn: %q
slack:
  bot_token: xoxb-e2e
  signing_secret: %q
  channel_id: %s
  api_url: %q
  max_attempts: 1
  timeout: 5s
auth:
  allowed_users: [%s]
store:
  backend: badger
  badger_in_memory: true
blob:
  backend: memory
scheduler:
  backend: local
  timezone: Asia/Tokyo
  daily_enabled: false
processor:
  source_url: %q
  max_attempts: 1
  fetch_timeout: 5s
invocation:
  secret: %q
`, dsn, signingSecret, channelID, slackSrv.URL+"/", approverID, sourceSrv.URL, invocationSecret)
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o600))

	cfg, err := config.LoadFrom(cfgPath)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(testLogWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))

	c, err := app.Build(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	handler, stop := app.NewRouter(c)
	t.Cleanup(stop)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		URL:    srv.URL,
		Client: srv.Client(),
		Pool:   c.Pool,
		C:      c,
		Slack:  slackAPI,
	}
}

// resetBankTables empties the master and account tables so each test sees
// only the rows it seeds.
func resetBankTables(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `TRUNCATE user_bank_account, "user", m_bank RESTART IDENTITY`)
	require.NoError(t, err)
}

// ---------------------------------------------------------------------------
// Request helpers
// ---------------------------------------------------------------------------

// press sends a signed button press to /interactive and returns status and
// decoded body.
func (ts *testServer) press(t *testing.T, userID, actionID, value string) (int, map[string]any) {
	t.Helper()

	payload, err := json.Marshal(map[string]any{
		"type":      "block_actions",
		"user":      map[string]any{"id": userID, "name": "approver"},
		"team":      map[string]any{"id": "T1"},
		"channel":   map[string]any{"id": channelID},
		"container": map[string]any{"type": "message", "message_ts": "1700000000.000100", "channel_id": channelID},
		"message":   map[string]any{"ts": "1700000000.000100"},
		"actions": []map[string]any{{
			"action_id": actionID,
			"block_id":  "diff_actions",
			"type":      "button",
			"value":     value,
		}},
	})
	require.NoError(t, err)

	body := []byte(url.Values{"payload": {string(payload)}}.Encode())
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/interactive", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	auth.SignRequest(req.Header, signingSecret, time.Now(), body)

	return ts.do(t, req)
}

// invoke posts a signed invocation to the internal endpoint.
func (ts *testServer) invoke(t *testing.T, inv domain.Invocation) (int, map[string]any) {
	t.Helper()

	token, err := ts.C.Signer.Sign(inv)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/internal/invocations", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	return ts.do(t, req)
}

func (ts *testServer) do(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()

	resp, err := ts.Client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

// auditEvents returns the event types recorded for diffID.
func (ts *testServer) auditEvents(t *testing.T, diffID string) []domain.AuditEventType {
	t.Helper()

	entries, err := ts.C.AuditRepo.List(context.Background(), domain.AuditFilter{Limit: 200})
	require.NoError(t, err)

	var out []domain.AuditEventType
	for _, e := range entries {
		if e.DiffID == diffID {
			out = append(out, e.EventType)
		}
	}
	return out
}

// branchRow reads one master row regardless of its deleted flag.
func branchRow(t *testing.T, pool *pgxpool.Pool, swift, branch string) (name string, deleted int) {
	t.Helper()
	err := pool.QueryRow(context.Background(),
		`SELECT branch_name, is_deleted FROM m_bank WHERE swift_code = $1 AND branch_code = $2`,
		swift, branch,
	).Scan(&name, &deleted)
	require.NoError(t, err)
	return name, deleted
}
