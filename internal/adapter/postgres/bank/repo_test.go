package bank_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/zengin-sync/internal/adapter/postgres"
	"github.com/heartmarshall/zengin-sync/internal/adapter/postgres/bank"
	"github.com/heartmarshall/zengin-sync/internal/adapter/postgres/testhelper"
	"github.com/heartmarshall/zengin-sync/internal/domain"
)

func newRepo(t *testing.T) (*bank.Repo, *postgres.TxManager, *pgxpool.Pool) {
	t.Helper()
	pool := testhelper.SetupTestDB(t)
	return bank.New(pool), postgres.NewTxManager(pool, time.Second), pool
}

type row struct {
	domain.BankBranch
	IsDeleted   int
	UpdatedUser *string
}

func loadRow(t *testing.T, pool *pgxpool.Pool, swift, branch string) (row, bool) {
	t.Helper()
	var r row
	err := pool.QueryRow(context.Background(),
		`SELECT swift_code, branch_code, bank_name, bank_name_kana, branch_name, branch_name_kana, is_deleted, updated_user
		 FROM m_bank WHERE swift_code = $1 AND branch_code = $2`, swift, branch,
	).Scan(&r.SwiftCode, &r.BranchCode, &r.BankName, &r.BankNameKana, &r.BranchName, &r.BranchNameKana, &r.IsDeleted, &r.UpdatedUser)
	if err != nil {
		return row{}, false
	}
	return r, true
}

func addition(b domain.BankBranch) domain.Change {
	return domain.Change{Kind: domain.ChangeAddition, Key: b.Key(), After: &b}
}

func update(before, after domain.BankBranch) domain.Change {
	return domain.Change{Kind: domain.ChangeUpdate, Key: after.Key(), Before: &before, After: &after}
}

func deletion(b domain.BankBranch) domain.Change {
	return domain.Change{Kind: domain.ChangeDeletion, Key: b.Key(), Before: &b}
}

// ---------------------------------------------------------------------------
// ListActive
// ---------------------------------------------------------------------------

func TestRepo_ListActive_SkipsDeleted(t *testing.T) {
	t.Parallel()
	repo, _, pool := newRepo(t)
	ctx := context.Background()

	live := testhelper.SeedBranch(t, pool, testhelper.NewBranch())
	gone := testhelper.SeedBranch(t, pool, testhelper.NewBranch())
	if _, err := pool.Exec(ctx, `UPDATE m_bank SET is_deleted = 1 WHERE swift_code = $1 AND branch_code = $2`,
		gone.SwiftCode, gone.BranchCode); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	got, err := repo.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive: unexpected error: %v", err)
	}

	var sawLive, sawGone bool
	for i, b := range got {
		if i > 0 && got[i-1].Key() > b.Key() {
			t.Errorf("rows not ordered by key: %s before %s", got[i-1].Key(), b.Key())
		}
		switch b.Key() {
		case live.Key():
			sawLive = true
			if b != live {
				t.Errorf("row mismatch: got %+v, want %+v", b, live)
			}
		case gone.Key():
			sawGone = true
		}
	}
	if !sawLive {
		t.Error("active row missing from ListActive")
	}
	if sawGone {
		t.Error("deleted row returned by ListActive")
	}
}

// ---------------------------------------------------------------------------
// ImpactStats
// ---------------------------------------------------------------------------

func TestRepo_ImpactStats(t *testing.T) {
	t.Parallel()
	repo, _, pool := newRepo(t)
	ctx := context.Background()

	busy := testhelper.SeedBranch(t, pool, testhelper.NewBranch())
	quiet := testhelper.SeedBranch(t, pool, testhelper.NewBranch())

	testhelper.SeedAccount(t, pool, busy, 1)
	testhelper.SeedAccount(t, pool, busy, 1)
	testhelper.SeedAccount(t, pool, busy, 0)

	got, err := repo.ImpactStats(ctx, []string{busy.Key(), quiet.Key(), "malformed"})
	if err != nil {
		t.Fatalf("ImpactStats: unexpected error: %v", err)
	}

	if im := got[busy.Key()]; im.TotalAccounts != 3 || im.ActiveUsers != 2 {
		t.Errorf("busy impact: got %+v, want {3 2}", im)
	}
	if _, ok := got[quiet.Key()]; ok {
		t.Errorf("branch without accounts should be absent, got %+v", got[quiet.Key()])
	}
}

func TestRepo_ImpactStats_Empty(t *testing.T) {
	t.Parallel()
	repo, _, _ := newRepo(t)

	got, err := repo.ImpactStats(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty map, got %v", got)
	}
}

// ---------------------------------------------------------------------------
// Apply
// ---------------------------------------------------------------------------

func TestRepo_Apply_RequiresTransaction(t *testing.T) {
	t.Parallel()
	repo, _, _ := newRepo(t)

	_, err := repo.Apply(context.Background(), []domain.Change{addition(testhelper.NewBranch())}, "tester")
	if !errors.Is(err, bank.ErrNoTransaction) {
		t.Fatalf("expected ErrNoTransaction, got %v", err)
	}
}

func TestRepo_Apply_AllKinds(t *testing.T) {
	t.Parallel()
	repo, tm, pool := newRepo(t)
	ctx := context.Background()

	added := testhelper.NewBranch()
	before := testhelper.SeedBranch(t, pool, testhelper.NewBranch())
	after := before
	after.BankName = "新名称銀行"
	after.BranchName = "新支店"
	userID := testhelper.SeedAccount(t, pool, before, 1)
	removed := testhelper.SeedBranch(t, pool, testhelper.NewBranch())

	var res domain.ApplyResult
	err := tm.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		res, err = repo.Apply(ctx, []domain.Change{addition(added), update(before, after), deletion(removed)}, "zengin-updater")
		return err
	})
	if err != nil {
		t.Fatalf("Apply: unexpected error: %v", err)
	}

	// insert + master update + account propagation + delete
	if res.RowsAffected != 4 {
		t.Errorf("RowsAffected: got %d, want 4", res.RowsAffected)
	}
	if len(res.Unmatched) != 0 {
		t.Errorf("Unmatched: got %v, want none", res.Unmatched)
	}

	if r, ok := loadRow(t, pool, added.SwiftCode, added.BranchCode); !ok || r.IsDeleted != 0 || r.BankName != added.BankName {
		t.Errorf("added row: got %+v (found=%v)", r, ok)
	}
	r, ok := loadRow(t, pool, after.SwiftCode, after.BranchCode)
	if !ok || r.BankName != "新名称銀行" || r.BranchName != "新支店" {
		t.Errorf("updated row: got %+v", r)
	}
	if r.UpdatedUser == nil || *r.UpdatedUser != "zengin-updater" {
		t.Errorf("updated_user: got %v", r.UpdatedUser)
	}
	if r, ok := loadRow(t, pool, removed.SwiftCode, removed.BranchCode); !ok || r.IsDeleted != 1 {
		t.Errorf("removed row should be logically deleted, got %+v (found=%v)", r, ok)
	}

	var accountBank string
	if err := pool.QueryRow(ctx, `SELECT bank_name FROM user_bank_account WHERE user_id = $1`, userID).Scan(&accountBank); err != nil {
		t.Fatalf("load account: %v", err)
	}
	if accountBank != "新名称銀行" {
		t.Errorf("account bank_name: got %q, want propagated name", accountBank)
	}
}

func TestRepo_Apply_AdditionRevivesDeletedRow(t *testing.T) {
	t.Parallel()
	repo, tm, pool := newRepo(t)
	ctx := context.Background()

	b := testhelper.SeedBranch(t, pool, testhelper.NewBranch())
	if _, err := pool.Exec(ctx, `UPDATE m_bank SET is_deleted = 1 WHERE swift_code = $1 AND branch_code = $2`,
		b.SwiftCode, b.BranchCode); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	b.BranchName = "復活支店"

	err := tm.RunInTx(ctx, func(ctx context.Context) error {
		_, err := repo.Apply(ctx, []domain.Change{addition(b)}, "zengin-updater")
		return err
	})
	if err != nil {
		t.Fatalf("Apply: unexpected error: %v", err)
	}

	r, ok := loadRow(t, pool, b.SwiftCode, b.BranchCode)
	if !ok || r.IsDeleted != 0 || r.BranchName != "復活支店" {
		t.Errorf("row should be revived with new name, got %+v", r)
	}
}

func TestRepo_Apply_UnmatchedKeysAreReported(t *testing.T) {
	t.Parallel()
	repo, tm, _ := newRepo(t)

	missing := testhelper.NewBranch()
	var res domain.ApplyResult
	err := tm.RunInTx(context.Background(), func(ctx context.Context) error {
		var err error
		res, err = repo.Apply(ctx, []domain.Change{update(missing, missing), deletion(missing)}, "zengin-updater")
		return err
	})
	if err != nil {
		t.Fatalf("Apply: unexpected error: %v", err)
	}
	if len(res.Unmatched) != 2 {
		t.Errorf("Unmatched: got %v, want both keys", res.Unmatched)
	}
}

func TestRepo_Apply_FailureRollsBackEverything(t *testing.T) {
	t.Parallel()
	repo, tm, pool := newRepo(t)
	ctx := context.Background()

	first := testhelper.NewBranch()
	second := testhelper.NewBranch()
	existing := testhelper.SeedBranch(t, pool, testhelper.NewBranch())

	bad := testhelper.NewBranch()
	bad.BranchCode = "99999" // exceeds VARCHAR(3)

	changes := []domain.Change{
		addition(first),
		addition(second),
		deletion(existing),
		addition(bad),
	}

	err := tm.RunInTx(ctx, func(ctx context.Context) error {
		_, err := repo.Apply(ctx, changes, "zengin-updater")
		return err
	})
	if err == nil {
		t.Fatal("expected error from oversized branch code")
	}

	if _, ok := loadRow(t, pool, first.SwiftCode, first.BranchCode); ok {
		t.Error("first addition should be rolled back")
	}
	if _, ok := loadRow(t, pool, second.SwiftCode, second.BranchCode); ok {
		t.Error("second addition should be rolled back")
	}
	if r, _ := loadRow(t, pool, existing.SwiftCode, existing.BranchCode); r.IsDeleted != 0 {
		t.Error("deletion should be rolled back")
	}
}
