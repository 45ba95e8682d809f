package testhelper

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

var keySeq atomic.Int64

func init() {
	keySeq.Store(rand.Int64N(5_000_000))
}

// UniqueBranchKey returns a swift/branch code pair not used by any other
// caller in this test process.
func UniqueBranchKey() (swiftCode, branchCode string) {
	n := keySeq.Add(1)
	return fmt.Sprintf("%04d", (n/1000)%10000), fmt.Sprintf("%03d", n%1000)
}

// NewBranch returns a branch with a unique key and plausible names.
func NewBranch() domain.BankBranch {
	swift, branch := UniqueBranchKey()
	return domain.BankBranch{
		SwiftCode:      swift,
		BranchCode:     branch,
		BankName:       "テスト" + swift + "銀行",
		BankNameKana:   "ﾃｽﾄ",
		BranchName:     "第" + branch + "支店",
		BranchNameKana: "ﾀﾞｲ",
	}
}

// SeedBranch inserts b into m_bank as an active row.
func SeedBranch(t *testing.T, pool *pgxpool.Pool, b domain.BankBranch) domain.BankBranch {
	t.Helper()

	_, err := pool.Exec(context.Background(),
		`INSERT INTO m_bank (swift_code, branch_code, bank_name, bank_name_kana, branch_name, branch_name_kana)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		b.SwiftCode, b.BranchCode, b.BankName, b.BankNameKana, b.BranchName, b.BranchNameKana,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedBranch insert: %v", err)
	}
	return b
}

// SeedAccount creates a user (active when useStatus is 1) holding an
// account at the given branch. Returns the user id.
func SeedAccount(t *testing.T, pool *pgxpool.Pool, b domain.BankBranch, useStatus int) int64 {
	t.Helper()
	ctx := context.Background()

	var userID int64
	if err := pool.QueryRow(ctx,
		`INSERT INTO "user" (use_status) VALUES ($1) RETURNING id`, useStatus,
	).Scan(&userID); err != nil {
		t.Fatalf("testhelper: SeedAccount insert user: %v", err)
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO user_bank_account (user_id, bank_swift_code, branch_code, bank_name, branch_name)
		 VALUES ($1, $2, $3, $4, $5)`,
		userID, b.SwiftCode, b.BranchCode, b.BankName, b.BranchName,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedAccount insert account: %v", err)
	}
	return userID
}
