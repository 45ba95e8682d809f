// Package bank implements bank master reads and change application using PostgreSQL.
// Fixed reads use raw SQL; change statements are built with squirrel.
package bank

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/zengin-sync/internal/adapter/postgres"
	"github.com/heartmarshall/zengin-sync/internal/domain"
)

// ErrNoTransaction is returned by Apply when ctx carries no transaction.
var ErrNoTransaction = errors.New("bank: apply requires a transaction")

// Repo provides bank master persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new bank repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// ---------------------------------------------------------------------------
// Raw SQL
// ---------------------------------------------------------------------------

const listActiveSQL = `
SELECT swift_code, branch_code, bank_name, bank_name_kana, branch_name, branch_name_kana
FROM m_bank
WHERE is_deleted = 0
ORDER BY swift_code, branch_code`

const impactStatsSQL = `
SELECT k.swift_code, k.branch_code,
       COUNT(uba.id) AS total_accounts,
       COUNT(DISTINCT CASE WHEN u.use_status = 1 THEN uba.user_id END) AS active_users
FROM unnest($1::text[], $2::text[]) AS k(swift_code, branch_code)
JOIN user_bank_account uba
  ON uba.bank_swift_code = k.swift_code
 AND uba.branch_code = k.branch_code
 AND uba.is_deleted = 0
LEFT JOIN "user" u ON u.id = uba.user_id
GROUP BY k.swift_code, k.branch_code`

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// ListActive returns every row not logically deleted, ordered by key.
func (r *Repo) ListActive(ctx context.Context) ([]domain.BankBranch, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := querier.Query(ctx, listActiveSQL)
	if err != nil {
		return nil, postgres.MapError(err, "m_bank", "*")
	}
	defer rows.Close()

	var out []domain.BankBranch
	for rows.Next() {
		var b domain.BankBranch
		if err := rows.Scan(&b.SwiftCode, &b.BranchCode, &b.BankName, &b.BankNameKana, &b.BranchName, &b.BranchNameKana); err != nil {
			return nil, fmt.Errorf("scan m_bank row: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.MapError(err, "m_bank", "*")
	}

	return out, nil
}

// ImpactStats counts accounts and distinct active users per branch key.
// Keys with no accounts are absent from the result. Malformed keys are ignored.
func (r *Repo) ImpactStats(ctx context.Context, keys []string) (map[string]domain.Impact, error) {
	out := make(map[string]domain.Impact, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	swifts := make([]string, 0, len(keys))
	branches := make([]string, 0, len(keys))
	for _, k := range keys {
		swift, branch, ok := domain.SplitBranchKey(k)
		if !ok {
			continue
		}
		swifts = append(swifts, swift)
		branches = append(branches, branch)
	}

	querier := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := querier.Query(ctx, impactStatsSQL, swifts, branches)
	if err != nil {
		return nil, postgres.MapError(err, "user_bank_account", "impact")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			swift, branch string
			im            domain.Impact
		)
		if err := rows.Scan(&swift, &branch, &im.TotalAccounts, &im.ActiveUsers); err != nil {
			return nil, fmt.Errorf("scan impact row: %w", err)
		}
		out[domain.BranchKey(swift, branch)] = im
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.MapError(err, "user_bank_account", "impact")
	}

	return out, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Apply runs every change against the master table in order. It must be
// called inside TxManager.RunInTx; the first failing statement returns an
// error and the caller's transaction rolls everything back.
func (r *Repo) Apply(ctx context.Context, changes []domain.Change, updatedUser string) (domain.ApplyResult, error) {
	querier, ok := postgres.TxFromCtx(ctx)
	if !ok {
		return domain.ApplyResult{}, ErrNoTransaction
	}

	var res domain.ApplyResult
	for _, c := range changes {
		if err := c.Validate(); err != nil {
			return res, fmt.Errorf("change %s: %w", c.Key, err)
		}

		stmts, err := statementsFor(c, updatedUser)
		if err != nil {
			return res, fmt.Errorf("change %s: %w", c.Key, err)
		}

		for i, stmt := range stmts {
			query, args, err := stmt.ToSql()
			if err != nil {
				return res, fmt.Errorf("build %s %s: %w", c.Kind, c.Key, err)
			}
			tag, err := querier.Exec(ctx, query, args...)
			if err != nil {
				return res, postgres.MapError(err, "m_bank", c.Key)
			}
			res.RowsAffected += tag.RowsAffected()
			// Only the master statement decides whether the key matched.
			if i == 0 && tag.RowsAffected() == 0 && c.Kind != domain.ChangeAddition {
				res.Unmatched = append(res.Unmatched, c.Key)
			}
		}
	}

	return res, nil
}

func statementsFor(c domain.Change, updatedUser string) ([]sq.Sqlizer, error) {
	switch c.Kind {
	case domain.ChangeAddition:
		return []sq.Sqlizer{upsertBranch(*c.After, updatedUser)}, nil
	case domain.ChangeUpdate:
		return []sq.Sqlizer{updateBranch(*c.After, updatedUser), propagateNames(*c.After, updatedUser)}, nil
	case domain.ChangeDeletion:
		return []sq.Sqlizer{deleteBranch(*c.Before, updatedUser)}, nil
	}
	return nil, fmt.Errorf("%w: unknown change kind %q", domain.ErrValidation, c.Kind)
}

func upsertBranch(b domain.BankBranch, updatedUser string) sq.Sqlizer {
	return postgres.Builder.
		Insert("m_bank").
		Columns("swift_code", "branch_code", "bank_name", "bank_name_kana",
			"branch_name", "branch_name_kana", "updated_user", "is_deleted").
		Values(b.SwiftCode, b.BranchCode, b.BankName, b.BankNameKana,
			b.BranchName, b.BranchNameKana, updatedUser, 0).
		Suffix(`ON CONFLICT (swift_code, branch_code) DO UPDATE SET
			bank_name = EXCLUDED.bank_name,
			bank_name_kana = EXCLUDED.bank_name_kana,
			branch_name = EXCLUDED.branch_name,
			branch_name_kana = EXCLUDED.branch_name_kana,
			updated_at = now(),
			updated_user = EXCLUDED.updated_user,
			is_deleted = 0`)
}

func updateBranch(b domain.BankBranch, updatedUser string) sq.Sqlizer {
	return postgres.Builder.
		Update("m_bank").
		Set("bank_name", b.BankName).
		Set("bank_name_kana", b.BankNameKana).
		Set("branch_name", b.BranchName).
		Set("branch_name_kana", b.BranchNameKana).
		Set("updated_at", sq.Expr("now()")).
		Set("updated_user", updatedUser).
		Where(sq.Eq{"swift_code": b.SwiftCode, "branch_code": b.BranchCode, "is_deleted": 0})
}

// propagateNames copies renamed bank and branch names onto registered accounts.
func propagateNames(b domain.BankBranch, updatedUser string) sq.Sqlizer {
	return postgres.Builder.
		Update("user_bank_account").
		Set("bank_name", b.BankName).
		Set("branch_name", b.BranchName).
		Set("updated_at", sq.Expr("now()")).
		Set("updated_user", updatedUser).
		Where(sq.Eq{"bank_swift_code": b.SwiftCode, "branch_code": b.BranchCode, "is_deleted": 0})
}

func deleteBranch(b domain.BankBranch, updatedUser string) sq.Sqlizer {
	return postgres.Builder.
		Update("m_bank").
		Set("is_deleted", 1).
		Set("updated_at", sq.Expr("now()")).
		Set("updated_user", updatedUser).
		Where(sq.Eq{"swift_code": b.SwiftCode, "branch_code": b.BranchCode, "is_deleted": 0})
}
