package approval

import (
	"bytes"
	"cmp"
	"encoding/csv"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

// utf8BOM prefixes every exported file.
const utf8BOM = "\ufeff"

var csvHeader = []string{
	"アクション", "銀行コード", "支店コード",
	"旧銀行名", "新銀行名", "旧銀行カナ", "新銀行カナ",
	"旧支店名", "新支店名", "旧支店カナ", "新支店カナ",
	"変更フィールド", "変更理由", "影響アカウント数", "稼働ユーザー数",
}

// RenderCSV renders changes ordered by impacted accounts, then active users
// (both descending), then key.
func RenderCSV(changes []domain.Change) ([]byte, error) {
	sorted := slices.Clone(changes)
	slices.SortStableFunc(sorted, func(a, b domain.Change) int {
		if c := cmp.Compare(b.TotalAccounts, a.TotalAccounts); c != 0 {
			return c
		}
		if c := cmp.Compare(b.ActiveUsers, a.ActiveUsers); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})

	var buf bytes.Buffer
	buf.WriteString(utf8BOM)
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for _, c := range sorted {
		if err := w.Write(csvRow(c)); err != nil {
			return nil, fmt.Errorf("write %s: %w", c.Key, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func csvRow(c domain.Change) []string {
	swift, branch, _ := domain.SplitBranchKey(c.Key)
	var before, after domain.BankBranch
	if c.Before != nil {
		before = *c.Before
	}
	if c.After != nil {
		after = *c.After
	}

	var label, fields, reason string
	switch c.Kind {
	case domain.ChangeAddition:
		label, fields, reason = "新規追加", "全項目", "zengin-codeに新規追加"
		before = domain.BankBranch{}
	case domain.ChangeUpdate:
		label, fields, reason = "更新", changedFields(before, after), "zengin-codeで情報更新"
	case domain.ChangeDeletion:
		label, reason = "削除", "zengin-codeから削除"
		if c.TotalAccounts > 0 {
			reason += fmt.Sprintf(" ⚠️影響：%dアカウント", c.TotalAccounts)
		}
		after = domain.BankBranch{}
	}

	row := []string{
		label, swift, branch,
		before.BankName, after.BankName, before.BankNameKana, after.BankNameKana,
		before.BranchName, after.BranchName, before.BranchNameKana, after.BranchNameKana,
		fields, reason,
		strconv.Itoa(c.TotalAccounts), strconv.Itoa(c.ActiveUsers),
	}
	for i := range row {
		row[i] = strings.TrimSpace(row[i])
	}
	return row
}

func changedFields(before, after domain.BankBranch) string {
	var out []string
	for _, f := range []struct {
		label    string
		old, new string
	}{
		{"銀行名", before.BankName, after.BankName},
		{"銀行カナ", before.BankNameKana, after.BankNameKana},
		{"支店名", before.BranchName, after.BranchName},
		{"支店カナ", before.BranchNameKana, after.BranchNameKana},
	} {
		if strings.TrimSpace(f.old) != strings.TrimSpace(f.new) {
			out = append(out, f.label)
		}
	}
	return strings.Join(out, "、")
}
