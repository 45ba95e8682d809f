package domain

import (
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var bankSuffixes = []string{"銀行", "信用金庫", "信用組合", "農協", "漁協", "労働金庫", "信託", "証券"}

var branchSuffixes = []string{"支店", "営業部", "出張所", "代理店", "本店", "店舗", "センター", "プラザ"}

// NormalizeBankName appends "銀行" unless the name already ends with an
// institution suffix.
func NormalizeBankName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	for _, s := range bankSuffixes {
		if strings.HasSuffix(name, s) {
			return name
		}
	}
	return name + "銀行"
}

// NormalizeBranchName appends "支店" unless the name already ends with a
// branch suffix.
func NormalizeBranchName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	for _, s := range branchSuffixes {
		if strings.HasSuffix(name, s) {
			return name
		}
	}
	return name + "支店"
}

// HalfWidthKana converts katakana to half-width form. Input is NFKC
// normalized first, so half-width and full-width input give the same result;
// voiced marks become separate half-width marks ("ガ" -> "ｶﾞ").
func HalfWidthKana(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)
	s = norm.NFD.String(s)
	return width.Narrow.String(s)
}

// Differs reports whether any mapped column of next differs from current.
// Both sides go through the same normalization and are then compared
// exactly: a branch moving from 支店 to 出張所 is a change. Kana columns are
// compared in half-width form.
func Differs(current, next BankBranch) bool {
	switch {
	case NormalizeBankName(current.BankName) != NormalizeBankName(next.BankName):
		return true
	case NormalizeBranchName(current.BranchName) != NormalizeBranchName(next.BranchName):
		return true
	case HalfWidthKana(current.BankNameKana) != HalfWidthKana(next.BankNameKana):
		return true
	}
	return HalfWidthKana(current.BranchNameKana) != HalfWidthKana(next.BranchNameKana)
}
