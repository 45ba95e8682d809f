package slack

import (
	"fmt"
	"strings"
	"time"

	goslack "github.com/slack-go/slack"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

func section(text string) *goslack.SectionBlock {
	return goslack.NewSectionBlock(goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false), nil, nil)
}

func button(actionID, label, value string, style goslack.Style) *goslack.ButtonBlockElement {
	b := goslack.NewButtonBlockElement(actionID, value, goslack.NewTextBlockObject(goslack.PlainTextType, label, true, false))
	if style != "" {
		b = b.WithStyle(style)
	}
	return b
}

func diffFallbackText(rec *domain.DiffRecord) string {
	return fmt.Sprintf("全銀データの更新が検出されました: %s (%d件)", rec.ID, rec.Summary.Total)
}

func diffBlocks(rec *domain.DiffRecord) []goslack.Block {
	s := rec.Summary
	blocks := []goslack.Block{
		goslack.NewHeaderBlock(goslack.NewTextBlockObject(goslack.PlainTextType, "🏦 全銀データ更新通知", true, false)),
		section(fmt.Sprintf("*Diff ID:* %s\n*種別:* %s\n*変更件数:* %d件 (追加 %d / 更新 %d / 削除 %d)\n*影響:* %dアカウント, %d名稼働中",
			rec.ID, rec.DiffType, s.Total, s.Additions, s.Updates, s.Deletions, s.ImpactedAccounts, s.ActiveUsers)),
		goslack.NewDividerBlock(),
	}

	if len(s.Preview) > 0 {
		blocks = append(blocks, section("*変更詳細:*"))
		for _, c := range s.Preview {
			blocks = append(blocks, section(changeLine(c)))
		}
		if rest := s.Total - len(s.Preview); rest > 0 {
			blocks = append(blocks, section(fmt.Sprintf("...他 %d件", rest)))
		}
	}

	blocks = append(blocks,
		goslack.NewDividerBlock(),
		section("*この更新を承認しますか？*"),
		goslack.NewActionBlock("approve_"+rec.ID,
			button(domain.ActionIDApproveDaily, "✅ 承認（23:00実行）", rec.ID, goslack.StylePrimary),
			button(domain.ActionIDApprove1h, "⏰ 1時間後", rec.ID, ""),
			button(domain.ActionIDApprove3h, "⏰ 3時間後", rec.ID, ""),
			button(domain.ActionIDApprove5h, "⏰ 5時間後", rec.ID, ""),
		),
		goslack.NewActionBlock("decide_"+rec.ID,
			button(domain.ActionIDApproveImmediate, "🚀 即時実行", rec.ID, goslack.StylePrimary),
			button(domain.ActionIDReject, "❌ 却下", rec.ID, goslack.StyleDanger),
			button(domain.ActionIDExportCSV, "📄 CSV出力", rec.ID, ""),
		),
	)
	return blocks
}

var changeIcons = map[domain.ChangeKind]string{
	domain.ChangeAddition: "🆕",
	domain.ChangeUpdate:   "✏️",
	domain.ChangeDeletion: "🗑️",
}

func changeLine(c domain.Change) string {
	b := c.After
	if b == nil {
		b = c.Before
	}
	if b == nil {
		b = &domain.BankBranch{}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s *%s %s* (%s)", changeIcons[c.Kind], b.BankName, b.BranchName, c.Key)
	if c.TotalAccounts > 0 {
		fmt.Fprintf(&sb, " (影響: %dアカウント", c.TotalAccounts)
		if c.ActiveUsers > 0 {
			fmt.Fprintf(&sb, ", %d名稼働中", c.ActiveUsers)
		}
		sb.WriteString(")")
	}
	if c.Kind == domain.ChangeUpdate && c.Before != nil && c.After != nil {
		if c.Before.BankName != c.After.BankName {
			fmt.Fprintf(&sb, "\n  • 銀行名: %s → %s", c.Before.BankName, c.After.BankName)
		}
		if c.Before.BranchName != c.After.BranchName {
			fmt.Fprintf(&sb, "\n  • 支店名: %s → %s", c.Before.BranchName, c.After.BranchName)
		}
	}
	return sb.String()
}

func noChangesBlocks(now time.Time) []goslack.Block {
	return []goslack.Block{
		section(fmt.Sprintf("ℹ️ *全銀データ更新チェック完了*\n銀行情報の更新はありませんでした\n*チェック時刻*: %s JST", now.Format(time.DateTime))),
	}
}

func decisionText(rec *domain.DiffRecord, loc *time.Location) string {
	switch rec.Status {
	case domain.StatusApproved, domain.StatusExecuting, domain.StatusCompleted:
		when := "23:00"
		if rec.Schedule != nil {
			when = rec.Schedule.ExecuteAt.In(loc).Format("2006-01-02 15:04") + " JST"
			if rec.Schedule.Option == domain.ScheduleImmediate {
				return fmt.Sprintf("🚀 *即時実行承認* by <@%s>\n実行予定時刻: %s\n処理結果はスレッドを確認して下さい", rec.ApprovedBy, when)
			}
		}
		return fmt.Sprintf("✅ *承認済み* by <@%s>\n実行予定時刻: %s", rec.ApprovedBy, when)
	case domain.StatusRejected:
		text := fmt.Sprintf("❌ *却下済み* by <@%s>\n処理を中止しました。", rec.RejectedBy)
		if rec.RejectReason != "" {
			text += "\n*理由*: " + rec.RejectReason
		}
		return text
	}
	return fmt.Sprintf("*状態*: %s", statusLabel(rec.Status))
}

func completionText(rec *domain.DiffRecord, res domain.ExecutionResult, now time.Time) string {
	var sb strings.Builder
	if res.Success {
		sb.WriteString("🎉 全銀データ更新完了\n*ステータス*: ✅ 成功\n")
	} else {
		sb.WriteString("⚠️ 全銀データ更新エラー\n*ステータス*: ❌ エラー\n")
	}
	fmt.Fprintf(&sb, "*処理件数*: %d件\n", res.RowsAffected)
	if rec.ApprovedBy != "" {
		fmt.Fprintf(&sb, "*承認者*: <@%s>\n", rec.ApprovedBy)
	}
	fmt.Fprintf(&sb, "*実行時刻*: %s JST\n*所要時間*: %dms", now.Format(time.DateTime), res.DurationMs)
	fmt.Fprintf(&sb, "\n\n_Diff ID: %s_", rec.ID)
	return sb.String()
}

func statusLabel(s domain.DiffStatus) string {
	switch s {
	case domain.StatusPending:
		return "承認待ち"
	case domain.StatusApproved:
		return "承認済み"
	case domain.StatusRejected:
		return "却下済み"
	case domain.StatusExecuting:
		return "実行中"
	case domain.StatusCompleted:
		return "完了"
	case domain.StatusFailed:
		return "失敗"
	case domain.StatusExpired:
		return "期限切れ"
	}
	return string(s)
}
