package notifier

import (
	"fmt"
	"html"
	"strings"

	"AShareScreener/internal/model"
	"AShareScreener/internal/store"
	"AShareScreener/internal/strategy"
)

// maxListed caps the passed instruments named in one message.
const maxListed = 30

// FormatScreeningReport summarises a run: counts per outcome, the passing
// instruments and where the export was written.
func FormatScreeningReport(result *model.ScreeningResult, exportPath string) string {
	var b strings.Builder
	counts := result.Counts()

	b.WriteString(fmt.Sprintf("📊 <b>选股结果</b> | %s\n\n", result.StartedAt.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("共筛选: %d 只\n", len(result.Rows)))
	b.WriteString(fmt.Sprintf("✅ 通过: %d\n", counts[model.VerdictPass]))

	failed := 0
	for v, n := range counts {
		if v.IsRuleFailure() {
			failed += n
		}
	}
	b.WriteString(fmt.Sprintf("❌ 未通过: %d\n", failed))
	for _, v := range model.AllVerdicts {
		if v.IsRuleFailure() && counts[v] > 0 {
			b.WriteString(fmt.Sprintf("   %s %s: %d\n", v, strategy.Describe(v), counts[v]))
		}
	}
	b.WriteString(fmt.Sprintf("⏳ 数据不足: %d\n", counts[model.VerdictInsufficientData]))
	if n := counts[model.VerdictError]; n > 0 {
		b.WriteString(fmt.Sprintf("⚠️ 处理异常: %d\n", n))
	}

	passed := result.Passed()
	if len(passed) > 0 {
		b.WriteString("\n<b>通过列表:</b>\n")
		for i, r := range passed {
			if i == maxListed {
				b.WriteString(fmt.Sprintf("… 另有 %d 只\n", len(passed)-maxListed))
				break
			}
			b.WriteString(fmt.Sprintf("• %s %s", r.Code, html.EscapeString(r.Name)))
			if r.Industry != "" {
				b.WriteString(fmt.Sprintf(" [%s]", html.EscapeString(r.Industry)))
			}
			if r.Snapshot.Close.Valid {
				b.WriteString(fmt.Sprintf(" 收盘 %.2f", r.Snapshot.Close.Float64))
			}
			b.WriteString("\n")
		}
	}
	if !result.Enriched {
		b.WriteString("\n(名称/行业数据不可用)\n")
	}
	if exportPath != "" {
		b.WriteString(fmt.Sprintf("\n结果文件: <code>%s</code>\n", html.EscapeString(exportPath)))
	}
	return b.String()
}

// FormatStats formats the local database coverage.
func FormatStats(st *store.Stats) string {
	var b strings.Builder
	b.WriteString("🗄 <b>数据库状态</b>\n\n")
	if st.RowCount == 0 {
		b.WriteString("暂无日线数据\n")
		return b.String()
	}
	b.WriteString(fmt.Sprintf("日期范围: %s ~ %s\n", st.MinDate, st.MaxDate))
	b.WriteString(fmt.Sprintf("股票数量: %d\n", st.StockCount))
	b.WriteString(fmt.Sprintf("日线记录: %d\n", st.RowCount))
	return b.String()
}

// FormatRefresh reports a data refresh.
func FormatRefresh(dates int, bars int64, failed []string) string {
	msg := fmt.Sprintf("🔄 <b>数据更新完成</b>\n\n交易日: %d\n新增日线: %d\n", dates, bars)
	if len(failed) > 0 {
		msg += fmt.Sprintf("失败日期: %s\n", strings.Join(failed, ", "))
	}
	return msg
}
