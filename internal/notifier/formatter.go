package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"TwoDSentinel/internal/model"
)

// FormatResult formats a closed session for broadcast.
func FormatResult(rec *model.HistoryRecord) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🎯 <b>%s result</b> | %s\n\n", rec.Session, html.EscapeString(rec.ClosedOn)))
	b.WriteString(fmt.Sprintf("2D: <b>%s</b>\n", html.EscapeString(rec.TwoD)))
	b.WriteString(fmt.Sprintf("SET: %s\n", html.EscapeString(rec.Set)))
	b.WriteString(fmt.Sprintf("Value: %s\n", html.EscapeString(rec.Value)))
	b.WriteString(fmt.Sprintf("Time: %s", html.EscapeString(rec.Time)))
	return b.String()
}

// FormatSnapshot formats the current snapshot of one session.
func FormatSnapshot(session model.Session, s *model.Snapshot) string {
	if s.IsPlaceholder() {
		if s.Time != model.Sentinel {
			return fmt.Sprintf("%s: no data (last attempt %s)", session, html.EscapeString(s.Time))
		}
		return fmt.Sprintf("%s: no data yet", session)
	}
	return fmt.Sprintf("%s %s %s\n2D: <b>%s</b> | SET %s | Value %s",
		session, html.EscapeString(s.Date), html.EscapeString(s.Time),
		html.EscapeString(s.TwoD), html.EscapeString(s.Set), html.EscapeString(s.Value))
}

// FormatHistory lists the most recent records, newest first.
func FormatHistory(records []model.HistoryRecord, limit int) string {
	if len(records) == 0 {
		return "No history yet"
	}
	var b strings.Builder
	b.WriteString("📜 <b>Recent results</b>\n\n")
	for i, n := len(records)-1, 0; i >= 0 && n < limit; i, n = i-1, n+1 {
		r := records[i]
		b.WriteString(fmt.Sprintf("%s %s  <b>%s</b>\n", html.EscapeString(r.ClosedOn), r.Session, html.EscapeString(r.TwoD)))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatStatus summarizes both sessions and the age of the published view.
func FormatStatus(am, pm model.Snapshot, updatedAt time.Time) string {
	var b strings.Builder
	b.WriteString("📡 <b>Status</b>\n\n")
	b.WriteString(FormatSnapshot(model.SessionAM, &am) + "\n")
	b.WriteString(FormatSnapshot(model.SessionPM, &pm) + "\n")
	b.WriteString(fmt.Sprintf("Updated %s", humanize.Time(updatedAt)))
	return b.String()
}
