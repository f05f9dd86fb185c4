package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const maxLineWidth = 100

func renderView(snap Snapshot, cursor, logLines int, status string) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(renderHeader(snap)))
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render(fmt.Sprintf("📚 Courses (%d)", len(snap.Courses))))
	b.WriteString("\n")
	b.WriteString(renderCourses(snap, cursor))

	b.WriteString(sectionStyle.Render("📝 Activity"))
	b.WriteString("\n")
	b.WriteString(renderLog(snap.Log, logLines))

	if status != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(status))
	}

	b.WriteString("\n")
	footer := fmt.Sprintf("Last updated: %s │ ↑↓:course enter:select s:start x:stop +/-:lead l:login o:logout c:clear q:quit",
		snap.Timestamp.Format("15:04:05"))
	b.WriteString(footerStyle.Render(footer))

	return b.String()
}

func renderHeader(snap Snapshot) string {
	user := "not logged in"
	if snap.LoggedIn {
		user = snap.User
		if user == "" {
			user = "logged in"
		}
	}

	state := idleStyle.Render("idle")
	if snap.Listening {
		state = listeningStyle.Render("listening " + formatDuration(snap.ListeningFor))
	}

	return fmt.Sprintf("dfysign │ %s │ %s │ lead %ds │ %d signed", user, state, snap.LeadTime, snap.SeenCount)
}

func renderCourses(snap Snapshot, cursor int) string {
	if len(snap.Courses) == 0 {
		return emptyStyle.Render("  (no courses, press l to log in)") + "\n"
	}

	var b strings.Builder
	for i, c := range snap.Courses {
		marker := "  "
		if c.Selected {
			marker = "▶ "
		}
		label := c.Label
		if runewidth.StringWidth(label) > 60 {
			label = runewidth.Truncate(label, 57, "...")
		}
		line := fmt.Sprintf("%s%s", marker, label)
		if c.Term != "" {
			line += "  " + c.Term
		}

		if i == cursor {
			b.WriteString(cursorStyle.Render(line))
		} else {
			b.WriteString(courseStyle.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func renderLog(lines []LogLine, n int) string {
	if len(lines) == 0 {
		return emptyStyle.Render("  (no activity yet)")
	}
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	var b strings.Builder
	for i, l := range lines {
		text := fmt.Sprintf("[%s] %s %s", l.Time.Format("15:04:05"), levelIcon(l.Level), l.Text)
		if runewidth.StringWidth(text) > maxLineWidth {
			text = runewidth.Truncate(text, maxLineWidth, "…")
		}
		b.WriteString(lipgloss.NewStyle().Foreground(levelColor(l.Level, l.Text)).Render(text))
		if i < len(lines)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func isSuccess(text string) bool {
	return strings.HasPrefix(text, "sign-in succeeded") || strings.HasPrefix(text, "logged in")
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
