package tui

import (
	"log/slog"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorDebug   = lipgloss.Color("240") // gray
	colorInfo    = lipgloss.Color("252")
	colorSuccess = lipgloss.Color("46")  // green
	colorWarn    = lipgloss.Color("214") // orange
	colorError   = lipgloss.Color("196") // red

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			PaddingLeft(1).
			PaddingRight(1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			MarginTop(1).
			MarginBottom(0)

	courseStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	cursorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Background(lipgloss.Color("237"))

	listeningStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorSuccess)

	idleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError)
)

func levelColor(level slog.Level, text string) lipgloss.Color {
	switch {
	case level >= slog.LevelError:
		return colorError
	case level >= slog.LevelWarn:
		return colorWarn
	case level >= slog.LevelInfo:
		if isSuccess(text) {
			return colorSuccess
		}
		return colorInfo
	default:
		return colorDebug
	}
}

func levelIcon(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "✗"
	case level >= slog.LevelWarn:
		return "!"
	case level >= slog.LevelInfo:
		return "•"
	default:
		return "·"
	}
}
