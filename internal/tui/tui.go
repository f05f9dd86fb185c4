package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Controller is what the TUI drives. The daemon implements it.
type Controller interface {
	GetSnapshot() Snapshot
	Relogin() error
	SelectCourse(idx int) error
	StartListening() error
	StopListening()
	Logout()
	AdjustLeadTime(delta int) int
	ClearLog()
}

type Model struct {
	ctrl            Controller
	snapshot        Snapshot
	refreshInterval time.Duration
	cursor          int
	height          int
	status          string // last action error, shown above the footer
}

type tickMsg time.Time

type actionMsg struct {
	action string
	err    error
}

func NewModel(ctrl Controller, refreshInterval time.Duration) Model {
	snap := ctrl.GetSnapshot()
	return Model{
		ctrl:            ctrl,
		snapshot:        snap,
		refreshInterval: refreshInterval,
		cursor:          max(0, snap.SelectedIndex()),
	}
}

func (m Model) Init() tea.Cmd {
	return tickCmd(m.refreshInterval)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case tea.WindowSizeMsg:
		m.height = msg.Height
		return m, nil

	case actionMsg:
		m.status = ""
		if msg.err != nil {
			m.status = msg.action + ": " + msg.err.Error()
		}
		m.refresh()
		return m, nil

	case tickMsg:
		m.refresh()
		return m, tickCmd(m.refreshInterval)
	}

	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.refresh()
	case "up", "k":
		if !m.snapshot.Listening && m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if !m.snapshot.Listening && m.cursor < len(m.snapshot.Courses)-1 {
			m.cursor++
		}
	case "enter", " ":
		if len(m.snapshot.Courses) > 0 {
			idx := m.cursor
			return m, m.action("select course", func() error { return m.ctrl.SelectCourse(idx) })
		}
	case "s":
		if len(m.snapshot.Courses) > 0 && m.snapshot.SelectedIndex() != m.cursor && !m.snapshot.Listening {
			idx := m.cursor
			return m, m.action("start", func() error {
				if err := m.ctrl.SelectCourse(idx); err != nil {
					return err
				}
				return m.ctrl.StartListening()
			})
		}
		return m, m.action("start", m.ctrl.StartListening)
	case "x":
		return m, m.action("stop", func() error { m.ctrl.StopListening(); return nil })
	case "l":
		return m, m.action("login", m.ctrl.Relogin)
	case "o":
		return m, m.action("logout", func() error { m.ctrl.Logout(); return nil })
	case "+", "=":
		m.ctrl.AdjustLeadTime(1)
		m.refresh()
	case "-":
		m.ctrl.AdjustLeadTime(-1)
		m.refresh()
	case "c":
		m.ctrl.ClearLog()
		m.refresh()
	}
	return m, nil
}

func (m Model) action(name string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{action: name, err: fn()}
	}
}

func (m *Model) refresh() {
	m.snapshot = m.ctrl.GetSnapshot()
	if m.snapshot.Listening {
		// Selection is locked while listening; keep the cursor on it.
		if idx := m.snapshot.SelectedIndex(); idx >= 0 {
			m.cursor = idx
		}
	}
	if m.cursor >= len(m.snapshot.Courses) {
		m.cursor = max(0, len(m.snapshot.Courses)-1)
	}
}

func (m Model) View() string {
	return renderView(m.snapshot, m.cursor, m.logLines(), m.status)
}

// logLines is how many journal lines fit below the course list.
func (m Model) logLines() int {
	const fallback = 15
	if m.height <= 0 {
		return fallback
	}
	used := 10 + len(m.snapshot.Courses)
	return max(3, m.height-used)
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
