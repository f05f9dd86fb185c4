package tui

import (
	"log/slog"
	"time"
)

type Snapshot struct {
	Timestamp    time.Time
	LoggedIn     bool
	User         string
	Courses      []CourseState
	Listening    bool
	ListenID     string
	ListeningFor time.Duration
	LeadTime     int
	SeenCount    int
	Log          []LogLine
}

type CourseState struct {
	Label    string
	ClassID  string
	Term     string
	Selected bool
}

type LogLine struct {
	Time  time.Time
	Level slog.Level
	Text  string
}

// SelectedIndex returns the index of the selected course, or -1.
func (s Snapshot) SelectedIndex() int {
	for i, c := range s.Courses {
		if c.Selected {
			return i
		}
	}
	return -1
}
