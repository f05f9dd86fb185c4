package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/marcin-skalski/dfysign/internal/config"
	"github.com/marcin-skalski/dfysign/internal/gateway"
	"github.com/marcin-skalski/dfysign/internal/logging"
	"github.com/marcin-skalski/dfysign/internal/monitor"
	"github.com/marcin-skalski/dfysign/internal/session"
	"github.com/marcin-skalski/dfysign/internal/signin"
	"github.com/marcin-skalski/dfysign/internal/tui"
)

var ErrSessionExpired = errors.New("login expired")

type Backend interface {
	monitor.Backend
	LoginPassword(ctx context.Context, username, password string) (*gateway.LoginResult, error)
	LoginWechat(ctx context.Context, link string) (*gateway.LoginResult, error)
	ListCourses(ctx context.Context) ([]signin.Course, error)
	ResetCookies() error
}

// loop is one running listening session.
type loop struct {
	listen session.Listen
	cancel context.CancelFunc
	done   chan struct{}
	result monitor.Result // valid once done is closed
}

type Daemon struct {
	cfg     *config.Config
	backend Backend
	state   *session.State
	monitor *monitor.Monitor
	journal *logging.Journal
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	current *loop
}

func New(cfg *config.Config, backend Backend, journal *logging.Journal, logger *slog.Logger) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())
	state := session.New(*cfg.LeadTime)
	return &Daemon{
		cfg:     cfg,
		backend: backend,
		state:   state,
		monitor: monitor.New(backend, state, cfg.PollInterval, logger),
		journal: journal,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Run is the interactive mode: log in, optionally start listening, then wait
// for ctx while the TUI drives the session.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.Shutdown()
	d.logger.Info("daemon started", "backend", d.cfg.Backend.BaseURL, "poll_interval", d.cfg.PollInterval)

	if err := d.Login(ctx); err == nil && d.cfg.AutoStart {
		if err := d.StartListening(); err != nil {
			d.logger.Error("start listening failed", "err", err)
		}
	}

	<-ctx.Done()
	return nil
}

// RunHeadless logs in, listens on the configured course and returns when ctx
// is cancelled or the backend session expires.
func (d *Daemon) RunHeadless(ctx context.Context) error {
	defer d.Shutdown()
	d.logger.Info("daemon started", "backend", d.cfg.Backend.BaseURL, "poll_interval", d.cfg.PollInterval)

	if err := d.Login(ctx); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := d.StartListening(); err != nil {
		return fmt.Errorf("start listening: %w", err)
	}

	l := d.currentLoop()
	select {
	case <-ctx.Done():
		return nil
	case <-l.done:
		if l.result == monitor.ResultExpired {
			return ErrSessionExpired
		}
		return nil
	}
}

// Login authenticates with the configured credentials and loads the course
// list, falling back to the course-list endpoint when the login answer
// carries none.
func (d *Daemon) Login(ctx context.Context) error {
	if d.state.Listening() {
		return session.ErrListening
	}

	creds := session.Credentials{
		Method:   d.cfg.Login.Method,
		Username: d.cfg.Login.Username,
		Password: d.cfg.Login.Password,
		Link:     d.cfg.Login.Link,
	}

	var (
		res *gateway.LoginResult
		err error
	)
	switch creds.Method {
	case config.LoginWechat:
		res, err = d.backend.LoginWechat(ctx, creds.Link)
	default:
		res, err = d.backend.LoginPassword(ctx, creds.Username, creds.Password)
	}
	if err != nil {
		d.logger.Error("login failed", "method", creds.Method, "err", err)
		return err
	}

	courses := res.Courses
	if len(courses) == 0 {
		listed, err := d.backend.ListCourses(ctx)
		if err != nil {
			d.logger.Warn("fetch course list failed", "err", err)
		}
		courses = listed
	}

	d.state.LogIn(creds, courses)
	d.logger.Info("logged in", "method", creds.Method, "courses", len(courses))
	if len(courses) == 0 {
		d.logger.Warn("no courses returned by the backend")
		return nil
	}
	for _, c := range courses {
		d.logger.Debug("course loaded", "course", c.Label(), "class", c.ClassID)
	}

	if d.cfg.Course != "" {
		if c, ok := d.state.SelectRef(d.cfg.Course); ok {
			d.logger.Info("course selected", "course", c.Label())
		} else {
			d.logger.Warn("configured course not found, using the first one", "course", d.cfg.Course)
		}
	}
	return nil
}

func (d *Daemon) SelectCourse(idx int) error {
	if err := d.state.Select(idx); err != nil {
		return err
	}
	if c, ok := d.state.Selected(); ok {
		d.logger.Info("course selected", "course", c.Label())
	}
	return nil
}

// StartListening opens a listening session on the selected course. A loop
// left over from a previous session is waited for first, so at most one
// loop polls at any time.
func (d *Daemon) StartListening() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ctx.Err() != nil {
		return errors.New("daemon is shut down")
	}
	if prev := d.current; prev != nil {
		prev.cancel()
		<-prev.done
	}

	ln, err := d.state.Start()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(d.ctx)
	l := &loop{listen: ln, cancel: cancel, done: make(chan struct{})}
	d.current = l

	go func() {
		defer close(l.done)
		defer cancel()
		l.result = d.monitor.Run(ctx, ln)
		if l.result == monitor.ResultStopped {
			d.logger.Debug("listening loop exited", "listen", ln.ID)
		}
	}()
	return nil
}

func (d *Daemon) StopListening() {
	ln, ok := d.state.Stop()

	d.mu.Lock()
	if d.current != nil {
		d.current.cancel()
	}
	d.mu.Unlock()

	if ok {
		d.logger.Warn("listening stopped", "listened_for", time.Since(ln.Started).Round(time.Second))
	}
}

// Logout stops listening and drops credentials, courses and backend cookies.
func (d *Daemon) Logout() {
	d.StopListening()
	d.waitLoop()
	d.state.Logout()
	if err := d.backend.ResetCookies(); err != nil {
		d.logger.Error("reset cookies failed", "err", err)
	}
	d.logger.Warn("logged out")
}

// Relogin repeats Login with the daemon's own context. Used by the TUI.
func (d *Daemon) Relogin() error {
	return d.Login(d.ctx)
}

func (d *Daemon) AdjustLeadTime(delta int) int {
	v := d.state.SetLeadTime(d.state.LeadTime() + delta)
	d.logger.Info("lead time changed", "seconds", v)
	return v
}

func (d *Daemon) ClearLog() {
	if d.journal != nil {
		d.journal.Clear()
	}
}

// Shutdown stops the running loop and waits for it to exit.
func (d *Daemon) Shutdown() {
	d.state.Stop()
	d.cancel()
	d.waitLoop()
}

func (d *Daemon) waitLoop() {
	if l := d.currentLoop(); l != nil {
		l.cancel()
		<-l.done
	}
}

func (d *Daemon) currentLoop() *loop {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

func (d *Daemon) State() *session.State {
	return d.state
}

const snapshotLogLines = 200

func (d *Daemon) GetSnapshot() tui.Snapshot {
	s := d.state.Snapshot()

	courses := make([]tui.CourseState, 0, len(s.Courses))
	for i, c := range s.Courses {
		courses = append(courses, tui.CourseState{
			Label:    c.Label(),
			ClassID:  c.ClassID,
			Term:     c.Term,
			Selected: i == s.Selected,
		})
	}

	var lines []tui.LogLine
	if d.journal != nil {
		for _, e := range d.journal.Tail(snapshotLogLines) {
			lines = append(lines, tui.LogLine{Time: e.Time, Level: e.Level, Text: e.Text()})
		}
	}

	snap := tui.Snapshot{
		Timestamp: time.Now(),
		LoggedIn:  s.LoggedIn,
		User:      s.User,
		Courses:   courses,
		Listening: s.Listening,
		LeadTime:  s.LeadTime,
		SeenCount: s.SeenCount,
		Log:       lines,
	}
	if s.Listening {
		snap.ListenID = s.Listen.ID
		snap.ListeningFor = time.Since(s.Listen.Started).Round(time.Second)
	}
	return snap
}
