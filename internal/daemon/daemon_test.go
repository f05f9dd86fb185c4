package daemon

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/marcin-skalski/dfysign/internal/config"
	"github.com/marcin-skalski/dfysign/internal/gateway"
	"github.com/marcin-skalski/dfysign/internal/logging"
	"github.com/marcin-skalski/dfysign/internal/session"
	"github.com/marcin-skalski/dfysign/internal/signin"
)

type fakeBackend struct {
	mu sync.Mutex

	loginCourses []signin.Course
	listCourses  []signin.Course
	loginErr     error
	logged       bool
	event        *signin.Event

	passwordLogins int
	wechatLinks    []string
	listCalls      int
	cookieResets   int
	codes          []string
}

func (f *fakeBackend) LoginPassword(_ context.Context, username, password string) (*gateway.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passwordLogins++
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &gateway.LoginResult{Courses: f.loginCourses}, nil
}

func (f *fakeBackend) LoginWechat(_ context.Context, link string) (*gateway.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wechatLinks = append(f.wechatLinks, link)
	return &gateway.LoginResult{Courses: f.loginCourses}, f.loginErr
}

func (f *fakeBackend) ListCourses(context.Context) ([]signin.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.listCourses, nil
}

func (f *fakeBackend) ResetCookies() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cookieResets++
	return nil
}

func (f *fakeBackend) CheckLogin(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logged, nil
}

func (f *fakeBackend) SignStatus(context.Context, string) (*signin.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.event == nil {
		return nil, gateway.ErrNoActiveEvent
	}
	ev := *f.event
	return &ev, nil
}

func (f *fakeBackend) SubmitCode(_ context.Context, code string) (gateway.SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes = append(f.codes, code)
	return gateway.SubmitResult{Success: true, Message: "ok"}, nil
}

func (f *fakeBackend) SubmitLocation(context.Context, string, string) (gateway.SubmitResult, error) {
	return gateway.SubmitResult{Success: true}, nil
}

func (f *fakeBackend) submitted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.codes...)
}

func testConfig() *config.Config {
	lead := 10
	return &config.Config{
		PollInterval: 5 * time.Millisecond,
		LeadTime:     &lead,
		Backend:      config.BackendConfig{BaseURL: "http://backend.test/dfysign"},
		Login:        config.LoginConfig{Method: config.LoginPassword, Username: "alice", Password: "secret"},
	}
}

func newDaemon(cfg *config.Config, b *fakeBackend) (*Daemon, *logging.Journal) {
	j := logging.NewJournal(0)
	return New(cfg, b, j, slog.New(j.Handler(slog.LevelDebug))), j
}

var twoCourses = []signin.Course{
	{ID: "100", Name: "Networks", ClassID: "C1"},
	{ID: "200", Name: "Compilers", ClassID: "C2"},
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestLoginSelectsConfiguredCourse(t *testing.T) {
	cfg := testConfig()
	cfg.Course = "compilers"
	d, _ := newDaemon(cfg, &fakeBackend{loginCourses: twoCourses})
	defer d.Shutdown()

	if err := d.Login(context.Background()); err != nil {
		t.Fatal(err)
	}
	c, ok := d.State().Selected()
	if !ok || c.ClassID != "C2" {
		t.Errorf("selected = %+v, %v; want C2", c, ok)
	}
}

func TestLoginFallsBackToCourseList(t *testing.T) {
	fb := &fakeBackend{listCourses: twoCourses}
	cfg := testConfig()
	cfg.Login = config.LoginConfig{Method: config.LoginWechat, Link: "https://open.weixin.qq.com/?code=abc"}
	d, _ := newDaemon(cfg, fb)
	defer d.Shutdown()

	if err := d.Login(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(fb.wechatLinks) != 1 || fb.listCalls != 1 {
		t.Errorf("wechat logins = %v, list calls = %d", fb.wechatLinks, fb.listCalls)
	}
	if got := len(d.State().Courses()); got != 2 {
		t.Errorf("got %d courses, want 2", got)
	}
}

func TestLoginFailure(t *testing.T) {
	fb := &fakeBackend{loginErr: errors.New("login rejected: 密码错误")}
	d, j := newDaemon(testConfig(), fb)
	defer d.Shutdown()

	if err := d.Login(context.Background()); err == nil {
		t.Fatal("expected login error")
	}
	if d.State().LoggedIn() {
		t.Error("failed login must not mark the state logged in")
	}
	entries := j.Entries()
	if len(entries) == 0 || entries[len(entries)-1].Message != "login failed" {
		t.Errorf("expected a login failed entry, got %+v", entries)
	}
}

func TestStartStopRestart(t *testing.T) {
	fb := &fakeBackend{
		loginCourses: twoCourses,
		logged:       true,
		event:        &signin.Event{ID: "E1", Kind: signin.KindCode, Countdown: 5, ClassID: "C1", Code: "8890"},
	}
	d, _ := newDaemon(testConfig(), fb)
	defer d.Shutdown()

	if err := d.Login(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := d.StartListening(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(fb.submitted()) == 1 })

	// Still one submission after a few more ticks: E1 is seen.
	time.Sleep(30 * time.Millisecond)
	if got := fb.submitted(); len(got) != 1 {
		t.Fatalf("submissions = %v, want one", got)
	}

	d.StopListening()
	if err := d.StartListening(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(fb.submitted()) == 2 })

	if err := d.SelectCourse(1); !errors.Is(err, session.ErrListening) {
		t.Errorf("SelectCourse while listening err = %v", err)
	}
}

func TestLogoutClearsState(t *testing.T) {
	fb := &fakeBackend{loginCourses: twoCourses, logged: true}
	d, _ := newDaemon(testConfig(), fb)
	defer d.Shutdown()

	if err := d.Login(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := d.StartListening(); err != nil {
		t.Fatal(err)
	}
	d.Logout()

	snap := d.GetSnapshot()
	if snap.LoggedIn || snap.Listening || len(snap.Courses) != 0 {
		t.Errorf("snapshot after logout = %+v", snap)
	}
	if fb.cookieResets != 1 {
		t.Errorf("cookie resets = %d, want 1", fb.cookieResets)
	}
	if err := d.StartListening(); !errors.Is(err, session.ErrNotLoggedIn) {
		t.Errorf("StartListening after logout err = %v", err)
	}
}

func TestRunHeadlessReturnsOnExpiry(t *testing.T) {
	fb := &fakeBackend{loginCourses: twoCourses, logged: false}
	d, j := newDaemon(testConfig(), fb)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.RunHeadless(ctx); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("RunHeadless err = %v, want ErrSessionExpired", err)
	}

	n := 0
	for _, e := range j.Entries() {
		if e.Message == "login expired, please log in again" {
			n++
		}
	}
	if n != 1 {
		t.Errorf("got %d expiry entries, want 1", n)
	}
}

func TestAdjustLeadTimeAndSnapshot(t *testing.T) {
	d, j := newDaemon(testConfig(), &fakeBackend{loginCourses: twoCourses})
	defer d.Shutdown()

	if got := d.AdjustLeadTime(5); got != 15 {
		t.Errorf("AdjustLeadTime(5) = %d, want 15", got)
	}
	if err := d.Login(context.Background()); err != nil {
		t.Fatal(err)
	}

	snap := d.GetSnapshot()
	if snap.LeadTime != 15 || !snap.LoggedIn || snap.User != "alice" {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if snap.SelectedIndex() != 0 || len(snap.Log) == 0 {
		t.Errorf("selected = %d, log lines = %d", snap.SelectedIndex(), len(snap.Log))
	}

	d.ClearLog()
	if len(j.Entries()) != 0 {
		t.Error("ClearLog did not clear the journal")
	}
}
