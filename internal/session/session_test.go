package session

import (
	"errors"
	"testing"

	"github.com/marcin-skalski/dfysign/internal/signin"
)

func loggedIn(t *testing.T) *State {
	t.Helper()
	s := New(DefaultLeadTime)
	s.LogIn(Credentials{Method: "password", Username: "alice"}, []signin.Course{
		{ID: "100", Name: "Networks", ClassID: "C1"},
		{ID: "200", Name: "Compilers", ClassID: "C2"},
	})
	return s
}

func TestStartRequiresLogin(t *testing.T) {
	s := New(DefaultLeadTime)
	if _, err := s.Start(); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("Start() err = %v, want ErrNotLoggedIn", err)
	}
}

func TestStartRequiresCourse(t *testing.T) {
	s := New(DefaultLeadTime)
	s.LogIn(Credentials{Method: "password"}, nil)
	if _, err := s.Start(); !errors.Is(err, ErrNoCourse) {
		t.Fatalf("Start() err = %v, want ErrNoCourse", err)
	}
}

func TestStartCapturesSelection(t *testing.T) {
	s := loggedIn(t)
	if err := s.Select(1); err != nil {
		t.Fatal(err)
	}
	s.SetLeadTime(7)

	ln, err := s.Start()
	if err != nil {
		t.Fatal(err)
	}
	if ln.ClassID != "C2" || ln.CourseID != "200" || ln.LeadTime != 7 || ln.ID == "" {
		t.Errorf("unexpected listen %+v", ln)
	}
	if _, err := s.Start(); !errors.Is(err, ErrListening) {
		t.Errorf("second Start() err = %v, want ErrListening", err)
	}
	if err := s.Select(0); !errors.Is(err, ErrListening) {
		t.Errorf("Select while listening err = %v, want ErrListening", err)
	}
}

func TestRestartClearsSeen(t *testing.T) {
	s := loggedIn(t)
	first, _ := s.Start()
	if !s.MarkSeen(first.ID, "E1") || !s.Seen(first.ID, "E1") {
		t.Fatal("expected E1 to be seen")
	}

	s.Stop()
	if s.MarkSeen(first.ID, "E2") {
		t.Error("MarkSeen on a stopped session should be refused")
	}

	second, err := s.Start()
	if err != nil {
		t.Fatal(err)
	}
	if second.ID == first.ID {
		t.Fatal("expected a fresh listening id")
	}
	if s.Seen(second.ID, "E1") {
		t.Error("restart should clear the seen set")
	}
	if s.Active(first.ID) {
		t.Error("old session must not be active")
	}
}

func TestExpire(t *testing.T) {
	s := loggedIn(t)
	ln, _ := s.Start()
	if s.Expire("other") {
		t.Error("Expire with a stale id should be ignored")
	}
	if !s.Expire(ln.ID) {
		t.Fatal("Expire should succeed for the current session")
	}
	if s.Listening() || s.LoggedIn() {
		t.Error("expiry should stop listening and drop the login")
	}
}

func TestLogout(t *testing.T) {
	s := loggedIn(t)
	ln, _ := s.Start()
	s.MarkSeen(ln.ID, "E1")
	s.Logout()

	snap := s.Snapshot()
	if snap.LoggedIn || snap.Listening || len(snap.Courses) != 0 || snap.Selected != -1 || snap.SeenCount != 0 {
		t.Errorf("state not cleared: %+v", snap)
	}
	if s.Credentials() != (Credentials{}) {
		t.Error("credentials not cleared")
	}
}

func TestSelectRef(t *testing.T) {
	s := loggedIn(t)
	c, ok := s.SelectRef("compilers")
	if !ok || c.ClassID != "C2" {
		t.Fatalf("SelectRef = %+v, %v", c, ok)
	}
	if _, ok := s.SelectRef("nope"); ok {
		t.Error("unexpected match")
	}
}

func TestSetLeadTimeClamps(t *testing.T) {
	s := New(-5)
	if s.LeadTime() != 0 {
		t.Errorf("LeadTime() = %d, want 0", s.LeadTime())
	}
	if got := s.SetLeadTime(MaxLeadTime + 1); got != MaxLeadTime {
		t.Errorf("SetLeadTime() = %d, want %d", got, MaxLeadTime)
	}
}
