package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marcin-skalski/dfysign/internal/signin"
)

const (
	DefaultLeadTime = 10
	MaxLeadTime     = 600
)

var (
	ErrNotLoggedIn = errors.New("not logged in")
	ErrNoCourse    = errors.New("no course selected")
	ErrListening   = errors.New("already listening")
)

type Credentials struct {
	Method   string // password|wechat
	Username string
	Password string
	Link     string
}

// Listen is the immutable view of one listening session handed to the
// monitoring loop. The loop only acts while its ID is the current one.
type Listen struct {
	ID       string
	CourseID string
	ClassID  string
	LeadTime int
	Started  time.Time
}

// State holds everything the client knows between login and logout.
// It is created empty, filled by LogIn, and reset by Logout.
type State struct {
	mu sync.Mutex

	loggedIn bool
	creds    Credentials
	courses  []signin.Course
	selected int // -1 = none

	listening bool
	listen    Listen
	seen      map[string]struct{}
	leadTime  int
}

func New(leadTime int) *State {
	return &State{
		selected: -1,
		seen:     make(map[string]struct{}),
		leadTime: clampLeadTime(leadTime),
	}
}

func clampLeadTime(v int) int {
	if v < 0 {
		return 0
	}
	if v > MaxLeadTime {
		return MaxLeadTime
	}
	return v
}

// LogIn records a successful login and its course list. The first course is
// selected; callers can pick another with Select or SelectRef.
func (s *State) LogIn(creds Credentials, courses []signin.Course) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loggedIn = true
	s.creds = creds
	s.courses = append([]signin.Course(nil), courses...)
	s.selected = -1
	if len(s.courses) > 0 {
		s.selected = 0
	}
}

func (s *State) LoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedIn
}

func (s *State) Credentials() Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds
}

func (s *State) Courses() []signin.Course {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]signin.Course(nil), s.courses...)
}

func (s *State) Select(idx int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listening {
		return ErrListening
	}
	if idx < 0 || idx >= len(s.courses) {
		return fmt.Errorf("course index %d out of range", idx)
	}
	s.selected = idx
	return nil
}

// SelectRef selects the course matching ref by id, class id or name.
func (s *State) SelectRef(ref string) (signin.Course, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listening {
		return signin.Course{}, false
	}
	for i, c := range s.courses {
		if c.Matches(ref) {
			s.selected = i
			return c, true
		}
	}
	return signin.Course{}, false
}

func (s *State) Selected() (signin.Course, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected < 0 || s.selected >= len(s.courses) {
		return signin.Course{}, false
	}
	return s.courses[s.selected], true
}

func (s *State) LeadTime() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leadTime
}

// SetLeadTime changes the threshold used by the next Start.
func (s *State) SetLeadTime(v int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leadTime = clampLeadTime(v)
	return s.leadTime
}

// Start opens a new listening session on the selected course. The seen set
// is cleared and the current lead time is captured.
func (s *State) Start() (Listen, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loggedIn {
		return Listen{}, ErrNotLoggedIn
	}
	if s.listening {
		return Listen{}, ErrListening
	}
	if s.selected < 0 || s.selected >= len(s.courses) {
		return Listen{}, ErrNoCourse
	}
	c := s.courses[s.selected]
	if c.ClassID == "" {
		return Listen{}, fmt.Errorf("course %q has no class id", c.Name)
	}

	s.listening = true
	s.seen = make(map[string]struct{})
	s.listen = Listen{
		ID:       uuid.NewString(),
		CourseID: c.ID,
		ClassID:  c.ClassID,
		LeadTime: s.leadTime,
		Started:  time.Now(),
	}
	return s.listen, nil
}

// Stop ends the current listening session, if any.
func (s *State) Stop() (Listen, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.listening {
		return Listen{}, false
	}
	s.listening = false
	return s.listen, true
}

// Expire ends listening session id because the backend reported the login as
// gone. It returns false when id is no longer the current session.
func (s *State) Expire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked(id) {
		return false
	}
	s.listening = false
	s.loggedIn = false
	return true
}

// Active reports whether id is the running listening session.
func (s *State) Active(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked(id)
}

func (s *State) activeLocked(id string) bool {
	return s.listening && s.listen.ID == id
}

func (s *State) Listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listening
}

func (s *State) Seen(id, eventID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listen.ID != id {
		return false
	}
	_, ok := s.seen[eventID]
	return ok
}

// MarkSeen records eventID as handled in listening session id.
func (s *State) MarkSeen(id, eventID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked(id) {
		return false
	}
	s.seen[eventID] = struct{}{}
	return true
}

// Logout stops listening and forgets credentials, courses and history.
func (s *State) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listening = false
	s.loggedIn = false
	s.creds = Credentials{}
	s.courses = nil
	s.selected = -1
	s.listen = Listen{}
	s.seen = make(map[string]struct{})
}

type Snapshot struct {
	LoggedIn  bool
	User      string
	Courses   []signin.Course
	Selected  int
	Listening bool
	Listen    Listen
	SeenCount int
	LeadTime  int
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.creds.Username
	if user == "" && s.creds.Method == "wechat" {
		user = "wechat"
	}
	return Snapshot{
		LoggedIn:  s.loggedIn,
		User:      user,
		Courses:   append([]signin.Course(nil), s.courses...),
		Selected:  s.selected,
		Listening: s.listening,
		Listen:    s.listen,
		SeenCount: len(s.seen),
		LeadTime:  s.leadTime,
	}
}
