package signin

import (
	"fmt"
	"strings"
)

type Kind int

const (
	KindCode Kind = iota + 1
	KindQRCode
	KindLocation
)

// ParseKind maps the backend check type code ("1", "2", "3") to a Kind.
func ParseKind(code string) (Kind, error) {
	switch strings.TrimSpace(code) {
	case "1":
		return KindCode, nil
	case "2":
		return KindQRCode, nil
	case "3":
		return KindLocation, nil
	default:
		return 0, fmt.Errorf("unknown check type %q", code)
	}
}

func (k Kind) String() string {
	switch k {
	case KindCode:
		return "code"
	case KindQRCode:
		return "qrcode"
	case KindLocation:
		return "location"
	default:
		return "unknown"
	}
}

// Event is one active sign-in activity as reported by a single status poll.
type Event struct {
	ID        string
	Kind      Kind
	Countdown int // seconds until the activity closes
	ClassID   string
	Code      string
	Longitude string
	Latitude  string
}

// Due reports whether the countdown has reached the lead time.
func (e Event) Due(leadTime int) bool {
	return e.Countdown <= leadTime
}

// BelongsTo reports whether the event was raised for the given class.
func (e Event) BelongsTo(classID string) bool {
	return e.ClassID != "" && strings.Contains(e.ClassID, classID)
}

func (e Event) HasCoordinates() bool {
	return strings.TrimSpace(e.Longitude) != "" && strings.TrimSpace(e.Latitude) != ""
}

type Course struct {
	ID        string
	Name      string
	ClassID   string
	ClassName string
	Term      string
}

func (c Course) Label() string {
	if c.ClassName == "" {
		return c.Name
	}
	return c.Name + " (" + c.ClassName + ")"
}

// Matches reports whether ref names this course by course id, class id or name.
func (c Course) Matches(ref string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return false
	}
	return ref == c.ID || ref == c.ClassID || strings.EqualFold(ref, c.Name)
}
