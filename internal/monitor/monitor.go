package monitor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/marcin-skalski/dfysign/internal/gateway"
	"github.com/marcin-skalski/dfysign/internal/session"
	"github.com/marcin-skalski/dfysign/internal/signin"
)

const DefaultInterval = time.Second

type Backend interface {
	Submitter
	CheckLogin(ctx context.Context) (bool, error)
	SignStatus(ctx context.Context, classID string) (*signin.Event, error)
}

// Result tells the caller why a listening session ended.
type Result int

const (
	ResultStopped Result = iota
	ResultExpired
)

type Monitor struct {
	backend    Backend
	state      *session.State
	dispatcher *Dispatcher
	interval   time.Duration
	logger     *slog.Logger
}

func New(backend Backend, state *session.State, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		backend:    backend,
		state:      state,
		dispatcher: NewDispatcher(backend, state, logger),
		interval:   interval,
		logger:     logger,
	}
}

// Run polls until the listening session ln is stopped, ctx is cancelled, or
// the backend reports the login as expired. The next tick is armed only after
// the previous one finished, so there is never more than one poll in flight.
func (m *Monitor) Run(ctx context.Context, ln session.Listen) Result {
	m.logger.Info("listening started", "class", ln.ClassID, "lead_time", ln.LeadTime)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ResultStopped
		case <-timer.C:
		}

		switch m.tick(ctx, ln) {
		case tickExpired:
			return ResultExpired
		case tickStopped:
			return ResultStopped
		}
		timer.Reset(m.interval)
	}
}

type tickResult int

const (
	tickContinue tickResult = iota
	tickStopped
	tickExpired
)

func (m *Monitor) tick(ctx context.Context, ln session.Listen) tickResult {
	if !m.active(ctx, ln) {
		return tickStopped
	}

	logged, err := m.backend.CheckLogin(ctx)
	if !m.active(ctx, ln) {
		return tickStopped
	}
	if err != nil {
		m.logger.Error("login check failed", "err", err)
		return tickContinue
	}
	if !logged {
		if m.state.Expire(ln.ID) {
			m.logger.Error("login expired, please log in again")
			return tickExpired
		}
		return tickStopped
	}

	ev, err := m.backend.SignStatus(ctx, ln.ClassID)
	if !m.active(ctx, ln) {
		return tickStopped
	}
	switch {
	case err == nil:
	case gateway.IsNoEvent(err):
		m.logger.Debug("no active sign-in", "reason", err)
		return tickContinue
	case errors.Is(err, gateway.ErrUnsupportedKind):
		m.logger.Warn("ignoring sign-in of unsupported type", "err", err)
		return tickContinue
	default:
		m.logger.Error("sign-in status request failed", "err", err)
		return tickContinue
	}

	if m.state.Seen(ln.ID, ev.ID) {
		return tickContinue
	}
	if !ev.BelongsTo(ln.ClassID) {
		m.logger.Warn("sign-in belongs to another class", "id", ev.ID, "event_class", ev.ClassID)
		return tickContinue
	}

	m.logger.Info("sign-in detected", "id", ev.ID, "type", ev.Kind.String(), "countdown", ev.Countdown)
	m.dispatcher.Dispatch(ctx, ln, *ev)
	return tickContinue
}

func (m *Monitor) active(ctx context.Context, ln session.Listen) bool {
	return ctx.Err() == nil && m.state.Active(ln.ID)
}
