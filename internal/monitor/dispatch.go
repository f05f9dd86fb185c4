package monitor

import (
	"context"
	"log/slog"

	"github.com/marcin-skalski/dfysign/internal/gateway"
	"github.com/marcin-skalski/dfysign/internal/session"
	"github.com/marcin-skalski/dfysign/internal/signin"
)

type Outcome int

const (
	// OutcomeDeferred: countdown still above the lead time, re-evaluated next tick.
	OutcomeDeferred Outcome = iota
	// OutcomeSkipped: the event cannot be acted on as reported (e.g. no coordinates).
	OutcomeSkipped
	OutcomeSubmitted
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDeferred:
		return "deferred"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeSubmitted:
		return "submitted"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Submitter is the part of the backend the dispatcher calls.
type Submitter interface {
	SubmitCode(ctx context.Context, code string) (gateway.SubmitResult, error)
	SubmitLocation(ctx context.Context, longitude, latitude string) (gateway.SubmitResult, error)
}

type Dispatcher struct {
	backend Submitter
	state   *session.State
	logger  *slog.Logger
}

func NewDispatcher(backend Submitter, state *session.State, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{backend: backend, state: state, logger: logger}
}

// Dispatch decides whether ev is due and, if so, submits it. The event is
// marked seen only after the backend confirms the sign-in.
func (d *Dispatcher) Dispatch(ctx context.Context, ln session.Listen, ev signin.Event) Outcome {
	logger := d.logger.With("id", ev.ID, "type", ev.Kind.String())

	if !ev.Due(ln.LeadTime) {
		logger.Warn("sign-in not yet due", "countdown", ev.Countdown, "lead_time", ln.LeadTime)
		return OutcomeDeferred
	}

	var (
		res gateway.SubmitResult
		err error
	)
	switch ev.Kind {
	case signin.KindCode:
		logger.Info("submitting sign-in code", "code", ev.Code)
		res, err = d.backend.SubmitCode(ctx, ev.Code)
	case signin.KindQRCode:
		logger.Info("submitting QR sign-in")
		res, err = d.backend.SubmitCode(ctx, ev.ID)
	case signin.KindLocation:
		if !ev.HasCoordinates() {
			logger.Warn("location sign-in is missing coordinates", "countdown", ev.Countdown)
			return OutcomeSkipped
		}
		logger.Info("submitting location sign-in", "longitude", ev.Longitude, "latitude", ev.Latitude)
		res, err = d.backend.SubmitLocation(ctx, ev.Longitude, ev.Latitude)
	default:
		logger.Error("unhandled sign-in type", "kind", int(ev.Kind))
		return OutcomeSkipped
	}

	if err != nil {
		if ctx.Err() != nil {
			return OutcomeFailed
		}
		logger.Error("sign-in request failed", "err", err)
		return OutcomeFailed
	}
	if !res.Success {
		logger.Error("sign-in rejected", "message", res.Message)
		return OutcomeFailed
	}

	d.state.MarkSeen(ln.ID, ev.ID)
	logger.Info("sign-in succeeded", "message", res.Message)
	return OutcomeSubmitted
}
