package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/marcin-skalski/dfysign/internal/signin"
)

type SubmitResult struct {
	Success bool
	Message string
}

// flexString accepts either a JSON string or a bare number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type statusData struct {
	Seconds   flexString `json:"HFSeconds"`
	CheckType flexString `json:"HFChecktype"`
	CheckInID flexString `json:"HFCheckInID"`
	ClassID   flexString `json:"HFClassID"`
	CodeKey   flexString `json:"HFCheckCodeKey"`
	Longitude flexString `json:"HFRoomLongitude"`
	Latitude  flexString `json:"HFRoomLatitude"`
}

type statusResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    *statusData `json:"data"`
}

type submitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SignStatus returns the active sign-in event for classID. Any answer that
// does not describe a usable event (non-2xx, bad body, success:false) is
// reported as ErrNoActiveEvent; transport failures are returned as is.
func (c *Client) SignStatus(ctx context.Context, classID string) (*signin.Event, error) {
	code, data, err := c.do(ctx, http.MethodGet, "/sign/status", url.Values{"class_id": {classID}}, nil)
	if err != nil {
		return nil, fmt.Errorf("sign status: %w", err)
	}
	if !isSuccess(code) {
		return nil, fmt.Errorf("%w: status %d", ErrNoActiveEvent, code)
	}

	var resp statusResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoActiveEvent, err)
	}
	if !resp.Success || resp.Data == nil || resp.Data.CheckInID == "" {
		return nil, ErrNoActiveEvent
	}

	return resp.Data.event()
}

func (d *statusData) event() (*signin.Event, error) {
	countdown, err := strconv.Atoi(strings.TrimSpace(string(d.Seconds)))
	if err != nil {
		return nil, fmt.Errorf("%w: countdown %q", ErrNoActiveEvent, d.Seconds)
	}

	kind, err := signin.ParseKind(string(d.CheckType))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedKind, err)
	}

	return &signin.Event{
		ID:        string(d.CheckInID),
		Kind:      kind,
		Countdown: countdown,
		ClassID:   string(d.ClassID),
		Code:      string(d.CodeKey),
		Longitude: string(d.Longitude),
		Latitude:  string(d.Latitude),
	}, nil
}

// SubmitCode submits a sign-in code. QR sign-ins submit the event id here too.
func (c *Client) SubmitCode(ctx context.Context, code string) (SubmitResult, error) {
	res, err := c.submit(ctx, "/sign/submit", map[string]string{"sign_code": code})
	if err != nil {
		return res, fmt.Errorf("submit sign-in: %w", err)
	}
	return res, nil
}

func (c *Client) SubmitLocation(ctx context.Context, longitude, latitude string) (SubmitResult, error) {
	res, err := c.submit(ctx, "/sign/location", map[string]string{
		"longitude": longitude,
		"latitude":  latitude,
	})
	if err != nil {
		return res, fmt.Errorf("submit location sign-in: %w", err)
	}
	return res, nil
}

func (c *Client) submit(ctx context.Context, path string, payload map[string]string) (SubmitResult, error) {
	code, data, err := c.do(ctx, http.MethodPost, path, nil, payload)
	if err != nil {
		return SubmitResult{}, err
	}

	var resp submitResponse
	decodeErr := decode(data, &resp)
	if !isSuccess(code) {
		msg := resp.Message
		if decodeErr != nil {
			msg = ""
		}
		return SubmitResult{Message: msg}, &StatusError{Code: code, Message: msg}
	}
	if decodeErr != nil {
		return SubmitResult{}, decodeErr
	}
	return SubmitResult{Success: resp.Success, Message: resp.Message}, nil
}

// IsNoEvent reports whether err only means that nothing is happening.
func IsNoEvent(err error) bool {
	return errors.Is(err, ErrNoActiveEvent)
}
