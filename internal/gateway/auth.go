package gateway

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/marcin-skalski/dfysign/internal/signin"
)

type LoginResult struct {
	Message string
	Courses []signin.Course
}

type courseWire struct {
	CourseID   string `json:"CourseID"`
	CourseName string `json:"CourseName"`
	TClassID   string `json:"TClassID"`
	ClassName  string `json:"ClassName"`
	TermName   string `json:"TermName"`
}

// legacyCourseWire is the course shape served by the older front-end contract.
type legacyCourseWire struct {
	CourseID   string `json:"course_id"`
	CourseName string `json:"course_name"`
}

type loginResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Courses []courseWire `json:"courses"`
}

type courseListResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Courses []courseWire `json:"courses"`
}

type checkLoginResponse struct {
	Logged *bool `json:"logged"`
}

func (w courseWire) course() signin.Course {
	return signin.Course{
		ID:        w.CourseID,
		Name:      w.CourseName,
		ClassID:   w.TClassID,
		ClassName: w.ClassName,
		Term:      w.TermName,
	}
}

func toCourses(ws []courseWire) []signin.Course {
	courses := make([]signin.Course, 0, len(ws))
	for _, w := range ws {
		courses = append(courses, w.course())
	}
	return courses
}

// LoginPassword logs in with account credentials.
func (c *Client) LoginPassword(ctx context.Context, username, password string) (*LoginResult, error) {
	return c.login(ctx, "/auth/login/password", map[string]string{
		"username": username,
		"password": password,
	})
}

// LoginWechat logs in with a WeChat authorization link.
func (c *Client) LoginWechat(ctx context.Context, link string) (*LoginResult, error) {
	return c.login(ctx, "/auth/login/wechat", map[string]string{"link": link})
}

func (c *Client) login(ctx context.Context, path string, payload map[string]string) (*LoginResult, error) {
	code, data, err := c.do(ctx, http.MethodPost, path, nil, payload)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if !isSuccess(code) {
		return nil, fmt.Errorf("login: %w", &StatusError{Code: code, Message: messageOf(data)})
	}

	var resp loginResponse
	if err := decode(data, &resp); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("login rejected: %s", resp.Message)
	}

	return &LoginResult{Message: resp.Message, Courses: toCourses(resp.Courses)}, nil
}

// CheckLogin asks the backend whether its upstream session is still valid.
func (c *Client) CheckLogin(ctx context.Context) (bool, error) {
	code, data, err := c.do(ctx, http.MethodGet, "/auth/check", nil, nil)
	if err != nil {
		return false, fmt.Errorf("check login: %w", err)
	}
	if !isSuccess(code) {
		return false, fmt.Errorf("check login: %w", &StatusError{Code: code, Message: messageOf(data)})
	}

	var resp checkLoginResponse
	if err := decode(data, &resp); err != nil {
		return false, fmt.Errorf("check login: %w", err)
	}
	if resp.Logged == nil {
		return false, fmt.Errorf("check login: %w: missing logged field", ErrMalformedResponse)
	}
	return *resp.Logged, nil
}

// ListCourses fetches the enrolled courses. Both the current
// {success, courses} envelope and the legacy bare array are accepted.
func (c *Client) ListCourses(ctx context.Context) ([]signin.Course, error) {
	code, data, err := c.do(ctx, http.MethodGet, "/course/list", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	if !isSuccess(code) {
		return nil, fmt.Errorf("list courses: %w", &StatusError{Code: code, Message: messageOf(data)})
	}

	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		var legacy []legacyCourseWire
		if err := decode(trimmed, &legacy); err != nil {
			return nil, fmt.Errorf("list courses: %w", err)
		}
		courses := make([]signin.Course, 0, len(legacy))
		for _, l := range legacy {
			courses = append(courses, signin.Course{ID: l.CourseID, Name: l.CourseName, ClassID: l.CourseID})
		}
		return courses, nil
	}

	var resp courseListResponse
	if err := decode(data, &resp); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("list courses rejected: %s", resp.Message)
	}
	return toCourses(resp.Courses), nil
}
