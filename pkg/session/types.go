package session

import (
	"context"
	"time"
)

// State is the lifecycle state of the authenticated browser session.
type State int

const (
	// StateUninitialized means no browser has been launched yet
	StateUninitialized State = iota

	// StateLaunching means a launch and login are in flight
	StateLaunching

	// StateIdle means the browser is up but not signed in
	StateIdle

	// StateLoggedIn means the browser holds a signed-in session and a CSRF token
	StateLoggedIn

	// StateInvalidated means the session is unusable and will be rebuilt on next use
	StateInvalidated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLaunching:
		return "launching"
	case StateIdle:
		return "idle"
	case StateLoggedIn:
		return "logged-in"
	case StateInvalidated:
		return "invalidated"
	default:
		return "unknown"
	}
}

// Credentials are the account used to sign in.
type Credentials struct {
	Username string
	Password string
}

// Present reports whether both username and password are set.
func (c Credentials) Present() bool {
	return c.Username != "" && c.Password != ""
}

// Timeouts bounds each browser step.
type Timeouts struct {
	// Navigation bounds page loads
	Navigation time.Duration

	// LoginForm bounds the wait for the credential form. It is long because
	// the site may show an anti-automation interstitial first.
	LoginForm time.Duration

	// LoginSubmit bounds the wait for the post-login redirect
	LoginSubmit time.Duration

	// Action bounds a single in-page POST
	Action time.Duration
}

// DefaultTimeouts returns the timeouts used when none are configured.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Navigation:  30 * time.Second,
		LoginForm:   60 * time.Second,
		LoginSubmit: 30 * time.Second,
		Action:      15 * time.Second,
	}
}

func (t Timeouts) withDefaults() Timeouts {
	d := DefaultTimeouts()
	if t.Navigation <= 0 {
		t.Navigation = d.Navigation
	}
	if t.LoginForm <= 0 {
		t.LoginForm = d.LoginForm
	}
	if t.LoginSubmit <= 0 {
		t.LoginSubmit = d.LoginSubmit
	}
	if t.Action <= 0 {
		t.Action = d.Action
	}
	return t
}

// ActionResponse is the raw outcome of an authenticated POST.
type ActionResponse struct {
	StatusCode int
	Body       string
}

// TabOptions configures a new tab.
type TabOptions struct {
	// BlockResources aborts image, stylesheet, font and media requests
	BlockResources bool
}

// Launcher starts browsers. PlaywrightLauncher is the production implementation.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
	Close() error
}

// Browser is one running browser with a single cookie jar shared by its tabs.
type Browser interface {
	NewTab(ctx context.Context, opts TabOptions) (Tab, error)
	Connected() bool
	Close() error
}

// Tab is a single page. Methods block until the step completes or its timeout passes.
type Tab interface {
	Goto(url string, timeout time.Duration) error
	WaitForSelector(selector string, timeout time.Duration) error
	Fill(selector, value string) error
	Click(selector string) error
	WaitForURL(match func(url string) bool, timeout time.Duration) error
	URL() string
	Evaluate(expression string, arg interface{}) (interface{}, error)
	Cookie(name string) (string, error)
	Close() error
}
