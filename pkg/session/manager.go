package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/Louieza23/Letterboxio/pkg/letterboxd"
	"github.com/Louieza23/Letterboxio/pkg/logging"
	"github.com/Louieza23/Letterboxio/pkg/types"
)

// Manager owns the single authenticated browser session.
type Manager struct {
	launcher  Launcher
	creds     Credentials
	endpoints letterboxd.Endpoints
	timeouts  Timeouts
	logger    *logging.Logger

	mu      sync.Mutex
	state   State
	browser Browser
	csrf    string

	group singleflight.Group

	// surface admits one tab-driving operation at a time
	surface *semaphore.Weighted
}

// NewManager creates a session manager. Nothing is launched until first use.
func NewManager(launcher Launcher, creds Credentials, endpoints letterboxd.Endpoints, timeouts Timeouts, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Manager{
		launcher:  launcher,
		creds:     creds,
		endpoints: endpoints,
		timeouts:  timeouts.withDefaults(),
		logger:    logger,
		state:     StateUninitialized,
		surface:   semaphore.NewWeighted(1),
	}
}

// Enabled reports whether credentials are configured. A disabled manager
// never launches a browser.
func (m *Manager) Enabled() bool {
	return m.launcher != nil && m.creds.Present()
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// GetAuthenticatedSession makes sure a signed-in browser is available,
// launching and logging in if needed. Concurrent callers share one attempt.
// The attempt runs detached from any single caller and is bounded by the
// login step timeouts; a caller whose ctx ends stops waiting for it.
func (m *Manager) GetAuthenticatedSession(ctx context.Context) error {
	if !m.Enabled() {
		return types.ErrNoSession
	}
	if m.ready() {
		return nil
	}

	detached := context.WithoutCancel(ctx)
	ch := m.group.DoChan("login", func() (interface{}, error) {
		return nil, m.launchAndLogin(detached)
	})
	select {
	case res := <-ch:
		if res.Shared {
			m.logger.Debugf("joined in-flight login")
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// acquire takes the browser surface, waiting behind any running action.
func (m *Manager) acquire(ctx context.Context) (func(), error) {
	if err := m.surface.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { m.surface.Release(1) }, nil
}

// ready reports whether the session can be used as is. A logged-in session
// whose browser has gone away is invalidated here.
func (m *Manager) ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateLoggedIn || m.browser == nil {
		return false
	}
	if !m.browser.Connected() {
		m.logger.Warnf("browser disconnected, invalidating session")
		m.closeBrowserLocked()
		m.state = StateInvalidated
		return false
	}
	return true
}

func (m *Manager) launchAndLogin(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateLoggedIn && m.browser != nil {
		m.mu.Unlock()
		return nil
	}
	if m.state == StateInvalidated {
		m.closeBrowserLocked()
	}
	m.state = StateLaunching
	m.csrf = ""
	browser := m.browser
	m.mu.Unlock()

	if browser == nil {
		m.logger.Infof("launching browser")
		b, err := m.launcher.Launch(ctx)
		if err != nil {
			m.setState(StateInvalidated)
			m.logger.Errorf("browser launch failed: %v", err)
			return fmt.Errorf("%w: launch: %v", types.ErrAuthenticationFailed, err)
		}
		browser = b

		m.mu.Lock()
		m.browser = b
		m.state = StateIdle
		m.mu.Unlock()
	}

	token, err := m.login(ctx, browser)
	if err != nil {
		m.logger.Errorf("login as %s failed: %v", m.creds.Username, err)
		m.discard(browser)
		return fmt.Errorf("%w: %v", types.ErrAuthenticationFailed, err)
	}

	m.mu.Lock()
	m.csrf = token
	m.state = StateLoggedIn
	m.mu.Unlock()

	m.logger.Infof("logged in as %s", m.creds.Username)
	return nil
}

// PerformAuthenticatedAction POSTs form to targetURL from inside the signed-in
// browser, with the CSRF token attached. A 401/403 invalidates the session and
// returns types.ErrSessionInvalidated alongside the response. Actions and slug
// lookups never drive the browser at the same time.
func (m *Manager) PerformAuthenticatedAction(ctx context.Context, targetURL string, form url.Values) (*ActionResponse, error) {
	if !m.Enabled() {
		return nil, types.ErrNoSession
	}
	release, err := m.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := m.GetAuthenticatedSession(ctx); err != nil {
		return nil, err
	}

	browser, token, err := m.current()
	if err != nil {
		return nil, err
	}

	tab, err := browser.NewTab(ctx, TabOptions{BlockResources: true})
	if err != nil {
		return nil, m.driverFailure(browser, "open tab", err)
	}
	defer closeTab(tab, m.logger)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := tab.Goto(m.endpoints.Origin(), m.timeouts.Navigation); err != nil {
		return nil, m.driverFailure(browser, "navigate to origin", err)
	}

	resp, err := postForm(tab, targetURL, withCSRF(form, token), m.timeouts.Action)
	if err != nil {
		return nil, m.driverFailure(browser, "post "+targetURL, err)
	}

	if resp.StatusCode == 401 || resp.StatusCode == 403 {
		m.logger.Warnf("post %s returned %d, invalidating session", targetURL, resp.StatusCode)
		m.invalidate()
		return resp, types.ErrSessionInvalidated
	}

	m.logger.Debugf("post %s returned %d", targetURL, resp.StatusCode)
	return resp, nil
}

// ResolveSlug navigates the signed-in browser to an external-id redirect and
// reads the film slug from where it lands.
func (m *Manager) ResolveSlug(ctx context.Context, redirectURL string) (string, error) {
	if !m.Enabled() {
		return "", types.ErrNoSession
	}
	release, err := m.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	if err := m.GetAuthenticatedSession(ctx); err != nil {
		return "", err
	}

	browser, _, err := m.current()
	if err != nil {
		return "", err
	}

	tab, err := browser.NewTab(ctx, TabOptions{BlockResources: true})
	if err != nil {
		return "", m.driverFailure(browser, "open tab", err)
	}
	defer closeTab(tab, m.logger)

	if err := tab.Goto(redirectURL, m.timeouts.Navigation); err != nil {
		return "", m.driverFailure(browser, "navigate to "+redirectURL, err)
	}

	landed := tab.URL()
	slug, ok := letterboxd.SlugFromURL(landed)
	if !ok {
		return "", fmt.Errorf("redirect landed on %s: %w", landed, types.ErrNotFound)
	}
	return slug, nil
}

// Close shuts the browser down and releases the driver.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closeBrowserLocked()
	m.state = StateUninitialized
	m.csrf = ""
	m.mu.Unlock()

	if m.launcher == nil {
		return nil
	}
	return m.launcher.Close()
}

func (m *Manager) current() (Browser, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateLoggedIn || m.browser == nil {
		return nil, "", types.ErrSessionInvalidated
	}
	return m.browser, m.csrf, nil
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// invalidate drops the login but keeps the browser for the next attempt.
func (m *Manager) invalidate() {
	m.mu.Lock()
	m.state = StateInvalidated
	m.csrf = ""
	m.mu.Unlock()
}

// discard closes browser and invalidates the session, unless another
// goroutine already replaced it.
func (m *Manager) discard(browser Browser) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.browser != browser {
		if browser != nil {
			_ = browser.Close()
		}
		return
	}
	m.closeBrowserLocked()
	m.state = StateInvalidated
	m.csrf = ""
}

func (m *Manager) closeBrowserLocked() {
	if m.browser == nil {
		return
	}
	if err := m.browser.Close(); err != nil {
		m.logger.Warnf("closing browser: %v", err)
	}
	m.browser = nil
}

// driverFailure handles an error from the browser driver. Timeouts are
// reported as is; anything else means the browser can no longer be trusted.
func (m *Manager) driverFailure(browser Browser, step string, err error) error {
	if errors.Is(err, types.ErrNetworkTimeout) {
		m.logger.Warnf("%s: %v", step, err)
		return fmt.Errorf("%s: %w", step, err)
	}
	m.logger.Errorf("%s: %v (discarding browser)", step, err)
	m.discard(browser)
	return fmt.Errorf("%s: %w", step, err)
}

func closeTab(tab Tab, logger *logging.Logger) {
	if err := tab.Close(); err != nil {
		logger.Debugf("closing tab: %v", err)
	}
}
