package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/Louieza23/Letterboxio/pkg/letterboxd"
)

// csrfInputScript reads the CSRF token from the hidden form input every
// site page carries, for when the cookie is not visible to the driver.
const csrfInputScript = `() => {
	const el = document.querySelector('input[name="` + letterboxd.CSRFInputName + `"]');
	return el ? el.value : "";
}`

// login runs the sign-in transcript in a fresh tab and returns the CSRF token.
func (m *Manager) login(ctx context.Context, browser Browser) (string, error) {
	tab, err := browser.NewTab(ctx, TabOptions{})
	if err != nil {
		return "", fmt.Errorf("open tab: %w", err)
	}
	defer closeTab(tab, m.logger)

	signIn := m.endpoints.SignIn()
	m.logger.Debugf("navigating to %s", signIn)
	if err := tab.Goto(signIn, m.timeouts.Navigation); err != nil {
		return "", fmt.Errorf("navigate to sign-in: %w", err)
	}

	if err := tab.WaitForSelector(letterboxd.UsernameSelector, m.timeouts.LoginForm); err != nil {
		return "", fmt.Errorf("credential form did not appear: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := tab.Fill(letterboxd.UsernameSelector, m.creds.Username); err != nil {
		return "", fmt.Errorf("fill username: %w", err)
	}
	if err := tab.Fill(letterboxd.PasswordSelector, m.creds.Password); err != nil {
		return "", fmt.Errorf("fill password: %w", err)
	}
	if err := tab.Click(letterboxd.SubmitSelector); err != nil {
		return "", fmt.Errorf("submit credentials: %w", err)
	}

	leftSignIn := func(u string) bool { return !m.endpoints.IsSignIn(u) }
	if err := tab.WaitForURL(leftSignIn, m.timeouts.LoginSubmit); err != nil {
		return "", fmt.Errorf("still on sign-in page after submit: %w", err)
	}
	if m.endpoints.IsSignIn(tab.URL()) {
		return "", errors.New("still on sign-in page after submit")
	}

	token, err := readCSRF(tab)
	if err != nil {
		return "", err
	}
	m.logger.Debugf("captured csrf token after login, landed on %s", tab.URL())
	return token, nil
}

// readCSRF prefers the CSRF cookie and falls back to the page's hidden input.
func readCSRF(tab Tab) (string, error) {
	token, err := tab.Cookie(letterboxd.CSRFCookieName)
	if err == nil && token != "" {
		return token, nil
	}

	v, evalErr := tab.Evaluate(csrfInputScript, nil)
	if evalErr != nil {
		return "", fmt.Errorf("read csrf input: %w", evalErr)
	}
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("no csrf token after login")
}
