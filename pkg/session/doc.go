// Package session manages the one authenticated browser session used for
// mutating actions on the site.
//
// The site rejects plain HTTP posts from non-browser clients, so ratings and
// watchlist changes are sent from inside a signed-in browser page.
//
// # Lifecycle
//
// A Manager moves through these states:
//
//	Uninitialized -> Launching -> Idle -> LoggedIn
//	                     ^                    |
//	                     +--- Invalidated <---+
//
// The first GetAuthenticatedSession launches the browser and runs the login
// transcript: open the sign-in page, wait for the credential form, fill and
// submit it, wait to leave the sign-in page, then capture the CSRF token.
// Concurrent callers share the in-flight attempt.
//
// A 401 or 403 from an authenticated action, a failed login, or an
// unexpected driver error moves the session to Invalidated. The next caller
// relaunches and signs in again.
//
// # Drivers
//
// The Manager talks to the browser through the Launcher, Browser and Tab
// interfaces. PlaywrightLauncher drives Chromium via playwright-go. Tabs
// opened for actions abort images, stylesheets, fonts and media, plus any
// URL matching the configured glob patterns.
//
// # Example Usage
//
//	launcher, err := session.NewPlaywrightLauncher(session.PlaywrightOptions{Headless: true}, logger)
//	mgr := session.NewManager(launcher, creds, endpoints, session.DefaultTimeouts(), logger)
//	defer mgr.Close()
//
//	resp, err := mgr.PerformAuthenticatedAction(ctx, endpoints.Rate("heat"), url.Values{"rating": {"9"}})
package session
