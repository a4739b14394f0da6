package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/Louieza23/Letterboxio/pkg/logging"
	"github.com/Louieza23/Letterboxio/pkg/types"
)

// PlaywrightOptions configures PlaywrightLauncher.
type PlaywrightOptions struct {
	// Headless controls whether the browser runs without a visible window
	Headless bool

	// SkipInstall assumes the driver and browsers are already installed
	SkipInstall bool

	// UserAgent overrides the browser's user agent when set
	UserAgent string

	// BlockedResourceTypes are aborted in tabs opened with BlockResources,
	// e.g. "image", "stylesheet", "font", "media"
	BlockedResourceTypes []string

	// BlockedURLPatterns are glob patterns ("**/*.png") aborted alongside them
	BlockedURLPatterns []string

	// DefaultTimeout applies to driver calls that take no explicit timeout
	DefaultTimeout time.Duration
}

// PlaywrightLauncher launches Chromium through playwright-go.
type PlaywrightLauncher struct {
	opts    PlaywrightOptions
	blocker *resourceBlocker
	logger  *logging.Logger

	mu sync.Mutex
	pw *playwright.Playwright
}

// NewPlaywrightLauncher validates opts. The driver itself starts on first Launch.
func NewPlaywrightLauncher(opts PlaywrightOptions, logger *logging.Logger) (*PlaywrightLauncher, error) {
	blocker, err := newResourceBlocker(opts.BlockedResourceTypes, opts.BlockedURLPatterns)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &PlaywrightLauncher{opts: opts, blocker: blocker, logger: logger}, nil
}

// initialize installs and runs the playwright driver once.
func (l *PlaywrightLauncher) initialize() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pw != nil {
		return nil
	}

	// Driver output would otherwise interleave with CLI output
	runOpts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}

	if !l.opts.SkipInstall {
		if err := playwright.Install(runOpts); err != nil {
			return fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}
	l.pw = pw
	return nil
}

// Launch starts a new Chromium with one browser context.
func (l *PlaywrightLauncher) Launch(ctx context.Context) (Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := l.initialize(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	pw := l.pw
	l.mu.Unlock()

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.opts.Headless),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{}
	if l.opts.UserAgent != "" {
		contextOpts.UserAgent = playwright.String(l.opts.UserAgent)
	}
	bctx, err := browser.NewContext(contextOpts)
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}
	if l.opts.DefaultTimeout > 0 {
		bctx.SetDefaultTimeout(millis(l.opts.DefaultTimeout))
	}

	l.logger.Debugf("chromium launched (headless=%t)", l.opts.Headless)
	return &pwBrowser{browser: browser, context: bctx, blocker: l.blocker, logger: l.logger}, nil
}

// Close stops the playwright driver.
func (l *PlaywrightLauncher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pw == nil {
		return nil
	}
	err := l.pw.Stop()
	l.pw = nil
	if err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}

type pwBrowser struct {
	browser playwright.Browser
	context playwright.BrowserContext
	blocker *resourceBlocker
	logger  *logging.Logger
}

func (b *pwBrowser) NewTab(ctx context.Context, opts TabOptions) (Tab, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, err := b.context.NewPage()
	if err != nil {
		return nil, driverError("new page", err)
	}

	if opts.BlockResources {
		err := page.Route("**/*", func(route playwright.Route) {
			req := route.Request()
			if b.blocker.blocks(req.ResourceType(), req.URL()) {
				_ = route.Abort()
				return
			}
			_ = route.Continue()
		})
		if err != nil {
			_ = page.Close()
			return nil, driverError("install resource filter", err)
		}
	}

	return &pwTab{page: page}, nil
}

func (b *pwBrowser) Connected() bool {
	return b.browser.IsConnected()
}

func (b *pwBrowser) Close() error {
	_ = b.context.Close() // Ignore errors, continue cleanup
	if err := b.browser.Close(); err != nil {
		return driverError("close browser", err)
	}
	return nil
}

type pwTab struct {
	page playwright.Page
}

func (t *pwTab) Goto(url string, timeout time.Duration) error {
	_, err := t.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(millis(timeout)),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	return driverError("navigate", err)
}

func (t *pwTab) WaitForSelector(selector string, timeout time.Duration) error {
	err := t.page.Locator(selector).WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(millis(timeout)),
	})
	return driverError("wait for "+selector, err)
}

func (t *pwTab) Fill(selector, value string) error {
	return driverError("fill "+selector, t.page.Locator(selector).Fill(value))
}

func (t *pwTab) Click(selector string) error {
	return driverError("click "+selector, t.page.Locator(selector).Click())
}

func (t *pwTab) WaitForURL(match func(url string) bool, timeout time.Duration) error {
	err := t.page.WaitForURL(match, playwright.PageWaitForURLOptions{
		Timeout: playwright.Float(millis(timeout)),
	})
	return driverError("wait for url", err)
}

func (t *pwTab) URL() string {
	return t.page.URL()
}

func (t *pwTab) Evaluate(expression string, arg interface{}) (interface{}, error) {
	var (
		v   interface{}
		err error
	)
	if arg == nil {
		v, err = t.page.Evaluate(expression)
	} else {
		v, err = t.page.Evaluate(expression, arg)
	}
	return v, driverError("evaluate", err)
}

func (t *pwTab) Cookie(name string) (string, error) {
	cookies, err := t.page.Context().Cookies(t.page.URL())
	if err != nil {
		return "", driverError("read cookies", err)
	}
	for _, c := range cookies {
		if c.Name == name {
			return c.Value, nil
		}
	}
	return "", nil
}

func (t *pwTab) Close() error {
	return driverError("close page", t.page.Close())
}

// driverError tags playwright timeouts as types.ErrNetworkTimeout.
func driverError(step string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%s: %w: %v", step, types.ErrNetworkTimeout, err)
	}
	return fmt.Errorf("%s: %w", step, err)
}

func millis(d time.Duration) float64 {
	return float64(d.Milliseconds())
}
