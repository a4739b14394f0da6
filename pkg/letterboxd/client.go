package letterboxd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/Louieza23/Letterboxio/pkg/logging"
	"github.com/Louieza23/Letterboxio/pkg/types"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "Letterboxio/1.0"
	maxBodyBytes     = 4 << 20
	maxRedirects     = 10
)

// Client performs unauthenticated page fetches against the site.
type Client struct {
	endpoints  Endpoints
	httpClient *http.Client
	userAgent  string
	logger     *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its cookie jar and timeout are kept as given.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client for the site at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	endpoints, err := NewEndpoints(baseURL)
	if err != nil {
		return nil, err
	}

	// The jar keeps challenge/session cookies the site hands out between page fetches.
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	c := &Client{
		endpoints: endpoints,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
			Jar:     jar,
		},
		userAgent: defaultUserAgent,
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient.CheckRedirect == nil {
		c.httpClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		}
	}
	return c, nil
}

// Endpoints returns the URL builder the client uses.
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

// fetch GETs url and returns the body, the final URL after redirects, and the status code.
func (c *Client) fetch(ctx context.Context, url string) ([]byte, string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	c.logger.Debugf("GET %s", url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, "", 0, fmt.Errorf("GET %s: %w", url, types.ErrNetworkTimeout)
		}
		return nil, "", 0, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if isTimeout(err) {
			return nil, "", resp.StatusCode, fmt.Errorf("reading %s: %w", url, types.ErrNetworkTimeout)
		}
		return nil, "", resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	return body, resp.Request.URL.String(), resp.StatusCode, nil
}

// FetchListingPage fetches one page (1-based) of user's watchlist.
func (c *Client) FetchListingPage(ctx context.Context, user string, page int) (ListingPage, error) {
	url := c.endpoints.Watchlist(user, page)
	body, _, status, err := c.fetch(ctx, url)
	if err != nil {
		return ListingPage{}, err
	}
	if status == http.StatusNotFound {
		return ListingPage{}, fmt.Errorf("watchlist %q page %d: %w", user, page, types.ErrNotFound)
	}
	if status != http.StatusOK {
		return ListingPage{}, fmt.Errorf("watchlist %q page %d: unexpected status code: %d", user, page, status)
	}

	return parseListingPage(bytes.NewReader(body))
}

// FetchMetadata fetches and parses the film page for slug.
func (c *Client) FetchMetadata(ctx context.Context, slug string) (types.ItemMetadata, error) {
	url := c.endpoints.Film(slug)
	body, _, status, err := c.fetch(ctx, url)
	if err != nil {
		return types.ItemMetadata{Slug: slug}, err
	}
	if status == http.StatusNotFound {
		return types.ItemMetadata{Slug: slug}, fmt.Errorf("film %q: %w", slug, types.ErrNotFound)
	}
	if status != http.StatusOK {
		return types.ItemMetadata{Slug: slug}, fmt.Errorf("film %q: unexpected status code: %d", slug, status)
	}

	return parseFilmPage(slug, bytes.NewReader(body))
}

// ResolveRedirect follows the site's external-id redirect with a plain HTTP
// request and reads the slug from the final URL. It fails when the site
// blocks non-browser clients, which is the resolver's cue to use the browser.
func (c *Client) ResolveRedirect(ctx context.Context, externalID string) (string, error) {
	url, err := c.endpoints.ExternalRedirect(externalID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrNotFound, err)
	}

	_, finalURL, status, err := c.fetch(ctx, url)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return "", fmt.Errorf("external id %q: %w", externalID, types.ErrNotFound)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("external id %q: unexpected status code: %d", externalID, status)
	}

	slug, ok := SlugFromURL(finalURL)
	if !ok {
		return "", fmt.Errorf("external id %q redirected to %s: %w", externalID, finalURL, types.ErrNotFound)
	}
	return slug, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
