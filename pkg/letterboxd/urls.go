package letterboxd

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Markup and cookie names the site uses for the sign-in flow and mutating requests.
const (
	UsernameSelector = `input[name="username"]`
	PasswordSelector = `input[name="password"]`
	SubmitSelector   = `form#signin-form button[type="submit"], form#signin button[type="submit"], form[action*="login"] input[type="submit"]`
	CSRFInputName    = "__csrf"
	CSRFCookieName   = "com.xk72.webparts.csrf"
	signInPath       = "/sign-in/"
)

var (
	filmPathPattern = regexp.MustCompile(`^/film/([a-z0-9][a-z0-9-]*)/?`)
	imdbIDPattern   = regexp.MustCompile(`^tt\d{5,}$`)
	tmdbIDPattern   = regexp.MustCompile(`^\d+$`)
)

// Endpoints builds absolute site URLs from a base URL.
type Endpoints struct {
	base *url.URL
}

// NewEndpoints parses baseURL (e.g. "https://letterboxd.com").
func NewEndpoints(baseURL string) (Endpoints, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return Endpoints{}, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Endpoints{}, fmt.Errorf("invalid base url %q: scheme and host are required", baseURL)
	}
	return Endpoints{base: u}, nil
}

func (e Endpoints) join(path string) string {
	u := *e.base
	u.Path = strings.TrimRight(e.base.Path, "/") + path
	return u.String()
}

// Origin returns the site root, used to establish the page origin before in-page requests.
func (e Endpoints) Origin() string { return e.join("/") }

// SignIn returns the sign-in page URL.
func (e Endpoints) SignIn() string { return e.join(signInPath) }

// Watchlist returns the URL of a watchlist page; page numbers start at 1.
func (e Endpoints) Watchlist(user string, page int) string {
	if page <= 1 {
		return e.join(fmt.Sprintf("/%s/watchlist/", url.PathEscape(user)))
	}
	return e.join(fmt.Sprintf("/%s/watchlist/page/%d/", url.PathEscape(user), page))
}

// Film returns the film page URL.
func (e Endpoints) Film(slug string) string {
	return e.join(fmt.Sprintf("/film/%s/", url.PathEscape(slug)))
}

// Rate returns the endpoint that records a rating for slug.
func (e Endpoints) Rate(slug string) string {
	return e.join(fmt.Sprintf("/s/film/%s/rate/", url.PathEscape(slug)))
}

// WatchlistMembership returns the endpoint adding slug to, or removing it from, the watchlist.
func (e Endpoints) WatchlistMembership(slug string, present bool) string {
	if present {
		return e.join(fmt.Sprintf("/film/%s/add-to-watchlist/", url.PathEscape(slug)))
	}
	return e.join(fmt.Sprintf("/film/%s/remove-from-watchlist/", url.PathEscape(slug)))
}

// ExternalRedirect returns the site URL that redirects an external identifier
// to its film page. IMDb ids ("tt0816692", optionally with ":season:episode")
// and TMDB ids ("tmdb:157336") are supported.
func (e Endpoints) ExternalRedirect(externalID string) (string, error) {
	kind, id, ok := ParseExternalID(externalID)
	if !ok {
		return "", fmt.Errorf("unsupported external id %q", externalID)
	}
	return e.join(fmt.Sprintf("/%s/%s/", kind, id)), nil
}

// IsSignIn reports whether rawURL points at the sign-in page.
func (e Endpoints) IsSignIn(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasPrefix(u.Path, strings.TrimRight(e.base.Path, "/")+signInPath) ||
		strings.HasPrefix(u.Path, "/user/login")
}

// SlugFromURL extracts the film slug from a film page URL or path.
func SlugFromURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	m := filmPathPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ParseExternalID splits an external identifier into its redirect kind ("imdb"
// or "tmdb") and bare id.
func ParseExternalID(externalID string) (kind, id string, ok bool) {
	externalID = strings.TrimSpace(externalID)
	if rest, found := strings.CutPrefix(externalID, "tmdb:"); found {
		if tmdbIDPattern.MatchString(rest) {
			return "tmdb", rest, true
		}
		return "", "", false
	}

	// Series ids carry ":season:episode"; the film/show mapping only needs the title id.
	base, _, _ := strings.Cut(externalID, ":")
	if imdbIDPattern.MatchString(base) {
		return "imdb", base, true
	}
	return "", "", false
}

// NormalizeExternalID returns the canonical form used as an identity key:
// the bare IMDb id or "tmdb:<n>".
func NormalizeExternalID(externalID string) (string, bool) {
	kind, id, ok := ParseExternalID(externalID)
	if !ok {
		return "", false
	}
	if kind == "tmdb" {
		return "tmdb:" + id, true
	}
	return id, true
}

// RatingValue maps a half-star value in [0.5, 5.0] to the site's 1..10 scale.
func RatingValue(stars float64) (int, bool) {
	doubled := stars * 2
	n := int(doubled)
	if float64(n) != doubled || n < 1 || n > 10 {
		return 0, false
	}
	return n, true
}

// RatingForm builds the form body of a rating request.
func RatingForm(stars float64) (url.Values, bool) {
	n, ok := RatingValue(stars)
	if !ok {
		return nil, false
	}
	return url.Values{"rating": {strconv.Itoa(n)}}, true
}
