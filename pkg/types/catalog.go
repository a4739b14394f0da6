package types

import "fmt"

// ListingItem is one film from a user's watchlist, in site order.
type ListingItem struct {
	// Slug is the site's canonical path segment, e.g. "interstellar".
	Slug string `json:"slug"`

	// Title is the display name from the poster markup.
	Title string `json:"title"`

	// FilmID is the site's numeric film id when the markup exposes it.
	FilmID string `json:"filmId,omitempty"`
}

// ItemMetadata describes one film page. Any field except Slug may be empty
// when the page markup does not carry it.
type ItemMetadata struct {
	Slug string `json:"slug"`

	// ExternalID is the catalog identifier used by the streaming platform (IMDb "tt…").
	ExternalID string `json:"externalId,omitempty"`

	Title       string `json:"title,omitempty"`
	Year        int    `json:"year,omitempty"`
	Poster      string `json:"poster,omitempty"`
	Description string `json:"description,omitempty"`
}

// HasExternalID reports whether the site maps this film to an external identifier.
func (m ItemMetadata) HasExternalID() bool {
	return m.ExternalID != ""
}

// ActionKind identifies a mutating action for logging and deduplication.
type ActionKind string

const (
	ActionRate            ActionKind = "rate"
	ActionWatchlistAdd    ActionKind = "watchlist_add"
	ActionWatchlistRemove ActionKind = "watchlist_remove"
)

// WatchlistAction returns the action kind for a watchlist membership change.
func WatchlistAction(present bool) ActionKind {
	if present {
		return ActionWatchlistAdd
	}
	return ActionWatchlistRemove
}

// ActionResult is the structured outcome of a mutating action.
type ActionResult struct {
	Success bool
	Err     error
}

// Succeeded builds a successful result.
func Succeeded() ActionResult {
	return ActionResult{Success: true}
}

// Failed builds a failed result carrying err.
func Failed(err error) ActionResult {
	return ActionResult{Err: err}
}

// String renders the result for log lines.
func (r ActionResult) String() string {
	if r.Success {
		return "success"
	}
	if r.Err == nil {
		return "failure"
	}
	return fmt.Sprintf("failure: %v", r.Err)
}
