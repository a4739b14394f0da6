// Package addon is the core's inbound contract: the read paths a catalog
// surface serves from, and the rating / watchlist mutations it triggers.
package addon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/Louieza23/Letterboxio/pkg/catalog"
	"github.com/Louieza23/Letterboxio/pkg/letterboxd"
	"github.com/Louieza23/Letterboxio/pkg/logging"
	"github.com/Louieza23/Letterboxio/pkg/queue"
	"github.com/Louieza23/Letterboxio/pkg/resolver"
	"github.com/Louieza23/Letterboxio/pkg/session"
	"github.com/Louieza23/Letterboxio/pkg/types"
)

// Session is the authenticated browser surface. *session.Manager implements it.
type Session interface {
	Enabled() bool
	PerformAuthenticatedAction(ctx context.Context, targetURL string, form url.Values) (*session.ActionResponse, error)
	Close() error
}

// Service ties the catalog, resolver, session and action queue together.
type Service struct {
	user      string
	endpoints letterboxd.Endpoints
	library   *catalog.Library
	resolver  *resolver.Resolver
	session   Session
	queue     *queue.Queue
	dedup     *queue.Deduplicator
	logger    *logging.Logger
}

// Deps are the collaborators of a Service. Session may be nil when no
// credentials are configured.
type Deps struct {
	User      string
	Endpoints letterboxd.Endpoints
	Library   *catalog.Library
	Resolver  *resolver.Resolver
	Session   Session
	Queue     *queue.Queue
	Dedup     *queue.Deduplicator
	Logger    *logging.Logger
}

// New builds a Service from explicit collaborators.
func New(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	q := d.Queue
	if q == nil {
		q = queue.New(logger.With("queue"))
	}
	dedup := d.Dedup
	if dedup == nil {
		dedup = queue.NewDeduplicator(queue.DefaultDedupWindow)
	}
	return &Service{
		user:      d.User,
		endpoints: d.Endpoints,
		library:   d.Library,
		resolver:  d.Resolver,
		session:   d.Session,
		queue:     q,
		dedup:     dedup,
		logger:    logger,
	}
}

// User returns the watchlist owner the service mirrors.
func (s *Service) User() string {
	return s.user
}

// GetListing returns the configured user's watchlist.
func (s *Service) GetListing(ctx context.Context) []types.ListingItem {
	return s.library.GetListing(ctx, s.user)
}

// GetMetadata returns metadata for slug; missing fields are left empty.
func (s *Service) GetMetadata(ctx context.Context, slug string) types.ItemMetadata {
	return s.library.GetMetadata(ctx, slug)
}

// Resolve maps an external id to a slug. The error wraps types.ErrNotFound on a miss.
func (s *Service) Resolve(ctx context.Context, externalID string) (string, error) {
	return s.resolver.Resolve(ctx, externalID)
}

// Search fuzzy-matches query against the watchlist titles.
func (s *Service) Search(ctx context.Context, query string) []types.ListingItem {
	return s.library.Search(ctx, s.user, query)
}

// Rate records a half-star rating (0.5..5.0) for slug.
func (s *Service) Rate(ctx context.Context, slug string, stars float64) types.ActionResult {
	form, ok := letterboxd.RatingForm(stars)
	if !ok {
		return types.Failed(fmt.Errorf("%w: %v stars", types.ErrInvalidRating, stars))
	}
	return s.mutate(ctx, types.ActionRate, slug, s.endpoints.Rate(slug), form)
}

// SetWatchlistMembership adds slug to, or removes it from, the watchlist.
func (s *Service) SetWatchlistMembership(ctx context.Context, slug string, present bool) types.ActionResult {
	return s.mutate(ctx, types.WatchlistAction(present), slug, s.endpoints.WatchlistMembership(slug, present), url.Values{})
}

// mutationResponse is the JSON body the site answers mutating posts with.
type mutationResponse struct {
	Result   bool     `json:"result"`
	Messages []string `json:"messages"`
}

func (s *Service) mutate(ctx context.Context, kind types.ActionKind, slug, target string, form url.Values) types.ActionResult {
	if !s.sessionEnabled() {
		return types.Failed(types.ErrNoSession)
	}

	resp, err := s.session.PerformAuthenticatedAction(ctx, target, form)
	if err != nil {
		s.logger.Warnf("%s %s: %v", kind, slug, err)
		return types.Failed(err)
	}

	if err := checkMutationResponse(resp); err != nil {
		s.logger.Warnf("%s %s: %v", kind, slug, err)
		return types.Failed(err)
	}

	s.library.InvalidateListing(s.user)
	s.logger.Infof("%s %s succeeded", kind, slug)
	return types.Succeeded()
}

func checkMutationResponse(resp *session.ActionResponse) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", types.ErrUpstreamUnexpectedResponse, resp.StatusCode)
	}

	var body mutationResponse
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		return fmt.Errorf("%w: %v", types.ErrUpstreamUnexpectedResponse, err)
	}
	if !body.Result {
		if len(body.Messages) > 0 {
			return fmt.Errorf("%w: %s", types.ErrUpstreamUnexpectedResponse, strings.Join(body.Messages, "; "))
		}
		return fmt.Errorf("%w: result false", types.ErrUpstreamUnexpectedResponse)
	}
	return nil
}

func (s *Service) sessionEnabled() bool {
	return s.session != nil && s.session.Enabled()
}

// Close drains queued actions, then shuts the browser down.
func (s *Service) Close(ctx context.Context) error {
	var errs []error
	if err := s.queue.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("drain queue: %w", err))
	}
	if s.session != nil {
		if err := s.session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Stats summarises cache and queue state for diagnostics.
func (s *Service) Stats() string {
	processed, failed := s.queue.Stats()
	return fmt.Sprintf("%s queue_pending=%d processed=%d failed=%d",
		s.library.Stats(), s.queue.Len(), processed, failed)
}
