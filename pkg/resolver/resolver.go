// Package resolver maps external catalog identifiers (IMDb / TMDB ids) to the
// site's film slugs.
//
// Strategies run strictly in order and stop at the first success:
//
//  1. the in-memory identity map, filled as a side effect of metadata fetches;
//  2. a scan of the configured user's watchlist, fetching metadata per item;
//  3. the site's own "resolve by external id" redirect, first with a plain
//     HTTP request and, only if that fails, through the authenticated browser.
//
// A miss on every strategy yields types.ErrNotFound. Callers treat it as
// "skip the action", never as a request failure.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Louieza23/Letterboxio/pkg/cache"
	"github.com/Louieza23/Letterboxio/pkg/letterboxd"
	"github.com/Louieza23/Letterboxio/pkg/logging"
	"github.com/Louieza23/Letterboxio/pkg/types"
)

// Catalog is the read path the listing scan walks. *catalog.Library implements it.
type Catalog interface {
	GetListing(ctx context.Context, user string) []types.ListingItem
	GetMetadata(ctx context.Context, slug string) types.ItemMetadata
	RecordIdentity(externalID, slug string)
}

// RedirectResolver follows the external-id redirect without a browser.
type RedirectResolver interface {
	ResolveRedirect(ctx context.Context, externalID string) (string, error)
}

// BrowserResolver follows the external-id redirect inside the authenticated browser session.
type BrowserResolver interface {
	ResolveSlug(ctx context.Context, redirectURL string) (string, error)
}

// Resolver runs the fallback chain.
type Resolver struct {
	user        string
	catalog     Catalog
	identities  *cache.Cache[string]
	redirect    RedirectResolver
	browser     BrowserResolver
	endpoints   letterboxd.Endpoints
	timeout     time.Duration
	identityTTL time.Duration
	logger      *logging.Logger
}

// Config wires a Resolver. Redirect and Browser are optional.
type Config struct {
	User       string
	Catalog    Catalog
	Identities *cache.Cache[string]
	Redirect   RedirectResolver
	Browser    BrowserResolver
	Endpoints  letterboxd.Endpoints

	// Timeout bounds each site redirect attempt; zero means no extra bound.
	Timeout time.Duration
	// IdentityTTL applies when no Catalog records resolved identities.
	IdentityTTL time.Duration
	Logger      *logging.Logger
}

// New creates a resolver.
func New(cfg Config) *Resolver {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	identities := cfg.Identities
	if identities == nil {
		identities = cache.New[string]()
	}
	return &Resolver{
		user:        cfg.User,
		catalog:     cfg.Catalog,
		identities:  identities,
		redirect:    cfg.Redirect,
		browser:     cfg.Browser,
		endpoints:   cfg.Endpoints,
		timeout:     cfg.Timeout,
		identityTTL: ttlOrDefault(cfg.IdentityTTL),
		logger:      logger,
	}
}

// Resolve returns the slug for externalID or an error wrapping types.ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, externalID string) (string, error) {
	id, ok := letterboxd.NormalizeExternalID(externalID)
	if !ok {
		return "", fmt.Errorf("external id %q: %w", externalID, types.ErrNotFound)
	}

	if slug, ok := r.identities.Get(cache.IdentityKey(id)); ok {
		r.logger.Debugf("resolved %s → %s from identity map", id, slug)
		return slug, nil
	}

	if slug, ok := r.scanListing(ctx, id); ok {
		r.logger.Debugf("resolved %s → %s from listing scan", id, slug)
		return slug, nil
	}

	slug, err := r.resolveViaSite(ctx, id)
	if err != nil {
		r.logger.Warnf("could not resolve %s: %v", id, err)
		return "", fmt.Errorf("external id %q: %w", id, types.ErrNotFound)
	}
	if r.catalog != nil {
		r.catalog.RecordIdentity(id, slug)
	} else {
		r.identities.Set(cache.IdentityKey(id), slug, r.identityTTL)
	}
	r.logger.Infof("resolved %s → %s via site redirect", id, slug)
	return slug, nil
}

// scanListing walks the watchlist in order. Each metadata fetch records its
// own identity mapping, so every visited item is remembered, not just the match.
func (r *Resolver) scanListing(ctx context.Context, id string) (string, bool) {
	if r.user == "" || r.catalog == nil {
		return "", false
	}
	for _, item := range r.catalog.GetListing(ctx, r.user) {
		if ctx.Err() != nil {
			return "", false
		}
		meta := r.catalog.GetMetadata(ctx, item.Slug)
		if !meta.HasExternalID() {
			continue
		}
		if normalized, ok := letterboxd.NormalizeExternalID(meta.ExternalID); ok && normalized == id {
			return item.Slug, true
		}
	}
	return "", false
}

// resolveViaSite is strategy 3: plain redirect first, browser second.
func (r *Resolver) resolveViaSite(ctx context.Context, id string) (string, error) {
	var errs []error

	if r.redirect != nil {
		slug, err := r.withTimeout(ctx, func(ctx context.Context) (string, error) {
			return r.redirect.ResolveRedirect(ctx, id)
		})
		if err == nil {
			return slug, nil
		}
		r.logger.Debugf("redirect resolution for %s failed: %v", id, err)
		errs = append(errs, fmt.Errorf("redirect: %w", err))
	}

	if r.browser != nil {
		redirectURL, err := r.endpoints.ExternalRedirect(id)
		if err != nil {
			return "", errors.Join(append(errs, err)...)
		}
		slug, err := r.withTimeout(ctx, func(ctx context.Context) (string, error) {
			return r.browser.ResolveSlug(ctx, redirectURL)
		})
		if err == nil {
			return slug, nil
		}
		errs = append(errs, fmt.Errorf("browser: %w", err))
	}

	if len(errs) == 0 {
		return "", errors.New("no site resolution strategy configured")
	}
	return "", errors.Join(errs...)
}

func (r *Resolver) withTimeout(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	if r.timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return fn(ctx)
}

func ttlOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 7 * 24 * time.Hour
	}
	return d
}
