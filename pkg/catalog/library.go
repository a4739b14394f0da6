// Package catalog serves the read paths: a user's watchlist and per-film
// metadata, fetched from the site and held in TTL caches.
//
// Read paths never fail past this package. Fetch errors are logged and degrade
// to partial or empty results.
package catalog

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/sahilm/fuzzy"
	"golang.org/x/sync/singleflight"

	"github.com/Louieza23/Letterboxio/pkg/cache"
	"github.com/Louieza23/Letterboxio/pkg/letterboxd"
	"github.com/Louieza23/Letterboxio/pkg/logging"
	"github.com/Louieza23/Letterboxio/pkg/types"
)

// maxListingPages bounds paging if the site keeps advertising a next page.
const maxListingPages = 200

// Fetcher is the unauthenticated page source. *letterboxd.Client implements it.
type Fetcher interface {
	FetchListingPage(ctx context.Context, user string, page int) (letterboxd.ListingPage, error)
	FetchMetadata(ctx context.Context, slug string) (types.ItemMetadata, error)
}

// TTLs holds cache lifetimes per data kind.
type TTLs struct {
	Listing  time.Duration
	Metadata time.Duration
	Identity time.Duration
}

// DefaultTTLs returns the lifetimes used when none are configured.
func DefaultTTLs() TTLs {
	return TTLs{
		Listing:  10 * time.Minute,
		Metadata: 24 * time.Hour,
		Identity: 7 * 24 * time.Hour,
	}
}

// Library fetches and caches watchlists and film metadata.
type Library struct {
	fetcher    Fetcher
	ttls       TTLs
	listings   *cache.Cache[[]types.ListingItem]
	metadata   *cache.Cache[types.ItemMetadata]
	identities *cache.Cache[string]
	group      singleflight.Group
	logger     *logging.Logger
}

// NewLibrary creates a library. identities is the shared identity map the
// resolver reads; metadata fetches write externalID → slug into it.
func NewLibrary(fetcher Fetcher, identities *cache.Cache[string], ttls TTLs, logger *logging.Logger, opts ...cache.Option) *Library {
	if logger == nil {
		logger = logging.Discard()
	}
	if identities == nil {
		identities = cache.New[string](opts...)
	}
	return &Library{
		fetcher:    fetcher,
		ttls:       ttls,
		listings:   cache.New[[]types.ListingItem](opts...),
		metadata:   cache.New[types.ItemMetadata](opts...),
		identities: identities,
		logger:     logger,
	}
}

// Identities returns the identity map populated by metadata fetches.
func (l *Library) Identities() *cache.Cache[string] {
	return l.identities
}

// shared runs fetch once for all concurrent callers of key. The fetch runs
// on a context detached from any one caller, so a caller that goes away does
// not cut it short for the others; each caller stops waiting when its own ctx
// is done. Individual requests stay bounded by the fetcher's timeout.
func (l *Library) shared(ctx context.Context, key cache.Key, fetch func(context.Context) interface{}) (interface{}, bool) {
	detached := context.WithoutCancel(ctx)
	ch := l.group.DoChan(key.String(), func() (interface{}, error) {
		return fetch(detached), nil
	})
	select {
	case res := <-ch:
		return res.Val, true
	case <-ctx.Done():
		l.logger.Debugf("%s: caller gave up waiting: %v", key, ctx.Err())
		return nil, false
	}
}

// GetListing returns user's full watchlist in site order. Paging stops at the
// last page or at the first fetch error, which is treated as the end of the
// listing. A listing cut short by an error is returned but not cached.
// Callers get their own copy of the slice.
func (l *Library) GetListing(ctx context.Context, user string) []types.ListingItem {
	key := cache.ListingKey(user)
	if items, ok := l.listings.Get(key); ok {
		l.logger.Debugf("cache hit %s (%d items)", key, len(items))
		return slices.Clone(items)
	}

	v, ok := l.shared(ctx, key, func(ctx context.Context) interface{} {
		items, complete := l.fetchAllPages(ctx, user)
		if complete {
			l.listings.Set(key, items, l.ttls.Listing)
		}
		return items
	})
	if !ok {
		return []types.ListingItem{}
	}
	return slices.Clone(v.([]types.ListingItem))
}

func (l *Library) fetchAllPages(ctx context.Context, user string) ([]types.ListingItem, bool) {
	items := make([]types.ListingItem, 0)
	for page := 1; page <= maxListingPages; page++ {
		result, err := l.fetcher.FetchListingPage(ctx, user, page)
		if err != nil {
			l.logger.Warnf("watchlist %s page %d: %v (treating as end of listing)", user, page, err)
			return items, false
		}
		items = append(items, result.Items...)
		if !result.HasMore {
			l.logger.Infof("loaded watchlist %s: %d items over %d pages", user, len(items), page)
			return items, true
		}
	}
	l.logger.Warnf("watchlist %s: stopped after %d pages", user, maxListingPages)
	return items, true
}

// InvalidateListing drops the cached watchlist for user.
func (l *Library) InvalidateListing(user string) {
	l.listings.Delete(cache.ListingKey(user))
	l.logger.Debugf("invalidated %s", cache.ListingKey(user))
}

// GetMetadata returns film metadata, fetching it on a cache miss. A film with
// an external identifier is recorded in the identity map. On fetch failure it
// returns metadata holding only the slug, uncached.
func (l *Library) GetMetadata(ctx context.Context, slug string) types.ItemMetadata {
	key := cache.MetadataKey(slug)
	if meta, ok := l.metadata.Get(key); ok {
		return meta
	}

	v, ok := l.shared(ctx, key, func(ctx context.Context) interface{} {
		meta, err := l.fetcher.FetchMetadata(ctx, slug)
		if err != nil {
			l.logger.Warnf("metadata %s: %v", slug, err)
			return types.ItemMetadata{Slug: slug}
		}
		meta.Slug = slug
		l.metadata.Set(key, meta, l.ttls.Metadata)
		l.RecordIdentity(meta.ExternalID, slug)
		return meta
	})
	if !ok {
		return types.ItemMetadata{Slug: slug}
	}
	return v.(types.ItemMetadata)
}

// RecordIdentity stores externalID → slug in the identity map. Empty ids are ignored.
func (l *Library) RecordIdentity(externalID, slug string) {
	if externalID == "" || slug == "" {
		return
	}
	normalized, ok := letterboxd.NormalizeExternalID(externalID)
	if !ok {
		normalized = externalID
	}
	l.identities.Set(cache.IdentityKey(normalized), slug, l.ttls.Identity)
}

// listingTitles adapts a listing to fuzzy.Source.
type listingTitles []types.ListingItem

func (s listingTitles) String(i int) string { return s[i].Title }
func (s listingTitles) Len() int            { return len(s) }

// Search fuzzy-matches query against the titles of user's watchlist, best match first.
// An empty query returns the whole listing.
func (l *Library) Search(ctx context.Context, user, query string) []types.ListingItem {
	items := l.GetListing(ctx, user)
	if query == "" {
		return items
	}

	matches := fuzzy.FindFrom(query, listingTitles(items))
	results := make([]types.ListingItem, 0, len(matches))
	for _, m := range matches {
		results = append(results, items[m.Index])
	}
	return results
}

// Stats summarises cache occupancy for diagnostics.
func (l *Library) Stats() string {
	return fmt.Sprintf("listings=%d metadata=%d identities=%d",
		l.listings.Len(), l.metadata.Len(), l.identities.Len())
}
