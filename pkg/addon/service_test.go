package addon

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Louieza23/Letterboxio/pkg/cache"
	"github.com/Louieza23/Letterboxio/pkg/catalog"
	"github.com/Louieza23/Letterboxio/pkg/letterboxd"
	"github.com/Louieza23/Letterboxio/pkg/queue"
	"github.com/Louieza23/Letterboxio/pkg/resolver"
	"github.com/Louieza23/Letterboxio/pkg/session"
	"github.com/Louieza23/Letterboxio/pkg/types"
)

const testBase = "https://letterboxd.test"

type stubFetcher struct {
	listingCalls int32
}

func (f *stubFetcher) FetchListingPage(ctx context.Context, user string, page int) (letterboxd.ListingPage, error) {
	atomic.AddInt32(&f.listingCalls, 1)
	return letterboxd.ListingPage{Items: []types.ListingItem{
		{Slug: "heat", Title: "Heat"},
		{Slug: "interstellar", Title: "Interstellar"},
	}}, nil
}

func (f *stubFetcher) FetchMetadata(ctx context.Context, slug string) (types.ItemMetadata, error) {
	switch slug {
	case "heat":
		return types.ItemMetadata{ExternalID: "tt0113277", Title: "Heat", Year: 1995}, nil
	case "interstellar":
		return types.ItemMetadata{ExternalID: "tt0816692", Title: "Interstellar", Year: 2014}, nil
	}
	return types.ItemMetadata{}, types.ErrNotFound
}

type call struct {
	target string
	form   url.Values
}

type fakeSession struct {
	mu       sync.Mutex
	enabled  bool
	calls    []call
	status   int
	body     string
	err      error
	closed   bool
	callHook func()
}

func (s *fakeSession) Enabled() bool { return s.enabled }

func (s *fakeSession) PerformAuthenticatedAction(ctx context.Context, target string, form url.Values) (*session.ActionResponse, error) {
	s.mu.Lock()
	s.calls = append(s.calls, call{target: target, form: form})
	hook := s.callHook
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	if s.err != nil {
		return nil, s.err
	}
	return &session.ActionResponse{StatusCode: s.status, Body: s.body}, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) Calls() []call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]call(nil), s.calls...)
}

func okSession() *fakeSession {
	return &fakeSession{enabled: true, status: 200, body: `{"result":true,"csrf":"abc"}`}
}

func newTestService(t *testing.T, sess Session) (*Service, *stubFetcher) {
	t.Helper()

	endpoints, err := letterboxd.NewEndpoints(testBase)
	require.NoError(t, err)

	fetcher := &stubFetcher{}
	identities := cache.New[string]()
	library := catalog.NewLibrary(fetcher, identities, catalog.DefaultTTLs(), nil)
	res := resolver.New(resolver.Config{
		User:       "alice",
		Catalog:    library,
		Identities: identities,
		Endpoints:  endpoints,
	})

	return New(Deps{
		User:      "alice",
		Endpoints: endpoints,
		Library:   library,
		Resolver:  res,
		Session:   sess,
		Dedup:     queue.NewDeduplicator(5 * time.Second),
	}), fetcher
}

func waitQueue(t *testing.T, s *Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.queue.Wait(ctx))
}

func TestService_RateMapsHalfStars(t *testing.T) {
	tests := []struct {
		stars float64
		want  string
	}{
		{0.5, "1"},
		{3, "6"},
		{4.5, "9"},
		{5, "10"},
	}

	for _, tt := range tests {
		sess := okSession()
		svc, _ := newTestService(t, sess)

		result := svc.Rate(context.Background(), "heat", tt.stars)
		require.True(t, result.Success, "stars %v: %v", tt.stars, result)

		calls := sess.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, testBase+"/s/film/heat/rate/", calls[0].target)
		assert.Equal(t, tt.want, calls[0].form.Get("rating"), "stars %v", tt.stars)
	}
}

func TestService_RateRejectsInvalidWithoutNetwork(t *testing.T) {
	for _, stars := range []float64{0, -1, 3.3, 5.5, 10} {
		sess := okSession()
		svc, _ := newTestService(t, sess)

		result := svc.Rate(context.Background(), "heat", stars)
		assert.False(t, result.Success)
		assert.True(t, errors.Is(result.Err, types.ErrInvalidRating), "stars %v", stars)
		assert.Empty(t, sess.Calls(), "stars %v must not reach the network", stars)
	}
}

func TestService_SetWatchlistMembership(t *testing.T) {
	sess := okSession()
	svc, _ := newTestService(t, sess)

	assert.True(t, svc.SetWatchlistMembership(context.Background(), "heat", true).Success)
	assert.True(t, svc.SetWatchlistMembership(context.Background(), "heat", false).Success)

	calls := sess.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, testBase+"/film/heat/add-to-watchlist/", calls[0].target)
	assert.Equal(t, testBase+"/film/heat/remove-from-watchlist/", calls[1].target)
}

func TestService_UnexpectedResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"result false", 200, `{"result":false,"messages":["Please sign in"]}`},
		{"not json", 200, `<html>challenge</html>`},
		{"server error", 500, `{"result":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &fakeSession{enabled: true, status: tt.status, body: tt.body}
			svc, _ := newTestService(t, sess)

			result := svc.SetWatchlistMembership(context.Background(), "heat", true)
			assert.False(t, result.Success)
			assert.True(t, errors.Is(result.Err, types.ErrUpstreamUnexpectedResponse), "got %v", result.Err)
		})
	}
}

func TestService_SessionErrorsSurface(t *testing.T) {
	sess := okSession()
	sess.err = types.ErrSessionInvalidated
	svc, _ := newTestService(t, sess)

	result := svc.Rate(context.Background(), "heat", 4)
	assert.False(t, result.Success)
	assert.True(t, errors.Is(result.Err, types.ErrSessionInvalidated))
}

func TestService_NoCredentials(t *testing.T) {
	for name, sess := range map[string]Session{
		"nil session":      nil,
		"disabled session": &fakeSession{},
	} {
		t.Run(name, func(t *testing.T) {
			svc, _ := newTestService(t, sess)

			rate := svc.Rate(context.Background(), "heat", 4)
			assert.True(t, errors.Is(rate.Err, types.ErrNoSession))

			wl := svc.SetWatchlistMembership(context.Background(), "heat", true)
			assert.True(t, errors.Is(wl.Err, types.ErrNoSession))

			assert.False(t, svc.SubmitWatchlist("tt0816692", true))
			assert.False(t, svc.SubmitRating("tt0816692", 4))

			if fs, ok := sess.(*fakeSession); ok {
				assert.Empty(t, fs.Calls())
			}
		})
	}
}

func TestService_SuccessInvalidatesListing(t *testing.T) {
	sess := okSession()
	svc, fetcher := newTestService(t, sess)

	require.Len(t, svc.GetListing(context.Background()), 2)
	svc.GetListing(context.Background())
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetcher.listingCalls))

	require.True(t, svc.SetWatchlistMembership(context.Background(), "heat", false).Success)
	svc.GetListing(context.Background())
	assert.Equal(t, int32(2), atomic.LoadInt32(&fetcher.listingCalls))
}

func TestService_FailureKeepsListing(t *testing.T) {
	sess := &fakeSession{enabled: true, status: 200, body: `{"result":false}`}
	svc, fetcher := newTestService(t, sess)

	svc.GetListing(context.Background())
	svc.SetWatchlistMembership(context.Background(), "heat", false)
	svc.GetListing(context.Background())
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetcher.listingCalls))
}

// Two toggles for the same item within a second: the second is dropped, one
// mutating call is made, and the listing is refetched afterwards.
func TestService_DuplicateWatchlistToggle(t *testing.T) {
	sess := okSession()
	svc, fetcher := newTestService(t, sess)

	svc.GetListing(context.Background())
	require.Equal(t, int32(1), atomic.LoadInt32(&fetcher.listingCalls))

	assert.True(t, svc.SubmitWatchlist("tt0816692", true))
	time.Sleep(100 * time.Millisecond)
	assert.False(t, svc.SubmitWatchlist("tt0816692", true))
	waitQueue(t, svc)

	calls := sess.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, testBase+"/film/interstellar/add-to-watchlist/", calls[0].target)

	svc.GetListing(context.Background())
	assert.Equal(t, int32(2), atomic.LoadInt32(&fetcher.listingCalls),
		"resolution scans the cached listing, then the successful toggle invalidates it")
}

func TestService_SubmitRating(t *testing.T) {
	sess := okSession()
	svc, _ := newTestService(t, sess)

	assert.False(t, svc.SubmitRating("tt0113277", 0), "invalid ratings are rejected up front")
	assert.True(t, svc.SubmitRating("tt0113277", 4.5))
	waitQueue(t, svc)

	calls := sess.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, testBase+"/s/film/heat/rate/", calls[0].target)
	assert.Equal(t, "9", calls[0].form.Get("rating"))
}

func TestService_SubmitDedupsEquivalentIDs(t *testing.T) {
	sess := okSession()
	svc, _ := newTestService(t, sess)

	assert.True(t, svc.SubmitWatchlist("tt0113277", true))
	assert.False(t, svc.SubmitWatchlist(" tt0113277 ", true), "surrounding whitespace is the same film")
	assert.False(t, svc.SubmitWatchlist("tt0113277:1:2", true), "episode suffix maps to the same title")
	waitQueue(t, svc)

	calls := sess.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, testBase+"/film/heat/add-to-watchlist/", calls[0].target)
}

func TestService_SubmitSkipsUnresolvable(t *testing.T) {
	sess := okSession()
	svc, _ := newTestService(t, sess)

	assert.True(t, svc.SubmitWatchlist("tt9999999", true))
	waitQueue(t, svc)

	assert.Empty(t, sess.Calls())
	processed, failed := svc.queue.Stats()
	assert.Equal(t, 1, processed)
	assert.Equal(t, 0, failed, "a miss is skipped, not failed")
}

func TestService_ActionsAreSerialized(t *testing.T) {
	sess := okSession()
	var inFlight, maxInFlight int32
	sess.callHook = func() {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
	}
	svc, _ := newTestService(t, sess)

	assert.True(t, svc.SubmitWatchlist("tt0113277", true))
	assert.True(t, svc.SubmitWatchlist("tt0816692", true))
	assert.True(t, svc.SubmitRating("tt0816692", 5))
	waitQueue(t, svc)

	assert.Len(t, sess.Calls(), 3)
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
}

func TestService_Close(t *testing.T) {
	sess := okSession()
	svc, _ := newTestService(t, sess)

	assert.True(t, svc.SubmitWatchlist("tt0113277", false))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, svc.Close(ctx))

	assert.Len(t, sess.Calls(), 1, "queued actions drain before shutdown")
	assert.True(t, sess.closed)
	assert.False(t, svc.SubmitWatchlist("tt0816692", true))
}

func TestService_ReadPaths(t *testing.T) {
	svc, _ := newTestService(t, nil)

	meta := svc.GetMetadata(context.Background(), "interstellar")
	assert.Equal(t, 2014, meta.Year)

	slug, err := svc.Resolve(context.Background(), "tt0113277")
	require.NoError(t, err)
	assert.Equal(t, "heat", slug)

	results := svc.Search(context.Background(), "inter")
	require.NotEmpty(t, results)
	assert.Equal(t, "interstellar", results[0].Slug)
}
