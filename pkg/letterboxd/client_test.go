package letterboxd

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Louieza23/Letterboxio/pkg/types"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/alice/watchlist/", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte(legacyWatchlistHTML))
	})
	mux.HandleFunc("/film/interstellar/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(filmHTML))
	})
	mux.HandleFunc("/imdb/tt0816692/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/film/interstellar/", http.StatusFound)
	})
	mux.HandleFunc("/imdb/tt0000403/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	})
	mux.HandleFunc("/imdb/tt0000302/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/search/tt0000302/", http.StatusFound)
	})
	mux.HandleFunc("/search/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html></html>"))
	})
	mux.HandleFunc("/slow/watchlist/", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(legacyWatchlistHTML))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_FetchListingPage(t *testing.T) {
	srv := newTestServer(t)
	c, err := NewClient(srv.URL, WithUserAgent("test-agent"))
	require.NoError(t, err)

	page, err := c.FetchListingPage(context.Background(), "alice", 1)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.True(t, page.HasMore)

	_, err = c.FetchListingPage(context.Background(), "nobody", 1)
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestClient_FetchMetadata(t *testing.T) {
	srv := newTestServer(t)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	meta, err := c.FetchMetadata(context.Background(), "interstellar")
	require.NoError(t, err)
	assert.Equal(t, "tt0816692", meta.ExternalID)

	meta, err = c.FetchMetadata(context.Background(), "missing")
	assert.True(t, errors.Is(err, types.ErrNotFound))
	assert.Equal(t, "missing", meta.Slug)
}

func TestClient_ResolveRedirect(t *testing.T) {
	srv := newTestServer(t)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	slug, err := c.ResolveRedirect(context.Background(), "tt0816692")
	require.NoError(t, err)
	assert.Equal(t, "interstellar", slug)

	_, err = c.ResolveRedirect(context.Background(), "tt0000403")
	require.Error(t, err)
	assert.False(t, errors.Is(err, types.ErrNotFound), "a blocked request is not a definitive miss")

	_, err = c.ResolveRedirect(context.Background(), "tt0000302")
	assert.True(t, errors.Is(err, types.ErrNotFound))

	_, err = c.ResolveRedirect(context.Background(), "not-an-id")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestClient_TimeoutMapsToNetworkTimeout(t *testing.T) {
	srv := newTestServer(t)
	c, err := NewClient(srv.URL, WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	_, err = c.FetchListingPage(context.Background(), "slow", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrNetworkTimeout), "got %v", err)
}
