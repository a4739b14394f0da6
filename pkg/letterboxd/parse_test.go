package letterboxd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const legacyWatchlistHTML = `<!DOCTYPE html>
<html><body>
<ul class="poster-list">
  <li class="poster-container">
    <div class="film-poster really-lazy-load" data-film-id="117621" data-film-slug="interstellar" data-target-link="/film/interstellar/">
      <img class="image" alt="Interstellar" src="empty-poster.png">
    </div>
  </li>
  <li class="poster-container">
    <div class="film-poster" data-film-id="51568" data-film-slug="the-thing-1982" data-film-name="The Thing">
      <img class="image" alt="ignored alt">
    </div>
  </li>
</ul>
<div class="pagination">
  <a class="next" href="/alice/watchlist/page/2/">Older</a>
</div>
</body></html>`

const componentWatchlistHTML = `<html><body>
<ul class="grid">
  <li class="griditem">
    <div class="react-component" data-component-class="LazyPoster" data-item-id="film:117621"
         data-item-slug="interstellar" data-item-name="Interstellar (2014)">
      <div class="poster film-poster"><img alt="Interstellar"></div>
    </div>
  </li>
  <li class="griditem">
    <div class="react-component" data-item-slug="interstellar" data-item-name="Interstellar (2014)"></div>
  </li>
</ul>
<div class="pagination"><span class="next">Older</span></div>
</body></html>`

const filmHTML = `<html><head>
<meta property="og:title" content="Interstellar (2014)">
<meta property="og:image" content="https://a.ltrbxd.com/og.jpg">
<meta property="og:description" content="The adventures of a group of explorers.">
<meta name="description" content="Fallback description.">
<script type="application/ld+json">
/* <![CDATA[ */
{"@type":"Movie","name":"Interstellar","image":"https://a.ltrbxd.com/poster.jpg","releasedEvent":[{"startDate":"2014"}]}
/* ]]> */
</script>
</head><body>
<p class="text-link text-footer">
  More at <a href="http://www.imdb.com/title/tt0816692/maindetails" class="micro-button track-event" data-track-action="IMDb">IMDb</a>
  <a href="https://www.themoviedb.org/movie/157336/" data-track-action="TMDB">TMDB</a>
</p>
</body></html>`

func TestParseListingPage_LegacyMarkup(t *testing.T) {
	page, err := parseListingPage(strings.NewReader(legacyWatchlistHTML))
	require.NoError(t, err)

	require.Len(t, page.Items, 2)
	assert.Equal(t, "interstellar", page.Items[0].Slug)
	assert.Equal(t, "Interstellar", page.Items[0].Title)
	assert.Equal(t, "117621", page.Items[0].FilmID)
	assert.Equal(t, "the-thing-1982", page.Items[1].Slug)
	assert.Equal(t, "The Thing", page.Items[1].Title)
	assert.True(t, page.HasMore)
}

func TestParseListingPage_ComponentMarkup(t *testing.T) {
	page, err := parseListingPage(strings.NewReader(componentWatchlistHTML))
	require.NoError(t, err)

	require.Len(t, page.Items, 1, "duplicate slugs should be collapsed")
	assert.Equal(t, "interstellar", page.Items[0].Slug)
	assert.Equal(t, "Interstellar (2014)", page.Items[0].Title)
	assert.False(t, page.HasMore, "a next marker without a link is the last page")
}

func TestParseListingPage_PartialMarkup(t *testing.T) {
	page, err := parseListingPage(strings.NewReader(`<div class="film-poster" data-film-slug="heat"`))
	require.NoError(t, err)
	assert.False(t, page.HasMore)
	for _, item := range page.Items {
		assert.NotEmpty(t, item.Slug)
	}
}

func TestParseFilmPage(t *testing.T) {
	meta, err := parseFilmPage("interstellar", strings.NewReader(filmHTML))
	require.NoError(t, err)

	assert.Equal(t, "interstellar", meta.Slug)
	assert.Equal(t, "tt0816692", meta.ExternalID)
	assert.Equal(t, "Interstellar", meta.Title)
	assert.Equal(t, 2014, meta.Year)
	assert.Equal(t, "https://a.ltrbxd.com/poster.jpg", meta.Poster)
	assert.Equal(t, "The adventures of a group of explorers.", meta.Description)
	assert.True(t, meta.HasExternalID())
}

func TestParseFilmPage_MissingFieldsDegrade(t *testing.T) {
	meta, err := parseFilmPage("obscure", strings.NewReader(`<html><head>
<meta name="description" content="Only a description.">
<script type="application/ld+json">{not json</script>
</head><body></body></html>`))
	require.NoError(t, err)

	assert.Equal(t, "obscure", meta.Slug)
	assert.Empty(t, meta.ExternalID)
	assert.False(t, meta.HasExternalID())
	assert.Zero(t, meta.Year)
	assert.Empty(t, meta.Poster)
	assert.Equal(t, "Only a description.", meta.Description)
}
