package letterboxd

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/Louieza23/Letterboxio/pkg/types"
)

var (
	imdbLinkPattern = regexp.MustCompile(`imdb\.com/title/(tt\d+)`)
	titleYearRegexp = regexp.MustCompile(`^(.*?)\s*\((\d{4})\)\s*$`)
	yearPathPattern = regexp.MustCompile(`/films/year/(\d{4})/`)
)

// ListingPage is one page of a watchlist.
type ListingPage struct {
	Items   []types.ListingItem
	HasMore bool
}

// parseListingPage extracts poster entries and the "next" affordance.
// Both the legacy poster markup (data-film-slug) and the lazy poster
// component markup (data-item-slug) are recognised.
func parseListingPage(r io.Reader) (ListingPage, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return ListingPage{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var page ListingPage
	seen := make(map[string]bool)

	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}

		if n.Data == "a" && hasClass(n, "next") && attr(n, "href") != "" {
			page.HasMore = true
		}

		slug := firstAttr(n, "data-film-slug", "data-item-slug")
		if slug == "" {
			if link := attr(n, "data-target-link"); link != "" && attr(n, "data-film-id") != "" {
				slug, _ = SlugFromURL(link)
			}
		}
		if slug == "" || seen[slug] {
			return true
		}
		seen[slug] = true

		title := firstAttr(n, "data-film-name", "data-item-name", "data-item-full-display-name")
		if title == "" {
			title = imageAlt(n)
		}
		page.Items = append(page.Items, types.ListingItem{
			Slug:   slug,
			Title:  strings.TrimSpace(title),
			FilmID: firstAttr(n, "data-film-id", "data-item-id"),
		})
		return false
	})

	return page, nil
}

// jsonLD is the subset of the film page's schema.org block we read.
type jsonLD struct {
	Name          string `json:"name"`
	Image         string `json:"image"`
	ReleasedEvent []struct {
		StartDate string `json:"startDate"`
	} `json:"releasedEvent"`
}

// parseFilmPage extracts metadata from a film page. Missing markup leaves fields empty.
func parseFilmPage(slug string, r io.Reader) (types.ItemMetadata, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return types.ItemMetadata{Slug: slug}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	meta := types.ItemMetadata{Slug: slug}
	var ogTitle, ogImage, ogDescription, description string
	var ld *jsonLD

	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		switch n.Data {
		case "meta":
			content := strings.TrimSpace(attr(n, "content"))
			switch {
			case attr(n, "property") == "og:title":
				ogTitle = content
			case attr(n, "property") == "og:image":
				ogImage = content
			case attr(n, "property") == "og:description":
				ogDescription = content
			case attr(n, "name") == "description":
				description = content
			}
		case "a":
			href := attr(n, "href")
			if meta.ExternalID == "" {
				if m := imdbLinkPattern.FindStringSubmatch(href); m != nil {
					meta.ExternalID = m[1]
				}
			}
			if meta.Year == 0 {
				if m := yearPathPattern.FindStringSubmatch(href); m != nil {
					meta.Year, _ = strconv.Atoi(m[1])
				}
			}
		case "script":
			if ld == nil && attr(n, "type") == "application/ld+json" && n.FirstChild != nil {
				ld = decodeJSONLD(n.FirstChild.Data)
			}
			return false
		}
		return true
	})

	if m := titleYearRegexp.FindStringSubmatch(ogTitle); m != nil {
		meta.Title = m[1]
		if meta.Year == 0 {
			meta.Year, _ = strconv.Atoi(m[2])
		}
	} else {
		meta.Title = ogTitle
	}

	if ld != nil {
		if meta.Title == "" {
			meta.Title = ld.Name
		}
		meta.Poster = ld.Image
		if meta.Year == 0 && len(ld.ReleasedEvent) > 0 && len(ld.ReleasedEvent[0].StartDate) >= 4 {
			meta.Year, _ = strconv.Atoi(ld.ReleasedEvent[0].StartDate[:4])
		}
	}
	if meta.Poster == "" {
		meta.Poster = ogImage
	}

	meta.Description = ogDescription
	if meta.Description == "" {
		meta.Description = description
	}

	return meta, nil
}

// decodeJSONLD tolerates the CDATA comment wrapper the site puts around the block.
func decodeJSONLD(raw string) *jsonLD {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "/* <![CDATA[ */")
	raw = strings.TrimSuffix(raw, "/* ]]> */")

	var ld jsonLD
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &ld); err != nil {
		return nil
	}
	return &ld
}

// walk visits nodes depth-first; visit returns false to skip a node's children.
func walk(n *html.Node, visit func(*html.Node) bool) {
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func firstAttr(n *html.Node, keys ...string) string {
	for _, k := range keys {
		if v := attr(n, k); v != "" {
			return v
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// imageAlt returns the alt text of the first img below n.
func imageAlt(n *html.Node) string {
	var alt string
	walk(n, func(c *html.Node) bool {
		if alt != "" {
			return false
		}
		if c.Type == html.ElementNode && c.Data == "img" {
			alt = attr(c, "alt")
			return false
		}
		return true
	})
	return alt
}
