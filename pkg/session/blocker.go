package session

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// resourceBlocker decides which subresource requests a tab aborts.
type resourceBlocker struct {
	types    map[string]struct{}
	patterns []glob.Glob
}

func newResourceBlocker(resourceTypes, urlPatterns []string) (*resourceBlocker, error) {
	b := &resourceBlocker{types: make(map[string]struct{}, len(resourceTypes))}
	for _, t := range resourceTypes {
		b.types[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	for _, p := range urlPatterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid blocked url pattern %q: %w", p, err)
		}
		b.patterns = append(b.patterns, g)
	}
	return b, nil
}

// blocks reports whether a request of resourceType for rawURL should be aborted.
func (b *resourceBlocker) blocks(resourceType, rawURL string) bool {
	if b == nil {
		return false
	}
	if _, ok := b.types[resourceType]; ok {
		return true
	}
	if len(b.patterns) == 0 {
		return false
	}
	u := rawURL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	for _, g := range b.patterns {
		if g.Match(u) {
			return true
		}
	}
	return false
}
