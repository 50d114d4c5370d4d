package publisher

import (
	"fmt"

	"github.com/gobwas/glob"

	"github.com/labframe/api/notify"
)

// GlobFilter filters change events using glob patterns over project
// scope and event kind.
type GlobFilter struct {
	scopeGlobs []glob.Glob
	kindGlobs  []glob.Glob
}

// NewGlobFilter creates a new glob-based filter.
// Empty pattern lists match everything.
func NewGlobFilter(scopePatterns, kindPatterns []string) (*GlobFilter, error) {
	filter := &GlobFilter{
		scopeGlobs: make([]glob.Glob, 0, len(scopePatterns)),
		kindGlobs:  make([]glob.Glob, 0, len(kindPatterns)),
	}

	for _, pattern := range scopePatterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid scope pattern %q: %w", pattern, err)
		}
		filter.scopeGlobs = append(filter.scopeGlobs, g)
	}

	for _, pattern := range kindPatterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid kind pattern %q: %w", pattern, err)
		}
		filter.kindGlobs = append(filter.kindGlobs, g)
	}

	return filter, nil
}

// Match returns true if the scope and kind match the configured
// patterns. No patterns configured means every event matches.
func (f *GlobFilter) Match(scope string, kind notify.Kind) bool {
	scopeMatch := len(f.scopeGlobs) == 0
	if !scopeMatch {
		for _, g := range f.scopeGlobs {
			if g.Match(scope) {
				scopeMatch = true
				break
			}
		}
	}
	if !scopeMatch {
		return false
	}

	kindMatch := len(f.kindGlobs) == 0
	if !kindMatch {
		for _, g := range f.kindGlobs {
			if g.Match(string(kind)) {
				kindMatch = true
				break
			}
		}
	}
	return kindMatch
}
