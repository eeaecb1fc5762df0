package router

import (
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vyrodovalexey/faultproxy/internal/config"
)

// globCacheSize bounds the number of compiled wildcard patterns kept
// across reloads.
const globCacheSize = 1024

// PathMatcher is the interface for path matching.
type PathMatcher interface {
	Match(path string) bool
	Type() string
	Pattern() string
}

// AnyMatcher matches every path. It is used for "/*".
type AnyMatcher struct{}

// Match always reports true.
func (AnyMatcher) Match(string) bool { return true }

// Type returns the matcher type.
func (AnyMatcher) Type() string { return "any" }

// Pattern returns the pattern.
func (AnyMatcher) Pattern() string { return config.WildcardPath }

// ExactMatcher matches exact paths.
type ExactMatcher struct {
	path string
}

// NewExactMatcher creates a new exact path matcher.
func NewExactMatcher(path string) *ExactMatcher {
	return &ExactMatcher{path: path}
}

// Match checks if the path matches exactly.
func (m *ExactMatcher) Match(path string) bool {
	return path == m.path
}

// Type returns the matcher type.
func (m *ExactMatcher) Type() string {
	return "exact"
}

// Pattern returns the pattern.
func (m *ExactMatcher) Pattern() string {
	return m.path
}

// WildcardMatcher matches a pattern where each '*' stands for any run
// of characters, including '/'. The whole path must match.
type WildcardMatcher struct {
	pattern string
	regex   *regexp.Regexp
}

// NewWildcardMatcher creates a matcher for a pattern containing '*'.
func NewWildcardMatcher(pattern string) *WildcardMatcher {
	return &WildcardMatcher{pattern: pattern, regex: compileGlob(pattern)}
}

// Match checks the path against the anchored pattern.
func (m *WildcardMatcher) Match(path string) bool {
	return m.regex.MatchString(path)
}

// Type returns the matcher type.
func (m *WildcardMatcher) Type() string {
	return "wildcard"
}

// Pattern returns the pattern.
func (m *WildcardMatcher) Pattern() string {
	return m.pattern
}

// NewPathMatcher returns the matcher for an endpoint path pattern.
func NewPathMatcher(pattern string) PathMatcher {
	switch {
	case pattern == config.WildcardPath:
		return AnyMatcher{}
	case strings.Contains(pattern, "*"):
		return NewWildcardMatcher(pattern)
	default:
		return NewExactMatcher(pattern)
	}
}

// globCache holds compiled wildcard patterns. The LRU is safe for
// concurrent use.
var globCache = mustNewGlobCache()

func mustNewGlobCache() *lru.Cache[string, *regexp.Regexp] {
	c, err := lru.New[string, *regexp.Regexp](globCacheSize)
	if err != nil {
		panic(err)
	}
	return c
}

// compileGlob turns a wildcard pattern into an anchored regular
// expression. Characters other than '*' are matched literally.
func compileGlob(pattern string) *regexp.Regexp {
	if re, ok := globCache.Get(pattern); ok {
		return re
	}

	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	re := regexp.MustCompile("^" + strings.Join(parts, ".*") + "$")

	globCache.Add(pattern, re)
	return re
}

// MatchPath reports whether path satisfies the endpoint path pattern.
func MatchPath(pattern, path string) bool {
	return NewPathMatcher(pattern).Match(path)
}

// MatchMethod reports whether method is accepted by methods. Comparison
// is case-insensitive and "*" accepts any method.
func MatchMethod(methods []string, method string) bool {
	for _, m := range methods {
		if m == config.WildcardMethod || strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}
