package proxy

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"
)

// MaxPreviewChars is the number of characters of a body written to debug logs.
const MaxPreviewChars = 1000

// PreviewBody renders a body for debug logging.
func PreviewBody(body []byte) string {
	if len(body) == 0 {
		return "<empty>"
	}
	if !utf8.Valid(body) {
		return fmt.Sprintf("<binary data, %d bytes>", len(body))
	}

	text := string(body)
	if utf8.RuneCountInString(text) <= MaxPreviewChars {
		return text
	}

	n := 0
	for i := range text {
		if n == MaxPreviewChars {
			return text[:i] + "... (truncated)"
		}
		n++
	}
	return text
}

// formatHeaders renders headers one per line, sorted by name.
func formatHeaders(h http.Header) string {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		for _, v := range h[name] {
			fmt.Fprintf(&sb, "\n    %s: %s", name, v)
		}
	}
	return sb.String()
}

// formatQuery renders query parameters one per line, sorted by name.
func formatQuery(q url.Values) string {
	return formatHeaders(http.Header(q))
}
