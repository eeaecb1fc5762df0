package proxy

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestPreviewBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body []byte
		want string
	}{
		{name: "empty", body: nil, want: "<empty>"},
		{name: "short text", body: []byte(`{"a":1}`), want: `{"a":1}`},
		{name: "binary", body: []byte{0xff, 0xfe, 0x00}, want: "<binary data, 3 bytes>"},
		{
			name: "exactly limit",
			body: []byte(strings.Repeat("x", MaxPreviewChars)),
			want: strings.Repeat("x", MaxPreviewChars),
		},
		{
			name: "over limit",
			body: []byte(strings.Repeat("x", MaxPreviewChars+5)),
			want: strings.Repeat("x", MaxPreviewChars) + "... (truncated)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, PreviewBody(tt.body))
		})
	}
}

func TestPreviewBody_CountsCharactersNotBytes(t *testing.T) {
	t.Parallel()

	body := []byte(strings.Repeat("é", MaxPreviewChars+1))
	got := PreviewBody(body)

	assert.True(t, strings.HasSuffix(got, "... (truncated)"))
	assert.Equal(t, MaxPreviewChars, utf8.RuneCountInString(strings.TrimSuffix(got, "... (truncated)")))
}

func TestFormatHeaders(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Set("B", "2")
	h.Add("A", "1")
	h.Add("A", "one")

	assert.Equal(t, "\n    A: 1\n    A: one\n    B: 2", formatHeaders(h))
	assert.Equal(t, "", formatHeaders(nil))
	assert.Equal(t, "\n    q: v", formatQuery(url.Values{"q": {"v"}}))
}

func TestProxyError(t *testing.T) {
	t.Parallel()

	cause := errors.New("dial tcp: connection refused")
	err := NewBackendError("http://b/x", cause)

	assert.ErrorIs(t, err, ErrBackendUnreachable)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsBackendError(err))
	assert.Contains(t, err.Error(), "target=http://b/x")
	assert.Equal(t, "dial tcp: connection refused", backendErrorText(err))

	decodeErr := NewDecodeError("http://b/x", "gzip", cause)
	assert.ErrorIs(t, decodeErr, ErrDecodeBody)
	assert.True(t, IsBackendError(decodeErr))

	plain := &ProxyError{Op: "op", Message: "msg"}
	assert.Equal(t, "proxy error [op]: msg", plain.Error())
	assert.Equal(t, "other", backendErrorText(errors.New("other")))
}
