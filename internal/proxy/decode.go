package proxy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

var errUnsupportedEncoding = errors.New("unsupported content encoding")

// maxDecodedBodySize caps the size of a decoded backend body.
const maxDecodedBodySize int64 = 64 << 20

// decodeBody undoes every coding listed in a Content-Encoding header.
// Codings are removed in reverse order of application. An empty or
// "identity" encoding returns body unchanged.
func decodeBody(body []byte, contentEncoding string) ([]byte, error) {
	codings := strings.Split(contentEncoding, ",")
	for i := len(codings) - 1; i >= 0; i-- {
		coding := strings.ToLower(strings.TrimSpace(codings[i]))
		if coding == "" || coding == "identity" || len(body) == 0 {
			continue
		}

		decoded, err := decodeOne(body, coding)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", coding, err)
		}
		body = decoded
	}
	return body, nil
}

func decodeOne(body []byte, coding string) ([]byte, error) {
	switch coding {
	case "gzip", "x-gzip":
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer func() { _ = r.Close() }()
		return readLimited(r)

	case "deflate":
		// Most servers send zlib-wrapped deflate; some send it raw.
		if r, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
			defer func() { _ = r.Close() }()
			return readLimited(r)
		}
		r := flate.NewReader(bytes.NewReader(body))
		defer func() { _ = r.Close() }()
		return readLimited(r)

	case "br":
		return readLimited(brotli.NewReader(bytes.NewReader(body)))

	case "zstd":
		d, err := zstd.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer d.Close()
		return readLimited(d)

	default:
		return nil, errUnsupportedEncoding
	}
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxDecodedBodySize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxDecodedBodySize {
		return nil, fmt.Errorf("decoded body exceeds %d bytes", maxDecodedBodySize)
	}
	return data, nil
}
