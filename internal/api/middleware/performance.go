package middleware

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// minGzipBytes is the smallest body worth compressing
const minGzipBytes = 1024

const privateCacheControl = "private, no-cache, must-revalidate"

type cachePolicy struct {
	path   string
	prefix bool
	header string
}

// publicCachePolicies lists the anonymous reads shared caches may store.
// Everything else is private.
var publicCachePolicies = []cachePolicy{
	{path: "/api/stays", header: "public, max-age=60, must-revalidate"},
	{path: "/api/food", header: "public, max-age=60, must-revalidate"},
	{path: "/api/listings/", prefix: true, header: "public, max-age=120, must-revalidate"},
}

var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		gz, _ := gzip.NewWriterLevel(io.Discard, 5)
		return gz
	},
}

// ResponseOptimization buffers GET and HEAD responses to add Cache-Control, a
// strong ETag over the uncompressed body and gzip for larger text bodies. A
// matching If-None-Match gets 304. Event streams are passed through untouched.
func ResponseOptimization(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isStream(r) {
			next.ServeHTTP(w, r)
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
			return
		}

		rec := &bufferedResponse{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		if w.Header().Get("Cache-Control") == "" {
			w.Header().Set("Cache-Control", cacheControlFor(r))
		}

		status := rec.status()
		body := rec.body.Bytes()
		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write(body)
			return
		}

		etag := bodyETag(body)
		w.Header().Set("ETag", etag)
		if etagMatches(r.Header.Get("If-None-Match"), etag) {
			w.Header().Del("Content-Length")
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Add("Vary", "Accept-Encoding")
		if acceptsGzip(r) && len(body) >= minGzipBytes && compressible(w.Header().Get("Content-Type")) {
			if compressed, err := gzipBytes(body); err == nil {
				w.Header().Set("Content-Encoding", "gzip")
				body = compressed
			}
		}

		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			w.Write(body)
		}
	})
}

// cacheControlFor picks the Cache-Control header for a response that did not set one
func cacheControlFor(r *http.Request) string {
	if r.Header.Get("Authorization") != "" {
		return privateCacheControl
	}
	for _, p := range publicCachePolicies {
		if r.URL.Path == p.path || (p.prefix && strings.HasPrefix(r.URL.Path, p.path)) {
			return p.header
		}
	}
	return privateCacheControl
}

// isStream reports whether the client asked for a server-sent event stream
func isStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

func bodyETag(body []byte) string {
	hash := sha256.Sum256(body)
	return `"` + hex.EncodeToString(hash[:16]) + `"`
}

// etagMatches compares If-None-Match against etag, ignoring weak prefixes
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

func acceptsGzip(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}

func compressible(contentType string) bool {
	for _, prefix := range []string{"application/json", "text/", "application/javascript", "image/svg+xml"} {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}

func gzipBytes(body []byte) ([]byte, error) {
	gz := gzipWriterPool.Get().(*gzip.Writer)
	defer gzipWriterPool.Put(gz)

	var buf bytes.Buffer
	gz.Reset(&buf)
	if _, err := gz.Write(body); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// bufferedResponse holds the status and body until the handler returns;
// headers go straight to the wrapped writer
type bufferedResponse struct {
	http.ResponseWriter
	body       bytes.Buffer
	statusCode int
}

func (b *bufferedResponse) WriteHeader(statusCode int) {
	if b.statusCode == 0 {
		b.statusCode = statusCode
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.statusCode == 0 {
		b.statusCode = http.StatusOK
	}
	return b.body.Write(p)
}

// Flush is a no-op; the body is sent once the handler returns
func (b *bufferedResponse) Flush() {}

func (b *bufferedResponse) Unwrap() http.ResponseWriter {
	return b.ResponseWriter
}

func (b *bufferedResponse) status() int {
	if b.statusCode == 0 {
		return http.StatusOK
	}
	return b.statusCode
}
