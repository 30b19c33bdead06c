package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/hearthtable/marketplace/internal/domain/providers"
	"github.com/hearthtable/marketplace/internal/infrastructure/observability"
)

// CacheKeyPrefix prefixes every cached response key
const CacheKeyPrefix = "http:cache:"

// CacheTTLs maps GET route patterns to how long an anonymous response may be
// served from the shared cache. Listing writes drop everything under
// /api/listings/<id>, so per-listing reads can live longer than browse pages.
var CacheTTLs = map[string]int{
	"GET /api/stays":                      60,
	"GET /api/food":                       60,
	"GET /api/listings/{id}":              120,
	"GET /api/listings/{id}/availability": 60,
	"GET /api/listings/{id}/images":       300,
	"GET /api/listings/{id}/reviews":      120,
}

// CacheMiddleware serves anonymous reads of public routes from the shared
// cache. It relies on RoutePattern running first.
type CacheMiddleware struct {
	cache   providers.CacheProvider
	ttls    map[string]int
	metrics *observability.Metrics
}

// NewCacheMiddleware creates a cache middleware using CacheTTLs
func NewCacheMiddleware(cache providers.CacheProvider, metrics *observability.Metrics) *CacheMiddleware {
	return &CacheMiddleware{cache: cache, ttls: CacheTTLs, metrics: metrics}
}

// Middleware returns the cache middleware handler
func (m *CacheMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Signed-in responses carry favorites and drafts
		if m.cache == nil || r.Method != http.MethodGet || r.Header.Get("Authorization") != "" {
			next.ServeHTTP(w, r)
			return
		}

		ttl, ok := m.ttls[routeOf(r)]
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		key := GenerateCacheKey(r)

		if cached, err := m.cache.Get(ctx, key); err == nil {
			if contentType, body, ok := decodeCachedResponse(cached); ok {
				observability.RecordCacheHit(ctx, m.metrics, routeOf(r))
				w.Header().Set("X-Cache", "HIT")
				w.Header().Set("Content-Type", contentType)
				w.WriteHeader(http.StatusOK)
				w.Write(body)
				return
			}
			log.Warn().Str("key", key).Msg("discarding unreadable cached response")
		}

		observability.RecordCacheMiss(ctx, m.metrics, routeOf(r))
		w.Header().Set("X-Cache", "MISS")

		tee := &teeResponse{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(tee, r)

		if tee.statusCode != http.StatusOK || tee.body.Len() == 0 {
			return
		}
		entry := encodeCachedResponse(w.Header().Get("Content-Type"), tee.body.Bytes())
		if err := m.cache.Set(ctx, key, entry, ttl); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to cache response")
		}
	})
}

// GenerateCacheKey keeps the path readable so invalidation can match on it
// and hashes the query string to bound key length
func GenerateCacheKey(r *http.Request) string {
	hash := sha256.Sum256([]byte(r.URL.Query().Encode()))
	return CacheKeyPrefix + r.URL.Path + ":" + hex.EncodeToString(hash[:])
}

// A cached entry is the content type, a newline, then the body
func encodeCachedResponse(contentType string, body []byte) []byte {
	if contentType == "" {
		contentType = "application/json"
	}
	entry := make([]byte, 0, len(contentType)+1+len(body))
	entry = append(entry, contentType...)
	entry = append(entry, '\n')
	return append(entry, body...)
}

func decodeCachedResponse(entry []byte) (string, []byte, bool) {
	i := bytes.IndexByte(entry, '\n')
	if i <= 0 {
		return "", nil, false
	}
	return string(entry[:i]), entry[i+1:], true
}

// teeResponse writes through to the client while keeping a copy of the body
type teeResponse struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
	body        bytes.Buffer
}

func (t *teeResponse) WriteHeader(statusCode int) {
	if t.wroteHeader {
		return
	}
	t.wroteHeader = true
	t.statusCode = statusCode
	t.ResponseWriter.WriteHeader(statusCode)
}

func (t *teeResponse) Write(data []byte) (int, error) {
	if !t.wroteHeader {
		t.WriteHeader(http.StatusOK)
	}
	t.body.Write(data)
	return t.ResponseWriter.Write(data)
}

func (t *teeResponse) Unwrap() http.ResponseWriter {
	return t.ResponseWriter
}
