package middleware

import (
	"bytes"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/auth"
)

// The dashboards poll their list endpoints on a fixed interval, so most GET
// traffic is re-fetching data that changed seconds ago at most. The response
// cache absorbs that with stale-while-revalidate semantics: entries past
// their TTL are still served immediately while a single request per key falls
// through to refresh them; entries past the hard limit are evicted outright.
//
// Cache keys are prefixed with the requester's role set. Role checks hang off
// the route groups and never run on a hit, so a hit must only ever be served
// to a requester whose roles would have produced the same authorization
// outcome as the request that warmed the entry.

// swrEntry holds a cached response body and its freshness windows.
type swrEntry struct {
	data       []byte
	softExpiry time.Time
	hardExpiry time.Time
	refreshing bool
}

// SWRStore is a thread-safe in-memory store for stale-while-revalidate
// response caching.
type SWRStore struct {
	entries map[string]*swrEntry
	ttl     time.Duration
	maxAge  time.Duration
	mu      sync.Mutex
}

// NewSWRStore creates a store whose entries are fresh for ttl and servable
// while stale for maxAge.
func NewSWRStore(ttl, maxAge time.Duration) *SWRStore {
	if maxAge < ttl {
		maxAge = ttl
	}
	return &SWRStore{
		entries: make(map[string]*swrEntry),
		ttl:     ttl,
		maxAge:  maxAge,
	}
}

type swrState int

const (
	swrMiss swrState = iota
	swrFresh
	swrStale   // serve stale; another request is already refreshing
	swrRefresh // serve nothing; caller must refresh and Set
)

// get classifies the entry for key and, when a stale entry needs refreshing,
// claims the refresh for the caller.
func (s *SWRStore) get(key string) ([]byte, swrState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, swrMiss
	}

	now := time.Now()
	if now.After(entry.hardExpiry) {
		delete(s.entries, key)
		return nil, swrMiss
	}
	if now.Before(entry.softExpiry) {
		return entry.data, swrFresh
	}
	if entry.refreshing {
		return entry.data, swrStale
	}
	entry.refreshing = true
	return entry.data, swrRefresh
}

// Set stores a freshly fetched response for key.
func (s *SWRStore) Set(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.entries[key] = &swrEntry{
		data:       data,
		softExpiry: now.Add(s.ttl),
		hardExpiry: now.Add(s.maxAge),
	}
}

// abandon clears the refreshing claim after a failed refresh so the next
// request can retry.
func (s *SWRStore) abandon(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[key]; ok {
		entry.refreshing = false
	}
}

// Flush drops every cached entry. The middleware flushes after any
// successful mutating request so the next poll observes the write. Payments
// and stage advances fan out across resources (a payment touches invoices,
// payment lists, summaries, and the visit queue), so per-prefix invalidation
// would under-invalidate.
func (s *SWRStore) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*swrEntry)
}

// cacheRecorder captures the response body so it can be stored after the
// handler runs.
type cacheRecorder struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (r *cacheRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *cacheRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

// cacheKey builds the store key for a request: the requester's sorted role
// set, then path and raw query.
func cacheKey(c echo.Context) string {
	roles := auth.RolesFromContext(c.Request().Context())
	sorted := make([]string, len(roles))
	copy(sorted, roles)
	sort.Strings(sorted)
	req := c.Request()
	return strings.Join(sorted, ",") + "|" + req.URL.Path + "?" + req.URL.RawQuery
}

// isJSONResponse reports whether the handler wrote a JSON body. Non-JSON
// responses (the hospital logo, for one) are never cached because hits are
// replayed as JSON blobs.
func isJSONResponse(c echo.Context) bool {
	ct := c.Response().Header().Get(echo.HeaderContentType)
	return strings.HasPrefix(ct, echo.MIMEApplicationJSON)
}

// SWRCache returns middleware applying stale-while-revalidate caching to GET
// requests, keyed by role set, path, and raw query. Successful non-GET
// requests flush the store. Clients can bypass the cache with
// Cache-Control: no-cache.
func SWRCache(store *SWRStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodGet {
				err := next(c)
				if err == nil && c.Response().Status < 400 {
					store.Flush()
				}
				return err
			}
			if req.Header.Get("Cache-Control") == "no-cache" {
				c.Response().Header().Set("X-Cache", "BYPASS")
				return next(c)
			}

			key := cacheKey(c)

			data, state := store.get(key)
			switch state {
			case swrFresh:
				c.Response().Header().Set("X-Cache", "HIT")
				return c.JSONBlob(http.StatusOK, data)
			case swrStale:
				c.Response().Header().Set("X-Cache", "STALE")
				return c.JSONBlob(http.StatusOK, data)
			}

			// Miss, or stale with this request elected to refresh.
			rec := &cacheRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK}
			c.Response().Writer = rec
			if state == swrRefresh {
				c.Response().Header().Set("X-Cache", "REFRESH")
			} else {
				c.Response().Header().Set("X-Cache", "MISS")
			}

			err := next(c)
			if err != nil || rec.status >= 400 || !isJSONResponse(c) {
				if state == swrRefresh {
					store.abandon(key)
				}
				return err
			}

			store.Set(key, rec.buf.Bytes())
			return nil
		}
	}
}
