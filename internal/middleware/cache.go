package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"storefront/internal/cache"
	"storefront/internal/common/logging"
)

const (
	CacheStatusHeader   = "X-Cache"
	CacheStrategyHeader = "X-Cache-Strategy"
)

// KeyGenerator derives the cache key of a read request.
type KeyGenerator func(r *http.Request) string

// Pattern yields an invalidation prefix from a request and the body the
// handler wrote. An empty result is skipped.
type Pattern func(r *http.Request, body []byte) string

// Prefix is a static invalidation pattern.
func Prefix(prefix string) Pattern {
	return func(*http.Request, []byte) string { return prefix }
}

// RoutePrefix expands {name} placeholders from the route variables, e.g.
// "products:single:{id}". It yields nothing if a variable is missing.
func RoutePrefix(template string) Pattern {
	return func(r *http.Request, _ []byte) string {
		return expandRouteVars(template, mux.Vars(r))
	}
}

// BodyField builds prefix+<field> from a top-level string field of the
// JSON response, such as the id of a created resource.
func BodyField(prefix, field string) Pattern {
	return func(_ *http.Request, body []byte) string {
		var doc map[string]interface{}
		if err := json.Unmarshal(body, &doc); err != nil {
			return ""
		}
		v, ok := doc[field].(string)
		if !ok || v == "" {
			return ""
		}
		return prefix + v
	}
}

func expandRouteVars(template string, vars map[string]string) string {
	out := template
	for {
		start := strings.IndexByte(out, '{')
		if start < 0 {
			return out
		}
		end := strings.IndexByte(out[start:], '}')
		if end < 0 {
			return out
		}
		name := out[start+1 : start+end]
		value, ok := vars[name]
		if !ok || value == "" {
			return ""
		}
		out = out[:start] + cache.EscapeKeyPart(value) + out[start+end+1:]
	}
}

// bufferedWriter passes the response through while keeping a copy of it.
type bufferedWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (w *bufferedWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bufferedWriter) succeeded() bool {
	return w.statusCode >= 200 && w.statusCode < 300
}

// capturedResponse holds a complete handler response so it can be replayed
// to every request that waited on it.
type capturedResponse struct {
	header     http.Header
	statusCode int
	body       bytes.Buffer
	request    *http.Request
}

func newCapturedResponse(r *http.Request) *capturedResponse {
	return &capturedResponse{header: http.Header{}, statusCode: http.StatusOK, request: r}
}

func (c *capturedResponse) Header() http.Header { return c.header }

func (c *capturedResponse) WriteHeader(code int) { c.statusCode = code }

func (c *capturedResponse) Write(b []byte) (int, error) { return c.body.Write(b) }

func (c *capturedResponse) succeeded() bool {
	return c.statusCode >= 200 && c.statusCode < 300
}

func (c *capturedResponse) replay(w http.ResponseWriter) {
	for name, values := range c.header {
		w.Header()[name] = append([]string(nil), values...)
	}
	w.WriteHeader(c.statusCode)
	w.Write(c.body.Bytes())
}

// CacheResponse serves GET requests from the coordinator when possible.
// On a miss the handler runs and a successful JSON body is stored in the
// background under the generated key with ttl (zero means the category's
// default). Concurrent misses on one key run the handler once and share
// its response. A nil keyGen uses DefaultKey(category).
func CacheResponse(coord *cache.Coordinator, queue *cache.TaskQueue, category cache.Category, ttl time.Duration, keyGen KeyGenerator) func(http.Handler) http.Handler {
	if keyGen == nil {
		keyGen = DefaultKey(category)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			key := keyGen(r)
			w.Header().Set(CacheStrategyHeader, coord.Mode())

			if cached, ok := coord.Get(r.Context(), key); ok {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set(CacheStatusHeader, "HIT")
				w.WriteHeader(http.StatusOK)
				w.Write(cached)
				return
			}

			w.Header().Set(CacheStatusHeader, "MISS")

			// Concurrent misses on one key share a single handler run.
			v, _, _ := coord.Coalesce(key, func() (interface{}, error) {
				captured := newCapturedResponse(r)
				next.ServeHTTP(captured, r)
				return captured, nil
			})
			captured := v.(*capturedResponse)
			captured.replay(w)

			// Only the request that ran the handler queues the fill.
			if captured.request != r || !captured.succeeded() || captured.body.Len() == 0 {
				return
			}
			body := captured.body.Bytes()
			submit(queue, cache.CategoryOf(key), "cache_response", func(ctx context.Context) error {
				coord.SetRaw(ctx, key, body, ttl)
				return nil
			})
		})
	}
}

// InvalidateCache drops every prefix produced by patterns once the handler
// has answered with a 2xx status. Invalidation runs in the background.
func InvalidateCache(coord *cache.Coordinator, queue *cache.TaskQueue, patterns ...Pattern) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			recorder := &bufferedWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(recorder, r)

			if !recorder.succeeded() {
				return
			}

			prefixes := make([]string, 0, len(patterns))
			body := recorder.body.Bytes()
			for _, pattern := range patterns {
				if p := pattern(r, body); p != "" {
					prefixes = append(prefixes, p)
				}
			}
			if len(prefixes) == 0 {
				return
			}

			// Each prefix goes to its category's shard so it runs after any
			// fill of that category queued earlier.
			for _, p := range prefixes {
				prefix := p
				submit(queue, cache.CategoryOf(prefix), "cache_invalidate", func(ctx context.Context) error {
					coord.InvalidateByPattern(ctx, prefix)
					return nil
				})
			}
			logging.Debug("Cache invalidation queued after write",
				logging.Strings("prefixes", prefixes),
				logging.String("path", r.URL.Path),
			)
		})
	}
}

// submit runs task on the category's queue shard, or inline when no queue
// is configured.
func submit(queue *cache.TaskQueue, category cache.Category, name string, task cache.Task) {
	if queue != nil {
		queue.Submit(string(category), name, task)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := task(ctx); err != nil {
		logging.Error("Cache task failed", err, logging.String("task", name))
	}
}

// DefaultKey keys a request by its path and every query parameter.
func DefaultKey(category cache.Category) KeyGenerator {
	return func(r *http.Request) string {
		params := cache.Params{}
		for name, values := range r.URL.Query() {
			params[name] = strings.Join(values, ",")
		}
		return cache.GenerateKey(category, cache.EscapeKeyPart(strings.Trim(r.URL.Path, "/")), params)
	}
}

var productListParams = []string{
	"keyword", "brand", "category", "type", "minPrice", "maxPrice", "isNew", "isBestSeller",
}

// ProductListKey keys a product listing by its paging and filter parameters.
// Unset filters are left out of the key.
func ProductListKey(r *http.Request) string {
	q := r.URL.Query()
	params := cache.Params{
		"page":     queryDefault(q.Get("page"), "1"),
		"pageSize": queryDefault(q.Get("pageSize"), "10"),
	}
	for _, name := range productListParams {
		if v := q.Get(name); v != "" {
			params[name] = v
		}
	}
	return cache.GenerateKey(cache.CategoryProducts, "list", params)
}

// ProductKey keys a single product by its route id.
func ProductKey(r *http.Request) string {
	return cache.GenerateKey(cache.CategoryProducts, "single:"+cache.EscapeKeyPart(mux.Vars(r)["id"]), nil)
}

func CategoriesKey(*http.Request) string {
	return cache.GenerateKey(cache.CategoryCategories, "all", nil)
}

// StatsKey keys dashboard statistics by period, "month" when unset.
func StatsKey(r *http.Request) string {
	return cache.GenerateKey(cache.CategoryStats, cache.EscapeKeyPart(queryDefault(r.URL.Query().Get("period"), "month")), nil)
}

func queryDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
