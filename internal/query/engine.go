// Package query is the read side of the platform: ranked search and
// completion suggestions over the in-memory index, fronted by a Redis
// result cache. Queries never fail outward; if the index misbehaves the
// engine answers with an empty result and counts the degradation.
package query

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rs-vn/document-search-platform/internal/document"
	"github.com/rs-vn/document-search-platform/internal/index"
	"github.com/rs-vn/document-search-platform/pkg/config"
	"github.com/rs-vn/document-search-platform/pkg/metrics"
)

const cacheKeyPrefix = "query:"

// Engine answers search and suggestion queries.
type Engine struct {
	index   *index.Index
	cache   Cache
	ttl     time.Duration
	cfg     config.SearchConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
	group   singleflight.Group
}

// New creates an Engine. cache may be nil to run without a result cache.
func New(idx *index.Index, cache Cache, ttl time.Duration, cfg config.SearchConfig, m *metrics.Metrics, log *slog.Logger) *Engine {
	return &Engine{
		index:   idx,
		cache:   cache,
		ttl:     ttl,
		cfg:     cfg,
		metrics: m,
		logger:  log.With("component", "query"),
	}
}

// Search returns one page of ranked results for keyword. Page is zero-based;
// size is clamped to the configured maximum and defaulted when unset.
func (e *Engine) Search(ctx context.Context, keyword string, page, size int) []document.Record {
	start := time.Now()
	page, size = e.clampPage(page, size)

	key := cacheKey("search", keyword, page, size)
	if cached, ok := e.cacheGet(ctx, key); ok {
		var results []document.Record
		if err := json.Unmarshal([]byte(cached), &results); err == nil {
			e.metrics.CacheHitsTotal.Inc()
			e.metrics.SearchLatency.WithLabelValues("hit").Observe(time.Since(start).Seconds())
			e.countSearch(results)
			return results
		}
	}
	e.metrics.CacheMissesTotal.Inc()

	value, err, _ := e.group.Do(key, func() (any, error) {
		return e.runSearch(keyword, page, size)
	})
	if err != nil {
		e.metrics.SearchDegradedTotal.Inc()
		e.metrics.SearchQueriesTotal.WithLabelValues("degraded").Inc()
		e.logger.Error("search degraded to empty result", "keyword", keyword, "error", err)
		return []document.Record{}
	}
	results := value.([]document.Record)
	e.cacheSet(ctx, key, results)
	e.metrics.SearchLatency.WithLabelValues("miss").Observe(time.Since(start).Seconds())
	e.countSearch(results)
	return results
}

// Suggest returns up to limit completion options for the typed prefix,
// falling back to a substring match over search texts when completion finds
// nothing. It never fails outward.
func (e *Engine) Suggest(ctx context.Context, prefix string, limit int) []index.Suggestion {
	limit = e.clampSuggestLimit(limit)

	key := cacheKey("suggest", prefix, 0, limit)
	if cached, ok := e.cacheGet(ctx, key); ok {
		var options []index.Suggestion
		if err := json.Unmarshal([]byte(cached), &options); err == nil {
			e.metrics.CacheHitsTotal.Inc()
			e.countSuggest(options)
			return options
		}
	}
	e.metrics.CacheMissesTotal.Inc()

	value, err, _ := e.group.Do(key, func() (any, error) {
		return e.runSuggest(prefix, limit)
	})
	if err != nil {
		e.metrics.SearchDegradedTotal.Inc()
		e.metrics.SuggestQueriesTotal.WithLabelValues("degraded").Inc()
		e.logger.Error("suggest degraded to empty result", "prefix", prefix, "error", err)
		return []index.Suggestion{}
	}
	options := value.([]index.Suggestion)
	e.cacheSet(ctx, key, options)
	e.countSuggest(options)
	return options
}

// Invalidate drops all cached query results. The index writer calls this
// after every index change.
func (e *Engine) Invalidate(ctx context.Context) {
	if e.cache != nil {
		e.cache.Flush(ctx, cacheKeyPrefix+"*")
	}
}

func (e *Engine) runSearch(keyword string, page, size int) (results []document.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("index panic: %v", r)
		}
	}()
	return e.index.Search(keyword, page, size), nil
}

func (e *Engine) runSuggest(prefix string, limit int) (options []index.Suggestion, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("index panic: %v", r)
		}
	}()
	options = e.index.Complete(prefix, limit)
	if len(options) == 0 {
		options = e.index.MatchSearchText(prefix, limit)
	}
	return options, nil
}

func (e *Engine) clampPage(page, size int) (int, int) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = e.cfg.DefaultPageSize
	}
	if e.cfg.MaxPageSize > 0 && size > e.cfg.MaxPageSize {
		size = e.cfg.MaxPageSize
	}
	return page, size
}

func (e *Engine) clampSuggestLimit(limit int) int {
	if limit <= 0 {
		limit = e.cfg.DefaultSuggestLimit
	}
	if e.cfg.MaxSuggestLimit > 0 && limit > e.cfg.MaxSuggestLimit {
		limit = e.cfg.MaxSuggestLimit
	}
	return limit
}

func (e *Engine) cacheGet(ctx context.Context, key string) (string, bool) {
	if e.cache == nil {
		return "", false
	}
	return e.cache.Get(ctx, key)
}

func (e *Engine) cacheSet(ctx context.Context, key string, value any) {
	if e.cache == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	e.cache.Set(ctx, key, string(data), e.ttl)
}

func (e *Engine) countSearch(results []document.Record) {
	if len(results) == 0 {
		e.metrics.SearchQueriesTotal.WithLabelValues("zero_result").Inc()
		return
	}
	e.metrics.SearchQueriesTotal.WithLabelValues("hit").Inc()
}

func (e *Engine) countSuggest(options []index.Suggestion) {
	if len(options) == 0 {
		e.metrics.SuggestQueriesTotal.WithLabelValues("zero_result").Inc()
		return
	}
	e.metrics.SuggestQueriesTotal.WithLabelValues("hit").Inc()
}

func cacheKey(kind, input string, page, limit int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%d", kind, input, page, limit)))
	return cacheKeyPrefix + kind + ":" + hex.EncodeToString(sum[:16])
}
