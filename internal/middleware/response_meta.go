package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	metaStartKey    = "meta_started_at"
	metaCacheHitKey = "meta_cache_hit"
)

// WithResponseMeta records the request start time so handlers can attach
// timing metadata to their envelopes.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(metaStartKey, time.Now())
		c.Next()
	}
}

// SetCacheHit marks whether the handler served its payload from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	if c != nil {
		c.Set(metaCacheHitKey, hit)
	}
}

// Meta assembles the metadata map for the current request: elapsed handler
// time when WithResponseMeta ran, plus the cache flag when one was set.
func Meta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	meta := make(map[string]interface{}, 2)
	if v, ok := c.Get(metaStartKey); ok {
		if started, ok := v.(time.Time); ok {
			meta["processing_time_ms"] = time.Since(started).Milliseconds()
		}
	}
	if v, ok := c.Get(metaCacheHitKey); ok {
		meta["cache_hit"] = v
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}
