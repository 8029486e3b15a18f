package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const responseMetaKey = "response_meta"

type responseMeta struct {
	start  time.Time
	values map[string]any
}

// WithResponseMeta gives handlers a per-request metadata block that the
// response envelope renders under "meta".
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, &responseMeta{start: time.Now(), values: map[string]any{}})
		c.Next()
	}
}

// SetMeta records a value for the response meta block. It is a no-op on routes
// mounted without WithResponseMeta.
func SetMeta(c *gin.Context, key string, value any) {
	if meta := metaFrom(c); meta != nil {
		meta.values[key] = value
	}
}

// SetCacheHit flags whether the payload was served from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, "cache_hit", hit)
}

// ExtractMeta copies the recorded values and stamps processing_time_ms.
func ExtractMeta(c *gin.Context) map[string]any {
	meta := metaFrom(c)
	if meta == nil {
		return nil
	}
	out := make(map[string]any, len(meta.values)+1)
	for k, v := range meta.values {
		out[k] = v
	}
	out["processing_time_ms"] = time.Since(meta.start).Milliseconds()
	return out
}

func metaFrom(c *gin.Context) *responseMeta {
	if c == nil {
		return nil
	}
	value, ok := c.Get(responseMetaKey)
	if !ok {
		return nil
	}
	meta, _ := value.(*responseMeta)
	return meta
}
