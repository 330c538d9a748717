package mw

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

type cachedResponse struct {
	status  int
	headers http.Header
	body    []byte
}

type bodyCacheWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyCacheWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w bodyCacheWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// KeyFunc scopes a cached response. Returning "" skips the cache for the
// request.
type KeyFunc func(c *gin.Context) string

// SessionKey scopes cache entries to the session cookie, so one user's page
// is never served to another.
func SessionKey(cookie string) KeyFunc {
	return func(c *gin.Context) string {
		sid, err := c.Cookie(cookie)
		if err != nil || sid == "" {
			return ""
		}
		return sid + "|" + c.Request.RequestURI
	}
}

// Cache keeps successful GET responses in memory for duration.
func Cache(store *cache.Cache, duration time.Duration, key KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}
		k := key(c)
		if k == "" {
			c.Next()
			return
		}

		if resp, found := store.Get(k); found {
			cached := resp.(cachedResponse)
			for h, v := range cached.headers {
				c.Writer.Header()[h] = v
			}
			c.Writer.Header().Set("X-Cache", "HIT")
			c.Writer.WriteHeader(cached.status)
			c.Writer.Write(cached.body)
			c.Abort()
			return
		}

		blw := &bodyCacheWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		if blw.Status() >= 200 && blw.Status() < 300 {
			store.Set(k, cachedResponse{
				status:  blw.Status(),
				headers: blw.Header().Clone(),
				body:    blw.body.Bytes(),
			}, duration)
		}
	}
}

// Purge drops every cached entry of a session, e.g. on logout.
func Purge(store *cache.Cache, sid string) {
	prefix := sid + "|"
	for k := range store.Items() {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			store.Delete(k)
		}
	}
}
