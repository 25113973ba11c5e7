package mw

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// CatalogCache keeps rendered resource catalog reads until the next successful write.
type CatalogCache struct {
	store *cache.Cache
	ttl   time.Duration
	clock func() time.Time
}

type catalogEntry struct {
	status      int
	contentType string
	body        []byte
	storedAt    time.Time
}

// recordingWriter tees the response body so it can be stored after the handler runs.
type recordingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// NewCatalogCache returns a cache whose entries live for ttl.
func NewCatalogCache(ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		store: cache.New(ttl, 2*ttl),
		ttl:   ttl,
		clock: time.Now,
	}
}

// catalogKey ignores the order of query parameters.
func catalogKey(r *http.Request) string {
	key := r.URL.Path
	if q := r.URL.Query(); len(q) > 0 {
		key += "?" + q.Encode()
	}
	return key
}

// Middleware answers GET requests from the cache and stores 200 responses.
// Responses carry X-Cache HIT or MISS, and Age on hits.
func (cc *CatalogCache) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := catalogKey(c.Request)
		if v, found := cc.store.Get(key); found {
			entry := v.(catalogEntry)
			age := int(cc.clock().Sub(entry.storedAt) / time.Second)
			c.Header("X-Cache", "HIT")
			c.Header("Age", strconv.Itoa(age))
			c.Data(entry.status, entry.contentType, entry.body)
			c.Abort()
			return
		}

		c.Header("X-Cache", "MISS")
		rw := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = rw
		c.Next()

		if rw.Status() != http.StatusOK {
			return
		}
		cc.store.Set(key, catalogEntry{
			status:      rw.Status(),
			contentType: rw.Header().Get("Content-Type"),
			body:        bytes.Clone(rw.body.Bytes()),
			storedAt:    cc.clock(),
		}, cc.ttl)
	}
}

// FlushOnWrite empties the cache after any successful request that is not a GET.
func (cc *CatalogCache) FlushOnWrite() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if c.Request.Method == http.MethodGet {
			return
		}
		if status := c.Writer.Status(); status >= 200 && status < 300 {
			cc.store.Flush()
		}
	}
}
