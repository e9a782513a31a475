package middleware

import (
	"net/http"
	"sync"
	"time"

	"farmapos/internal/apierror"

	"github.com/gin-gonic/gin"
)

// windowCounter is a fixed-window request counter keyed by client IP.
// Expired entries are purged lazily, at most once per window.
type windowCounter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	entries   map[string]*windowEntry
	lastPurge time.Time
	now       func() time.Time
}

type windowEntry struct {
	count     int
	windowEnd time.Time
}

func newWindowCounter(limit int, window time.Duration) *windowCounter {
	return &windowCounter{
		limit:   limit,
		window:  window,
		entries: make(map[string]*windowEntry),
		now:     time.Now,
	}
}

// allow counts one hit for key and reports whether it is within the limit,
// plus the end of the current window.
func (w *windowCounter) allow(key string) (bool, time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if now.Sub(w.lastPurge) > w.window {
		for k, e := range w.entries {
			if now.After(e.windowEnd) {
				delete(w.entries, k)
			}
		}
		w.lastPurge = now
	}

	e, ok := w.entries[key]
	if !ok || now.After(e.windowEnd) {
		e = &windowEntry{windowEnd: now.Add(w.window)}
		w.entries[key] = e
	}
	e.count++
	return e.count <= w.limit, e.windowEnd
}

func limitBy(w *windowCounter, msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, end := w.allow(c.ClientIP())
		if !ok {
			c.Header("Retry-After", end.UTC().Format(http.TimeFormat))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New(msg))
			return
		}
		c.Next()
	}
}

// RateLimiter limits every client IP to limit requests per window.
func RateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	return limitBy(newWindowCounter(limit, window), "too many requests, try again shortly")
}

// LoginRateLimiter limits login attempts to 20 per minute per IP.
func LoginRateLimiter() gin.HandlerFunc {
	return limitBy(newWindowCounter(20, time.Minute), "too many login attempts, try again in a minute")
}
