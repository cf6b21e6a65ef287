package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"parkingcash/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// windowEntry counts requests from one IP in the current fixed window.
type windowEntry struct {
	count     int
	windowEnd time.Time
}

// RateLimiter is a per-IP fixed-window limiter.
type RateLimiter struct {
	name   string
	limit  int
	window time.Duration
	msg    string

	mu      sync.Mutex
	entries map[string]*windowEntry
}

func NewRateLimiter(name string, limit int, window time.Duration, msg string) *RateLimiter {
	return &RateLimiter{
		name:    name,
		limit:   limit,
		window:  window,
		msg:     msg,
		entries: make(map[string]*windowEntry),
	}
}

// NewLoginRateLimiter allows 20 login attempts per minute per IP.
func NewLoginRateLimiter() *RateLimiter {
	return NewRateLimiter("login", 20, time.Minute, "Demasiados intentos de login. Intente en 1 minuto.")
}

// NewAPIRateLimiter allows limit requests per window per IP.
func NewAPIRateLimiter(limit int, window time.Duration) *RateLimiter {
	return NewRateLimiter("api", limit, window, "Demasiadas solicitudes. Intente nuevamente en un momento.")
}

// Allow records one request from ip and reports whether it is within the limit.
func (l *RateLimiter) Allow(ip string, now time.Time) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[ip]
	if !ok {
		e = &windowEntry{}
		l.entries[ip] = e
	}
	if now.After(e.windowEnd) {
		e.count = 0
		e.windowEnd = now.Add(l.window)
	}
	e.count++
	return e.count <= l.limit, e.windowEnd
}

func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, windowEnd := l.Allow(c.ClientIP(), time.Now())
		if !ok {
			c.Header("Retry-After", windowEnd.UTC().Format(http.TimeFormat))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New(l.msg))
			return
		}
		c.Next()
	}
}

// ── Purge ─────────────────────────────────────────────────────────────────────

const purgeInterval = 5 * time.Minute

// StartPurge drops expired entries every few minutes until ctx is done.
func (l *RateLimiter) StartPurge(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(purgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := l.purge(now); n > 0 {
					log.Debug().Str("limiter", l.name).Int("entries_purged", n).Msg("rate limiter purged")
				}
			}
		}
	}()
}

func (l *RateLimiter) purge(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	purged := 0
	for ip, e := range l.entries {
		if now.After(e.windowEnd) {
			delete(l.entries, ip)
			purged++
		}
	}
	return purged
}
