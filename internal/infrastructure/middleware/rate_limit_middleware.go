package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"overlaycam/pkg/config"
	"overlaycam/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long an address keeps its limiter after its last
// request.
const limiterIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiterStore hands out one limiter per client address and forgets
// addresses that went quiet.
type rateLimiterStore struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	rate      rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func newRateLimiterStore(r rate.Limit, burst int) *rateLimiterStore {
	return &rateLimiterStore{
		visitors:  make(map[string]*visitor),
		rate:      r,
		burst:     burst,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (s *rateLimiterStore) getLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= limiterIdleTTL {
		for k, v := range s.visitors {
			if now.Sub(v.lastSeen) >= limiterIdleTTL {
				delete(s.visitors, k)
			}
		}
		s.lastSweep = now
	}

	v, ok := s.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(s.rate, s.burst)}
		s.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

func (s *rateLimiterStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visitors)
}

// clientIP prefers the first X-Forwarded-For hop and falls back to the
// remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// NewHTTPRateLimitMiddleware limits plain requests per client IP and caps
// requests in flight.
func NewHTTPRateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	if !cfg.RateLimiting.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	rps := cfg.RateLimiting.HTTP.RequestsPerSecond
	burst := cfg.RateLimiting.HTTP.Burst

	store := newRateLimiterStore(rate.Limit(rps), burst)

	var globalSem chan struct{}
	if cfg.RateLimiting.HTTP.MaxConcurrent > 0 {
		globalSem = make(chan struct{}, cfg.RateLimiting.HTTP.MaxConcurrent)
	}

	return func(c *gin.Context) {
		// Sockets are limited by the websocket middleware; holding a slot
		// for their whole lifetime would starve plain requests.
		if websocket.IsWebSocketUpgrade(c.Request) {
			c.Next()
			return
		}

		if globalSem != nil {
			select {
			case globalSem <- struct{}{}:
				defer func() { <-globalSem }()
			default:
				abortWithAppError(c, errors.NewServiceUnavailableError("too many concurrent requests"))
				return
			}
		}

		ip := clientIP(c.Request)
		limiter := store.getLimiter(ip)
		if !limiter.Allow() {
			abortWithAppError(c, errors.NewRateLimitError().WithContext("retry_after", retryAfter(limiter)))
			return
		}
		c.Next()
	}
}

// NewWebSocketRateLimitMiddleware limits websocket upgrades per IP per minute
// and caps concurrently open sockets. The slot is held until the handler
// returns, which for websocket routes is when the socket closes.
func NewWebSocketRateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	if !cfg.RateLimiting.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	perMinute := cfg.RateLimiting.WebSocket.ConnectionsPerMinute
	store := newRateLimiterStore(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)

	var sem chan struct{}
	if cfg.RateLimiting.WebSocket.MaxConcurrent > 0 {
		sem = make(chan struct{}, cfg.RateLimiting.WebSocket.MaxConcurrent)
	}

	return func(c *gin.Context) {
		limiter := store.getLimiter(clientIP(c.Request))
		if !limiter.Allow() {
			appErr := errors.NewRateLimitError().WithContext("retry_after", retryAfter(limiter))
			appErr.Message = "too many websocket connections"
			abortWithAppError(c, appErr)
			return
		}

		if sem != nil {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			default:
				abortWithAppError(c, errors.NewServiceUnavailableError("too many concurrent websocket connections"))
				return
			}
		}
		c.Next()
	}
}

// retryAfter returns whole seconds until the limiter admits one more event.
func retryAfter(limiter *rate.Limiter) int {
	r := limiter.Reserve()
	defer r.Cancel()
	seconds := int((r.Delay() + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}
