package mcp

import (
	"crypto/subtle"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	defaultMaxBodyBytes int64 = 1 << 20
	defaultPerMinute          = 60
	bucketIdleTTL             = 10 * time.Minute
)

// HTTPHandlerConfig guards the streamable HTTP transport.
type HTTPHandlerConfig struct {
	AuthToken       string
	RateLimitPerMin int
	MaxBodyBytes    int64
}

// guard checks the bearer token, then the per-client rate, then caps the
// request body before handing over to the MCP handler.
type guard struct {
	next    http.Handler
	token   []byte
	maxBody int64
	clients *clientLimiter
}

func newGuard(next http.Handler, cfg HTTPHandlerConfig) *guard {
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	return &guard{
		next:    next,
		token:   []byte(strings.TrimSpace(cfg.AuthToken)),
		maxBody: maxBody,
		clients: newClientLimiter(cfg.RateLimitPerMin),
	}
}

func (g *guard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	provided, ok := bearerToken(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	if len(g.token) == 0 || subtle.ConstantTimeCompare([]byte(provided), g.token) != 1 {
		log.Warn().Str("remote", clientHost(r)).Msg("mcp request with invalid token")
		writeJSONError(w, http.StatusForbidden, "invalid bearer token")
		return
	}
	if !g.clients.Allow(clientHost(r)) {
		writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	if r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, g.maxBody)
	}
	g.next.ServeHTTP(w, r)
}

func bearerToken(r *http.Request) (string, bool) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(authz, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func clientHost(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	if addr == "" {
		return "unknown"
	}
	return addr
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// clientLimiter holds one token bucket per remote host. Buckets idle for
// longer than bucketIdleTTL are dropped on the next sweep.
type clientLimiter struct {
	mu        sync.Mutex
	every     rate.Limit
	burst     int
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

func newClientLimiter(perMin int) *clientLimiter {
	if perMin <= 0 {
		perMin = defaultPerMinute
	}
	return &clientLimiter{
		every:   rate.Limit(float64(perMin) / 60.0),
		burst:   perMin,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (c *clientLimiter) Allow(host string) bool {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Sub(c.lastSweep) >= bucketIdleTTL {
		for k, b := range c.buckets {
			if now.Sub(b.seen) >= bucketIdleTTL {
				delete(c.buckets, k)
			}
		}
		c.lastSweep = now
	}
	b, ok := c.buckets[host]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(c.every, c.burst)}
		c.buckets[host] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

func (c *clientLimiter) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buckets)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
