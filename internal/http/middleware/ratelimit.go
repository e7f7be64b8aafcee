package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/smartwell-la/smartwell-platform/internal/api/respond"
	"github.com/smartwell-la/smartwell-platform/internal/observability/metrics"
)

// Preset names a fixed-window quota.
type Preset struct {
	Name   string
	Window time.Duration
	Max    int
}

// Quota presets applied per route group.
var (
	PresetAuth  = Preset{Name: "auth", Window: 15 * time.Minute, Max: 5}
	PresetAdmin = Preset{Name: "admin", Window: time.Minute, Max: 30}
	PresetAPI   = Preset{Name: "api", Window: time.Minute, Max: 60}
	PresetEmail = Preset{Name: "email", Window: time.Hour, Max: 3}
)

// RateLimiter provides fixed-window request counting keyed by client
// identifier and preset. State is process-local and volatile: it is lost on
// restart and not shared across instances.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
	metrics *metrics.PlatformMetrics
}

type window struct {
	count int
	start time.Time
}

// Result is the outcome of a single limiter check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// NewRateLimiter creates a rate limiter with a background eviction loop for
// stale windows.
func NewRateLimiter(m *metrics.PlatformMetrics) *RateLimiter {
	rl := &RateLimiter{
		windows: make(map[string]*window),
		now:     time.Now,
		metrics: m,
	}
	go rl.cleanup()
	return rl
}

// WithClock overrides the wall clock, for tests.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	rl.now = now
	return rl
}

// Check counts one request against the key's current window.
func (rl *RateLimiter) Check(key string, p Preset) Result {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	mapKey := p.Name + ":" + key
	win, ok := rl.windows[mapKey]
	if !ok || now.Sub(win.start) >= p.Window {
		win = &window{count: 1, start: now}
		rl.windows[mapKey] = win
	} else {
		win.count++
	}

	remaining := p.Max - win.count
	if remaining < 0 {
		remaining = 0
	}
	allowed := win.count <= p.Max
	if !allowed {
		rl.metrics.ObserveRateLimitDenied(p.Name)
	}
	return Result{
		Allowed:   allowed,
		Limit:     p.Max,
		Remaining: remaining,
		Reset:     win.start.Add(p.Window),
	}
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		now := rl.now()
		for key, win := range rl.windows {
			// The longest preset window is an hour; anything older is dead.
			if now.Sub(win.start) > 2*time.Hour {
				delete(rl.windows, key)
			}
		}
		rl.mu.Unlock()
	}
}

// Limit returns an HTTP middleware applying the preset per client IP.
// Quota headers are set on every response; denied requests additionally get
// Retry-After and a 429.
func (rl *RateLimiter) Limit(p Preset) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := rl.Check(ClientIP(r), p)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.Reset.Unix(), 10))

			if !res.Allowed {
				retryAfter := int(res.Reset.Sub(rl.now()).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				respond.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP resolves the client identifier from proxy headers, falling back
// to the socket address.
func ClientIP(r *http.Request) string {
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
