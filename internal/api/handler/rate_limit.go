package handler

import (
	"net/http"
	"sync"
	"time"

	"friendchat/backend/internal/localization"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitMiddleware allows each client IP a burst of requests that refills evenly
// over window.
func RateLimitMiddleware(requests int, window time.Duration, localizer *localization.Localizer) gin.HandlerFunc {
	limiters := newLimiterStore(requests, window)

	return func(c *gin.Context) {
		if !limiters.get(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": localizer.GetString(language(c), "rate_limited"),
				"code":  "rate_limited",
			})
			return
		}
		c.Next()
	}
}

type trackedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore keeps one limiter per IP. A limiter unused for a whole window has
// refilled its burst, so it is dropped on the next sweep and recreated on demand.
type limiterStore struct {
	mu        sync.Mutex
	limiters  map[string]*trackedLimiter
	every     rate.Limit
	burst     int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newLimiterStore(requests int, window time.Duration) *limiterStore {
	return &limiterStore{
		limiters:  make(map[string]*trackedLimiter),
		every:     rate.Every(window / time.Duration(requests)),
		burst:     requests,
		window:    window,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (s *limiterStore) get(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= s.window {
		s.sweep(now)
	}

	l, ok := s.limiters[ip]
	if !ok {
		l = &trackedLimiter{limiter: rate.NewLimiter(s.every, s.burst)}
		s.limiters[ip] = l
	}
	l.lastSeen = now
	return l.limiter
}

func (s *limiterStore) sweep(now time.Time) {
	for ip, l := range s.limiters {
		if now.Sub(l.lastSeen) >= s.window {
			delete(s.limiters, ip)
		}
	}
	s.lastSweep = now
}

func (s *limiterStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}
