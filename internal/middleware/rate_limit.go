// internal/middleware/rate_limit.go
package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/saptechnologies/sap-backend/internal/config"
	"github.com/saptechnologies/sap-backend/internal/utils"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type RateLimiter struct {
	visitors map[string]*visitor
	mtx      sync.Mutex
	rate     rate.Limit
	burst    int
	stop     chan struct{}
	stopOnce sync.Once
}

func NewRateLimiter(r rate.Limit, b int) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     r,
		burst:    b,
		stop:     make(chan struct{}),
	}

	// Clean up old visitors every minute
	go rl.cleanupVisitors()

	return rl
}

func (rl *RateLimiter) cleanupVisitors() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mtx.Lock()
			for ip, v := range rl.visitors {
				if time.Since(v.lastSeen) > 3*time.Minute {
					delete(rl.visitors, ip)
				}
			}
			rl.mtx.Unlock()
		}
	}
}

func (rl *RateLimiter) getVisitor(ip string) *rate.Limiter {
	rl.mtx.Lock()
	defer rl.mtx.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		limiter := rate.NewLimiter(rl.rate, rl.burst)
		rl.visitors[ip] = &visitor{limiter, time.Now()}
		return limiter
	}

	v.lastSeen = time.Now()
	return v.limiter
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.getVisitor(c.ClientIP()).Allow() {
			utils.TooManyRequestsResponse(c)
			c.Abort()
			return
		}

		c.Next()
	}
}

// RateLimiters holds one per-IP limiter per route class. A nil limiter lets everything through.
type RateLimiters struct {
	general *RateLimiter
	auth    *RateLimiter
	submit  *RateLimiter
	vote    *RateLimiter
}

func NewRateLimiters(cfg config.RateLimitConfig) *RateLimiters {
	if !cfg.Enabled {
		return &RateLimiters{}
	}

	return &RateLimiters{
		general: NewRateLimiter(rate.Limit(cfg.PerSecond), cfg.Burst),
		auth:    NewRateLimiter(rate.Every(time.Minute/5), 5),   // 5 login attempts per minute
		submit:  NewRateLimiter(rate.Every(time.Minute/10), 10), // 10 submissions per minute
		vote:    NewRateLimiter(rate.Every(time.Minute/30), 30), // 30 votes per minute
	}
}

func (l *RateLimiters) General() gin.HandlerFunc { return limitWith(l.general) }
func (l *RateLimiters) Auth() gin.HandlerFunc    { return limitWith(l.auth) }
func (l *RateLimiters) Submit() gin.HandlerFunc  { return limitWith(l.submit) }
func (l *RateLimiters) Vote() gin.HandlerFunc    { return limitWith(l.vote) }

func (l *RateLimiters) Stop() {
	for _, rl := range []*RateLimiter{l.general, l.auth, l.submit, l.vote} {
		if rl != nil {
			rl.Stop()
		}
	}
}

func limitWith(rl *RateLimiter) gin.HandlerFunc {
	if rl == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return rl.Middleware()
}
