package httpx

import (
	"net"
	"net/http"
	"sync"

	"github.com/maremotors/backoffice/internal/logger"
	"golang.org/x/time/rate"
)

// IPRateLimiter manages per-IP rate limiters.
type IPRateLimiter struct {
	limiters sync.Map
	rate     rate.Limit
	burst    int
	log      *logger.Logger
}

func NewIPRateLimiter(r rate.Limit, burst int, log *logger.Logger) *IPRateLimiter {
	return &IPRateLimiter{rate: r, burst: burst, log: log}
}

// NewLoginRateLimiter allows perMinute attempts per IP with the same burst.
func NewLoginRateLimiter(perMinute int, log *logger.Logger) *IPRateLimiter {
	if perMinute <= 0 {
		perMinute = 5
	}
	return NewIPRateLimiter(rate.Limit(float64(perMinute)/60.0), perMinute, log)
}

func (i *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	limiter, _ := i.limiters.LoadOrStore(ip, rate.NewLimiter(i.rate, i.burst))
	return limiter.(*rate.Limiter)
}

// Middleware answers 429 once an IP exceeds its budget.
func (i *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		if !i.getLimiter(ip).Allow() {
			if i.log != nil {
				i.log.WithContext(r.Context()).RateLimitExceeded(ip, r.URL.Path)
			}
			JSONError(w, http.StatusTooManyRequests, "rate_limit_exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP is the host part of the remote address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
