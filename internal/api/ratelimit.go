package api

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// TenantLimiter hands out one token bucket per tenant.
type TenantLimiter struct {
	mu    sync.Mutex
	rps   rate.Limit
	burst int
	m     map[string]*rate.Limiter
}

func NewTenantLimiter(rps float64, burst int) *TenantLimiter {
	return &TenantLimiter{rps: rate.Limit(rps), burst: burst, m: map[string]*rate.Limiter{}}
}

func (l *TenantLimiter) Allow(tenant string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	lim, ok := l.m[tenant]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.m[tenant] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// rateLimited rejects requests beyond the caller's tenant budget with 429.
func (s *Server) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pr, ok := s.getPrincipal(r); ok && !s.Limits.Allow(pr.Tenant) {
			w.Header().Set("Retry-After", "1")
			writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "planning rate limit exceeded", r.URL.Path)
			return
		}
		next(w, r)
	}
}
