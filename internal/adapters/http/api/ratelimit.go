// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"sync"

	"golang.org/x/time/rate"
)

// cameraLimiter holds one token bucket per camera. Each camera refills at
// perSecond tokens up to burst; a detection spends one token.
type cameraLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	perSecond rate.Limit
	burst     int
}

func newCameraLimiter(perSecond float64, burst int) *cameraLimiter {
	return &cameraLimiter{
		limiters:  make(map[string]*rate.Limiter),
		perSecond: rate.Limit(perSecond),
		burst:     burst,
	}
}

func (l *cameraLimiter) allow(cameraID string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[cameraID]
	if !ok {
		lim = rate.NewLimiter(l.perSecond, l.burst)
		l.limiters[cameraID] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}
