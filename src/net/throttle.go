package net

import (
	"time"

	"golang.org/x/time/rate"
)

// DefaultResyncInterval is the minimum delay between two resync broadcasts.
const DefaultResyncInterval = 10 * time.Second

// resyncThrottle lets one resync through per interval and drops the rest.
type resyncThrottle struct {
	limiter *rate.Limiter
}

func newResyncThrottle(interval time.Duration) *resyncThrottle {
	if interval <= 0 {
		interval = DefaultResyncInterval
	}
	return &resyncThrottle{
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

func (t *resyncThrottle) allow() bool {
	return t.limiter.Allow()
}
