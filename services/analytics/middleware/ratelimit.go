// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianPulse/services/analytics/datatypes"
)

// idleLimiterTTL is how long an unused per-client bucket is kept.
const idleLimiterTTL = 10 * time.Minute

// RateLimitConfig configures RateLimit.
type RateLimitConfig struct {
	// Rate is the sustained requests per second per client.
	Rate float64
	// Burst is the bucket size per client.
	Burst int
	// OnLimited is called for every rejected request. Optional.
	OnLimited func()
	// Now is the clock used for idle eviction. Defaults to time.Now.
	Now func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet holds one token bucket per client key.
type limiterSet struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	limit     rate.Limit
	burst     int
	now       func() time.Time
	lastSweep time.Time
}

func newLimiterSet(cfg RateLimitConfig) *limiterSet {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &limiterSet{
		clients:   make(map[string]*clientLimiter),
		limit:     rate.Limit(cfg.Rate),
		burst:     cfg.Burst,
		now:       now,
		lastSweep: now(),
	}
}

// allow takes one token from key's bucket.
func (s *limiterSet) allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.now()
	if t.Sub(s.lastSweep) > idleLimiterTTL {
		for k, cl := range s.clients {
			if t.Sub(cl.lastSeen) > idleLimiterTTL {
				delete(s.clients, k)
			}
		}
		s.lastSweep = t
	}

	cl, ok := s.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.clients[key] = cl
	}
	cl.lastSeen = t
	return cl.limiter.AllowN(t, 1)
}

func (s *limiterSet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// RateLimit rejects requests beyond cfg's per-client-IP budget with 429.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	return rateLimit(newLimiterSet(cfg), cfg.OnLimited)
}

func rateLimit(set *limiterSet, onLimited func()) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if set.allow(ip) {
			c.Next()
			return
		}
		if onLimited != nil {
			onLimited()
		}
		slog.Warn("rate limited", "client_ip", ip, "path", c.Request.URL.Path)
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, datatypes.ErrorResponse{Error: "Too many requests"})
	}
}
