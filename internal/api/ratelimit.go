package api

import (
	"net"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/keepstash/keepstash/internal/ratelimit"
)

// Manual triggers (sync, connectivity reports) allowed per client.
const (
	triggerRatePerSecond = 1
	triggerBurst         = 5
)

// codeRateLimited is the error code of 429 responses.
const codeRateLimited = "RATE_LIMITED"

// newTriggerLimiter creates the per-client limiter for manual triggers.
func newTriggerLimiter() *ratelimit.KeyedRateLimiter {
	return ratelimit.New(triggerRatePerSecond, triggerBurst)
}

// rateLimited returns an operation middleware that rejects a client over
// its budget with 429 Too Many Requests.
func (s *Server) rateLimited(limiter *ratelimit.KeyedRateLimiter) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		key := clientIP(ctx.RemoteAddr())
		if !limiter.Allow(key) {
			s.logger.Warn("Rate limit exceeded",
				"ip", key,
				"path", ctx.URL().Path,
			)
			_ = huma.WriteErr(s.api, ctx, http.StatusTooManyRequests, "Too many requests. Please try again later.")
			return
		}
		next(ctx)
	}
}

// clientIP strips the port from a remote address. chi's RealIP middleware
// has already applied X-Forwarded-For and X-Real-IP.
func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
