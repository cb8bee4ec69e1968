package ratelimit

import (
	"net"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"loyaltyhub/pkg/auth"
	"loyaltyhub/pkg/errutil"
)

// Middleware applies the HTTP-boundary limiter per actor: the verified
// identity when present, the client address otherwise.
func Middleware(limiter *Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := actorKey(c)

		allowed, remaining, resetAt, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			zap.L().Error("rate limiter failed", zap.String("key", key), zap.Error(err))
			be := errutil.BaseError{Code: errutil.StatusInternal, Message: "rate limiter unavailable"}
			c.AbortWithStatusJSON(be.Status().HTTPStatus(), be.JSON())
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(limiter.Limit(), 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		if !resetAt.IsZero() {
			c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
		}

		if !allowed {
			be := errutil.BaseError{Code: errutil.StatusTooManyRequests, Message: "rate limit exceeded"}
			c.AbortWithStatusJSON(be.Status().HTTPStatus(), be.JSON())
			return
		}

		c.Next()
	}
}

func actorKey(c *gin.Context) string {
	if identity := auth.FromContext(c); identity.ActorID != "" {
		return identity.ActorID
	}
	return ExtractClientIP(c)
}

// ExtractClientIP trusts X-Real-IP, then the first X-Forwarded-For entry,
// then the socket address. The header values are attacker-controlled when no
// trusted proxy sits in front; see the deployment notes before relying on
// per-IP limits.
func ExtractClientIP(c *gin.Context) string {
	if ip := strings.TrimSpace(c.GetHeader("X-Real-IP")); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(c.GetHeader("X-Forwarded-For")); ip != "" {
		if first, _, ok := strings.Cut(ip, ","); ok {
			return strings.TrimSpace(first)
		}
		return ip
	}
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	if c.Request.RemoteAddr != "" {
		return c.Request.RemoteAddr
	}
	return "ip"
}
