package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	// EnableHSTS emits Strict-Transport-Security on HTTPS requests only.
	EnableHSTS bool
	// HSTSMaxAge defaults to 180 days.
	HSTSMaxAge time.Duration
	// CacheControl, when set, is written as the Cache-Control header. The
	// dashboard uses "private, no-cache" so browsers revalidate via ETag.
	CacheControl string
	// EnablePolicy adds Permissions-Policy and X-Permitted-Cross-Domain-Policies.
	EnablePolicy bool
}

// SecurityHeaders adds hardening headers to every response:
// nosniff, frame denial and no-referrer always; the rest per SecurityOptions.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int64(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int64((180 * 24 * time.Hour).Seconds())
	}
	hsts := "max-age=" + strconv.FormatInt(maxAge, 10) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}
		if opt.CacheControl != "" {
			h.Set("Cache-Control", opt.CacheControl)
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		c.Next()
	}
}

// isHTTPS reports whether the request arrived over TLS directly or through a
// proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
