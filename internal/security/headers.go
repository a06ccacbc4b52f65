// Package security holds response hardening middleware.
package security

import (
	"fmt"
	"net/http"
)

const defaultCSP = "default-src 'none'; style-src 'unsafe-inline'; frame-ancestors 'none'"

// Headers adds hardening headers to every response. Rendered settlement
// reports are static HTML, so the default policy forbids scripts entirely.
type Headers struct {
	Enable                bool
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	ContentSecurityPolicy string
	// NoStore marks responses uncacheable. Deal figures must not linger in
	// shared caches.
	NoStore bool
}

func (h Headers) static() http.Header {
	csp := h.ContentSecurityPolicy
	if csp == "" {
		csp = defaultCSP
	}
	out := http.Header{}
	out.Set("X-Content-Type-Options", "nosniff")
	out.Set("X-Frame-Options", "DENY")
	out.Set("Referrer-Policy", "no-referrer")
	out.Set("Cross-Origin-Opener-Policy", "same-origin")
	out.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
	out.Set("Content-Security-Policy", csp)
	if h.NoStore {
		out.Set("Cache-Control", "no-store")
	}
	return out
}

func (h Headers) hsts() string {
	maxAge := h.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = 31536000
	}
	if h.HSTSIncludeSubdomains {
		return fmt.Sprintf("max-age=%d; includeSubDomains", maxAge)
	}
	return fmt.Sprintf("max-age=%d", maxAge)
}

// Middleware attaches the headers. HSTS is only sent over TLS.
func (h Headers) Middleware(next http.Handler) http.Handler {
	if !h.Enable {
		return next
	}
	fixed := h.static()
	hsts := h.hsts()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out := w.Header()
		for k, v := range fixed {
			out[k] = v
		}
		if h.EnableHSTS && r.TLS != nil {
			out.Set("Strict-Transport-Security", hsts)
		}
		next.ServeHTTP(w, r)
	})
}
