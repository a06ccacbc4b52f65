package common

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the caller's address, preferring the first hop of
// X-Forwarded-For, then X-Real-IP, then RemoteAddr. Header values that do not
// parse as an IP are skipped.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := parseIP(first); ip != "" {
			return ip
		}
	}
	if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func parseIP(value string) string {
	value = strings.Trim(strings.TrimSpace(value), "[]")
	if ip := net.ParseIP(value); ip != nil {
		return ip.String()
	}
	return ""
}
