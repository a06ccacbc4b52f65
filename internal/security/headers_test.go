package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

var noop = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

func serve(h Headers, req *http.Request) http.Header {
	rr := httptest.NewRecorder()
	h.Middleware(noop).ServeHTTP(rr, req)
	return rr.Result().Header
}

func TestHeadersOverTLS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "https://dealer.test/api/v1/deals", nil)
	req.TLS = &tls.ConnectionState{}

	got := serve(Headers{Enable: true, EnableHSTS: true, HSTSMaxAge: 600, HSTSIncludeSubdomains: true, NoStore: true}, req)
	require.Equal(t, "nosniff", got.Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", got.Get("X-Frame-Options"))
	require.Equal(t, "max-age=600; includeSubDomains", got.Get("Strict-Transport-Security"))
	require.Equal(t, "no-store", got.Get("Cache-Control"))
	require.Equal(t, defaultCSP, got.Get("Content-Security-Policy"))
}

func TestHeadersPlainHTTP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/deals/x/settlement?format=html", nil)
	got := serve(Headers{Enable: true, EnableHSTS: true}, req)
	require.Empty(t, got.Get("Strict-Transport-Security"))
	require.Empty(t, got.Get("Cache-Control"))

	got = serve(Headers{Enable: true, ContentSecurityPolicy: "default-src 'self'"}, req)
	require.Equal(t, "default-src 'self'", got.Get("Content-Security-Policy"))
}

func TestHeadersDisabled(t *testing.T) {
	got := serve(Headers{EnableHSTS: true}, httptest.NewRequest(http.MethodGet, "http://dealer.test", nil))
	require.Empty(t, got.Get("X-Content-Type-Options"))
}
