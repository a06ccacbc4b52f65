package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lumina-dealer/internal/common"
)

const testSecret = "test-secret"

func signToken(t *testing.T, alg jwa.SignatureAlgorithm, secret string, build func(*jwt.Builder) *jwt.Builder) string {
	t.Helper()
	now := time.Now()
	b := jwt.NewBuilder().
		Issuer("https://auth.example").
		Audience([]string{"authenticated"}).
		Subject("8f6f0d1c").
		IssuedAt(now).
		Expiration(now.Add(time.Hour))
	if build != nil {
		b = build(b)
	}
	tok, err := b.Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(alg, []byte(secret)))
	require.NoError(t, err)
	return string(signed)
}

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(Config{Secret: testSecret, Issuer: "https://auth.example", Audience: "authenticated", ClockSkew: time.Second})
	require.NoError(t, err)
	return v
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	_, err := NewVerifier(Config{})
	require.Error(t, err)
}

func TestVerifyReadsRole(t *testing.T) {
	v := newTestVerifier(t)

	token := signToken(t, jwa.HS256, testSecret, func(b *jwt.Builder) *jwt.Builder { return b.Claim("role", "Admin") })
	claims, err := v.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "8f6f0d1c", claims.UserID)
	require.Equal(t, "admin", claims.Role)

	token = signToken(t, jwa.HS256, testSecret, func(b *jwt.Builder) *jwt.Builder {
		return b.Claim("app_metadata", map[string]any{"role": "sales"})
	})
	claims, err = v.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "sales", claims.Role)
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	v := newTestVerifier(t)

	cases := map[string]string{
		"wrong secret": signToken(t, jwa.HS256, "other", nil),
		"wrong alg":    signToken(t, jwa.HS512, testSecret, nil),
		"wrong issuer": signToken(t, jwa.HS256, testSecret, func(b *jwt.Builder) *jwt.Builder { return b.Issuer("evil") }),
		"expired": signToken(t, jwa.HS256, testSecret, func(b *jwt.Builder) *jwt.Builder {
			return b.Expiration(time.Now().Add(-time.Hour))
		}),
		"garbage": "not-a-token",
		"empty":   "",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(token)
			require.Error(t, err)
			require.True(t, common.IsAppError(err))
		})
	}
}

func TestMiddlewareRequireAuthAndRole(t *testing.T) {
	v := newTestVerifier(t)
	mw := Middleware{Verifier: v}

	var seenUser, seenRole string
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser, _ = common.UserID(r.Context())
		seenRole = common.Role(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := mw.RequireAuth(RequireRole("admin", "sales")(final))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deals", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/deals", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwa.HS256, testSecret, func(b *jwt.Builder) *jwt.Builder { return b.Claim("role", "viewer") }))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/deals", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwa.HS256, testSecret, func(b *jwt.Builder) *jwt.Builder { return b.Claim("role", "sales") }))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "8f6f0d1c", seenUser)
	require.Equal(t, "sales", seenRole)
}
