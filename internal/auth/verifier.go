// Package auth verifies the bearer tokens issued by the identity provider and
// exposes the caller identity and back-office role to handlers.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/lumina-dealer/internal/common"
)

// Claims is the identity carried by a verified token.
type Claims struct {
	UserID string
	Role   string
}

// Config configures token verification.
type Config struct {
	Secret    string
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	// RoleClaim names the claim holding the back-office role. Defaults to "role".
	RoleClaim string
}

// Verifier checks HS256 access tokens.
type Verifier struct {
	secret    []byte
	policy    claimsPolicy
	roleClaim string
	now       func() time.Time
}

// NewVerifier constructs a Verifier.
func NewVerifier(cfg Config) (*Verifier, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("auth: secret is required")
	}
	roleClaim := strings.TrimSpace(cfg.RoleClaim)
	if roleClaim == "" {
		roleClaim = "role"
	}
	return &Verifier{
		secret: []byte(cfg.Secret),
		policy: claimsPolicy{
			issuer:    cfg.Issuer,
			audience:  cfg.Audience,
			clockSkew: cfg.ClockSkew,
		},
		roleClaim: roleClaim,
		now:       time.Now,
	}, nil
}

// Verify validates a token and returns its subject and role.
func (v *Verifier) Verify(token string) (Claims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "missing token", http.StatusUnauthorized, nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if algorithm != jwa.HS256 {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, v.secret), jwt.WithValidate(false))
	if err != nil {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if err := v.policy.check(parsed, v.now()); err != nil {
		return Claims{}, rejectClaims(err)
	}
	return Claims{UserID: parsed.Subject(), Role: v.role(parsed)}, nil
}

// role reads the configured claim, falling back to app_metadata.role as set by
// hosted identity providers.
func (v *Verifier) role(tok jwt.Token) string {
	if raw, ok := tok.Get(v.roleClaim); ok {
		if role, ok := raw.(string); ok && role != "" {
			return strings.ToLower(role)
		}
	}
	if raw, ok := tok.Get("app_metadata"); ok {
		if meta, ok := raw.(map[string]any); ok {
			if role, ok := meta["role"].(string); ok {
				return strings.ToLower(role)
			}
		}
	}
	return ""
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("auth: token missing protected headers")
		}
		alg := headers.Algorithm()
		if alg == "" {
			return "", errors.New("auth: token missing algorithm")
		}
		if alg == jwa.NoSignature {
			return "", errors.New("auth: token uses none algorithm")
		}
		if algorithm == "" {
			algorithm = alg
		} else if algorithm != alg {
			return "", fmt.Errorf("auth: mixed token algorithms detected")
		}
	}
	return algorithm, nil
}
