package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/lumina-dealer/internal/common"
)

// claimsPolicy checks the registered claims of an access token. Tokens must
// carry a subject and an expiry.
type claimsPolicy struct {
	issuer    string
	audience  string
	clockSkew time.Duration
}

func (p claimsPolicy) check(tok jwt.Token, now time.Time) error {
	if tok == nil {
		return errors.New("auth: token is nil")
	}
	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
		jwt.WithRequiredClaim(jwt.SubjectKey),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
	}
	if p.clockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(p.clockSkew))
	}
	if p.issuer != "" {
		options = append(options, jwt.WithIssuer(p.issuer))
	}
	if p.audience != "" {
		options = append(options, jwt.WithAudience(p.audience))
	}
	return jwt.Validate(tok, options...)
}

// rejectClaims maps a claim failure to the error sent to the client. An
// expired token gets its own code so the frontend can refresh silently.
func rejectClaims(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired()) {
		return common.NewAppError("TOKEN_EXPIRED", "token expired", http.StatusUnauthorized, err)
	}
	return common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
}
