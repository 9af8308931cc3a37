package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// StateTTL bounds how long a user may take at the provider's consent screen.
const StateTTL = 10 * time.Minute

type stateClaims struct {
	Provider string `json:"provider"`
	jwt.RegisteredClaims
}

// IssueState returns a signed, expiring OAuth state value bound to provider.
func IssueState(provider, secret string) (string, error) {
	now := time.Now()
	claims := stateClaims{
		Provider: provider,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(StateTTL)),
			Issuer:    issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// VerifyState checks that state was issued by IssueState for provider and
// has not expired.
func VerifyState(state, provider, secret string) error {
	var claims stateClaims
	if err := parse(state, secret, &claims); err != nil {
		return err
	}
	if claims.Provider != provider {
		return errors.New("state was issued for another provider")
	}
	return nil
}
