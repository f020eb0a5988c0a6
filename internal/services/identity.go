package services

import (
	"context"
	"strings"

	"google.golang.org/api/idtoken"
)

// IdentityClaims is the verified subset of a third-party identity
// assertion that the auth flows consume.
type IdentityClaims struct {
	Email         string
	EmailVerified bool
	Name          string
	// Nonce is provider-supplied one-time material (the token jti),
	// used to seed a baseline password for accounts created via
	// federated login.
	Nonce string
}

// IdentityVerifier validates a third-party identity assertion and
// extracts the claims. Implementations must check the assertion
// against the configured audience and surface every failure as a
// single generic error.
type IdentityVerifier interface {
	VerifyAssertion(ctx context.Context, assertion string) (IdentityClaims, error)
}

// GoogleVerifier verifies Google ID tokens against the OAuth client
// ID audience.
type GoogleVerifier struct {
	audience string
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{audience: clientID}
}

func (g *GoogleVerifier) VerifyAssertion(ctx context.Context, assertion string) (IdentityClaims, error) {
	if strings.TrimSpace(assertion) == "" {
		return IdentityClaims{}, ErrIdentityInvalid
	}

	payload, err := idtoken.Validate(ctx, assertion, g.audience)
	if err != nil {
		return IdentityClaims{}, ErrIdentityInvalid
	}

	claims := IdentityClaims{
		Email:         stringClaim(payload.Claims, "email"),
		EmailVerified: boolClaim(payload.Claims, "email_verified"),
		Name:          stringClaim(payload.Claims, "name"),
		Nonce:         stringClaim(payload.Claims, "jti"),
	}
	if claims.Email == "" {
		return IdentityClaims{}, ErrIdentityInvalid
	}
	return claims, nil
}

func stringClaim(claims map[string]any, key string) string {
	value, _ := claims[key].(string)
	return value
}

func boolClaim(claims map[string]any, key string) bool {
	switch value := claims[key].(type) {
	case bool:
		return value
	case string:
		// Some issuers encode the flag as a string.
		return value == "true"
	default:
		return false
	}
}
