package services

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default lifetimes for the three token classes.
const (
	ActivationTokenTTL = 10 * time.Minute
	ResetTokenTTL      = 10 * time.Minute
	SessionTokenTTL    = 24 * time.Hour
)

// ActivationClaims is the signed bundle carried by an activation
// token. The account does not exist yet; the claims hold everything
// needed to create it once the email address is proven.
type ActivationClaims struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies one class of signed token. Each
// class (activation, reset, session) gets its own instance with an
// independent signing key and lifetime.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// IssueActivation signs an activation token over the pending account
// fields.
func (s *TokenService) IssueActivation(name, email, password string) (string, error) {
	now := time.Now()
	claims := ActivationClaims{
		Name:     name,
		Email:    email,
		Password: password,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// VerifyActivation validates an activation token and returns its
// claims. Expiry is reported as ErrTokenExpired; every other failure
// collapses to ErrTokenInvalid.
func (s *TokenService) VerifyActivation(tokenString string) (ActivationClaims, error) {
	claims := ActivationClaims{}
	if err := s.parse(tokenString, &claims); err != nil {
		return ActivationClaims{}, err
	}
	if strings.TrimSpace(claims.Email) == "" {
		return ActivationClaims{}, ErrTokenInvalid
	}
	return claims, nil
}

// IssueSubject signs a token carrying only the account id as subject.
// Used for both reset and session tokens.
func (s *TokenService) IssueSubject(subject string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// VerifySubject validates a subject token and returns the subject.
func (s *TokenService) VerifySubject(tokenString string) (string, error) {
	claims := jwt.RegisteredClaims{}
	if err := s.parse(tokenString, &claims); err != nil {
		return "", err
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", ErrTokenInvalid
	}
	return subject, nil
}

func (s *TokenService) parse(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithExpirationRequired(), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		// Expired is the one failure callers may distinguish; a stale
		// link warrants a different remedy than a tampered one.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}
	if !token.Valid {
		return ErrTokenInvalid
	}
	return nil
}
