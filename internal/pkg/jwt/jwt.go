package jwt

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

const (
	issuer       = "folio"
	adminSubject = "admin"
)

// Signer issues and verifies admin tokens with an HMAC secret.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner returns a signer. An empty secret is rejected so tokens are never
// signed with a guessable key.
func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	return &Signer{secret: []byte(secret), now: time.Now}, nil
}

// Claims is the JWT payload.
type Claims struct {
	Role string `json:"role"`
	jwtlib.RegisteredClaims
}

// Sign creates a token for the admin valid for ttl.
func (s *Signer) Sign(ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(ttl)
	claims := Claims{
		Role: adminSubject,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    issuer,
			Subject:   adminSubject,
			ExpiresAt: jwtlib.NewNumericDate(expires),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.secret)
	return token, expires, err
}

// Parse validates a token string and returns the claims.
func (s *Signer) Parse(tokenStr string) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwtlib.WithIssuer(issuer), jwtlib.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Role != adminSubject {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
