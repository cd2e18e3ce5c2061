// Package auth issues and validates the bearer tokens that identify a caller.
package auth

import (
	"errors"
	"fmt"
	"time"

	"friendchat/backend/internal/errs"
	"friendchat/backend/internal/models"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Claims carry the authenticated user. Subject is the user id.
type Claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() string { return c.Subject }

type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret, issuer string, ttl time.Duration) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue генерує JWT для користувача
func (s *TokenService) Issue(user *models.User) (string, error) {
	if user == nil || user.ID == "" {
		return "", errors.New("issue token: user id is required")
	}
	now := s.now()
	claims := Claims{
		Name: user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses tokenString and returns its claims. Every failure is reported as
// errs.ErrUnauthenticated with the parser error attached.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errs.ErrUnauthenticated
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, errs.Wrap(errs.ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return nil, errs.ErrUnauthenticated
	}
	return claims, nil
}
