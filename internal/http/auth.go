package http

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/advising-portal/internal/application"
	"github.com/example/advising-portal/internal/meeting"
	"github.com/golang-jwt/jwt/v4"
)

// TokenVerifier turns a bearer token into the acting principal.
type TokenVerifier interface {
	Verify(token string) (application.Principal, error)
}

type principalClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTVerifier accepts HS256 tokens carrying the user in "sub" and one of
// advisor, student or system in "role".
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier returns a verifier for tokens signed with secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify validates signature, expiry and claims.
func (v *JWTVerifier) Verify(token string) (application.Principal, error) {
	claims := &principalClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return application.Principal{}, fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid {
		return application.Principal{}, errInvalidToken
	}
	if claims.ExpiresAt == nil {
		return application.Principal{}, errors.New("token has no expiry")
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return application.Principal{}, errors.New("token has no subject")
	}
	role, err := meeting.ParseRole(claims.Role)
	if err != nil {
		return application.Principal{}, err
	}
	return application.Principal{UserID: subject, Role: role}, nil
}

// SignToken issues a token for principal valid for ttl. It is used by the
// token command and by tests.
func SignToken(secret string, principal application.Principal, ttl time.Duration, now time.Time) (string, error) {
	claims := principalClaims{
		Role: principal.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
