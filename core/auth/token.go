package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
)

// Token roles
const (
	RoleTeacher = "TEACHER"
	RoleStudent = "STUDENT"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrMissingToken     = errors.New("missing authorization bearer token")
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")

	signingMethod = jwt.SigningMethodHS256
)

func IsRole(role string) bool {
	return role == RoleTeacher || role == RoleStudent
}

// Claims represents the authorization claims transmitted via a bearer token.
type Claims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	Name      string `json:"name,omitempty"`
	StudentNo string `json:"studentNo,omitempty"`
}

// Valid rejects tokens without subject, role or expiry, and expired ones.
func (c Claims) Valid() error {
	if c.Subject == "" || !IsRole(c.Role) || c.ExpiresAt == nil {
		return ErrInvalidToken
	}
	if NowFunc().After(c.ExpiresAt.Time) {
		return ErrTokenExpired
	}
	return nil
}

// TokenManager signs and verifies HS256 bearer tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	parser *jwt.Parser
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		// claims are checked against NowFunc in Verify
		parser: jwt.NewParser(jwt.WithValidMethods([]string{signingMethod.Alg()}), jwt.WithoutClaimsValidation()),
	}
}

// Sign stamps `claims` with issued-at and expiry times and returns the signed token.
func (tm *TokenManager) Sign(claims Claims) (string, error) {
	now := NowFunc()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(tm.ttl))

	ss, err := jwt.NewWithClaims(signingMethod, claims).SignedString(tm.secret)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// Verify checks the signature, then the claims of `token`.
func (tm *TokenManager) Verify(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrMissingToken
	}

	var claims Claims
	_, err := tm.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return tm.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrSignatureInvalid) {
			return Claims{}, ErrInvalidSignature
		}
		return Claims{}, ErrInvalidToken
	}
	if err = claims.Valid(); err != nil {
		return Claims{}, err
	}
	return claims, nil
}

// Subject returns the registered claims of a token issued to `subject`.
func Subject(subject string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{Subject: subject}
}
