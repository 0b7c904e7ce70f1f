package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"ledger/internal/core"
)

var (
	ErrMissingToken  = errors.New("missing bearer token")
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token has expired")
	ErrInvalidClaims = errors.New("invalid token claims")
)

// Identity is the caller as asserted by a verified token.
type Identity struct {
	Subject    string
	Role       core.Role
	Department string
}

// Scope binds the identity to the account a Finance Manager selected.
// The account is ignored for every other role.
func (id Identity) Scope(account string) core.Scope {
	return core.Scope{Role: id.Role, Department: id.Department, Account: strings.TrimSpace(account)}
}

// Claims are the JWT claims carried by a ledger bearer token.
type Claims struct {
	jwt.RegisteredClaims
	Role       string `json:"role"`
	Department string `json:"department"`
}

// TokenService signs and verifies HS256 bearer tokens.
type TokenService struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewTokenService(secret, issuer string) *TokenService {
	return &TokenService{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Mint issues a token for id valid for ttl.
func (s *TokenService) Mint(id Identity, ttl time.Duration) (string, error) {
	if strings.TrimSpace(id.Subject) == "" || strings.TrimSpace(id.Department) == "" {
		return "", fmt.Errorf("%w: subject and department are required", ErrInvalidClaims)
	}
	now := s.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   id.Subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role:       string(id.Role),
		Department: id.Department,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a raw token string.
func (s *TokenService) Verify(raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrExpiredToken
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Identity{}, ErrInvalidClaims
	}
	if claims.Subject == "" || strings.TrimSpace(claims.Department) == "" {
		return Identity{}, fmt.Errorf("%w: subject and department are required", ErrInvalidClaims)
	}

	return Identity{
		Subject:    claims.Subject,
		Role:       core.Role(strings.TrimSpace(claims.Role)),
		Department: strings.TrimSpace(claims.Department),
	}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}
