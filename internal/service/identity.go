package service

import (
	"errors"
	"strings"
	"time"

	"glxy/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidIdentity = errors.New("invalid identity token")

// IdentityClaims is what the identity provider puts in its ID tokens
type IdentityClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// IdentityVerifier checks HS256 ID tokens minted by the identity provider.
// Tokens older than MaxAge are refused even if not yet expired, to limit
// replay of leaked tokens.
type IdentityVerifier struct {
	secret []byte
	issuer string
	MaxAge time.Duration
	now    func() time.Time
}

func NewIdentityVerifier(secret, issuer string) *IdentityVerifier {
	return &IdentityVerifier{secret: []byte(secret), issuer: issuer, MaxAge: time.Hour, now: time.Now}
}

func (v *IdentityVerifier) Verify(idToken string) (domain.Identity, error) {
	claims := &IdentityClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(5 * time.Minute),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(idToken, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return domain.Identity{}, ErrInvalidIdentity
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return domain.Identity{}, ErrInvalidIdentity
	}
	// freshness: require iat within MaxAge
	if v.MaxAge > 0 {
		if claims.IssuedAt == nil || v.now().Sub(claims.IssuedAt.Time) > v.MaxAge {
			return domain.Identity{}, ErrInvalidIdentity
		}
	}

	name := claims.Name
	if name == "" {
		name, _, _ = strings.Cut(claims.Email, "@")
	}
	return domain.Identity{UID: claims.Subject, Email: claims.Email, Name: name}, nil
}
