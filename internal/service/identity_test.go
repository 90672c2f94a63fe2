package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signIdentity(t *testing.T, secret string, claims IdentityClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func freshClaims(sub string) IdentityClaims {
	now := time.Now()
	return IdentityClaims{
		Email: "nova@example.com",
		Name:  "Nova",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    "https://id.example",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func TestIdentityVerifier_Valid(t *testing.T) {
	v := NewIdentityVerifier("idp-secret", "https://id.example")

	id, err := v.Verify(signIdentity(t, "idp-secret", freshClaims("uid-42")))
	if err != nil {
		t.Fatalf("expected valid token: %v", err)
	}
	if id.UID != "uid-42" || id.Email != "nova@example.com" || id.Name != "Nova" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestIdentityVerifier_NameFallsBackToEmail(t *testing.T) {
	v := NewIdentityVerifier("idp-secret", "")
	c := freshClaims("uid-42")
	c.Name = ""

	id, err := v.Verify(signIdentity(t, "idp-secret", c))
	if err != nil {
		t.Fatalf("expected valid token: %v", err)
	}
	if id.Name != "nova" {
		t.Fatalf("expected name from email, got %q", id.Name)
	}
}

func TestIdentityVerifier_Invalid(t *testing.T) {
	v := NewIdentityVerifier("idp-secret", "https://id.example")

	stale := freshClaims("uid-42")
	stale.IssuedAt = jwt.NewNumericDate(time.Now().Add(-2 * time.Hour))

	wrongIssuer := freshClaims("uid-42")
	wrongIssuer.Issuer = "https://evil.example"

	cases := map[string]string{
		"wrong secret": signIdentity(t, "other", freshClaims("uid-42")),
		"no subject":   signIdentity(t, "idp-secret", freshClaims("")),
		"stale":        signIdentity(t, "idp-secret", stale),
		"wrong issuer": signIdentity(t, "idp-secret", wrongIssuer),
		"garbage":      "a.b.c",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := v.Verify(token); err != ErrInvalidIdentity {
				t.Fatalf("expected ErrInvalidIdentity, got %v", err)
			}
		})
	}
}
