package idp

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// fakeIdP publica discovery + JWKS y firma assertions como lo haría un IdP
// OIDC real.
type fakeIdP struct {
	server *httptest.Server
	priv   *rsa.PrivateKey
	kid    string
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	f := &fakeIdP{priv: priv, kid: "idp-key-1"}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"issuer":   f.server.URL,
			"jwks_uri": f.server.URL + "/jwks",
		})
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": f.kid,
				"alg": "RS256",
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(priv.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(priv.E)).Bytes()),
			}},
		})
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeIdP) sign(t *testing.T, claims jwtv5.MapClaims) string {
	t.Helper()
	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, claims)
	tok.Header["kid"] = f.kid
	signed, err := tok.SignedString(f.priv)
	if err != nil {
		t.Fatalf("sign assertion: %v", err)
	}
	return signed
}

func (f *fakeIdP) baseClaims() jwtv5.MapClaims {
	now := time.Now()
	return jwtv5.MapClaims{
		"iss":   f.server.URL,
		"aud":   "mcpd",
		"sub":   "user-42",
		"iat":   now.Unix(),
		"exp":   now.Add(5 * time.Minute).Unix(),
		"roles": []string{"mcp.user", "mcp.admin"},
	}
}

func newTestValidator(t *testing.T, f *fakeIdP) *Validator {
	t.Helper()
	v, err := NewValidator(Options{
		Authority: f.server.URL,
		Audience:  "mcpd",
	})
	if err != nil {
		t.Fatalf("NewValidator err: %v", err)
	}
	return v
}

func TestNewValidator_RequiresAuthority(t *testing.T) {
	if _, err := NewValidator(Options{}); err == nil {
		t.Fatal("expected error without authority")
	}
}

func TestValidate_AcceptsSignedAssertion(t *testing.T) {
	f := newFakeIdP(t)
	v := newTestValidator(t, f)

	claims := f.baseClaims()
	claims["preferred_username"] = "ada"
	res, err := v.Validate(context.Background(), f.sign(t, claims))
	if err != nil {
		t.Fatalf("Validate err: %v", err)
	}
	if !res.IsValid {
		t.Fatalf("expected valid, got %+v", res)
	}
	if res.Subject != "user-42" || res.PreferredUsername != "ada" {
		t.Fatalf("identity claims: %+v", res)
	}
	if len(res.Roles) != 2 {
		t.Fatalf("roles: %v", res.Roles)
	}
}

func TestValidate_SubjectAndUsernameFallbacks(t *testing.T) {
	f := newFakeIdP(t)
	v := newTestValidator(t, f)

	claims := f.baseClaims()
	delete(claims, "sub")
	claims["oid"] = "oid-7"
	claims["name"] = "Ada L."
	res, err := v.Validate(context.Background(), f.sign(t, claims))
	if err != nil {
		t.Fatalf("Validate err: %v", err)
	}
	if !res.IsValid || res.Subject != "oid-7" || res.PreferredUsername != "Ada L." {
		t.Fatalf("fallbacks: %+v", res)
	}
}

func TestValidate_RolesClaimAsSingleString(t *testing.T) {
	f := newFakeIdP(t)
	v := newTestValidator(t, f)

	claims := f.baseClaims()
	claims["roles"] = "mcp.user"
	res, err := v.Validate(context.Background(), f.sign(t, claims))
	if err != nil {
		t.Fatalf("Validate err: %v", err)
	}
	if len(res.Roles) != 1 || res.Roles[0] != "mcp.user" {
		t.Fatalf("roles: %v", res.Roles)
	}
}

func TestValidate_PolicyRejections(t *testing.T) {
	f := newFakeIdP(t)
	v := newTestValidator(t, f)
	ctx := context.Background()

	expired := f.baseClaims()
	expired["exp"] = time.Now().Add(-10 * time.Minute).Unix()
	expired["iat"] = time.Now().Add(-20 * time.Minute).Unix()

	wrongAud := f.baseClaims()
	wrongAud["aud"] = "someone-else"

	wrongIss := f.baseClaims()
	wrongIss["iss"] = "https://rogue.example.com"

	cases := []struct {
		name      string
		assertion string
	}{
		{"garbage", "not.a.jwt"},
		{"expired", f.sign(t, expired)},
		{"wrong audience", f.sign(t, wrongAud)},
		{"wrong issuer", f.sign(t, wrongIss)},
	}
	for _, tc := range cases {
		res, err := v.Validate(ctx, tc.assertion)
		if err != nil {
			t.Fatalf("%s: rejection must not be an error: %v", tc.name, err)
		}
		if res.IsValid {
			t.Fatalf("%s: expected rejection", tc.name)
		}
		if res.Error == "" {
			t.Fatalf("%s: rejection must carry a message", tc.name)
		}
	}
}

func TestValidate_UnknownKid(t *testing.T) {
	f := newFakeIdP(t)
	v := newTestValidator(t, f)

	// firmada con otra clave y otro kid: la firma no resuelve
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, f.baseClaims())
	tok.Header["kid"] = "rogue-kid"
	signed, err := tok.SignedString(other)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	res, err := v.Validate(context.Background(), signed)
	if err != nil {
		t.Fatalf("Validate err: %v", err)
	}
	if res.IsValid {
		t.Fatal("assertion with unknown kid must be rejected")
	}
}

func TestValidate_MetadataFailureIsInfraError(t *testing.T) {
	f := newFakeIdP(t)
	v := newTestValidator(t, f)
	f.server.Close() // el IdP se cae antes del primer fetch

	_, err := v.Validate(context.Background(), "any.jwt.here")
	if err == nil {
		t.Fatal("unreachable metadata must surface as an error, not a rejection")
	}
}

func TestValidate_JWKSIsCached(t *testing.T) {
	f := newFakeIdP(t)
	v := newTestValidator(t, f)
	ctx := context.Background()

	if _, err := v.Validate(ctx, f.sign(t, f.baseClaims())); err != nil {
		t.Fatalf("first validate: %v", err)
	}

	// con el IdP caído la metadata cacheada sigue sirviendo
	f.server.Close()
	res, err := v.Validate(ctx, f.sign(t, f.baseClaims()))
	if err != nil {
		t.Fatalf("cached validate: %v", err)
	}
	if !res.IsValid {
		t.Fatalf("expected valid via cached JWKS, got %+v", res)
	}
}
