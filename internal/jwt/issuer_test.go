package jwt

import (
	"encoding/json"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

func TestIssueAccessToken_RoundTrip(t *testing.T) {
	ks, err := NewRSA()
	if err != nil {
		t.Fatalf("NewRSA err: %v", err)
	}
	iss := NewIssuer("https://auth.example.com/", ks) // trailing slash se normaliza

	signed, exp, err := iss.IssueAccessToken("mcp_abc", "srv-1", "files", []string{"mcp:tools"}, 5*time.Minute)
	if err != nil {
		t.Fatalf("IssueAccessToken err: %v", err)
	}
	if time.Until(exp) > 5*time.Minute || time.Until(exp) < 4*time.Minute {
		t.Fatalf("unexpected expiry: %v", exp)
	}

	parsed, err := jwtv5.Parse(signed, iss.Keyfunc(),
		jwtv5.WithValidMethods([]string{"RS256"}),
		jwtv5.WithIssuer("https://auth.example.com"),
		jwtv5.WithAudience("files"),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	claims := parsed.Claims.(jwtv5.MapClaims)
	if claims["sub"] != "mcp_abc" {
		t.Fatalf("sub: got %v", claims["sub"])
	}
	if claims["server_id"] != "srv-1" {
		t.Fatalf("server_id: got %v", claims["server_id"])
	}
	if claims["scope"] != "mcp:tools" {
		t.Fatalf("scope: got %v", claims["scope"])
	}
	if claims["jti"] == "" {
		t.Fatal("jti must be set")
	}
	if parsed.Header["kid"] != ks.KID {
		t.Fatalf("kid: got %v want %v", parsed.Header["kid"], ks.KID)
	}
}

func TestIssueUserAccessToken_Claims(t *testing.T) {
	ks, err := NewRSA()
	if err != nil {
		t.Fatalf("NewRSA err: %v", err)
	}
	iss := NewIssuer("https://auth.example.com", ks)

	signed, _, err := iss.IssueUserAccessToken("user-42", "ada", "srv-1", "files", []string{"mcp:tools"}, time.Minute)
	if err != nil {
		t.Fatalf("IssueUserAccessToken err: %v", err)
	}
	parsed, err := jwtv5.Parse(signed, iss.Keyfunc(), jwtv5.WithValidMethods([]string{"RS256"}))
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	claims := parsed.Claims.(jwtv5.MapClaims)
	if claims["token_type"] != "user" {
		t.Fatalf("token_type: got %v", claims["token_type"])
	}
	if claims["preferred_username"] != "ada" {
		t.Fatalf("preferred_username: got %v", claims["preferred_username"])
	}

	// sin username conocido el claim se omite
	signed, _, err = iss.IssueUserAccessToken("user-43", "", "srv-1", "files", nil, time.Minute)
	if err != nil {
		t.Fatalf("IssueUserAccessToken err: %v", err)
	}
	parsed, err = jwtv5.Parse(signed, iss.Keyfunc(), jwtv5.WithValidMethods([]string{"RS256"}))
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if _, ok := parsed.Claims.(jwtv5.MapClaims)["preferred_username"]; ok {
		t.Fatal("preferred_username must be omitted when unknown")
	}
}

func TestJWKSJSON_ExposesPublicKeyOnly(t *testing.T) {
	ks, err := NewRSA()
	if err != nil {
		t.Fatalf("NewRSA err: %v", err)
	}

	var doc struct {
		Keys []map[string]string `json:"keys"`
	}
	if err := json.Unmarshal(ks.JWKSJSON(), &doc); err != nil {
		t.Fatalf("unmarshal jwks: %v", err)
	}
	if len(doc.Keys) != 1 {
		t.Fatalf("expected 1 key, got %d", len(doc.Keys))
	}
	k := doc.Keys[0]
	if k["kty"] != "RSA" || k["alg"] != "RS256" || k["use"] != "sig" {
		t.Fatalf("unexpected key metadata: %v", k)
	}
	if k["kid"] != ks.KID {
		t.Fatalf("kid mismatch: %v", k["kid"])
	}
	if k["n"] == "" || k["e"] == "" {
		t.Fatal("modulus and exponent must be present")
	}
	// nunca componentes privados
	for _, private := range []string{"d", "p", "q"} {
		if _, ok := k[private]; ok {
			t.Fatalf("private component %q leaked into JWKS", private)
		}
	}
}
