package jwt

import (
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer firma access tokens RS256 con la clave activa del KeySet.
type Issuer struct {
	Iss  string // "iss"
	Keys *KeySet
}

func NewIssuer(iss string, ks *KeySet) *Issuer {
	return &Issuer{Iss: strings.TrimRight(iss, "/"), Keys: ks}
}

// Keyfunc devuelve un jwt.Keyfunc que resuelve la pubkey propia por 'kid'.
// Lo usan los tests de round-trip y cualquier verificación local.
func (i *Issuer) Keyfunc() jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (any, error) {
		return i.Keys.Priv.Public(), nil
	}
}

// IssueAccessToken emite un token M2M para un client con grant sobre un
// server. aud es el nombre del server; sub el client_id.
func (i *Issuer) IssueAccessToken(clientID, serverID, serverName string, scopes []string, lifetime time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(lifetime)

	claims := jwtv5.MapClaims{
		"iss":       i.Iss,
		"sub":       clientID,
		"aud":       serverName,
		"iat":       now.Unix(),
		"exp":       exp.Unix(),
		"jti":       uuid.NewString(),
		"server_id": serverID,
		"scope":     strings.Join(scopes, " "),
	}
	signed, err := i.sign(claims)
	return signed, exp, err
}

// IssueUserAccessToken emite un token con identidad de usuario final
// (JWT-bearer exchange). Marca token_type="user" y arrastra
// preferred_username cuando se conoce.
func (i *Issuer) IssueUserAccessToken(subject, preferredUsername, serverID, serverName string, scopes []string, lifetime time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(lifetime)

	claims := jwtv5.MapClaims{
		"iss":        i.Iss,
		"sub":        subject,
		"aud":        serverName,
		"iat":        now.Unix(),
		"exp":        exp.Unix(),
		"jti":        uuid.NewString(),
		"server_id":  serverID,
		"scope":      strings.Join(scopes, " "),
		"token_type": "user",
	}
	if preferredUsername != "" {
		claims["preferred_username"] = preferredUsername
	}
	signed, err := i.sign(claims)
	return signed, exp, err
}

func (i *Issuer) sign(claims jwtv5.MapClaims) (string, error) {
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, claims)
	tk.Header["kid"] = i.Keys.KID
	tk.Header["typ"] = "JWT"
	return tk.SignedString(i.Keys.Priv)
}
