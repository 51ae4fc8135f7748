package jwt

import (
	"encoding/base64"
	"encoding/json"
	"math/big"
)

// ----- JWKS (serialización) -----

type jwk struct {
	Kty string `json:"kty"` // "RSA"
	Kid string `json:"kid"`
	Alg string `json:"alg"` // "RS256"
	Use string `json:"use"` // "sig"
	N   string `json:"n"`   // base64url(modulus) sin padding
	E   string `json:"e"`   // base64url(exponent) sin padding
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

// JWKSJSON devuelve el JWKS (solo la parte pública) en JSON.
func (k *KeySet) JWKSJSON() []byte {
	n := k.Priv.N.Bytes()
	e := big.NewInt(int64(k.Priv.E)).Bytes()

	j := jwks{
		Keys: []jwk{{
			Kty: "RSA",
			Kid: k.KID,
			Alg: k.Alg,
			Use: "sig",
			N:   base64.RawURLEncoding.EncodeToString(n),
			E:   base64.RawURLEncoding.EncodeToString(e),
		}},
	}
	b, _ := json.Marshal(j)
	return b
}
