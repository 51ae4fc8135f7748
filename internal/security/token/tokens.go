package tokens

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateOpaqueToken genera un token opaco aleatorio (base64url sin padding).
func GenerateOpaqueToken(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Tamaños de credenciales generadas en el registro.
const (
	ClientIDBytes                = 32
	ClientSecretBytes            = 48
	RegistrationAccessTokenBytes = 32
)

// GenerateClientID genera el client_id público.
func GenerateClientID() (string, error) {
	return GenerateOpaqueToken(ClientIDBytes)
}

// GenerateClientSecret genera el client_secret en claro.
func GenerateClientSecret() (string, error) {
	return GenerateOpaqueToken(ClientSecretBytes)
}

// GenerateRegistrationAccessToken genera el RAT en claro.
func GenerateRegistrationAccessToken() (string, error) {
	return GenerateOpaqueToken(RegistrationAccessTokenBytes)
}
