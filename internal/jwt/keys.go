package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// KeySet mantiene la clave RSA de firma del proceso. Se genera (o carga) una
// sola vez en el arranque y después es de solo lectura: seguro para lecturas
// concurrentes sin sincronización. Rotación multi-key queda fuera de alcance.
type KeySet struct {
	Priv *rsa.PrivateKey
	KID  string
	Alg  string // "RS256"
}

// NewRSA genera una clave RSA 2048 en memoria con un KID aleatorio.
func NewRSA() (*KeySet, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	return &KeySet{Priv: priv, KID: newKID(), Alg: "RS256"}, nil
}

// LoadRSAFromPEM carga una clave privada RSA desde un archivo PEM
// (PKCS#1 o PKCS#8).
func LoadRSAFromPEM(path string) (*KeySet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("signing key: no PEM block in %s", path)
	}

	var priv *rsa.PrivateKey
	if k, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		priv = k
	} else if k, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := k.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("signing key: PEM is not an RSA key")
		}
		priv = rsaKey
	} else {
		return nil, fmt.Errorf("signing key: unparseable PEM block")
	}

	return &KeySet{Priv: priv, KID: newKID(), Alg: "RS256"}, nil
}

// newKID genera un key id corto (16 hex chars).
func newKID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
