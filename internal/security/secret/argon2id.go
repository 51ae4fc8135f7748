package secret

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Params de Argon2id para secretos de cliente.
type Params struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLen     uint32
	KeyLen      uint32
}

// Default: 64 MiB, 3 iteraciones, 1 lane, salt 16B, output 32B.
var Default = Params{Memory: 64 * 1024, Time: 3, Parallelism: 1, SaltLen: 16, KeyLen: 32}

// DummyHash es un hash precomputado (salt y key en cero) contra el que se
// verifica cuando el client_id no existe, para que el tiempo de respuesta no
// delate si el cliente está registrado o no.
const DummyHash = "$argon2id$AAAAAAAAAAAAAAAAAAAAAA==$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="

// Hash devuelve el secreto hasheado como $argon2id$<saltB64>$<keyB64>.
func Hash(p Params, plain string) (string, error) {
	if plain == "" {
		return "", fmt.Errorf("empty secret")
	}
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(plain), salt, p.Time, p.Memory, p.Parallelism, p.KeyLen)
	return fmt.Sprintf("$argon2id$%s$%s",
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputa el hash con el salt almacenado y compara en tiempo
// constante. Nunca corta temprano por mismatch de bytes.
func Verify(p Params, plain, encoded string) bool {
	parts := strings.Split(strings.TrimPrefix(encoded, "$"), "$")
	if len(parts) != 3 || parts[0] != "argon2id" {
		return false
	}
	salt, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}
	stored, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return false
	}
	key := argon2.IDKey([]byte(plain), salt, p.Time, p.Memory, p.Parallelism, uint32(len(stored)))
	return subtle.ConstantTimeCompare(key, stored) == 1
}
