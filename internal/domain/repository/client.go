package repository

import (
	"context"
	"time"
)

// Estados de un ClientRegistration. Solo hay transiciones hacia adelante:
// Active -> Suspended, Active -> Revoked. Revoked es terminal.
const (
	ClientStatusActive    = "active"
	ClientStatusSuspended = "suspended"
	ClientStatusRevoked   = "revoked"
)

// Métodos de autenticación soportados en el token endpoint.
const (
	AuthMethodSecretPost  = "client_secret_post"
	AuthMethodSecretBasic = "client_secret_basic"
)

// Grant types soportados.
const (
	GrantTypeClientCredentials = "client_credentials"
	GrantTypeJWTBearer         = "urn:ietf:params:oauth:grant-type:jwt-bearer"
)

// ClientRegistration representa un cliente OAuth registrado dinámicamente.
// Nunca se borra físicamente: revocación es soft y se retiene para auditoría.
type ClientRegistration struct {
	ID                          string // UUID interno
	ClientID                    string // identificador público
	ClientSecretHash            string // Argon2id
	ClientName                  string
	Status                      string // active | suspended | revoked
	TokenEndpointAuthMethod     string
	GrantTypes                  []string
	RedirectURIs                []string
	RegistrationAccessTokenHash string
	CreatedAt                   time.Time
	SecretExpiresAt             *time.Time
	SecretRotatedAt             *time.Time
}

// ClientRegistrationInput contiene los datos para crear un registration.
// Los hashes llegan ya calculados: el repositorio nunca ve secretos en claro.
type ClientRegistrationInput struct {
	ClientID                    string
	ClientSecretHash            string
	ClientName                  string
	TokenEndpointAuthMethod     string
	GrantTypes                  []string
	RedirectURIs                []string
	RegistrationAccessTokenHash string
	SecretExpiresAt             time.Time
}

// ClientMetadataUpdate contiene los campos mutables por PUT /register.
type ClientMetadataUpdate struct {
	ClientName              string
	TokenEndpointAuthMethod string
	GrantTypes              []string
	RedirectURIs            []string
}

// ClientRegistrationRepository define operaciones sobre registrations.
type ClientRegistrationRepository interface {
	// Create persiste un registration nuevo con Status=active.
	// Retorna ErrConflict si el client_id ya existe (unique constraint).
	Create(ctx context.Context, input ClientRegistrationInput) (*ClientRegistration, error)

	// GetByClientID obtiene un registration por su client_id público.
	// Retorna ErrNotFound si no existe.
	GetByClientID(ctx context.Context, clientID string) (*ClientRegistration, error)

	// GetByID obtiene un registration por su UUID interno.
	GetByID(ctx context.Context, id string) (*ClientRegistration, error)

	// UpdateMetadata reemplaza los metadatos mutables del registration.
	UpdateMetadata(ctx context.Context, id string, update ClientMetadataUpdate) error

	// RotateSecret reemplaza el hash del secret y estampa secret_rotated_at.
	RotateSecret(ctx context.Context, id, newSecretHash string, expiresAt time.Time) error

	// SetStatus cambia el estado (active -> suspended|revoked).
	SetStatus(ctx context.Context, id, status string) error
}
