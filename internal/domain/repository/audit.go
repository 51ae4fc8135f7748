package repository

import (
	"context"
	"time"
)

// Acciones auditadas.
const (
	AuditClientRegistered    = "ClientRegistered"
	AuditClientUpdated       = "ClientUpdated"
	AuditSecretRotated       = "SecretRotated"
	AuditClientRevoked       = "ClientRevoked"
	AuditServerAccessGranted = "ServerAccessGranted"
	AuditServerAccessRevoked = "ServerAccessRevoked"
	AuditTokenIssued         = "TokenIssued"
	AuditTokenDenied         = "TokenDenied"
)

// AuditLogEntry es un registro append-only. El core nunca lo muta ni borra.
type AuditLogEntry struct {
	ID                   string // UUID
	Action               string
	ActorID              string
	ClientRegistrationID string // opcional
	McpServerID          string // opcional
	Detail               string // opcional
	Timestamp            time.Time
}

// AuditLogRepository define la escritura del audit log.
type AuditLogRepository interface {
	// Append agrega una entrada. Timestamp lo asigna el repositorio.
	Append(ctx context.Context, entry AuditLogEntry) error
}
