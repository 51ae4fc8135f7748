package repository

// Store agrupa los repositorios del dominio. Cada adapter (pg, mem) entrega
// una implementación completa.
type Store interface {
	Clients() ClientRegistrationRepository
	Servers() McpServerRepository
	Grants() ClientServerGrantRepository
	Whitelist() CallbackWhitelistRepository
	Audit() AuditLogRepository
}
