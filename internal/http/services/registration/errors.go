package registration

import "fmt"

// Error lleva el código OAuth junto a la descripción. El controller lo
// traduce a status HTTP sin adivinar por mensaje.
type Error struct {
	Code        string
	Description string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Description)
}

func newError(code, format string, args ...any) *Error {
	return &Error{Code: code, Description: fmt.Sprintf(format, args...)}
}

// Errores de lifecycle
var (
	ErrClientNotFound = &Error{Code: "invalid_client", Description: "Client not found."}
	ErrClientRevoked  = &Error{Code: "invalid_client", Description: "Client has been revoked."}
	ErrGrantExists    = &Error{Code: "invalid_request", Description: "An active grant already exists for this client and server."}
	ErrGrantNotFound  = &Error{Code: "invalid_request", Description: "No active grant exists for this client and server."}
	ErrServerNotFound = &Error{Code: "invalid_request", Description: "MCP server not found or inactive."}
)
