package token

import "fmt"

// Error lleva el código OAuth de rechazo. Cualquier otro error que salga del
// servicio es falla de infraestructura y se mapea a server_error/503.
type Error struct {
	Code        string
	Description string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Description)
}

var (
	ErrInvalidClient = &Error{
		Code:        "invalid_client",
		Description: "Client authentication failed.",
	}
	ErrUnauthorizedClient = &Error{
		Code:        "unauthorized_client",
		Description: "The client is not authorized for the requested server.",
	}
	ErrInvalidScope = &Error{
		Code:        "invalid_scope",
		Description: "The requested scope exceeds the granted scope.",
	}
	ErrInvalidGrant = &Error{
		Code:        "invalid_grant",
		Description: "User token validation failed.",
	}
	ErrInvalidTarget = &Error{
		Code:        "invalid_target",
		Description: "The requested server does not exist or is not active.",
	}
	ErrUnsupportedGrantType = &Error{
		Code:        "unsupported_grant_type",
		Description: "The grant type is not supported.",
	}
	ErrMissingGrantType = &Error{
		Code:        "invalid_request",
		Description: "grant_type is required.",
	}
	ErrMissingAssertion = &Error{
		Code:        "invalid_request",
		Description: "assertion is required for the jwt-bearer grant.",
	}
	ErrMissingServer = &Error{
		Code:        "invalid_request",
		Description: "resource is required.",
	}
)
