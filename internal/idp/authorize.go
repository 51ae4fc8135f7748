package idp

import "strings"

// ServerMapping declara qué roles del IdP habilitan acceso a un servidor MCP
// y con qué scopes por defecto.
type ServerMapping struct {
	// RequiredRoles habilita el acceso si el usuario posee AL MENOS UNO
	// (comparación case-insensitive). Vacío significa ningún usuario califica.
	RequiredRoles []string
	// DefaultScopes se emiten cuando la request no pide scopes explícitos.
	DefaultScopes []string
}

// Authorizer decide, a partir de los roles del IdP, qué puede hacer un
// usuario sobre cada servidor MCP.
type Authorizer struct {
	// Mappings indexa por nombre de servidor MCP.
	Mappings map[string]ServerMapping
	// AdminRole habilita la API administrativa vía bearer token del IdP.
	AdminRole string
}

// Decision es el resultado de autorizar a un usuario sobre un servidor.
type Decision struct {
	Allowed bool
	Scopes  []string
}

// Authorize evalúa los roles del usuario contra el mapping del servidor.
// requestedScopes vacío cae a los default del mapping; si se piden scopes
// fuera del default, el acceso se niega (no se truncan silenciosamente).
func (a *Authorizer) Authorize(serverName string, roles []string, requestedScopes []string) Decision {
	mapping, ok := a.Mappings[serverName]
	if !ok {
		return Decision{}
	}
	if !hasAnyRole(roles, mapping.RequiredRoles) {
		return Decision{}
	}
	if len(requestedScopes) == 0 {
		return Decision{Allowed: true, Scopes: mapping.DefaultScopes}
	}
	for _, s := range requestedScopes {
		if !containsFold(mapping.DefaultScopes, s) {
			return Decision{}
		}
	}
	return Decision{Allowed: true, Scopes: requestedScopes}
}

// IsAdmin responde si los roles incluyen el rol administrativo configurado.
func (a *Authorizer) IsAdmin(roles []string) bool {
	if a.AdminRole == "" {
		return false
	}
	return containsFold(roles, a.AdminRole)
}

func hasAnyRole(have, want []string) bool {
	for _, w := range want {
		if containsFold(have, w) {
			return true
		}
	}
	return false
}

func containsFold(list []string, target string) bool {
	for _, item := range list {
		if strings.EqualFold(item, target) {
			return true
		}
	}
	return false
}
