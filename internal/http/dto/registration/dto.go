// Package registration define los contratos JSON del endpoint de registro
// dinámico. Campos snake_case siguiendo RFC 7591.
package registration

// RegisterRequest es el body de POST /oauth/register.
type RegisterRequest struct {
	ClientName              string              `json:"client_name"`
	RedirectURIs            []string            `json:"redirect_uris"`
	GrantTypes              []string            `json:"grant_types"`
	TokenEndpointAuthMethod string              `json:"token_endpoint_auth_method"`
	RequestedServerIDs      []string            `json:"requested_server_ids"`
	RequestedScopes         map[string][]string `json:"requested_scopes,omitempty"`
}

// UpdateRequest es el body de PUT /oauth/register/{client_id}. Los campos de
// metadata reemplazan; los servers/scopes sólo agregan grants nuevos.
type UpdateRequest struct {
	ClientName              string              `json:"client_name"`
	RedirectURIs            []string            `json:"redirect_uris"`
	GrantTypes              []string            `json:"grant_types"`
	TokenEndpointAuthMethod string              `json:"token_endpoint_auth_method"`
	AdditionalServerIDs     []string            `json:"additional_server_ids,omitempty"`
	AdditionalScopes        map[string][]string `json:"additional_scopes,omitempty"`
}

// GrantedServer describe un grant activo en las respuestas.
type GrantedServer struct {
	ServerID   string   `json:"server_id"`
	ServerName string   `json:"server_name"`
	Scopes     []string `json:"scopes"`
}

// RegisterResponse es la respuesta 201 de POST /oauth/register. ClientSecret
// y RegistrationAccessToken viajan en claro UNA sola vez.
type RegisterResponse struct {
	ClientID                string          `json:"client_id"`
	ClientSecret            string          `json:"client_secret"`
	ClientName              string          `json:"client_name"`
	RedirectURIs            []string        `json:"redirect_uris"`
	GrantTypes              []string        `json:"grant_types"`
	TokenEndpointAuthMethod string          `json:"token_endpoint_auth_method"`
	RegistrationAccessToken string          `json:"registration_access_token"`
	ClientSecretExpiresAt   int64           `json:"client_secret_expires_at"`
	GrantedServers          []GrantedServer `json:"granted_servers"`
}

// ClientView es la vista sin secretos (GET /oauth/register/{client_id}).
type ClientView struct {
	ClientID                string          `json:"client_id"`
	ClientName              string          `json:"client_name"`
	Status                  string          `json:"status"`
	RedirectURIs            []string        `json:"redirect_uris"`
	GrantTypes              []string        `json:"grant_types"`
	TokenEndpointAuthMethod string          `json:"token_endpoint_auth_method"`
	ClientSecretExpiresAt   int64           `json:"client_secret_expires_at"`
	GrantedServers          []GrantedServer `json:"granted_servers"`
}

// RotateSecretResponse devuelve el secret nuevo en claro una sola vez.
type RotateSecretResponse struct {
	ClientID              string `json:"client_id"`
	ClientSecret          string `json:"client_secret"`
	ClientSecretExpiresAt int64  `json:"client_secret_expires_at"`
}
