// Package token define los contratos JSON del token endpoint (RFC 6749).
package token

// Request agrupa los parámetros form-encoded de POST /oauth/token ya
// extraídos por el controller. AuthMethod es el método INFERIDO del
// transporte de credenciales (Basic vs body), no el declarado al registrar.
type Request struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	AuthMethod   string
	// ServerID identifica el MCP server objetivo (parámetro resource).
	ServerID string
	// Scope es la lista pedida, separada por espacios. Vacío => default.
	Scope string
	// Assertion es el JWT del IdP para el grant jwt-bearer.
	Assertion string
}

// Response es la respuesta 200 del token endpoint.
type Response struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	ExpiresIn   int64    `json:"expires_in"`
	Scope       []string `json:"scope,omitempty"`
}
