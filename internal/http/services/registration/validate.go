package registration

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/dropDatabas3/mcpd/internal/domain/repository"
	dto "github.com/dropDatabas3/mcpd/internal/http/dto/registration"
)

const maxClientNameLen = 256

var allowedGrantTypes = map[string]bool{
	repository.GrantTypeClientCredentials: true,
	repository.GrantTypeJWTBearer:         true,
}

var allowedAuthMethods = map[string]bool{
	repository.AuthMethodSecretPost:  true,
	repository.AuthMethodSecretBasic: true,
}

// ValidateRegisterRequest valida el request completo y acumula TODOS los
// problemas en lugar de cortar en el primero.
func ValidateRegisterRequest(in dto.RegisterRequest) []string {
	var problems []string

	if strings.TrimSpace(in.ClientName) == "" {
		problems = append(problems, "client_name is required.")
	} else if len(in.ClientName) > maxClientNameLen {
		problems = append(problems, fmt.Sprintf("client_name must not exceed %d characters.", maxClientNameLen))
	}

	if len(in.RedirectURIs) == 0 {
		problems = append(problems, "At least one redirect_uri is required.")
	}
	problems = append(problems, checkRedirectURIs(in.RedirectURIs)...)

	if len(in.RequestedServerIDs) == 0 {
		problems = append(problems, "At least one requested server is required.")
	}

	problems = append(problems, checkGrantTypes(in.GrantTypes)...)

	if in.TokenEndpointAuthMethod != "" && !allowedAuthMethods[in.TokenEndpointAuthMethod] {
		problems = append(problems, fmt.Sprintf("token_endpoint_auth_method '%s' is not supported.", in.TokenEndpointAuthMethod))
	}

	return problems
}

// ValidateUpdateRequest valida los metadatos mutables de un PUT.
func ValidateUpdateRequest(in dto.UpdateRequest) []string {
	var problems []string

	if strings.TrimSpace(in.ClientName) == "" {
		problems = append(problems, "client_name is required.")
	} else if len(in.ClientName) > maxClientNameLen {
		problems = append(problems, fmt.Sprintf("client_name must not exceed %d characters.", maxClientNameLen))
	}

	if len(in.RedirectURIs) == 0 {
		problems = append(problems, "At least one redirect_uri is required.")
	}
	problems = append(problems, checkRedirectURIs(in.RedirectURIs)...)
	problems = append(problems, checkGrantTypes(in.GrantTypes)...)

	if in.TokenEndpointAuthMethod != "" && !allowedAuthMethods[in.TokenEndpointAuthMethod] {
		problems = append(problems, fmt.Sprintf("token_endpoint_auth_method '%s' is not supported.", in.TokenEndpointAuthMethod))
	}

	return problems
}

func checkGrantTypes(grantTypes []string) []string {
	var problems []string
	for _, gt := range grantTypes {
		if !allowedGrantTypes[gt] {
			problems = append(problems, fmt.Sprintf("grant_type '%s' is not supported.", gt))
		}
	}
	return problems
}

// checkRedirectURIs aplica los pre-checks sintácticos. El matching contra la
// whitelist ocurre después, por server.
func checkRedirectURIs(uris []string) []string {
	var problems []string
	for _, raw := range uris {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() {
			problems = append(problems, fmt.Sprintf("redirect_uri '%s' is not a valid absolute URI.", raw))
			continue
		}
		if u.Fragment != "" {
			problems = append(problems, fmt.Sprintf("redirect_uri '%s' must not contain a fragment.", raw))
			continue
		}
		switch u.Scheme {
		case "https":
		case "http":
			if !strings.EqualFold(u.Hostname(), "localhost") {
				problems = append(problems, fmt.Sprintf("redirect_uri '%s' must use https or http://localhost.", raw))
			}
		default:
			problems = append(problems, fmt.Sprintf("redirect_uri '%s' must use https or http://localhost.", raw))
		}
	}
	return problems
}
