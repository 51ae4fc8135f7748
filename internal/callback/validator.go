// Package callback valida redirect URIs contra la whitelist por server.
package callback

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/dropDatabas3/mcpd/internal/domain/repository"
	"github.com/dropDatabas3/mcpd/internal/observability/logger"
)

// Result es el resultado de validar un conjunto de redirect URIs contra la
// whitelist de un server. Errors trae un mensaje por URI rechazada.
type Result struct {
	IsValid bool
	Errors  []string
}

// Validator resuelve la whitelist activa del server vía repositorio y matchea
// cada URI contra sus patrones.
type Validator struct {
	whitelist repository.CallbackWhitelistRepository
}

func NewValidator(whitelist repository.CallbackWhitelistRepository) *Validator {
	return &Validator{whitelist: whitelist}
}

// Validate matchea cada redirect URI contra los patrones activos del server.
// Una URI es válida si pasa los pre-checks y matchea al menos un patrón.
func (v *Validator) Validate(ctx context.Context, serverID string, redirectURIs []string) (Result, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("callback.validate"), logger.ServerID(serverID))

	entries, err := v.whitelist.ListActiveForServer(ctx, serverID)
	if err != nil {
		return Result{}, fmt.Errorf("load whitelist: %w", err)
	}

	var errs []string
	for _, raw := range redirectURIs {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() {
			errs = append(errs, fmt.Sprintf("'%s' is not a valid absolute URI.", raw))
			continue
		}
		if u.Fragment != "" {
			errs = append(errs, fmt.Sprintf("'%s' must not contain a fragment component.", raw))
			continue
		}
		if u.User != nil {
			errs = append(errs, fmt.Sprintf("'%s' must not contain user information.", raw))
			continue
		}

		matched := false
		for _, entry := range entries {
			if MatchesPattern(u, entry.Pattern) {
				matched = true
				break
			}
		}
		if !matched {
			errs = append(errs, fmt.Sprintf("'%s' does not match any whitelisted pattern for this server.", raw))
		}
	}

	if len(errs) > 0 {
		log.Warn("redirect uri validation failed", logger.Count(len(errs)))
	}
	return Result{IsValid: len(errs) == 0, Errors: errs}, nil
}

// MatchesPattern prueba las tres gramáticas de patrón, en orden; gana el
// primer match:
//
//  1. http://localhost:*/path: scheme http, host localhost, cualquier
//     puerto, path exacto (case-insensitive).
//  2. https://*.domain.tld/path: scheme y path exactos, host con exactamente
//     un label antes del sufijo fijo (sub.domain.tld sí, a.sub.domain.tld no).
//  3. Match exacto de la URI completa, con trailing slash normalizado en
//     ambos lados (case-insensitive).
func MatchesPattern(u *url.URL, pattern string) bool {
	// Localhost wildcard-port: http://localhost:*/path
	if hasPrefixFold(pattern, "http://localhost:") && strings.Contains(pattern, "*") {
		if !strings.EqualFold(u.Scheme, "http") || !strings.EqualFold(u.Hostname(), "localhost") {
			return false
		}
		return strings.EqualFold(absPath(u), pathFromLocalhostPattern(pattern))
	}

	// Wildcard subdomain: https://*.domain.tld/path
	if strings.Contains(pattern, "*.") {
		pu, err := url.Parse(strings.Replace(pattern, "*.", "x.", 1))
		if err != nil || !pu.IsAbs() {
			return false
		}
		if !strings.EqualFold(u.Scheme, pu.Scheme) {
			return false
		}
		if !strings.EqualFold(absPath(u), absPath(pu)) {
			return false
		}
		baseDomain := strings.TrimPrefix(pu.Hostname(), "x.")
		hostRe, err := regexp.Compile(`(?i)^[a-z0-9-]+\.` + regexp.QuoteMeta(baseDomain) + `$`)
		if err != nil {
			return false
		}
		return hostRe.MatchString(u.Hostname())
	}

	// Exact match
	return strings.EqualFold(strings.TrimRight(u.String(), "/"), strings.TrimRight(pattern, "/"))
}

// absPath normaliza el path vacío a "/".
func absPath(u *url.URL) string {
	if u.Path == "" {
		return "/"
	}
	return u.Path
}

// pathFromLocalhostPattern extrae el path de http://localhost:*/path.
func pathFromLocalhostPattern(pattern string) string {
	star := strings.IndexByte(pattern, '*')
	if star < 0 {
		return "/"
	}
	slash := strings.IndexByte(pattern[star:], '/')
	if slash < 0 {
		return "/"
	}
	return pattern[star+slash:]
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
