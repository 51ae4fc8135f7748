// Package idp valida assertions emitidas por el identity provider externo
// (grant jwt-bearer) y resuelve la autorización claims -> scopes por server.
//
// La metadata OIDC del IdP (discovery + JWKS) se fetchea con timeout y se
// cachea por una ventana de validez; nunca se refetchea por request.
package idp
