package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalYAML = `
jwt:
  issuer: https://auth.example.com
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("addr default: %q", cfg.Server.Addr)
	}
	if cfg.Storage.Driver != "memory" || cfg.Cache.Kind != "memory" {
		t.Fatalf("driver defaults: %q / %q", cfg.Storage.Driver, cfg.Cache.Kind)
	}
	if cfg.JWT.AccessTTL != "60m" {
		t.Fatalf("access ttl default: %q", cfg.JWT.AccessTTL)
	}
	if cfg.IdP.RolesClaim != "roles" {
		t.Fatalf("roles claim default: %q", cfg.IdP.RolesClaim)
	}
	if cfg.Rate.Register.Limit != 10 || cfg.Rate.Token.Limit != 60 {
		t.Fatalf("rate defaults: %d / %d", cfg.Rate.Register.Limit, cfg.Rate.Token.Limit)
	}
}

func TestLoad_FullDocument(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
app:
  app_env: dev
server:
  addr: ":9090"
storage:
  driver: postgres
  dsn: postgres://mcpd@localhost/mcpd
jwt:
  issuer: https://auth.example.com
idp:
  authority: https://login.example.com/tenant
  admin_role: mcp.admin
  servers:
    files:
      required_roles: [mcp.user]
      default_scopes: [mcp:tools]
seed:
  - name: files
    base_uri: https://files.internal
    callback_patterns:
      - "http://localhost:*/cb"
`))
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("addr: %q", cfg.Server.Addr)
	}
	m, ok := cfg.IdP.Servers["files"]
	if !ok || len(m.RequiredRoles) != 1 || m.RequiredRoles[0] != "mcp.user" {
		t.Fatalf("idp mapping: %+v", cfg.IdP.Servers)
	}
	if len(cfg.Seed) != 1 || cfg.Seed[0].Name != "files" || len(cfg.Seed[0].CallbackPatterns) != 1 {
		t.Fatalf("seed: %+v", cfg.Seed)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing issuer", "server:\n  addr: ':8080'\n"},
		{"postgres without dsn", "storage:\n  driver: postgres\njwt:\n  issuer: https://a\n"},
		{"unknown driver", "storage:\n  driver: sqlite\njwt:\n  issuer: https://a\n"},
		{"redis without addr", "cache:\n  kind: redis\njwt:\n  issuer: https://a\n"},
		{"bad duration", "jwt:\n  issuer: https://a\n  access_ttl: sometimes\n"},
		{"prod without admin auth", "app:\n  app_env: prod\njwt:\n  issuer: https://a\n"},
		{"seed without name", "jwt:\n  issuer: https://a\nseed:\n  - base_uri: https://x\n"},
	}
	for _, tc := range cases {
		if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":7070")
	t.Setenv("JWT_ISSUER", "https://override.example.com")
	t.Setenv("RATE_ENABLED", "true")

	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Fatalf("env addr override: %q", cfg.Server.Addr)
	}
	if cfg.JWT.Issuer != "https://override.example.com" {
		t.Fatalf("env issuer override: %q", cfg.JWT.Issuer)
	}
	if !cfg.Rate.Enabled {
		t.Fatal("env rate override")
	}
}

func TestLoad_RelativeSigningKeyPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := minimalYAML + "  signing_key_path: keys/signing.pem\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	want := filepath.Join(dir, "keys", "signing.pem")
	if cfg.JWT.SigningKeyPath != want {
		t.Fatalf("signing key path: got %q want %q", cfg.JWT.SigningKeyPath, want)
	}
}

func TestDuration(t *testing.T) {
	if got := Duration("", time.Minute); got != time.Minute {
		t.Fatalf("empty: %v", got)
	}
	if got := Duration("90s", time.Minute); got != 90*time.Second {
		t.Fatalf("parsed: %v", got)
	}
	if got := Duration("garbage", time.Minute); got != time.Minute {
		t.Fatalf("fallback: %v", got)
	}
}
