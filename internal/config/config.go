package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Storage struct {
		// postgres | memory
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns        int    `yaml:"max_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// redis | memory. El limiter usa este backend.
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	JWT struct {
		Issuer string `yaml:"issuer"`
		// Ruta a la clave RSA en PEM. Vacío => clave efímera generada al
		// arrancar (sólo dev).
		SigningKeyPath string `yaml:"signing_key_path"`
		AccessTTL      string `yaml:"access_ttl"`
	} `yaml:"jwt"`

	Register struct {
		// Vigencia de los client secrets emitidos. 0 => no expiran.
		SecretTTL string `yaml:"secret_ttl"`
	} `yaml:"register"`

	Admin struct {
		// API key estática para la API administrativa. Alternativa al
		// bearer token del IdP con rol admin.
		APIKey string `yaml:"api_key"`
	} `yaml:"admin"`

	IdP struct {
		Authority    string            `yaml:"authority"`
		Audience     string            `yaml:"audience"`
		MetadataURL  string            `yaml:"metadata_url"`
		RolesClaim   string            `yaml:"roles_claim"`
		AdminRole    string            `yaml:"admin_role"`
		MetadataTTL  string            `yaml:"metadata_ttl"`
		FetchTimeout string            `yaml:"fetch_timeout"`
		Servers      map[string]IdPMap `yaml:"servers"`
	} `yaml:"idp"`

	Rate struct {
		Enabled bool `yaml:"enabled"`

		Register struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"register"`

		Token struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"token"`
	} `yaml:"rate"`

	// Servidores MCP sembrados al arrancar (idempotente).
	Seed []SeedServer `yaml:"seed"`
}

// IdPMap asocia roles del IdP con scopes por defecto para un servidor MCP.
type IdPMap struct {
	RequiredRoles []string `yaml:"required_roles"`
	DefaultScopes []string `yaml:"default_scopes"`
}

// SeedServer declara un servidor MCP y su whitelist de callbacks.
type SeedServer struct {
	Name             string   `yaml:"name"`
	BaseURI          string   `yaml:"base_uri"`
	Description      string   `yaml:"description"`
	CallbackPatterns []string `yaml:"callback_patterns"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "60m"
	}
	if c.IdP.RolesClaim == "" {
		c.IdP.RolesClaim = "roles"
	}
	if c.Rate.Register.Limit == 0 {
		c.Rate.Register.Limit = 10
	}
	if c.Rate.Register.Window == "" {
		c.Rate.Register.Window = "1m"
	}
	if c.Rate.Token.Limit == 0 {
		c.Rate.Token.Limit = 60
	}
	if c.Rate.Token.Window == "" {
		c.Rate.Token.Window = "1m"
	}

	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}

	// Normalizar ruta de clave (si relativa) respecto al directorio del YAML
	if p := strings.TrimSpace(c.JWT.SigningKeyPath); p != "" && !filepath.IsAbs(p) {
		c.JWT.SigningKeyPath = filepath.Clean(filepath.Join(filepath.Dir(path), p))
	}

	return &c, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return fmt.Errorf("config: storage.dsn is required for driver postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Cache.Kind {
	case "redis":
		if strings.TrimSpace(c.Cache.Redis.Addr) == "" {
			return fmt.Errorf("config: cache.redis.addr is required for kind redis")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unknown cache kind %q", c.Cache.Kind)
	}

	if strings.TrimSpace(c.JWT.Issuer) == "" {
		return fmt.Errorf("config: jwt.issuer is required")
	}

	// validate string durations
	for _, d := range []string{
		c.JWT.AccessTTL,
		c.Register.SecretTTL,
		c.Storage.Postgres.ConnMaxLifetime,
		c.IdP.MetadataTTL,
		c.IdP.FetchTimeout,
		c.Rate.Register.Window,
		c.Rate.Token.Window,
	} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", d, err)
		}
	}

	if strings.EqualFold(c.App.Env, "prod") && c.Admin.APIKey == "" && c.IdP.AdminRole == "" {
		return fmt.Errorf("config: admin api requires admin.api_key or idp.admin_role in prod")
	}

	for i, s := range c.Seed {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("config: seed[%d]: name is required", i)
		}
	}
	return nil
}

// Duration parsea una duración ya validada por Load. def aplica si está vacía.
func Duration(s string, def time.Duration) time.Duration {
	if strings.TrimSpace(s) == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}

	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_CONNS"); ok {
		c.Storage.Postgres.MaxConns = v
	}

	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}

	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("JWT_SIGNING_KEY_PATH"); ok {
		c.JWT.SigningKeyPath = v
	}
	if v, ok := getEnvStr("JWT_ACCESS_TTL"); ok {
		c.JWT.AccessTTL = v
	}

	if v, ok := getEnvStr("REGISTER_SECRET_TTL"); ok {
		c.Register.SecretTTL = v
	}
	if v, ok := getEnvStr("ADMIN_API_KEY"); ok {
		c.Admin.APIKey = v
	}

	if v, ok := getEnvStr("IDP_AUTHORITY"); ok {
		c.IdP.Authority = v
	}
	if v, ok := getEnvStr("IDP_AUDIENCE"); ok {
		c.IdP.Audience = v
	}
	if v, ok := getEnvStr("IDP_METADATA_URL"); ok {
		c.IdP.MetadataURL = v
	}
	if v, ok := getEnvStr("IDP_ADMIN_ROLE"); ok {
		c.IdP.AdminRole = v
	}

	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
}
