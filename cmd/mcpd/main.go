package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	rdb "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dropDatabas3/mcpd/internal/audit"
	"github.com/dropDatabas3/mcpd/internal/bootstrap"
	"github.com/dropDatabas3/mcpd/internal/callback"
	"github.com/dropDatabas3/mcpd/internal/config"
	"github.com/dropDatabas3/mcpd/internal/domain/repository"
	httpx "github.com/dropDatabas3/mcpd/internal/http"
	adminctrl "github.com/dropDatabas3/mcpd/internal/http/controllers/admin"
	healthctrl "github.com/dropDatabas3/mcpd/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/mcpd/internal/http/controllers/oauth"
	regctrl "github.com/dropDatabas3/mcpd/internal/http/controllers/registration"
	wkctrl "github.com/dropDatabas3/mcpd/internal/http/controllers/wellknown"
	mw "github.com/dropDatabas3/mcpd/internal/http/middlewares"
	"github.com/dropDatabas3/mcpd/internal/http/router"
	regsvc "github.com/dropDatabas3/mcpd/internal/http/services/registration"
	toksvc "github.com/dropDatabas3/mcpd/internal/http/services/token"
	"github.com/dropDatabas3/mcpd/internal/idp"
	jwtx "github.com/dropDatabas3/mcpd/internal/jwt"
	"github.com/dropDatabas3/mcpd/internal/observability/logger"
	"github.com/dropDatabas3/mcpd/internal/rate"
	"github.com/dropDatabas3/mcpd/internal/security/secret"
	"github.com/dropDatabas3/mcpd/internal/store/adapters/mem"
	"github.com/dropDatabas3/mcpd/internal/store/adapters/pg"
	pgmigrations "github.com/dropDatabas3/mcpd/migrations/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "mcpd:", err)
		os.Exit(1)
	}
}

func run() error {
	// .env es opcional; las variables del entorno siempre ganan.
	_ = godotenv.Load()

	configPath := flag.String("config", envOr("MCPD_CONFIG", "config.yaml"), "ruta del archivo de configuración")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		ServiceName: "mcpd",
	})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Claves de firma. Sin path configurado se genera un par efímero, útil
	// solo en desarrollo: los tokens no sobreviven un reinicio.
	var keys *jwtx.KeySet
	if cfg.JWT.SigningKeyPath != "" {
		keys, err = jwtx.LoadRSAFromPEM(cfg.JWT.SigningKeyPath)
		if err != nil {
			return fmt.Errorf("loading signing key: %w", err)
		}
	} else {
		keys, err = jwtx.NewRSA()
		if err != nil {
			return fmt.Errorf("generating signing key: %w", err)
		}
		log.Warn("no signing key configured, generated ephemeral RSA key")
	}
	issuer := jwtx.NewIssuer(cfg.JWT.Issuer, keys)

	// Storage.
	var (
		store    repository.Store
		pgStore  *pg.Store
		readyChk []healthctrl.ReadyCheck
	)
	switch cfg.Storage.Driver {
	case "postgres":
		pgStore, err = pg.New(ctx, cfg.Storage.DSN, pg.Options{
			MaxConns:        cfg.Storage.Postgres.MaxConns,
			ConnMaxLifetime: config.Duration(cfg.Storage.Postgres.ConnMaxLifetime, 30*time.Minute),
		})
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer pgStore.Close()

		if err := pg.Migrate(ctx, pgStore.Pool(), pgmigrations.FS); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		store = pgStore
		readyChk = append(readyChk, healthctrl.ReadyCheck{Name: "postgres", Check: pgStore.Ping})
	default:
		store = mem.New()
		log.Warn("using in-memory storage, data will not survive a restart")
	}

	if err := bootstrap.SeedServers(ctx, store, cfg.Seed); err != nil {
		return fmt.Errorf("seeding servers: %w", err)
	}

	hasher := secret.NewHasher(secret.Default, 0)
	auditor := audit.NewRecorder(store.Audit())
	callbacks := callback.NewValidator(store.Whitelist())

	// Rate limiting compartido vía Redis, o local por proceso.
	var registerLimiter, tokenLimiter rate.Limiter
	if cfg.Rate.Enabled {
		regWin := config.Duration(cfg.Rate.Register.Window, time.Minute)
		tokWin := config.Duration(cfg.Rate.Token.Window, time.Minute)
		if cfg.Cache.Kind == "redis" {
			client := rdb.NewClient(&rdb.Options{Addr: cfg.Cache.Redis.Addr, DB: cfg.Cache.Redis.DB})
			defer client.Close()
			registerLimiter = rate.NewRedisLimiter(client, cfg.Cache.Redis.Prefix, cfg.Rate.Register.Limit, regWin)
			tokenLimiter = rate.NewRedisLimiter(client, cfg.Cache.Redis.Prefix, cfg.Rate.Token.Limit, tokWin)
			readyChk = append(readyChk, healthctrl.ReadyCheck{
				Name:  "redis",
				Check: func(ctx context.Context) error { return client.Ping(ctx).Err() },
			})
		} else {
			registerLimiter = rate.NewMemoryLimiter(cfg.Rate.Register.Limit, regWin)
			tokenLimiter = rate.NewMemoryLimiter(cfg.Rate.Token.Limit, tokWin)
		}
	}

	// IdP externo para el grant jwt-bearer. Sin authority el grant queda
	// deshabilitado y /oauth/token lo rechaza con unsupported_grant_type.
	var (
		validator  idp.TokenValidator
		authorizer *idp.Authorizer
	)
	if cfg.IdP.Authority != "" {
		v, err := idp.NewValidator(idp.Options{
			Authority:    cfg.IdP.Authority,
			Audience:     cfg.IdP.Audience,
			MetadataURL:  cfg.IdP.MetadataURL,
			RolesClaim:   cfg.IdP.RolesClaim,
			MetadataTTL:  config.Duration(cfg.IdP.MetadataTTL, time.Hour),
			FetchTimeout: config.Duration(cfg.IdP.FetchTimeout, 10*time.Second),
		})
		if err != nil {
			return fmt.Errorf("configuring idp validator: %w", err)
		}
		validator = v

		mappings := make(map[string]idp.ServerMapping, len(cfg.IdP.Servers))
		for name, m := range cfg.IdP.Servers {
			mappings[name] = idp.ServerMapping{
				RequiredRoles: m.RequiredRoles,
				DefaultScopes: m.DefaultScopes,
			}
		}
		authorizer = &idp.Authorizer{Mappings: mappings, AdminRole: cfg.IdP.AdminRole}
	}

	registrationSvc := regsvc.NewService(regsvc.Deps{
		Store:     store,
		Hasher:    hasher,
		Callbacks: callbacks,
		Audit:     auditor,
		SecretTTL: config.Duration(cfg.Register.SecretTTL, 0),
	})
	tokenSvc := toksvc.NewService(toksvc.Deps{
		Store:      store,
		Hasher:     hasher,
		Issuer:     issuer,
		Validator:  validator,
		Authorizer: authorizer,
		Audit:      auditor,
		AccessTTL:  config.Duration(cfg.JWT.AccessTTL, 0),
	})

	metricsHandler, err := httpx.RegisterMetrics(httpx.MetricsConfig{
		Registry: prometheus.DefaultRegisterer,
		Pool: func() *pgxpool.Pool {
			if pgStore == nil {
				return nil
			}
			return pgStore.Pool()
		},
	})
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	handler := router.New(router.Deps{
		Registration: regctrl.NewController(registrationSvc),
		Token:        oauthctrl.NewTokenController(tokenSvc, cfg.JWT.Issuer+"/.well-known/oauth-authorization-server"),
		WellKnown:    wkctrl.NewController(cfg.JWT.Issuer, keys),
		Admin:        adminctrl.NewController(store, registrationSvc),
		Health:       healthctrl.NewController(readyChk...),

		Clients: store.Clients(),
		Hasher:  hasher,
		AdminAuth: mw.AdminAuthConfig{
			APIKey:     cfg.Admin.APIKey,
			Validator:  validator,
			Authorizer: authorizer,
		},
		RegisterLimiter: registerLimiter,
		TokenLimiter:    tokenLimiter,
		MetricsHandler:  metricsHandler,
	})

	srv := httpx.NewServer(cfg.Server.Addr, handler)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", cfg.Server.Addr), zap.String("issuer", cfg.JWT.Issuer))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
