package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dropDatabas3/dancefloor/internal/cache"
	"github.com/dropDatabas3/dancefloor/internal/config"
	"github.com/dropDatabas3/dancefloor/internal/dance"
	httpserver "github.com/dropDatabas3/dancefloor/internal/http"
	"github.com/dropDatabas3/dancefloor/internal/http/handlers"
	"github.com/dropDatabas3/dancefloor/internal/http/router"
	"github.com/dropDatabas3/dancefloor/internal/metrics"
	"github.com/dropDatabas3/dancefloor/internal/observability/logger"
	"github.com/dropDatabas3/dancefloor/internal/store"
	"github.com/dropDatabas3/dancefloor/internal/store/pg"
	"github.com/dropDatabas3/dancefloor/internal/transient"
	migrations "github.com/dropDatabas3/dancefloor/migrations/postgres"
)

func main() {
	var (
		flagConfig  = ""
		flagEnvFile = ".env"
	)

	root := &cobra.Command{
		Use:   "dancefloor",
		Short: "Servicio de OAuth dance: login, callback y persistencia de tokens",
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", flagConfig, "ruta a config.yaml (fallback: $CONFIG_PATH o configs/config.yaml)")
	root.PersistentFlags().StringVar(&flagEnvFile, "env-file", flagEnvFile, "ruta a .env (si existe, se carga)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(flagConfig, flagEnvFile)
		},
	}

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones de Postgres y termina",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(flagConfig, flagEnvFile)
		},
	}

	root.AddCommand(serve, migrate)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func loadConfig(path, envFile string) (*config.Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			_ = godotenv.Load(envFile)
		}
	}
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}
	return config.Load(path)
}

func runMigrate(cfgPath, envFile string) error {
	cfg, err := loadConfig(cfgPath, envFile)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.Storage.Driver != "postgres" {
		return fmt.Errorf("migrate: storage.driver=%q, nothing to do", cfg.Storage.Driver)
	}

	ctx := context.Background()
	pool, err := pg.NewPool(ctx, cfg.Storage.DSN, poolConfig(cfg))
	if err != nil {
		return fmt.Errorf("pg pool: %w", err)
	}
	defer pool.Close()

	return migrations.Apply(ctx, pool)
}

func poolConfig(cfg *config.Config) pg.PoolConfig {
	var lifetime time.Duration
	if cfg.Storage.Postgres.ConnMaxLifetime != "" {
		lifetime, _ = time.ParseDuration(cfg.Storage.Postgres.ConnMaxLifetime)
	}
	return pg.PoolConfig{
		MaxConns:        int32(cfg.Storage.Postgres.MaxConns),
		MinConns:        int32(cfg.Storage.Postgres.MinConns),
		ConnMaxLifetime: lifetime,
	}
}

func runServe(cfgPath, envFile string) error {
	cfg, err := loadConfig(cfgPath, envFile)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: os.Getenv("LOG_LEVEL"), ServiceName: "dancefloor"})
	defer func() { _ = logger.Sync() }()
	log := logger.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Cache compartida (read-cache del store relacional)
	cc := cache.New(cache.Config{
		Driver:     cfg.Cache.Kind,
		Addr:       cfg.Cache.Redis.Addr,
		Password:   cfg.Cache.Redis.Password,
		DB:         cfg.Cache.Redis.DB,
		Prefix:     cfg.Cache.Redis.Prefix,
		DefaultTTL: memoryTTL(cfg),
	})
	defer func() { _ = cc.Close() }()

	// Backing store según driver
	var (
		pool     interface{ Close() }
		newStore func(provider string) store.TokenStore
	)
	switch cfg.Storage.Driver {
	case "postgres":
		p, err := pg.NewPool(ctx, cfg.Storage.DSN, poolConfig(cfg))
		if err != nil {
			return fmt.Errorf("pg pool: %w", err)
		}
		pool = p
		if cfg.Flags.Migrate {
			if err := migrations.Apply(ctx, p); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
		}
		newStore = func(provider string) store.TokenStore {
			return pg.New(p, cc, pg.Config{
				Provider: provider,
				CacheTTL: memoryTTL(cfg),
			})
		}
	case "memory":
		newStore = func(provider string) store.TokenStore {
			return store.NewMemory(nil)
		}
	case "null":
		newStore = func(provider string) store.TokenStore {
			return store.Null{}
		}
	default: // session
		newStore = func(provider string) store.TokenStore {
			return store.NewSession(provider)
		}
	}
	if pool != nil {
		defer pool.Close()
	}

	// Un controller por provider configurado
	controllers := make(map[string]*dance.Controller, len(cfg.Providers))
	for name, p := range cfg.Providers {
		controllers[name] = buildController(cfg, name, p, newStore(name))
		log.Info("provider registered", zap.String("provider", name), zap.String("kind", kindOf(p)))
	}

	if err := metrics.Register(nil); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	danceHandler := handlers.NewDanceHandler(handlers.DanceDeps{
		Controllers:  controllers,
		TrustProxy:   cfg.Server.TrustProxy,
		CookieSecret: []byte(cfg.Session.Secret),
		CookieOpts: transient.CookieOptions{
			Name:     cfg.Session.CookieName,
			TTL:      cfg.SessionTTL(),
			Domain:   cfg.Session.Domain,
			SameSite: cfg.Session.SameSite,
			Secure:   cfg.Session.Secure,
		},
	})

	pings := map[string]func(context.Context) error{
		"cache": cc.Ping,
	}
	handler := router.New(router.Deps{
		Dance:  danceHandler,
		Readyz: handlers.NewReadyzHandler(pings),
	})

	log.Info("service up",
		zap.String("addr", cfg.Server.Addr),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("cache", cfg.Cache.Kind),
		zap.Int("providers", len(controllers)))

	return httpserver.Serve(ctx, cfg.Server.Addr, handler)
}

func memoryTTL(cfg *config.Config) time.Duration {
	d, _ := time.ParseDuration(cfg.Cache.Memory.DefaultTTL)
	return d
}

func kindOf(p config.Provider) string {
	if p.Kind == "" {
		return "oauth2"
	}
	return p.Kind
}

func buildController(cfg *config.Config, name string, p config.Provider, tokens store.TokenStore) *dance.Controller {
	var factory dance.SessionFactory
	switch p.Kind {
	case "oauth1":
		conf := dance.OAuth1Config{
			ConsumerKey:      p.ClientID,
			ConsumerSecret:   p.ClientSecret,
			BaseURL:          p.BaseURL,
			RequestTokenURL:  p.RequestTokenURL,
			AuthorizationURL: p.AuthorizationURL,
			AccessTokenURL:   p.AccessTokenURL,
		}
		factory = func() dance.Session { return dance.NewOAuth1(conf) }
	default:
		conf := dance.OAuth2Config{
			ClientID:            p.ClientID,
			ClientSecret:        p.ClientSecret,
			Scopes:              p.Scopes,
			BaseURL:             p.BaseURL,
			AuthorizationURL:    p.AuthorizationURL,
			AuthorizationParams: p.AuthorizationParams,
			TokenURL:            p.TokenURL,
			TokenParams:         p.TokenParams,
		}
		factory = func() dance.Session { return dance.NewOAuth2(conf) }
	}

	return &dance.Controller{
		Provider:    name,
		NewSession:  factory,
		Tokens:      tokens,
		Bus:         dance.NewBus(),
		CallbackURL: fmt.Sprintf("%s/oauth/%s/authorized", trimSlash(cfg.Server.BaseURL), name),
		RedirectURL: p.RedirectURL,
	}
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
