package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Provider struct {
	// oauth2 (default) | oauth1
	Kind string `yaml:"kind"`

	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Scopes       []string `yaml:"scopes"`

	// Endpoints del proveedor. Pueden ser relativos a base_url.
	BaseURL             string            `yaml:"base_url"`
	AuthorizationURL    string            `yaml:"authorization_url"`
	AuthorizationParams map[string]string `yaml:"authorization_params"`
	TokenURL            string            `yaml:"token_url"`
	TokenParams         map[string]string `yaml:"token_params"`

	// Sólo oauth1
	RequestTokenURL string `yaml:"request_token_url"`
	AccessTokenURL  string `yaml:"access_token_url"`

	// Destino post-login. Vacío => "/".
	RedirectURL string `yaml:"redirect_url"`
}

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
		// BaseURL pública de la app; de aquí salen las callback URLs.
		BaseURL string `yaml:"base_url"`
		// TrustProxy: aceptar X-Forwarded-Proto de un proxy de confianza.
		TrustProxy bool `yaml:"trust_proxy"`
	} `yaml:"server"`

	Storage struct {
		// postgres | session | memory | null
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns        int    `yaml:"max_conns"`
			MinConns        int    `yaml:"min_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis | none
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	Session struct {
		CookieName string `yaml:"cookie_name"`
		Secret     string `yaml:"secret"`
		Domain     string `yaml:"domain"`
		SameSite   string `yaml:"samesite"`
		Secure     bool   `yaml:"secure"`
		TTL        string `yaml:"ttl"`
	} `yaml:"session"`

	Providers map[string]Provider `yaml:"providers"`

	Flags struct {
		Migrate bool `yaml:"migrate"`
	} `yaml:"flags"`
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
		c.Storage.Driver = "session"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "2m"
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "dance_session"
	}
	if c.Session.SameSite == "" {
		c.Session.SameSite = "Lax"
	}
	if c.Session.TTL == "" {
		c.Session.TTL = "30m"
	}

	// Overrides por env
	c.applyEnvOverrides()

	// validate string durations
	if c.Storage.Postgres.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(c.Storage.Postgres.ConnMaxLifetime); err != nil {
			return nil, err
		}
	}
	if _, err := time.ParseDuration(c.Cache.Memory.DefaultTTL); err != nil {
		return nil, err
	}
	if _, err := time.ParseDuration(c.Session.TTL); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	// Guardia dura: en prod la cookie de sesión viaja sólo por HTTPS.
	if strings.EqualFold(c.App.Env, "prod") {
		c.Session.Secure = true
	}

	return &c, nil
}

// Validate comprueba lo imprescindible para arrancar.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return fmt.Errorf("config: storage.driver=postgres requires storage.dsn")
		}
	case "session", "memory", "null":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}

	if (c.Storage.Driver == "session" || len(c.Providers) > 0) && strings.TrimSpace(c.Session.Secret) == "" {
		return fmt.Errorf("config: session.secret is required")
	}

	for name, p := range c.Providers {
		switch p.Kind {
		case "", "oauth2":
			if p.ClientID == "" || p.AuthorizationURL == "" || p.TokenURL == "" {
				return fmt.Errorf("config: provider %q: client_id, authorization_url and token_url are required", name)
			}
		case "oauth1":
			if p.ClientID == "" || p.RequestTokenURL == "" || p.AuthorizationURL == "" || p.AccessTokenURL == "" {
				return fmt.Errorf("config: provider %q: client_id, request_token_url, authorization_url and access_token_url are required", name)
			}
		default:
			return fmt.Errorf("config: provider %q: unknown kind %q", name, p.Kind)
		}
	}
	return nil
}

// SessionTTL devuelve el TTL ya parseado; Load valida el formato.
func (c *Config) SessionTTL() time.Duration {
	d, _ := time.ParseDuration(c.Session.TTL)
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
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("SERVER_BASE_URL"); ok {
		c.Server.BaseURL = v
	}
	if v, ok := getEnvBool("SERVER_TRUST_PROXY"); ok {
		c.Server.TrustProxy = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_CONNS"); ok {
		c.Storage.Postgres.MaxConns = v
	}
	if v, ok := getEnvInt("POSTGRES_MIN_CONNS"); ok {
		c.Storage.Postgres.MinConns = v
	}
	if v, ok := getEnvStr("POSTGRES_CONN_MAX_LIFETIME"); ok {
		c.Storage.Postgres.ConnMaxLifetime = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}
	if v, ok := getEnvStr("CACHE_MEMORY_DEFAULT_TTL"); ok {
		c.Cache.Memory.DefaultTTL = v
	}

	// SESSION
	if v, ok := getEnvStr("SESSION_COOKIE_NAME"); ok {
		c.Session.CookieName = v
	}
	if v, ok := getEnvStr("SESSION_SECRET"); ok {
		c.Session.Secret = v
	}
	if v, ok := getEnvStr("SESSION_DOMAIN"); ok {
		c.Session.Domain = v
	}
	if v, ok := getEnvStr("SESSION_SAMESITE"); ok {
		c.Session.SameSite = v
	}
	if v, ok := getEnvBool("SESSION_SECURE"); ok {
		c.Session.Secure = v
	}
	if v, ok := getEnvStr("SESSION_TTL"); ok {
		c.Session.TTL = v
	}

	// PROVIDERS: secretos por env, PROVIDER_<NAME>_CLIENT_ID / _CLIENT_SECRET
	for name, p := range c.Providers {
		prefix := "PROVIDER_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		if v, ok := getEnvStr(prefix + "_CLIENT_ID"); ok {
			p.ClientID = v
		}
		if v, ok := getEnvStr(prefix + "_CLIENT_SECRET"); ok {
			p.ClientSecret = v
		}
		c.Providers[name] = p
	}

	// FLAGS
	if v, ok := getEnvBool("FLAGS_MIGRATE"); ok {
		c.Flags.Migrate = v
	}
}
