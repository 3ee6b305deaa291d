package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return path
}

const minimalYAML = `
session:
  secret: "s3cret"
providers:
  github:
    client_id: "id"
    authorization_url: "https://github.com/login/oauth/authorize"
    token_url: "https://github.com/login/oauth/access_token"
`

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	require.Equal(t, ":8080", c.Server.Addr)
	require.Equal(t, "session", c.Storage.Driver)
	require.Equal(t, "memory", c.Cache.Kind)
	require.Equal(t, "dance_session", c.Session.CookieName)
	require.Equal(t, "Lax", c.Session.SameSite)
	require.Equal(t, 30*time.Minute, c.SessionTTL())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9999")
	t.Setenv("CACHE_KIND", "redis")
	t.Setenv("PROVIDER_GITHUB_CLIENT_SECRET", "from-env")

	c, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	require.Equal(t, ":9999", c.Server.Addr)
	require.Equal(t, "redis", c.Cache.Kind)
	require.Equal(t, "from-env", c.Providers["github"].ClientSecret)
}

func TestLoad_ProdForcesSecureCookie(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	c, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)
	require.True(t, c.Session.Secure)
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	_, err := Load(writeConfig(t, `
storage:
  driver: postgres
session:
  secret: "s3cret"
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "storage.dsn")
}

func TestLoad_MissingSessionSecret(t *testing.T) {
	_, err := Load(writeConfig(t, `
providers:
  github:
    client_id: "id"
    authorization_url: "https://x/a"
    token_url: "https://x/t"
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "session.secret")
}

func TestLoad_OAuth1ProviderValidation(t *testing.T) {
	_, err := Load(writeConfig(t, `
session:
  secret: "s3cret"
providers:
  twitter:
    kind: oauth1
    client_id: "id"
    authorization_url: "https://x/a"
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "request_token_url")
}

func TestLoad_BadDurationRejected(t *testing.T) {
	_, err := Load(writeConfig(t, `
session:
  secret: "s3cret"
  ttl: "banana"
`))
	require.Error(t, err)
}
