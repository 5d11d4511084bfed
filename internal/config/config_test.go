package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Storage.Backend = BackendPostgres
	cfg.Storage.Postgres.Host = "db.internal"
	cfg.Kafka.Brokers = []string{"k1:9092", "k2:9092"}
	cfg.SimpleFIN.Timeout = 45 * time.Second

	path := filepath.Join(t.TempDir(), FileName)
	err := Save(path, cfg)
	require.NoError(t, err)

	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, cfg.Server, got.Server)
	assert.Equal(t, BackendPostgres, got.Storage.Backend)
	assert.Equal(t, "db.internal", got.Storage.Postgres.Host)
	assert.Equal(t, 5432, got.Storage.Postgres.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, got.Kafka.Brokers)
	assert.Equal(t, 45*time.Second, got.SimpleFIN.Timeout)
	assert.Equal(t, cfg.SimpleFIN.AllowedHosts, got.SimpleFIN.AllowedHosts)
	assert.Equal(t, cfg.Log, got.Log)
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, "envelopes.db", cfg.Storage.SQLite.Path)
	assert.Equal(t, "require", cfg.Storage.Postgres.SSLMode)
	assert.Equal(t, []string{"bridge.simplefin.org", "beta-bridge.simplefin.org"}, cfg.SimpleFIN.AllowedHosts)
	assert.Equal(t, 30*time.Second, cfg.SimpleFIN.Timeout)
	assert.Equal(t, 60*24*time.Hour, cfg.Lookback())
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.NoError(t, cfg.Validate())
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: memory\nsimplefin:\n  timeout: 5s\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, 5*time.Second, cfg.SimpleFIN.Timeout)
	assert.Equal(t, 60, cfg.SimpleFIN.LookbackDays)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestYAMLFormat_NoSecrets(t *testing.T) {
	cfg := Default()
	cfg.Vault.Secret = "vault-secret"
	cfg.Auth.Secret = "jwt-secret"
	cfg.Storage.Postgres.Password = "pg-password"
	cfg.Storage.Postgres.URL = "postgres://u:p@h/db"

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "backend: sqlite")
	assert.Contains(t, contents, "lookback_days: 60")
	assert.Contains(t, contents, "timeout: 30s")
	assert.NotContains(t, contents, "vault-secret")
	assert.NotContains(t, contents, "jwt-secret")
	assert.NotContains(t, contents, "pg-password")
	assert.NotContains(t, contents, "postgres://")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"SESSION_SECRET":                    "session",
		"JWT_SECRET":                        "jwt",
		"DATABASE_URL":                      "postgres://u:p@h/db",
		"ENVELOPES_STORAGE_BACKEND":         "postgres",
		"ENVELOPES_KAFKA_BROKERS":           "a:9092, b:9092,",
		"ENVELOPES_SIMPLEFIN_LOOKBACK_DAYS": "14",
		"ENVELOPES_SIMPLEFIN_ALLOWED_HOSTS": "bridge.simplefin.org",
		"ENVELOPES_LOG_FORMAT":              "json",
	}
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, "session", cfg.Vault.Secret)
	assert.Equal(t, "jwt", cfg.Auth.Secret)
	assert.Equal(t, "postgres://u:p@h/db", cfg.Storage.Postgres.URL)
	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 14*24*time.Hour, cfg.Lookback())
	assert.Equal(t, []string{"bridge.simplefin.org"}, cfg.SimpleFIN.AllowedHosts)
	assert.Equal(t, "json", cfg.Log.Format)

	env["ENCRYPTION_KEY"] = "primary"
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))
	assert.Equal(t, "primary", cfg.Vault.Secret)

	env["ENVELOPES_SIMPLEFIN_LOOKBACK_DAYS"] = "two weeks"
	assert.Error(t, cfg.ApplyEnv(func(k string) string { return env[k] }))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown backend", func(c *Config) { c.Storage.Backend = "mysql" }, `unknown storage backend "mysql"`},
		{"sqlite without path", func(c *Config) { c.Storage.SQLite.Path = "" }, "storage.sqlite.path is required"},
		{"zero lookback", func(c *Config) { c.SimpleFIN.LookbackDays = 0 }, "lookback_days must be positive"},
		{"zero timeout", func(c *Config) { c.SimpleFIN.Timeout = 0 }, "timeout must be positive"},
		{"no hosts", func(c *Config) { c.SimpleFIN.AllowedHosts = nil }, "allowed_hosts must not be empty"},
		{"brokers without topic", func(c *Config) {
			c.Kafka.Brokers = []string{"k:9092"}
			c.Kafka.Topic = ""
		}, "kafka.topic is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
