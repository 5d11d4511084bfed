package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the default config file name.
const FileName = "envelopes.yaml"

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config represents the top-level envelopes.yaml configuration. Secrets
// are never written to the file; they come from the environment.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Vault     VaultConfig     `yaml:"vault"`
	SimpleFIN SimpleFINConfig `yaml:"simplefin"`
	Auth      AuthConfig      `yaml:"auth"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Log       LogConfig       `yaml:"log"`
	Import    ImportConfig    `yaml:"import"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

// StorageConfig selects and configures the persistent store.
type StorageConfig struct {
	Backend  string         `yaml:"backend"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
}

// PostgresConfig holds connection parameters. URL (from DATABASE_URL)
// takes precedence over the discrete fields.
type PostgresConfig struct {
	URL      string `yaml:"-"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"-"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
}

// SQLiteConfig locates the database file.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// VaultConfig holds the credential encryption secret.
type VaultConfig struct {
	Secret string `yaml:"-"`
}

// SimpleFINConfig controls the aggregator client.
type SimpleFINConfig struct {
	AllowedHosts []string      `yaml:"allowed_hosts"`
	Timeout      time.Duration `yaml:"timeout"`
	LookbackDays int           `yaml:"lookback_days"`
}

// AuthConfig controls bearer-token validation.
type AuthConfig struct {
	Secret string `yaml:"-"`
	Issuer string `yaml:"issuer"`
}

// KafkaConfig enables event publishing when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers,omitempty"`
	Topic   string   `yaml:"topic"`
}

// LogConfig selects log level and format ("text" or "json").
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ImportConfig locates the drop directory for `import dir`.
type ImportConfig struct {
	Dir string `yaml:"dir"`
}

// Load reads an envelopes.yaml file from disk. Fields missing from the
// file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a local install.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			MaxBodyBytes: 10 << 20,
		},
		Storage: StorageConfig{
			Backend: BackendSQLite,
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "envelopes",
				Database: "envelopes",
				SSLMode:  "require",
				MaxConns: 10,
			},
			SQLite: SQLiteConfig{Path: "envelopes.db"},
		},
		SimpleFIN: SimpleFINConfig{
			AllowedHosts: []string{"bridge.simplefin.org", "beta-bridge.simplefin.org"},
			Timeout:      30 * time.Second,
			LookbackDays: 60,
		},
		Auth:  AuthConfig{Issuer: "envelopes"},
		Kafka: KafkaConfig{Topic: "envelopes.imports"},
		Log:   LogConfig{Level: "info", Format: "text"},
		Import: ImportConfig{
			Dir: "import",
		},
	}
}

// ApplyEnv overlays environment variables onto cfg. getenv is usually
// os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}

	str(&c.Vault.Secret, "ENCRYPTION_KEY", "SESSION_SECRET")
	str(&c.Auth.Secret, "ENVELOPES_JWT_SECRET", "JWT_SECRET")
	str(&c.Storage.Postgres.URL, "DATABASE_URL")
	str(&c.Storage.Postgres.Password, "ENVELOPES_POSTGRES_PASSWORD", "PGPASSWORD")
	str(&c.Storage.Backend, "ENVELOPES_STORAGE_BACKEND")
	str(&c.Storage.SQLite.Path, "ENVELOPES_SQLITE_PATH")
	str(&c.Server.Addr, "ENVELOPES_ADDR")
	str(&c.Log.Level, "ENVELOPES_LOG_LEVEL")
	str(&c.Log.Format, "ENVELOPES_LOG_FORMAT")
	str(&c.Kafka.Topic, "ENVELOPES_KAFKA_TOPIC")

	if v := getenv("ENVELOPES_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := getenv("ENVELOPES_SIMPLEFIN_ALLOWED_HOSTS"); v != "" {
		c.SimpleFIN.AllowedHosts = splitList(v)
	}
	if v := getenv("ENVELOPES_SIMPLEFIN_LOOKBACK_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing ENVELOPES_SIMPLEFIN_LOOKBACK_DAYS: %w", err)
		}
		c.SimpleFIN.LookbackDays = n
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Lookback returns the SimpleFIN sync window.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.SimpleFIN.LookbackDays) * 24 * time.Hour
}

// Validate checks the settings every command needs. Secrets are checked
// where they are used.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Backend {
	case BackendMemory, BackendPostgres:
	case BackendSQLite:
		if c.Storage.SQLite.Path == "" {
			errs = append(errs, errors.New("storage.sqlite.path is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	if c.SimpleFIN.LookbackDays <= 0 {
		errs = append(errs, errors.New("simplefin.lookback_days must be positive"))
	}
	if c.SimpleFIN.Timeout <= 0 {
		errs = append(errs, errors.New("simplefin.timeout must be positive"))
	}
	if len(c.SimpleFIN.AllowedHosts) == 0 {
		errs = append(errs, errors.New("simplefin.allowed_hosts must not be empty"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
	}
	return errors.Join(errs...)
}
