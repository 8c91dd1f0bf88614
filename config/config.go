// Package config loads settings from an optional config.yaml, the process
// environment and a .env file, in increasing order of precedence for env.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type HTTPConfig struct {
	Addr      string `mapstructure:"addr"`
	WebOrigin string `mapstructure:"web_origin"`
}

type StorageConfig struct {
	Type string `mapstructure:"type"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	// LockTimeout bounds how long a transaction waits for an equipment row lock.
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

// DSN renders the libpq keyword/value form gorm's postgres driver accepts.
func (d DatabaseConfig) DSN() string {
	parts := []string{
		"host=" + quoteDSN(d.Host),
		fmt.Sprintf("port=%d", d.Port),
		"user=" + quoteDSN(d.User),
		"dbname=" + quoteDSN(d.Name),
		"sslmode=" + quoteDSN(d.SSLMode),
	}
	if d.Password != "" {
		parts = append(parts, "password="+quoteDSN(d.Password))
	}
	return strings.Join(parts, " ")
}

func quoteDSN(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SessionConfig struct {
	Cookie string        `mapstructure:"cookie"`
	TTL    time.Duration `mapstructure:"ttl"`
	// SeenTTL throttles last-seen writes per user.
	SeenTTL time.Duration `mapstructure:"seen_ttl"`
}

type AvailabilityConfig struct {
	// CacheTTL of 0 disables the redis availability cache.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type EngineConfig struct {
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	CheckoutGrace  time.Duration `mapstructure:"checkout_grace"`
	// OverdueSweepInterval of 0 leaves OVERDUE to read time only.
	OverdueSweepInterval time.Duration `mapstructure:"overdue_sweep_interval"`
	TxTimeout            time.Duration `mapstructure:"tx_timeout"`
}

type Config struct {
	HTTP         HTTPConfig         `mapstructure:"http"`
	LogLevel     string             `mapstructure:"log_level"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Session      SessionConfig      `mapstructure:"session"`
	Availability AvailabilityConfig `mapstructure:"availability"`
	Engine       EngineConfig       `mapstructure:"engine"`
	// AdminEmails always get the admin role, whatever is stored.
	AdminEmails []string `mapstructure:"admin_emails"`
}

// IsAdminEmail reports whether username is listed in admin_emails.
func (c *Config) IsAdminEmail(username string) bool {
	username = strings.ToLower(strings.TrimSpace(username))
	for _, a := range c.AdminEmails {
		if strings.ToLower(strings.TrimSpace(a)) == username {
			return true
		}
	}
	return false
}

// LoadEnv reads .env files into the process environment. Missing files are
// not an error.
func LoadEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			slog.Debug("env file not loaded", "file", f, "error", err)
		}
	}
}

// Load builds the Config. configFile, when set, replaces the config.yaml
// lookup in the working directory.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	for k, val := range Defaults() {
		v.SetDefault(k, val)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	// comma separated env value
	if len(cfg.AdminEmails) == 1 && strings.Contains(cfg.AdminEmails[0], ",") {
		cfg.AdminEmails = splitCSV(cfg.AdminEmails[0])
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("storage.type must be %q or %q, got %q", StoragePostgres, StorageMemory, c.Storage.Type)
	}
	if c.Engine.RetryAttempts <= 0 {
		return fmt.Errorf("engine.retry_attempts must be positive, got %d", c.Engine.RetryAttempts)
	}
	if c.Engine.CheckoutGrace < 0 {
		return errors.New("engine.checkout_grace must not be negative")
	}
	if c.HTTP.WebOrigin != "" {
		if _, err := url.Parse(c.HTTP.WebOrigin); err != nil {
			return fmt.Errorf("http.web_origin: %w", err)
		}
	}
	return nil
}

// SlogLevel maps log_level to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
