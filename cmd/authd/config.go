package main

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	auth "github.com/orderdesk/go-auth"
)

const envPrefix = "AUTHD_"

type ServerConfig struct {
	Addr            string        `koanf:"addr" json:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres"
	Driver      string        `koanf:"driver" json:"driver"`
	DSN         string        `koanf:"dsn" json:"dsn"`
	Debug       bool          `koanf:"debug" json:"debug"`
	PingTimeout time.Duration `koanf:"ping_timeout" json:"ping_timeout"`
}

func (d DatabaseConfig) GetDebug() bool                { return d.Debug }
func (d DatabaseConfig) GetDriver() string             { return d.Driver }
func (d DatabaseConfig) GetServer() string             { return d.DSN }
func (d DatabaseConfig) GetDSN() string                { return d.DSN }
func (d DatabaseConfig) GetPingTimeout() time.Duration { return d.PingTimeout }
func (d DatabaseConfig) GetOtelIdentifier() string     { return "authd" }

type RedisConfig struct {
	Addr     string        `koanf:"addr" json:"addr"`
	Password string        `koanf:"password" json:"password"`
	DB       int           `koanf:"db" json:"db"`
	CacheTTL time.Duration `koanf:"cache_ttl" json:"cache_ttl"`
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// MetricsConfig serves prometheus metrics on a separate listener
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled" json:"enabled"`
	Addr    string `koanf:"addr" json:"addr"`
	Path    string `koanf:"path" json:"path"`
}

type Config struct {
	Server   ServerConfig   `koanf:"server" json:"server"`
	Auth     auth.Options   `koanf:"auth" json:"auth"`
	Database DatabaseConfig `koanf:"database" json:"database"`
	Redis    RedisConfig    `koanf:"redis" json:"redis"`
	Metrics  MetricsConfig  `koanf:"metrics" json:"metrics"`
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8572",
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: auth.DefaultOptions(),
		Database: DatabaseConfig{
			Driver:      "sqlite",
			DSN:         "file:authd.db?cache=shared",
			PingTimeout: 5 * time.Second,
		},
		Redis: RedisConfig{
			CacheTTL: auth.DefaultResolverCacheTTL,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
			Path:    "/metrics",
		},
	}
}

// loadConfig layers defaults, an optional JSON file and AUTHD_ environment
// variables. Nested keys use a double underscore, e.g. AUTHD_AUTH__ISSUER.
func loadConfig(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return Config{}, err
	}

	if path != "" {
		if err := k.Load(file.Provider(path), json.Parser()); err != nil {
			return Config{}, err
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, err
	}

	cfg.Auth = cfg.Auth.WithDefaults()

	return cfg, cfg.Validate()
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

func (c Config) Validate() error {
	if err := c.Auth.Validate(); err != nil {
		return err
	}

	return validation.ValidateStruct(&c.Database,
		validation.Field(&c.Database.Driver, validation.Required, validation.In("sqlite", "postgres")),
		validation.Field(&c.Database.DSN, validation.Required),
	)
}

// Redacted returns a copy safe to print
func (c Config) Redacted() Config {
	const mask = "********"
	if c.Auth.SigningKey != "" {
		c.Auth.SigningKey = mask
	}
	if c.Redis.Password != "" {
		c.Redis.Password = mask
	}
	if c.Database.Driver == "postgres" && c.Database.DSN != "" {
		c.Database.DSN = mask
	}
	return c
}
