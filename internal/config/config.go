package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type AppConfig struct {
	API      *APIConfig      `mapstructure:"api"`
	Gin      *GinConfig      `mapstructure:"gin"`
	Store    *StoreConfig    `mapstructure:"store"`
	Postgres *PostgresConfig `mapstructure:"postgres"`
}

type APIConfig struct {
	Environment        string   `mapstructure:"environment"`
	Port               string   `mapstructure:"port"`
	BaseURL            string   `mapstructure:"base_url"`
	AllowedCORSDomains []string `mapstructure:"allowed_cors_domains"`
	JWTSigningKey      string   `mapstructure:"jwt_signing_key"`
}

type GinConfig struct {
	Mode string `mapstructure:"mode"`
}

type StoreConfig struct {
	UseSQL          bool          `mapstructure:"use_sql"`
	FilePath        string        `mapstructure:"file_path"`
	FlushInterval   time.Duration `mapstructure:"flush_interval"`
	SQLWorkers      int           `mapstructure:"sql_workers"`
	MigrateFromFile bool          `mapstructure:"migrate_from_file"`
	FallbackToFile  bool          `mapstructure:"fallback_to_file"`
}

type PostgresConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
	TimeZone string `mapstructure:"time_zone"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.environment", "development")
	v.SetDefault("api.port", "8080")
	v.SetDefault("api.base_url", "localhost:8080")
	v.SetDefault("api.allowed_cors_domains", []string{})
	v.SetDefault("api.jwt_signing_key", "")
	v.SetDefault("gin.mode", "debug")
	v.SetDefault("store.use_sql", false)
	v.SetDefault("store.file_path", "data/shops.json")
	v.SetDefault("store.flush_interval", 30*time.Second)
	v.SetDefault("store.sql_workers", 4)
	v.SetDefault("store.migrate_from_file", true)
	v.SetDefault("store.fallback_to_file", false)
	v.SetDefault("postgres.driver", DriverPostgres)
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("postgres.user", "")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.name", "shops")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.time_zone", "UTC")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime", 30*time.Minute)
}

// Load reads the YAML config at path and overlays SHOP_* environment
// variables, e.g. SHOP_STORE_USE_SQL=true. A missing file leaves the defaults.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix("shop")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("v.ReadInConfig -> %w", err)
		}
	} else {
		v.OnConfigChange(func(e fsnotify.Event) {
			zap.L().Info("config file changed, reload the store to apply store settings",
				zap.String("file", e.Name), zap.String("op", e.Op.String()))
		})
		v.WatchConfig()
	}

	conf := &AppConfig{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("v.Unmarshal -> %w", err)
	}

	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("conf.Validate -> %w", err)
	}

	return conf, nil
}

func (c *AppConfig) Validate() error {
	return validation.ValidateStruct(
		c,
		validation.Field(&c.API, validation.Required),
		validation.Field(&c.Gin, validation.Required),
		validation.Field(&c.Store, validation.Required),
		validation.Field(&c.Postgres, validation.Required),
	)
}

func (c *APIConfig) Validate() error {
	return validation.ValidateStruct(
		c,
		validation.Field(&c.Environment, validation.Required, validation.In("development", "production")),
		validation.Field(&c.Port, validation.Required),
		validation.Field(&c.JWTSigningKey, validation.Required),
	)
}

func (c *GinConfig) Validate() error {
	return validation.ValidateStruct(
		c,
		validation.Field(&c.Mode, validation.In("debug", "release", "test")),
	)
}

func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(
		c,
		validation.Field(&c.FilePath, validation.Required),
		validation.Field(&c.FlushInterval, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.SQLWorkers, validation.Min(1)),
	)
}

func (c *PostgresConfig) Validate() error {
	return validation.ValidateStruct(
		c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverPostgres, DriverSQLite)),
		validation.Field(&c.MaxOpenConns, validation.Min(0)),
		validation.Field(&c.MaxIdleConns, validation.Min(0)),
	)
}
