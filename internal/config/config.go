// Package config loads specsql settings from defaults, a specsql.yaml file,
// .env files and SPECSQL_* environment variables.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/roach88/specsql/internal/querysql"
)

const (
	maxWalkDepth = 25
	envPrefix    = "SPECSQL"
)

// Config is the full specsql configuration.
type Config struct {
	// SchemaPath overrides the embedded query JSON Schema.
	SchemaPath string `mapstructure:"schema_path"`

	Database DatabaseConfig `mapstructure:"database"`
	Compiler CompilerConfig `mapstructure:"compiler"`
	Server   ServerConfig   `mapstructure:"server"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig holds connection settings for the execution layer.
type DatabaseConfig struct {
	// Driver is one of pgx, postgres, sqlite3, mysql.
	Driver         string        `mapstructure:"driver"`
	URL            string        `mapstructure:"url"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Name           string        `mapstructure:"name"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	SSLMode        string        `mapstructure:"sslmode"`
	Schemas        []string      `mapstructure:"schemas"`
	MaxOpenConns   int           `mapstructure:"max_open_conns"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// CompilerConfig mirrors querysql.Options.
type CompilerConfig struct {
	ParamStyle       string `mapstructure:"param_style"`
	QuoteIdentifiers bool   `mapstructure:"quote_identifiers"`
	MaxDepth         int    `mapstructure:"max_depth"`
	MaxJoins         int    `mapstructure:"max_joins"`
	MaxIn            int    `mapstructure:"max_in"`
	MaxLimit         int64  `mapstructure:"max_limit"`
	StrictTables     bool   `mapstructure:"strict_tables"`
}

// ServerConfig holds HTTP handler settings.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`

	// BasicAuth guards /query and /compile when Username is set.
	BasicAuth BasicAuthConfig `mapstructure:"basic_auth"`
}

// BasicAuthConfig is the credential pair accepted by the HTTP server.
type BasicAuthConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// CacheConfig configures the optional Redis result cache.
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// AuditConfig configures the SQLite audit log.
type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig discovers and loads configuration with precedence
// flags > env > config file > defaults. Flags are applied by the caller.
//
// .env and then .env.local in the working directory are loaded into the
// process environment first. .env never replaces variables that are already
// set; .env.local does.
//
// Returns the config and the config file path (empty if none was found).
func LoadConfig(explicitConfigPath string) (*Config, string, error) {
	loadDotEnv()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath, err := findConfigFile(explicitConfigPath)
	if err != nil {
		return nil, "", err
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Unprefixed variables used by existing deployments.
	if cfg.SchemaPath == "" {
		cfg.SchemaPath = os.Getenv("QUERY_SCHEMA_PATH")
	}
	if cfg.Database.URL == "" && cfg.Database.Host == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}

	return &cfg, configPath, nil
}

// Default returns the configuration used when no file or environment is set.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("schema_path", "")

	v.SetDefault("database.driver", "pgx")
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "prefer")
	v.SetDefault("database.schemas", []string{"public"})
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.connect_timeout", "15s")

	defaults := querysql.DefaultOptions()
	v.SetDefault("compiler.param_style", "")
	v.SetDefault("compiler.quote_identifiers", false)
	v.SetDefault("compiler.max_depth", defaults.MaxDepth)
	v.SetDefault("compiler.max_joins", defaults.MaxJoins)
	v.SetDefault("compiler.max_in", defaults.MaxIn)
	v.SetDefault("compiler.max_limit", defaults.MaxLimit)
	v.SetDefault("compiler.strict_tables", false)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.query_timeout", "20s")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.basic_auth.username", "")
	v.SetDefault("server.basic_auth.password", "")

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.prefix", "specsql:")
	v.SetDefault("cache.ttl", "60s")

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.path", "specsql-audit.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func loadDotEnv() {
	if _, err := os.Stat(".env"); err == nil {
		// A malformed .env is ignored rather than failing every command.
		_ = godotenv.Load()
	}
	if _, err := os.Stat(".env.local"); err == nil {
		_ = godotenv.Overload(".env.local")
	}
}

// findConfigFile returns explicitPath if it exists. Otherwise it walks up
// from the working directory looking for specsql.yaml or specsql.yml,
// stopping at a .git directory or after maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}

	dir := cwd
	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range []string{"specsql.yaml", "specsql.yml"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil
}

// Options converts the compiler section into querysql.Options. An empty
// param_style falls back to the given driver default.
func (c CompilerConfig) Options(fallback querysql.ParamStyle) (querysql.Options, error) {
	opts := querysql.DefaultOptions()
	opts.ParamStyle = fallback
	if c.ParamStyle != "" {
		style, err := querysql.ParseParamStyle(c.ParamStyle)
		if err != nil {
			return querysql.Options{}, err
		}
		opts.ParamStyle = style
	}
	opts.QuoteIdentifiers = c.QuoteIdentifiers
	if c.MaxDepth > 0 {
		opts.MaxDepth = c.MaxDepth
	}
	if c.MaxJoins > 0 {
		opts.MaxJoins = c.MaxJoins
	}
	if c.MaxIn > 0 {
		opts.MaxIn = c.MaxIn
	}
	if c.MaxLimit > 0 {
		opts.MaxLimit = c.MaxLimit
	}
	opts.StrictTables = c.StrictTables
	return opts, opts.Validate()
}

// DSN returns the driver-specific connection string. database.url wins
// when set; otherwise the DSN is built from the discrete fields.
func (d DatabaseConfig) DSN() (string, error) {
	if d.URL != "" {
		return d.URL, nil
	}

	switch d.Driver {
	case "sqlite3":
		if d.Name == "" {
			return "", fmt.Errorf("database.name (file path) is required for sqlite3")
		}
		return d.Name, nil
	case "mysql":
		if err := d.requireNetworkFields(); err != nil {
			return "", err
		}
		mc := mysql.NewConfig()
		mc.User = d.User
		mc.Passwd = d.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
		mc.DBName = d.Name
		mc.Timeout = d.ConnectTimeout
		switch d.SSLMode {
		case "require", "verify-ca", "verify-full":
			mc.TLSConfig = "true"
		case "prefer":
			mc.TLSConfig = "preferred"
		}
		return mc.FormatDSN(), nil
	case "", "pgx", "postgres":
		if err := d.requireNetworkFields(); err != nil {
			return "", err
		}
		u := &url.URL{
			Scheme: "postgres",
			Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
			Path:   "/" + d.Name,
		}
		if d.Password != "" {
			u.User = url.UserPassword(d.User, d.Password)
		} else {
			u.User = url.User(d.User)
		}
		q := u.Query()
		if d.SSLMode != "" {
			q.Set("sslmode", d.SSLMode)
		}
		if d.ConnectTimeout > 0 {
			q.Set("connect_timeout", strconv.Itoa(int(d.ConnectTimeout.Seconds())))
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", d.Driver)
	}
}

func (d DatabaseConfig) requireNetworkFields() error {
	if d.Host == "" {
		return fmt.Errorf("database.host is required when database.url is not set")
	}
	if d.Name == "" {
		return fmt.Errorf("database.name is required when database.url is not set")
	}
	if d.User == "" {
		return fmt.Errorf("database.user is required when database.url is not set")
	}
	return nil
}
