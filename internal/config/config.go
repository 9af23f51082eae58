// Package config loads runtime configuration.
//
// SOURCES (later wins):
//  1. built-in defaults
//  2. config.yaml in ./ or ./configs (optional)
//  3. a .env file in the working directory (optional, copied into the environment)
//  4. environment variables: BLOOD_SERVER_PORT, BLOOD_AUTH_JWT_SECRET, ...
//     plus the short names deploy platforms usually set (PORT, DB_PATH, JWT_SECRET, ...)
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	GitHub   GitHubConfig   `mapstructure:"github"`
	Redis    RedisConfig    `mapstructure:"redis"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	StaticDir string `mapstructure:"static_dir"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	// CookieSecure should be true whenever the site is served over HTTPS.
	CookieSecure bool `mapstructure:"cookie_secure"`
	// The admin account is created at startup when no admin exists yet.
	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`
}

type GitHubConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	CallbackURL  string `mapstructure:"callback_url"`
}

// Enabled reports whether GitHub sign-in is configured.
func (g GitHubConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type RedisConfig struct {
	// URL selects the Redis session store when set. Empty means in-memory sessions.
	URL string `mapstructure:"url"`
}

type NATSConfig struct {
	// URL enables event publishing when set.
	URL string `mapstructure:"url"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// SlogLevel converts the configured level name to a slog.Level.
func (l LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Load reads configuration from the working directory and the environment.
func Load() (*Config, error) {
	return load(viper.New(), ".env", ".", "./configs")
}

func load(v *viper.Viper, envFile string, configDirs ...string) (*Config, error) {
	if envFile != "" {
		// godotenv never overrides variables that are already set.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: reading %s: %w", envFile, err)
		}
	}

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, dir := range configDirs {
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix("BLOOD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Short aliases. BindEnv with explicit names skips the prefix, so the
	// prefixed name is listed first.
	v.BindEnv("server.port", "BLOOD_SERVER_PORT", "PORT")
	v.BindEnv("database.path", "BLOOD_DATABASE_PATH", "DB_PATH")
	v.BindEnv("auth.jwt_secret", "BLOOD_AUTH_JWT_SECRET", "JWT_SECRET")
	v.BindEnv("redis.url", "BLOOD_REDIS_URL", "REDIS_URL")
	v.BindEnv("nats.url", "BLOOD_NATS_URL", "NATS_URL")
	v.BindEnv("github.client_id", "BLOOD_GITHUB_CLIENT_ID", "GITHUB_CLIENT_ID")
	v.BindEnv("github.client_secret", "BLOOD_GITHUB_CLIENT_SECRET", "GITHUB_CLIENT_SECRET")
	v.BindEnv("github.callback_url", "BLOOD_GITHUB_CALLBACK_URL", "GITHUB_CALLBACK_URL")
	v.BindEnv("log.level", "BLOOD_LOG_LEVEL", "LOG_LEVEL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}

	if cfg.GitHub.CallbackURL == "" {
		cfg.GitHub.CallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Server.Port)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key. AutomaticEnv only fills keys viper already
// knows about when unmarshaling, so even empty defaults matter.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.static_dir", "web/dist")
	v.SetDefault("database.path", "data/blood.db")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.session_ttl", 12*time.Hour)
	v.SetDefault("auth.cookie_secure", false)
	v.SetDefault("auth.admin_email", "")
	v.SetDefault("auth.admin_password", "")
	v.SetDefault("github.client_id", "")
	v.SetDefault("github.client_secret", "")
	v.SetDefault("github.callback_url", "")
	v.SetDefault("redis.url", "")
	v.SetDefault("nats.url", "")
	v.SetDefault("log.level", "info")
}

// Validate rejects configurations the server cannot run safely with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return errors.New("config: database.path must not be empty")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("config: auth.jwt_secret (JWT_SECRET) must be at least 16 characters")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("config: auth.session_ttl must be positive, got %s", c.Auth.SessionTTL)
	}
	if (c.Auth.AdminEmail == "") != (c.Auth.AdminPassword == "") {
		return errors.New("config: auth.admin_email and auth.admin_password must be set together")
	}
	if c.Auth.AdminPassword != "" && len(c.Auth.AdminPassword) < 8 {
		return errors.New("config: auth.admin_password must be at least 8 characters")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log.level %q", c.Log.Level)
	}
	return nil
}
