package liftoff

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tfkr-ae/liftoff/upstream"
)

// Config is the service configuration, read from config.yaml in the config directory.
type Config struct {
	viper             *viper.Viper
	ConfigDir         string        `mapstructure:"config_dir"`         // Directory holding config.yaml and the audit database
	Address           string        `mapstructure:"address"`            // Listen address
	Port              string        `mapstructure:"port"`               // Listen port
	UpstreamURL       string        `mapstructure:"upstream_url"`       // Launch listing URL
	UpstreamTimeout   time.Duration `mapstructure:"upstream_timeout"`   // Upstream request timeout, 0 for none
	ChromeFingerprint bool          `mapstructure:"chrome_fingerprint"` // Dial upstream with a Chrome TLS fingerprint
	AuditEnabled      bool          `mapstructure:"audit_enabled"`      // Persist fetches and logs
	DBName            string        `mapstructure:"db_name"`            // Audit database file name
	SessionTTL        time.Duration `mapstructure:"session_ttl"`        // Lifetime of an idle dashboard session
	SessionLimit      int           `mapstructure:"session_limit"`      // Maximum number of live sessions
	PrettyHTML        bool          `mapstructure:"pretty_html"`        // Indent rendered pages
	TLSCert           string        `mapstructure:"tls_cert"`           // Certificate file, enables HTTPS on the same port
	TLSKey            string        `mapstructure:"tls_key"`            // Key file for TLSCert
	LogLevel          string        `mapstructure:"log_level"`          // debug, info, warn or error
}

// DefaultConfig returns the configuration used when no file overrides it.
func DefaultConfig() *Config {
	return &Config{
		Address:      "127.0.0.1",
		Port:         "8080",
		UpstreamURL:  upstream.DefaultURL,
		AuditEnabled: true,
		DBName:       "liftoff.db",
		SessionTTL:   30 * time.Minute,
		SessionLimit: 1024,
		LogLevel:     "info",
	}
}

// LoadConfig reads config.yaml from appConfigDir, creating the directory and writing
// the defaults when they are missing. LIFTOFF_* environment variables override the file.
func LoadConfig(appConfigDir string) (*Config, error) {
	_, err := os.ReadDir(appConfigDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("checking if directory exists %s: %w", appConfigDir, err)
		}
		if err := os.MkdirAll(appConfigDir, 0700); err != nil {
			return nil, fmt.Errorf("creating config dir %s: %w", appConfigDir, err)
		}
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(appConfigDir)
	v.SetEnvPrefix("liftoff")
	v.AutomaticEnv()
	setDefaults(v)

	err = v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file : %w", err)
		}
		if err := v.SafeWriteConfig(); err != nil {
			return nil, fmt.Errorf("writing config file : %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config to struct : %w", err)
	}
	cfg.viper = v
	cfg.ConfigDir = appConfigDir
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()
	v.SetDefault("address", defaults.Address)
	v.SetDefault("port", defaults.Port)
	v.SetDefault("upstream_url", defaults.UpstreamURL)
	v.SetDefault("upstream_timeout", "0s")
	v.SetDefault("chrome_fingerprint", false)
	v.SetDefault("audit_enabled", defaults.AuditEnabled)
	v.SetDefault("db_name", defaults.DBName)
	v.SetDefault("session_ttl", defaults.SessionTTL.String())
	v.SetDefault("session_limit", defaults.SessionLimit)
	v.SetDefault("pretty_html", false)
	v.SetDefault("tls_cert", "")
	v.SetDefault("tls_key", "")
	v.SetDefault("log_level", defaults.LogLevel)
}

// Set stores a single key and rewrites the config file.
func (cfg *Config) Set(key string, value any) error {
	if cfg.viper == nil {
		return fmt.Errorf("config %s is not backed by a file", key)
	}
	cfg.viper.Set(key, value)
	if err := cfg.viper.WriteConfig(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	if err := cfg.viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unmarshalling config to struct : %w", err)
	}
	return nil
}

// Settings returns every key with its effective value.
func (cfg *Config) Settings() map[string]any {
	if cfg.viper == nil {
		v := viper.New()
		setDefaults(v)
		return v.AllSettings()
	}
	return cfg.viper.AllSettings()
}

// Level parses LogLevel, unknown values map to info.
func (cfg *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(cfg.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Addr returns the listen address in host:port form.
func (cfg *Config) Addr() string {
	return net.JoinHostPort(cfg.Address, cfg.Port)
}
