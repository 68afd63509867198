package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides: api.url -> FSDASH_API_URL.
const EnvPrefix = "FSDASH"

// Load reads configs/config.yaml (and config.<env>.yaml when present) from the
// usual locations, applies environment overrides and validates the result.
// A missing config file is not an error.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("read base config: %w", err)
		}
	}

	env := os.Getenv(EnvPrefix + "_APP_ENVIRONMENT")
	if env != "" {
		v.SetConfigName("config." + env)
		_ = v.MergeInConfig()
	}

	return finish(v)
}

// LoadFromFile loads configuration from an explicit path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	return finish(v)
}

// LoadAPI reads only the api section, without the server-side validation.
// An empty path searches the same locations as Load.
func LoadAPI(path string) (APIConfig, error) {
	loadEnvFile()

	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &nf) {
			return APIConfig{}, fmt.Errorf("read config: %w", err)
		}
	}
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return APIConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	applyDefaults(&cfg)
	return cfg.API, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys absent
// from the file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "fsdash")
	v.SetDefault("app.environment", "development")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.refresh_interval", 30*time.Second)
	v.SetDefault("api.url", "")
	v.SetDefault("api.key", "")
	v.SetDefault("api.timeout", 15*time.Second)
	v.SetDefault("api.allowed_urls", []string{})
	v.SetDefault("auth.mode", AuthModeAPIKey)
	v.SetDefault("auth.username", "")
	v.SetDefault("auth.password_hash", "")
	v.SetDefault("auth.session_secret", "")
	v.SetDefault("auth.session_ttl", 24*time.Hour)
	v.SetDefault("auth.cookie_secure", false)
	v.SetDefault("session.store", StoreMemory)
	v.SetDefault("session.key_prefix", "fsdash:session:")
	v.SetDefault("session.redis.address", "")
	v.SetDefault("session.redis.password", "")
	v.SetDefault("session.redis.db", 0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.gelf_addr", "")
	v.SetDefault("monitor.interval", 10*time.Second)
	v.SetDefault("list.default_limit", 10)
}

func loadEnvFile() {
	candidates := []string{".env", "../.env", "../../.env"}
	if root := findProjectRoot(); root != "" {
		candidates = append(candidates, filepath.Join(root, ".env"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		s, ok := v.Get(key).(string)
		if !ok || !strings.Contains(s, "$") {
			continue
		}
		if expanded := os.ExpandEnv(s); expanded != s {
			v.Set(key, expanded)
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.RefreshInterval <= 0 {
		cfg.Server.RefreshInterval = 30 * time.Second
	}
	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = 15 * time.Second
	}
	cfg.API.URL = strings.TrimRight(strings.TrimSpace(cfg.API.URL), "/")
	allowed := cfg.API.AllowedURLs[:0]
	for _, u := range cfg.API.AllowedURLs {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			allowed = append(allowed, u)
		}
	}
	cfg.API.AllowedURLs = allowed
	if len(cfg.API.AllowedURLs) == 0 && cfg.API.URL != "" {
		cfg.API.AllowedURLs = []string{cfg.API.URL}
	}
	if cfg.Auth.Mode == "" {
		cfg.Auth.Mode = AuthModeAPIKey
	}
	if cfg.Auth.SessionTTL <= 0 {
		cfg.Auth.SessionTTL = 24 * time.Hour
	}
	if cfg.Session.Store == "" {
		cfg.Session.Store = StoreMemory
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Monitor.Interval <= 0 {
		cfg.Monitor.Interval = 10 * time.Second
	}
	if cfg.List.DefaultLimit <= 0 {
		cfg.List.DefaultLimit = 10
	}
}

// Validate checks the combinations the server cannot start without.
func Validate(cfg *Config) error {
	if cfg.Auth.SessionSecret == "" {
		return errors.New("auth.session_secret is required")
	}
	switch cfg.Auth.Mode {
	case AuthModeAPIKey:
		if len(cfg.API.AllowedURLs) == 0 {
			return errors.New("api.allowed_urls or api.url is required in apikey mode")
		}
	case AuthModePassword:
		if cfg.Auth.Username == "" || cfg.Auth.PasswordHash == "" {
			return errors.New("auth.username and auth.password_hash are required in password mode")
		}
		if cfg.API.URL == "" {
			return errors.New("api.url is required in password mode")
		}
	default:
		return fmt.Errorf("auth.mode must be %q or %q, got %q", AuthModeAPIKey, AuthModePassword, cfg.Auth.Mode)
	}
	switch cfg.Session.Store {
	case StoreMemory:
	case StoreRedis:
		if cfg.Session.Redis.Address == "" {
			return errors.New("session.redis.address is required for the redis store")
		}
	default:
		return fmt.Errorf("session.store must be %q or %q, got %q", StoreMemory, StoreRedis, cfg.Session.Store)
	}
	return nil
}
