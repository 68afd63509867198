package config

import "time"

// Auth modes.
const (
	// AuthModeAPIKey: the operator enters a service URL and API key at login;
	// they are validated against /health/checkCreds and persisted in the session.
	AuthModeAPIKey = "apikey"
	// AuthModePassword: a single configured username and bcrypt hash; the
	// service URL and key come from configuration.
	AuthModePassword = "password"
)

// Session store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Server  ServerConfig  `mapstructure:"server"`
	API     APIConfig     `mapstructure:"api"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Session SessionConfig `mapstructure:"session"`
	Logging LoggingConfig `mapstructure:"logging"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	List    ListConfig    `mapstructure:"list"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// APIConfig is the build-time submission service endpoint. In apikey auth mode
// it pre-fills the login form, and AllowedURLs lists the endpoints an operator
// may log in against (defaulting to URL).
type APIConfig struct {
	URL         string        `mapstructure:"url"`
	Key         string        `mapstructure:"key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	AllowedURLs []string      `mapstructure:"allowed_urls"`
}

type AuthConfig struct {
	Mode          string        `mapstructure:"mode"`
	Username      string        `mapstructure:"username"`
	PasswordHash  string        `mapstructure:"password_hash"`
	SessionSecret string        `mapstructure:"session_secret"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	CookieSecure  bool          `mapstructure:"cookie_secure"`
}

type SessionConfig struct {
	Store     string      `mapstructure:"store"`
	KeyPrefix string      `mapstructure:"key_prefix"`
	Redis     RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	GelfAddr string `mapstructure:"gelf_addr"`
}

type MonitorConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type ListConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
}
