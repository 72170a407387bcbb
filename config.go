package magi

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names accepted by the rate-limit and counter sections.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Provider kinds.
const (
	KindGemini = "gemini"
	KindOpenAI = "openai"
)

// Config is the top-level service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Providers ProvidersConfig `yaml:"providers"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Counter   CounterConfig   `yaml:"counter"`
	Redis     RedisConfig     `yaml:"redis"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Contact   ContactConfig   `yaml:"contact"`
	Profile   ProfileConfig   `yaml:"profile"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// ProvidersConfig holds the two generative links of the chain.
type ProvidersConfig struct {
	Primary   ProviderConfig `yaml:"primary"`
	Secondary ProviderConfig `yaml:"secondary"`
}

// ProviderConfig configures a single generative provider.
type ProviderConfig struct {
	Kind        string        `yaml:"kind"`
	Name        string        `yaml:"name"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Auth        Auth          `yaml:"auth"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature *float64      `yaml:"temperature"`
	MaxTokens   *int          `yaml:"max_tokens"`
}

type RateLimitConfig struct {
	Backend       string        `yaml:"backend"`
	MaxTokens     int           `yaml:"max_tokens"`
	Window        time.Duration `yaml:"window"`
	StaleAfter    time.Duration `yaml:"stale_after"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	KeyPrefix     string        `yaml:"key_prefix"`
}

type CounterConfig struct {
	Backend    string `yaml:"backend"`
	Key        string `yaml:"key"`
	Fallback   int64  `yaml:"fallback"`
	CookieName string `yaml:"cookie_name"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type ContactConfig struct {
	ResendAPIKey  string  `yaml:"resend_api_key"`
	BaseURL       string  `yaml:"base_url"`
	From          string  `yaml:"from"`
	To            string  `yaml:"to"`
	RatePerSecond float64 `yaml:"rate_per_second"`
}

type ProfileConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// DefaultConfig returns the configuration used when no file is given.
// Credentials are taken from the environment.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Providers: ProvidersConfig{
			Primary: ProviderConfig{
				Kind:    KindGemini,
				Name:    "gemini",
				Model:   "gemini-2.0-flash-lite",
				Auth:    Auth{APIKey: os.Getenv("GEMINI_API_KEY")},
				Timeout: DefaultProviderTimeout,
			},
			Secondary: ProviderConfig{
				Kind:        KindOpenAI,
				Name:        "groq",
				BaseURL:     "https://api.groq.com/openai/v1",
				Model:       "llama-3.3-70b-versatile",
				Auth:        Auth{APIKey: os.Getenv("GROQ_API_KEY")},
				Timeout:     DefaultProviderTimeout,
				Temperature: Float64Ptr(0.6),
				MaxTokens:   IntPtr(400),
			},
		},
		RateLimit: RateLimitConfig{
			Backend:       BackendMemory,
			MaxTokens:     3,
			Window:        time.Minute,
			StaleAfter:    5 * time.Minute,
			SweepInterval: 5 * time.Minute,
			KeyPrefix:     "magi:ratelimit:",
		},
		Counter: CounterConfig{
			Backend:    BackendMemory,
			Key:        "portfolio_visits",
			Fallback:   1024,
			CookieName: "magi_visit",
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		SQLite: SQLiteConfig{
			Path: "magi.db",
		},
		Contact: ContactConfig{
			ResendAPIKey:  os.Getenv("RESEND_API_KEY"),
			From:          "Portfolio <onboarding@resend.dev>",
			To:            os.Getenv("CONTACT_EMAIL"),
			RatePerSecond: 2,
		},
	}
}

// LoadConfig reads and parses a YAML config file on top of DefaultConfig.
// Environment variables in the format ${VAR} are expanded before parsing.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("magi: read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("magi: parse config: %w", err)
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ApplyDefaults fills zero-valued tunables from DefaultConfig. Credentials
// and addresses are left alone.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()

	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}

	for _, p := range []*ProviderConfig{&c.Providers.Primary, &c.Providers.Secondary} {
		if p.Timeout == 0 {
			p.Timeout = DefaultProviderTimeout
		}
		if p.Name == "" {
			p.Name = p.Kind
		}
	}

	rl := &c.RateLimit
	if rl.Backend == "" {
		rl.Backend = d.RateLimit.Backend
	}
	if rl.MaxTokens == 0 {
		rl.MaxTokens = d.RateLimit.MaxTokens
	}
	if rl.Window == 0 {
		rl.Window = d.RateLimit.Window
	}
	if rl.StaleAfter == 0 {
		rl.StaleAfter = d.RateLimit.StaleAfter
	}
	if rl.SweepInterval == 0 {
		rl.SweepInterval = d.RateLimit.SweepInterval
	}
	if rl.KeyPrefix == "" {
		rl.KeyPrefix = d.RateLimit.KeyPrefix
	}

	if c.Counter.Backend == "" {
		c.Counter.Backend = d.Counter.Backend
	}
	if c.Counter.Key == "" {
		c.Counter.Key = d.Counter.Key
	}
	if c.Counter.Fallback == 0 {
		c.Counter.Fallback = d.Counter.Fallback
	}
	if c.Counter.CookieName == "" {
		c.Counter.CookieName = d.Counter.CookieName
	}

	if c.Contact.From == "" {
		c.Contact.From = d.Contact.From
	}
	if c.Contact.RatePerSecond == 0 {
		c.Contact.RatePerSecond = d.Contact.RatePerSecond
	}
}

// Validate checks the config for required fields and consistency.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("magi: config: server.addr is required")
	}

	for name, p := range map[string]ProviderConfig{
		"primary":   c.Providers.Primary,
		"secondary": c.Providers.Secondary,
	} {
		if p.Kind != KindGemini && p.Kind != KindOpenAI {
			return fmt.Errorf("magi: config: providers.%s: invalid kind %q", name, p.Kind)
		}
		if p.Model == "" {
			return fmt.Errorf("magi: config: providers.%s: model is required", name)
		}
		if p.Kind == KindOpenAI && p.BaseURL == "" {
			return fmt.Errorf("magi: config: providers.%s: base_url is required for kind %q", name, p.Kind)
		}
		if p.Timeout < 0 {
			return fmt.Errorf("magi: config: providers.%s: timeout must not be negative", name)
		}
	}

	switch c.RateLimit.Backend {
	case BackendMemory, BackendRedis, BackendPostgres:
	default:
		return fmt.Errorf("magi: config: rate_limit: invalid backend %q", c.RateLimit.Backend)
	}
	if c.RateLimit.MaxTokens <= 0 {
		return fmt.Errorf("magi: config: rate_limit: max_tokens must be positive")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("magi: config: rate_limit: window must be positive")
	}

	switch c.Counter.Backend {
	case BackendMemory, BackendRedis, BackendPostgres, BackendSQLite:
	default:
		return fmt.Errorf("magi: config: counter: invalid backend %q", c.Counter.Backend)
	}
	if c.Counter.Key == "" {
		return fmt.Errorf("magi: config: counter: key is required")
	}

	if c.uses(BackendRedis) && c.Redis.Addr == "" {
		return fmt.Errorf("magi: config: redis.addr is required by the redis backend")
	}
	if c.uses(BackendPostgres) && c.Postgres.DSN == "" {
		return fmt.Errorf("magi: config: postgres.dsn is required by the postgres backend")
	}
	if c.Counter.Backend == BackendSQLite && c.SQLite.Path == "" {
		return fmt.Errorf("magi: config: sqlite.path is required by the sqlite backend")
	}

	if c.Contact.ResendAPIKey != "" && c.Contact.To == "" {
		return fmt.Errorf("magi: config: contact.to is required when resend_api_key is set")
	}
	if c.Profile.Watch && c.Profile.Path == "" {
		return fmt.Errorf("magi: config: profile.watch requires profile.path")
	}

	return nil
}

func (c Config) uses(backend string) bool {
	return c.RateLimit.Backend == backend || c.Counter.Backend == backend
}
