package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"

	minHMACKeyLength = 32
)

var ErrMissingHMACKey = errors.New("HMAC_KEY environment variable is not set")

type Config struct {
	AppName  string
	AppEnv   string
	AppHost  string
	AppPort  string
	LogLevel string

	DB        DBConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	Worker    WorkerConfig
}

type DBConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	URL           string
	Host          string
	Port          string
	RedisPassword string
	RedisDB       string
}

type RabbitMQConfig struct {
	URL string
}

type SessionConfig struct {
	HMACKey    string
	TTL        time.Duration
	CookieName string
}

type RateLimitConfig struct {
	Capacity   int
	RefillRate float64
}

type WorkerConfig struct {
	Count       int
	MetricsPort string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppName:  getEnv("APP_NAME", "todo_app"),
		AppEnv:   getEnv("APP_ENV", EnvDevelopment),
		AppHost:  getEnv("APP_HOST", "0.0.0.0"),
		AppPort:  getEnv("APP_PORT", "8087"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DB: loadDBConfig(),

		Redis: RedisConfig{
			URL:           os.Getenv("REDIS_URL"),
			Host:          getEnv("REDIS_HOST", "localhost"),
			Port:          getEnv("REDIS_PORT", "6379"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisDB:       getEnv("REDIS_DB", "0"),
		},

		RabbitMQ: RabbitMQConfig{
			URL: os.Getenv("RABBITMQ_URL"),
		},

		Worker: WorkerConfig{
			MetricsPort: getEnv("WORKER_METRICS_PORT", "8088"),
		},

		Session: SessionConfig{
			HMACKey:    os.Getenv("HMAC_KEY"),
			CookieName: getEnv("SESSION_COOKIE_NAME", "todo_session"),
		},
	}

	var err error
	if cfg.Session.TTL, err = getEnvDuration("SESSION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RateLimit.Capacity, err = getEnvInt("LOGIN_RATE_CAPACITY", 10); err != nil {
		return nil, err
	}
	if cfg.RateLimit.RefillRate, err = getEnvFloat("LOGIN_RATE_REFILL", 1.0); err != nil {
		return nil, err
	}
	if cfg.Worker.Count, err = getEnvInt("WORKER_COUNT", 3); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDB reads only the database settings. Tools that touch nothing but
// the schema use it so they do not need the session secret.
func LoadDB() DBConfig {
	_ = godotenv.Load()
	return loadDBConfig()
}

func loadDBConfig() DBConfig {
	return DBConfig{
		URL:      os.Getenv("DATABASE_URL"),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: os.Getenv("DB_PASSWORD"),
		Name:     getEnv("DB_NAME", "todo"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
}

func (c *Config) validate() error {
	switch c.AppEnv {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		return fmt.Errorf("invalid APP_ENV %q", c.AppEnv)
	}

	if c.Session.HMACKey == "" {
		return ErrMissingHMACKey
	}
	if len(c.Session.HMACKey) < minHMACKeyLength {
		return fmt.Errorf("HMAC_KEY must be at least %d bytes", minHMACKeyLength)
	}
	if c.Session.TTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.RateLimit.Capacity <= 0 || c.RateLimit.RefillRate <= 0 {
		return errors.New("login rate limit capacity and refill rate must be positive")
	}
	if c.Worker.Count <= 0 {
		return errors.New("WORKER_COUNT must be positive")
	}
	return nil
}

// IsProduction reports whether cookies must be marked Secure.
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return c.AppHost + ":" + c.AppPort
}

// DSN returns the Postgres connection string. DATABASE_URL takes precedence.
func (c *DBConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// String returns a representation of the config with secrets masked.
func (c *Config) String() string {
	return fmt.Sprintf("Config{App: %s (%s) on %s, DB: %s/%s, Redis: %s, RabbitMQ: %t, Session: %s ttl=%s key=***}",
		c.AppName, c.AppEnv, c.Addr(),
		c.DB.Host, c.DB.Name,
		c.Redis.Host+":"+c.Redis.Port,
		c.RabbitMQ.URL != "",
		c.Session.CookieName, c.Session.TTL)
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultVal, nil
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return intVal, nil
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number for %s: %w", key, err)
	}
	return f, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}
