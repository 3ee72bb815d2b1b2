package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	ServerPort string
	JWTSecret  string
	JWTTTL     time.Duration

	StoreDriver    string
	MigrateOnStart bool

	LogLevel string
	LogFile  string

	WorkflowTemplatesFile string

	NotifyBreakerFailures uint32
	NotifyBreakerTimeout  time.Duration

	AdminBypass bool
}

// Load reads the optional env file and then the process environment.
// An empty envFile means ".env" in the working directory.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		logrus.Warnf("⚠️  No %s file found, using system environment variables", envFile)
	}

	cfg := &Config{
		DBHost:                getEnv("DB_HOST", "localhost"),
		DBPort:                getEnv("DB_PORT", "5432"),
		DBUser:                getEnv("DB_USER", "taskflow"),
		DBPassword:            getEnv("DB_PASSWORD", "taskflow"),
		DBName:                getEnv("DB_NAME", "taskflow"),
		ServerPort:            getEnv("SERVER_PORT", "8080"),
		JWTSecret:             getEnv("JWT_SECRET", "supersecretkey"),
		StoreDriver:           getEnv("STORE_DRIVER", StoreDriverPostgres),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFile:               getEnv("LOG_FILE", ""),
		WorkflowTemplatesFile: getEnv("WORKFLOW_TEMPLATES_FILE", ""),
	}

	var err error
	if cfg.JWTTTL, err = getDuration("JWT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.MigrateOnStart, err = getBool("MIGRATE_ON_START", false); err != nil {
		return nil, err
	}
	if cfg.AdminBypass, err = getBool("ADMIN_BYPASS", false); err != nil {
		return nil, err
	}
	if cfg.NotifyBreakerTimeout, err = getDuration("NOTIFY_BREAKER_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	failures, err := getUint("NOTIFY_BREAKER_FAILURES", 3)
	if err != nil {
		return nil, err
	}
	cfg.NotifyBreakerFailures = failures

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.NotifyBreakerFailures == 0 {
		return fmt.Errorf("NOTIFY_BREAKER_FAILURES must be positive")
	}
	return nil
}

// DSN is the postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName,
	)
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getUint(key string, defaultVal uint32) (uint32, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return uint32(n), nil
}
