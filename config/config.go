// Package config reads server settings from the environment, after loading
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/warp/vagas-engine/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Port   int
	Driver string

	SQLitePath string

	// DatabaseURL wins over the DB_* parts when set.
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string

	LogMode        string
	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
}

// LoadDotEnv loads path (".env" when empty) into the process environment.
// Variables already set are kept. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Load reads every key, falling back to defaults. log may be nil.
func Load(log *logger.Logger) (Config, error) {
	cfg := Config{
		Port:           getEnvAsInt("PORT", 8080, log),
		Driver:         strings.ToLower(getEnv("DB_DRIVER", DriverSQLite, log)),
		SQLitePath:     getEnv("SQLITE_PATH", "vagas.db", log),
		DatabaseURL:    getEnv("DATABASE_URL", "", log),
		DBHost:         getEnv("DB_HOST", "localhost", log),
		DBPort:         getEnv("DB_PORT", "5432", log),
		DBUser:         getEnv("DB_USER", "postgres", log),
		DBPassword:     getEnv("DB_PASSWORD", "", log),
		DBName:         getEnv("DB_NAME", "vagas", log),
		LogMode:        getEnv("LOG_MODE", "dev", log),
		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 10, log),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 20, log),
		CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "*", log)),
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch c.Driver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
	default:
		return fmt.Errorf("unknown DB_DRIVER %q (want %s or %s)", c.Driver, DriverSQLite, DriverPostgres)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return errors.New("rate limit values must not be negative")
	}
	return nil
}

// PostgresDSN returns DatabaseURL, or a URL assembled from the DB_* parts.
func (c Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.DBHost, c.DBPort),
		Path:   "/" + c.DBName,
	}
	if c.DBPassword != "" {
		u.User = url.UserPassword(c.DBUser, c.DBPassword)
	} else {
		u.User = url.User(c.DBUser)
	}
	return u.String()
}

// =============================================================================
// ENV HELPERS
// =============================================================================

func getEnv(key, defaultVal string, log *logger.Logger) string {
	val, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(val) == "" {
		if log != nil {
			log.Debug("Environment variable not found, using default", "env_var", key, "default", defaultVal)
		}
		return defaultVal
	}
	return strings.TrimSpace(val)
}

func getEnvAsInt(key string, defaultVal int, log *logger.Logger) int {
	raw := getEnv(key, "", log)
	if raw == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(raw)
	if err != nil {
		if log != nil {
			log.Warn("Environment variable could not be parsed as int, using default",
				"env_var", key, "providedVal", raw, "defaultVal", defaultVal, "error", err)
		}
		return defaultVal
	}
	return i
}

func getEnvAsFloat(key string, defaultVal float64, log *logger.Logger) float64 {
	raw := getEnv(key, "", log)
	if raw == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		if log != nil {
			log.Warn("Environment variable could not be parsed as float, using default",
				"env_var", key, "providedVal", raw, "defaultVal", defaultVal, "error", err)
		}
		return defaultVal
	}
	return f
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
