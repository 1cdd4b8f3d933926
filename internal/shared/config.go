package shared

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	AuthJWT    = "jwt"
	AuthRemote = "remote"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string

	StoreDriver string
	MySQLDSN    string
	PostgresDSN string

	RedisAddr string
	RedisDB   int
	RedisPass string
	CacheTTL  time.Duration

	AuthMode      string
	AuthJWTSecret string
	AuthAudience  string
	AuthBaseURL   string
	AuthAPIKey    string
	AuthRPS       int

	RatingWorkers  int
	RequestTimeout time.Duration
	AuditInterval  time.Duration // 0 disables the in-process audit loop
}

func Load() Config {
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),

		StoreDriver: strings.ToLower(env("STORE_DRIVER", DriverMySQL)),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/hoodrate?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		PostgresDSN: env("POSTGRES_DSN", ""),

		RedisAddr: env("REDIS_ADDR", "localhost:6379"),
		RedisPass: env("REDIS_PASSWORD", ""),
		RedisDB:   atoi("REDIS_DB", 0),
		CacheTTL:  time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,

		AuthMode:      strings.ToLower(env("AUTH_MODE", AuthJWT)),
		AuthJWTSecret: env("AUTH_JWT_SECRET", ""),
		AuthAudience:  env("AUTH_AUDIENCE", "authenticated"),
		AuthBaseURL:   env("AUTH_BASE_URL", ""),
		AuthAPIKey:    env("AUTH_API_KEY", ""),
		AuthRPS:       atoi("AUTH_RPS", 20),

		RatingWorkers:  atoi("RATING_WORKERS", 8),
		RequestTimeout: time.Duration(atoi("REQUEST_TIMEOUT_SECONDS", 15)) * time.Second,
		AuditInterval:  time.Duration(atoi("AUDIT_INTERVAL_SECONDS", 0)) * time.Second,
	}
	if c.AuthMode == AuthJWT && c.AuthJWTSecret == "" {
		log.Warn().Msg("AUTH_JWT_SECRET is empty")
	}
	return c
}

// Validate reports settings that would make a command fail later at startup.
// needAuth is false for batch commands that never resolve tokens.
func (c Config) Validate(needAuth bool) error {
	var errs []error
	switch c.StoreDriver {
	case DriverMySQL:
		if c.MySQLDSN == "" {
			errs = append(errs, errors.New("MYSQL_DSN is required for STORE_DRIVER=mysql"))
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for STORE_DRIVER=postgres"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if needAuth {
		switch c.AuthMode {
		case AuthJWT:
			if c.AuthJWTSecret == "" {
				errs = append(errs, errors.New("AUTH_JWT_SECRET is required for AUTH_MODE=jwt"))
			}
		case AuthRemote:
			if c.AuthBaseURL == "" || c.AuthAPIKey == "" {
				errs = append(errs, errors.New("AUTH_BASE_URL and AUTH_API_KEY are required for AUTH_MODE=remote"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode))
		}
	}
	if c.RatingWorkers <= 0 {
		errs = append(errs, errors.New("RATING_WORKERS must be positive"))
	}
	return errors.Join(errs...)
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
