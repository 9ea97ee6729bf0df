package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv          string
	LogLevel        string // zerolog level name; empty keeps the APP_ENV default
	HTTPAddr        string
	MetricsAddr     string
	RequestTimeout  time.Duration
	MySQLDSN        string
	RedisAddr       string // empty disables the redis tier
	RedisDB         int
	RedisPass       string
	RedisMaxTTL     time.Duration
	ProviderBase    string
	ProviderKey     string
	ProviderRPS     int
	ProviderTimeout time.Duration
	CacheFreshness  time.Duration
	JitterSpread    float64
	AlertWebhookURL string // empty means log-only alerts
	WarmWorkers     int
}

// Load reads an optional .env file, then the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg(".env could not be parsed; using process env only")
	}

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	atof := func(k string, def float64) float64 {
		if v := os.Getenv(k); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
		return def
	}
	c := Config{
		AppEnv:          env("APP_ENV", "prod"),
		LogLevel:        env("LOG_LEVEL", ""),
		HTTPAddr:        env("HTTP_ADDR", ":8080"),
		MetricsAddr:     env("METRICS_ADDR", ""),
		RequestTimeout:  time.Duration(atoi("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
		MySQLDSN:        env("MYSQL_DSN", "root:root@tcp(localhost:3306)/rentalyzer?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:       env("REDIS_ADDR", ""),
		RedisPass:       env("REDIS_PASSWORD", ""),
		RedisDB:         atoi("REDIS_DB", 0),
		RedisMaxTTL:     time.Duration(atoi("REDIS_TTL_SECONDS", 3600)) * time.Second,
		ProviderBase:    env("PROVIDER_BASE_URL", "https://api.airdna.co/api/enterprise/v2"),
		ProviderKey:     env("PROVIDER_API_KEY", ""),
		ProviderRPS:     atoi("PROVIDER_RPS", 5),
		ProviderTimeout: time.Duration(atoi("PROVIDER_TIMEOUT_SECONDS", 20)) * time.Second,
		CacheFreshness:  time.Duration(atoi("CACHE_FRESHNESS_DAYS", 30)) * 24 * time.Hour,
		JitterSpread:    atof("JITTER_SPREAD", 0.01),
		AlertWebhookURL: env("ALERT_WEBHOOK_URL", ""),
		WarmWorkers:     atoi("WARM_WORKERS", 4),
	}
	if c.ProviderKey == "" {
		log.Warn().Msg("PROVIDER_API_KEY is empty")
	}
	if c.RequestTimeout <= c.ProviderTimeout {
		c.RequestTimeout = c.ProviderTimeout + 5*time.Second
		log.Warn().Dur("request_timeout", c.RequestTimeout).Msg("request timeout raised above provider timeout")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
