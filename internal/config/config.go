package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Pass     PassConfig
	Secrets  Secrets
	Push     PushConfig
	Google   GoogleConfig
	Logo     LogoConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	// PublicBaseURL is the externally reachable origin embedded in issued passes.
	PublicBaseURL string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LogoTTL  time.Duration
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// PassConfig describes the issuer identity written into every pass.
type PassConfig struct {
	PassTypeID       string
	TeamID           string
	OrganizationName string
	Description      string
	AuthScheme       string
}

// SignerFormat selects how the signer secret is encoded.
type SignerFormat string

const (
	SignerFormatPEM    SignerFormat = "pem"
	SignerFormatPKCS12 SignerFormat = "p12"
)

// Secrets carries opaque secret material. It is loaded once and passed by value;
// nothing in the service reads secrets from the environment after startup.
type Secrets struct {
	WWDRCert             string
	SignerCert           string
	SignerPassphrase     string
	SignerFormat         SignerFormat
	GoogleServiceAccount string
	GoogleIssuerID       string
}

// PushConfig tunes the APNs push channel.
type PushConfig struct {
	APNsHost       string
	RequestTimeout time.Duration
	MaxConcurrency int
	Topic          string
}

// GoogleConfig tunes the Google Wallet REST channel.
type GoogleConfig struct {
	APIBaseURL string
	Scope      string
	Timeout    time.Duration
	Origins    []string
}

// LogoConfig bounds logo downloads.
type LogoConfig struct {
	FetchTimeout time.Duration
	MaxBytes     int64
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	logoTTL, err := getEnvAsDuration("REDIS_LOGO_TTL", time.Hour)
	if err != nil {
		return nil, err
	}
	pushTimeout, err := getEnvAsDuration("APNS_REQUEST_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	googleTimeout, err := getEnvAsDuration("GOOGLE_HTTP_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	logoTimeout, err := getEnvAsDuration("LOGO_FETCH_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	format := SignerFormat(strings.ToLower(getEnv("PASS_SIGNER_FORMAT", string(SignerFormatPEM))))
	if format != SignerFormatPEM && format != SignerFormatPKCS12 {
		return nil, fmt.Errorf("invalid PASS_SIGNER_FORMAT: %q", format)
	}

	passTypeID := getEnv("PASS_TYPE_IDENTIFIER", "pass.com.example.loyalty")

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "wallet-pass-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			PublicBaseURL:         strings.TrimRight(getEnv("APP_PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			LogoTTL:  logoTTL,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Pass: PassConfig{
			PassTypeID:       passTypeID,
			TeamID:           getEnv("PASS_TEAM_IDENTIFIER", ""),
			OrganizationName: getEnv("PASS_ORGANIZATION_NAME", "Loyalty"),
			Description:      getEnv("PASS_DESCRIPTION", "Loyalty card"),
			AuthScheme:       getEnv("PASS_AUTH_SCHEME", "ApplePass"),
		},
		Secrets: Secrets{
			WWDRCert:             os.Getenv("PASS_WWDR_CERT"),
			SignerCert:           os.Getenv("PASS_SIGNER_CERT"),
			SignerPassphrase:     os.Getenv("PASS_SIGNER_PASSPHRASE"),
			SignerFormat:         format,
			GoogleServiceAccount: os.Getenv("GOOGLE_SERVICE_ACCOUNT"),
			GoogleIssuerID:       os.Getenv("GOOGLE_ISSUER_ID"),
		},
		Push: PushConfig{
			APNsHost:       strings.TrimRight(getEnv("APNS_HOST", "https://api.push.apple.com"), "/"),
			RequestTimeout: pushTimeout,
			MaxConcurrency: getEnvAsInt("APNS_MAX_CONCURRENCY", 8),
			Topic:          getEnv("APNS_TOPIC", passTypeID),
		},
		Google: GoogleConfig{
			APIBaseURL: strings.TrimRight(getEnv("GOOGLE_WALLET_API_BASE_URL", "https://walletobjects.googleapis.com"), "/"),
			Scope:      getEnv("GOOGLE_WALLET_SCOPE", "https://www.googleapis.com/auth/wallet_object.issuer"),
			Timeout:    googleTimeout,
			Origins:    splitList(os.Getenv("GOOGLE_WALLET_ORIGINS")),
		},
		Logo: LogoConfig{
			FetchTimeout: logoTimeout,
			MaxBytes:     int64(getEnvAsInt("LOGO_MAX_BYTES", 2<<20)),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func splitList(val string) []string {
	if strings.TrimSpace(val) == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
