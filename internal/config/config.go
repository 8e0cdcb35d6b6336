package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Default Cloudflare edge ranges, used to decide whether the CDN-forwarded
// address header can be trusted. Override with NOTIFY_CLOUDFLARE_RANGES.
var defaultCloudflareRanges = []string{
	"173.245.48.0/20",
	"103.21.244.0/22",
	"103.22.200.0/22",
	"103.31.4.0/22",
	"141.101.64.0/18",
	"108.162.192.0/18",
	"190.93.240.0/20",
	"188.114.96.0/20",
	"197.234.240.0/22",
	"198.41.128.0/17",
	"162.158.0.0/15",
	"104.16.0.0/13",
	"104.24.0.0/14",
	"172.64.0.0/13",
	"131.0.72.0/22",
}

// Default gateway notification source. Override with NOTIFY_ALLOWED_RANGES
// when the processor announces new egress addresses.
var defaultNotificationRanges = []string{"3.250.209.64"}

// Config holds all application configuration
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Gateway      GatewayConfig
	JWT          JWTConfig
	Notification NotificationConfig
	Cron         CronConfig
	Auth         AuthConfig
	Secrets      SecretsConfig
	Logger       LoggerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port        int
	Host        string
	MetricsPort int
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// GatewayConfig holds the Trust Payments Webservices credentials. Live and
// test sites carry separate site references; Mode selects which pair is in
// effect.
type GatewayConfig struct {
	Mode          string // "live" or "test"
	BaseURL       string
	Alias         string
	Username      string
	Password      string
	SiteReference string
	Timeout       int // request timeout in seconds
}

// JWTConfig holds the signing material for the browser widget payload
type JWTConfig struct {
	Username string
	Secret   string
	Locale   string
	// AuthMethod selects the 3-D Secure challenge preference: "PRE" asks the
	// issuer up front, "FINAL" defers to the authorization.
	AuthMethod string
}

// NotificationConfig holds the notification authentication settings
type NotificationConfig struct {
	Secret           string
	AllowedRanges    []string
	CloudflareRanges []string
}

// CronConfig holds scheduler endpoint settings
type CronConfig struct {
	Secret       string // shared secret required on cron endpoints
	RenewalBatch int    // max renewals charged per invocation
}

// AuthConfig holds the bearer tokens for staff endpoints. Empty tokens leave
// the corresponding role unusable.
type AuthConfig struct {
	AdminToken   string
	ManagerToken string
}

// SecretsConfig selects the secret backend. "env" reads plain environment
// variables; "aws" and "vault" resolve the gateway password, JWT secret and
// notification secret from the external store at startup.
type SecretsConfig struct {
	Backend      string // "env", "aws", "vault"
	AWSRegion    string
	AWSEndpoint  string
	VaultAddress string
	VaultToken   string
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnvAsInt("SERVER_PORT", 8080),
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			MetricsPort: getEnvAsInt("METRICS_PORT", 9090),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "trust_payments_gateway"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
			MaxConns: int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvAsInt("DB_MIN_CONNS", 5)),
		},
		Gateway: GatewayConfig{
			Mode:          getEnv("TP_MODE", "test"),
			BaseURL:       getEnv("TP_WEBSERVICES_URL", "https://webservices.securetrading.us/json/"),
			Alias:         getEnv("TP_WS_ALIAS", ""),
			Username:      getEnv("TP_WS_USERNAME", ""),
			Password:      getEnv("TP_WS_PASSWORD", ""),
			SiteReference: getEnv("TP_SITE_REFERENCE", ""),
			Timeout:       getEnvAsInt("TP_TIMEOUT", 30),
		},
		JWT: JWTConfig{
			Username:   getEnv("TP_JWT_USERNAME", ""),
			Secret:     getEnv("TP_JWT_SECRET", ""),
			Locale:     getEnv("TP_LOCALE", "en_GB"),
			AuthMethod: getEnv("TP_AUTH_METHOD", "PRE"),
		},
		Notification: NotificationConfig{
			Secret:           getEnv("NOTIFY_SECRET", ""),
			AllowedRanges:    getEnvAsList("NOTIFY_ALLOWED_RANGES", defaultNotificationRanges),
			CloudflareRanges: getEnvAsList("NOTIFY_CLOUDFLARE_RANGES", defaultCloudflareRanges),
		},
		Cron: CronConfig{
			Secret:       getEnv("CRON_SECRET", ""),
			RenewalBatch: getEnvAsInt("CRON_RENEWAL_BATCH", 50),
		},
		Auth: AuthConfig{
			AdminToken:   getEnv("ADMIN_API_TOKEN", ""),
			ManagerToken: getEnv("MANAGER_API_TOKEN", ""),
		},
		Secrets: SecretsConfig{
			Backend:      getEnv("SECRETS_BACKEND", "env"),
			AWSRegion:    getEnv("AWS_REGION", "eu-west-1"),
			AWSEndpoint:  getEnv("AWS_SM_ENDPOINT", ""),
			VaultAddress: getEnv("VAULT_ADDR", ""),
			VaultToken:   getEnv("VAULT_TOKEN", ""),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	if cfg.Gateway.Mode != "live" && cfg.Gateway.Mode != "test" {
		return nil, fmt.Errorf("TP_MODE must be \"live\" or \"test\", got %q", cfg.Gateway.Mode)
	}
	if cfg.Gateway.SiteReference == "" {
		return nil, fmt.Errorf("TP_SITE_REFERENCE is required")
	}
	if cfg.JWT.Username == "" {
		return nil, fmt.Errorf("TP_JWT_USERNAME is required")
	}
	if cfg.JWT.Secret == "" && cfg.Secrets.Backend == "env" {
		return nil, fmt.Errorf("TP_JWT_SECRET is required")
	}
	if m := cfg.JWT.AuthMethod; m != "PRE" && m != "FINAL" {
		return nil, fmt.Errorf("TP_AUTH_METHOD must be \"PRE\" or \"FINAL\", got %q", m)
	}
	switch cfg.Secrets.Backend {
	case "env", "aws", "vault":
	default:
		return nil, fmt.Errorf("SECRETS_BACKEND must be \"env\", \"aws\" or \"vault\", got %q", cfg.Secrets.Backend)
	}
	if cfg.Secrets.Backend == "vault" && (cfg.Secrets.VaultAddress == "" || cfg.Secrets.VaultToken == "") {
		return nil, fmt.Errorf("VAULT_ADDR and VAULT_TOKEN are required when SECRETS_BACKEND=vault")
	}

	return cfg, nil
}

// ConnectionString returns PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
