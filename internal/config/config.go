package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Google    GoogleConfig
	Gateway   GatewayConfig
	Polygon   PolygonConfig
	Backtest  BacktestConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host        string
	Port        string
	Env         string
	FrontendURL string
}

// DatabaseConfig holds the relational store configuration.
type DatabaseConfig struct {
	DSN string
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// JWTConfig holds session token configuration.
type JWTConfig struct {
	Secret             string
	AccessTokenExpire  time.Duration
	RefreshTokenExpire time.Duration
}

// GoogleConfig holds Google OAuth client configuration. Empty client id
// disables the OAuth login path.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// GatewayConfig holds brokerage gateway connection parameters. Per-user
// credentials live on the User record; only the connection endpoint is
// process configuration.
type GatewayConfig struct {
	Host      string
	PaperPort int
	LivePort  int
}

// PolygonConfig holds the historical market data API configuration.
type PolygonConfig struct {
	APIKey  string
	BaseURL string
}

// BacktestConfig holds backtest worker configuration.
type BacktestConfig struct {
	ReportsDir string
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerMinute     int
	AuthRequestsPerMinute int
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        getEnv("SERVER_PORT", "8080"),
			Env:         getEnv("SERVER_ENV", "development"),
			FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),
		},
		Database: DatabaseConfig{
			DSN: getEnv("DATABASE_DSN", "strathub.db"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", ""),
			AccessTokenExpire:  time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRE_MINUTES", 60)) * time.Minute,
			RefreshTokenExpire: time.Duration(getEnvAsInt("JWT_REFRESH_TOKEN_EXPIRE_DAYS", 7)) * 24 * time.Hour,
		},
		Google: GoogleConfig{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURI:  getEnv("GOOGLE_REDIRECT_URI", ""),
		},
		Gateway: GatewayConfig{
			Host:      getEnv("IB_GATEWAY_HOST", "127.0.0.1"),
			PaperPort: getEnvAsInt("IB_GATEWAY_PAPER_PORT", 7497),
			LivePort:  getEnvAsInt("IB_GATEWAY_LIVE_PORT", 7496),
		},
		Polygon: PolygonConfig{
			APIKey:  getEnv("POLYGON_API_KEY", ""),
			BaseURL: getEnv("POLYGON_BASE_URL", "https://api.polygon.io"),
		},
		Backtest: BacktestConfig{
			ReportsDir: getEnv("BACKTEST_REPORTS_DIR", "reports"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}, ","),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute:     getEnvAsInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 60),
			AuthRequestsPerMinute: getEnvAsInt("RATE_LIMIT_AUTH_REQUESTS_PER_MINUTE", 5),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

// Address returns the full server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsProduction returns true if running in production mode.
func (c *ServerConfig) IsProduction() bool {
	return c.Env == "production"
}

// PortForMode returns the gateway port for a trade mode ("paper" or "live").
func (c *GatewayConfig) PortForMode(mode string) int {
	if mode == "live" {
		return c.LivePort
	}
	return c.PaperPort
}

// Enabled reports whether the Google OAuth login path is configured.
func (c *GoogleConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Helper functions

func getEnv(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string, separator string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return strings.Split(valueStr, separator)
}
