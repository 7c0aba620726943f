package app

import (
	"os"
	"strconv"
	"time"

	"github.com/freenoai/authd/internal/provider"
	"github.com/freenoai/authd/pkg/jwtx"
)

type Config struct {
	Issuer      string        // Issuer claim for tokens (default: freenoai)
	JWTSecret   string        // Required in prod: HMAC signing secret
	AccessTTL   time.Duration // Access token lifetime (default: 2h)
	RefreshTTL  time.Duration // Refresh token lifetime (default: 720h)
	TokenLeeway time.Duration // Clock-skew allowance when validating expiry (default: 30s)

	DatabaseURL string // Required: Postgres connection string

	RedisAddr     string        // Redis address (default: localhost:6379)
	RedisPassword string        // Optional
	CachePrefix   string        // Cache key prefix (default: freenoai)
	CacheTTL      time.Duration // Default cache entry TTL (default: 1h)

	CodeTTL          time.Duration // Verification code lifetime (default: 10m)
	CodeSendInterval time.Duration // Per-address send cool-down (default: 1m)

	SceneTTL time.Duration // QR login scene lifetime (default: 5m)

	CheckerURL string // Plagiarism checker base URL; submissions land in FAILED when it is unset or unreachable

	// Provider credentials. Each provider is independently optional; its
	// adapter self-disables when the pair is absent.
	WeChatMP   provider.WeChatConfig
	WeChatMini provider.WeChatConfig
	WeChatOpen provider.WeChatConfig
	Apple      provider.AppleConfig
	Google     provider.GoogleConfig
	Facebook   provider.FacebookConfig
	GitHub     provider.GitHubConfig

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		Issuer:      getEnvOrDefault("AUTH_ISSUER", "freenoai"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		AccessTTL:   getEnvDurationOrDefault("ACCESS_TOKEN_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTTL:  getEnvDurationOrDefault("REFRESH_TOKEN_TTL", jwtx.DefaultRefreshTokenTTL),
		TokenLeeway: getEnvDurationOrDefault("TOKEN_LEEWAY", 30*time.Second),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		CachePrefix:   getEnvOrDefault("CACHE_PREFIX", "freenoai"),
		CacheTTL:      getEnvDurationOrDefault("CACHE_TTL", time.Hour),

		CodeTTL:          getEnvDurationOrDefault("CODE_TTL", 10*time.Minute),
		CodeSendInterval: getEnvDurationOrDefault("CODE_SEND_INTERVAL", time.Minute),

		SceneTTL: getEnvDurationOrDefault("SCENE_TTL", provider.DefaultSceneTTL),

		CheckerURL: os.Getenv("CHECKER_URL"),

		WeChatMP: provider.WeChatConfig{
			AppID:     os.Getenv("WECHAT_MP_APP_ID"),
			AppSecret: os.Getenv("WECHAT_MP_APP_SECRET"),
			Token:     os.Getenv("WECHAT_MP_TOKEN"),
		},
		WeChatMini: provider.WeChatConfig{
			AppID:     os.Getenv("WECHAT_MINI_APP_ID"),
			AppSecret: os.Getenv("WECHAT_MINI_APP_SECRET"),
		},
		WeChatOpen: provider.WeChatConfig{
			AppID:     os.Getenv("WECHAT_OPEN_APP_ID"),
			AppSecret: os.Getenv("WECHAT_OPEN_APP_SECRET"),
		},
		Apple: provider.AppleConfig{
			ClientID:     os.Getenv("APPLE_CLIENT_ID"),
			ClientSecret: os.Getenv("APPLE_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("APPLE_REDIRECT_URL"),
		},
		Google: provider.GoogleConfig{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
		},
		Facebook: provider.FacebookConfig{
			AppID:       os.Getenv("FACEBOOK_APP_ID"),
			AppSecret:   os.Getenv("FACEBOOK_APP_SECRET"),
			RedirectURL: os.Getenv("FACEBOOK_REDIRECT_URL"),
		},
		GitHub: provider.GitHubConfig{
			ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
			ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		},

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}
