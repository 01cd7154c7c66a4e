package config

import (
	"errors"
	"os"
	"time"
)

type Config struct {
	ServerPort  string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
	JWTExpiry   time.Duration

	// VideoSDK credentials used to mint provider tokens and create rooms.
	VideoSDKAPIKey   string
	VideoSDKSecret   string
	VideoSDKAPIURL   string
	VideoSDKEmbedURL string

	// Where the embedded call frame redirects the user after leaving.
	DashboardURL string
}

func LoadConfig() (*Config, error) {
	expiryStr := getEnv("JWT_EXPIRY", "24h")
	expiry, err := time.ParseDuration(expiryStr)
	if err != nil {
		return nil, errors.New("invalid JWT_EXPIRY format")
	}

	cfg := &Config{
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		JWTExpiry:        expiry,
		VideoSDKAPIKey:   os.Getenv("VIDEOSDK_API_KEY"),
		VideoSDKSecret:   os.Getenv("VIDEOSDK_SECRET"),
		VideoSDKAPIURL:   getEnv("VIDEOSDK_API_URL", "https://api.videosdk.live"),
		VideoSDKEmbedURL: getEnv("VIDEOSDK_EMBED_URL", "https://embed.videosdk.live/rtc-js-prebuilt/0.3.43/"),
		DashboardURL:     getEnv("DASHBOARD_URL", "http://localhost:3000/dashboard"),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	// VideoSDK keys are not validated here: the dashboard still works without
	// them, and the video-token route answers with a 500 per request instead.

	return cfg, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
