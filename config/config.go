package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string
	Environment    string
	AllowedOrigins []string

	// SessionJWTSecret verifies the practice app's web-session bearer
	// tokens. RealtimeTokenSecret signs the short-lived credentials for
	// the signaling channel. They are distinct on purpose.
	SessionJWTSecret    string
	RealtimeTokenSecret string

	// TokenTTL is the realtime credential lifetime. Kept configurable:
	// the 15-minute default matches the shortest web-session role
	// duration, not the caller's actual remaining session time.
	TokenTTL time.Duration

	Redis RedisConfig
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("SESSION_JWT_SECRET", "change-me-in-production")
	v.SetDefault("REALTIME_TOKEN_SECRET", "change-me-in-production")
	v.SetDefault("TOKEN_TTL", "15m")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	return &Config{
		Port:                v.GetString("PORT"),
		Environment:         v.GetString("ENVIRONMENT"),
		AllowedOrigins:      strings.Split(v.GetString("ALLOWED_ORIGINS"), ","),
		SessionJWTSecret:    v.GetString("SESSION_JWT_SECRET"),
		RealtimeTokenSecret: v.GetString("REALTIME_TOKEN_SECRET"),
		TokenTTL:            v.GetDuration("TOKEN_TTL"),
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
	}
}
