package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort         string        `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL      string        `env:"DATABASE_URL,required"`
	ShapesBaseURL    string        `env:"SHAPES_BASE_URL" envDefault:"https://api.shapes.inc/v1"`
	ShapesAppID      string        `env:"SHAPES_APP_ID"`
	ShapesAPIKey     string        `env:"SHAPES_API_KEY"`
	AuthExchangeURL  string        `env:"AUTH_EXCHANGE_URL"`
	MediaHost        string        `env:"MEDIA_HOST" envDefault:"files.shapes.inc"`
	AutosaveInterval time.Duration `env:"AUTOSAVE_INTERVAL" envDefault:"5m"`
	ConversationTTL  time.Duration `env:"CONVERSATION_IDLE_TTL" envDefault:"30m"`
	FanoutLimit      int           `env:"FANOUT_LIMIT" envDefault:"4"`
	RateLimitWindow  time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	RateLimitAuth    int           `env:"RATE_LIMIT_AUTH" envDefault:"10"`
	RateLimitSend    int           `env:"RATE_LIMIT_SEND" envDefault:"30"`
	RedisAddr        string        `env:"REDIS_ADDR"`
	RedisPassword    string        `env:"REDIS_PASSWORD"`
	RedisDB          int           `env:"REDIS_DB" envDefault:"0"`
	JWTSecret        string        `env:"JWT_SECRET"`
	JWTAccessTTL     time.Duration `env:"JWT_ACCESS_TTL" envDefault:"15m"`
	JWTRefreshTTL    time.Duration `env:"JWT_REFRESH_TTL" envDefault:"720h"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
