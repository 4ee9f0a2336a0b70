package config

import "github.com/caarlos0/env/v10"

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort      string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL   string `env:"DATABASE_URL,required"`
	LLMAPIKey     string `env:"LLM_API_KEY,required"`
	LLMBaseURL    string `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMModel      string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	JWTSecret     string `env:"JWT_SECRET"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Cuotas por plan; los valores negativos significan sin tope.
	FreeDailyMessageLimit int `env:"FREE_DAILY_MESSAGE_LIMIT" envDefault:"5"`
	FreeHistoryDays       int `env:"FREE_HISTORY_DAYS" envDefault:"7"`
	ProHistoryDays        int `env:"PRO_HISTORY_DAYS" envDefault:"30"`

	// Prueba gratuita para usuarios anónimos (una sola vez, sin reset diario).
	AnonymousRequestLimit int `env:"ANONYMOUS_REQUEST_LIMIT" envDefault:"1"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
