package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Telegram
	BotToken        string        `env:"BOT_TOKEN"`
	TelegramBaseURL string        `env:"TELEGRAM_BASE_URL" envDefault:"https://api.telegram.org"`
	TypingInterval  time.Duration `env:"TYPING_INTERVAL" envDefault:"5s"`

	// Database
	DBPath string `env:"DB_PATH" envDefault:"./gateway.db"`

	// OpenAI
	OpenAIKey     string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	ImageModel    string `env:"IMAGE_MODEL" envDefault:"dall-e-3"`
	ImageFormat   string `env:"IMAGE_FORMAT" envDefault:"b64_json"`
	HistoryLimit  int    `env:"HISTORY_LIMIT" envDefault:"20"`

	// Invites
	InviteSecret string `env:"INVITE_SECRET"`

	// Payments
	PaymentsToken string `env:"PAYMENTS_TOKEN"`
	InvoiceAmount int    `env:"INVOICE_AMOUNT" envDefault:"500"` // hundredths of USD

	// Pricing, micro-units
	PricePer1KTokens int64 `env:"PRICE_PER_1K_TOKENS" envDefault:"2000"`
	PricePerImage    int64 `env:"PRICE_PER_IMAGE" envDefault:"40000"`

	// Telemetry
	OTelEndpoint string `env:"OTEL_ENDPOINT"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads the configuration from the environment
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.TelegramBaseURL = strings.TrimSuffix(cfg.TelegramBaseURL, "/")
	return cfg, nil
}
