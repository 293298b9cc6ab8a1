package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL"`

	// APIKey is the shared secret for service-to-service calls. Left optional here
	// so an unset key is reported per request rather than blocking startup.
	APIKey string `env:"API_KEY"`

	JWTSecret   string        `env:"JWT_SECRET,required,notEmpty"`
	JWTIssuer   string        `env:"JWT_ISSUER" envDefault:"stripe-wallet"`
	JWTAudience string        `env:"JWT_AUDIENCE" envDefault:"stripe-wallet-clients"`
	JWTTTL      time.Duration `env:"JWT_TTL" envDefault:"60m"`

	StripeSecretKey     string        `env:"STRIPE_SECRET_KEY,required,notEmpty"`
	StripeWebhookSecret string        `env:"STRIPE_WEBHOOK_SECRET,required,notEmpty"`
	StripeAPIURL        string        `env:"STRIPE_API_URL"`
	StripeCurrency      string        `env:"STRIPE_CURRENCY" envDefault:"usd"`
	WebhookTolerance    time.Duration `env:"WEBHOOK_TOLERANCE" envDefault:"5m"`
	CheckoutSuccessURL  string        `env:"CHECKOUT_SUCCESS_URL" envDefault:"http://localhost:3000/wallet?checkout=success"`
	CheckoutCancelURL   string        `env:"CHECKOUT_CANCEL_URL" envDefault:"http://localhost:3000/wallet?checkout=cancelled"`

	LoginUsername     string `env:"LOGIN_USERNAME"`
	LoginPasswordHash string `env:"LOGIN_PASSWORD_HASH"`
	LoginRateLimit    int    `env:"LOGIN_RATE_LIMIT" envDefault:"5"`

	WebhookRetryInterval    time.Duration `env:"WEBHOOK_RETRY_INTERVAL" envDefault:"1m"`
	WebhookRetryMaxAttempts int           `env:"WEBHOOK_RETRY_MAX_ATTEMPTS" envDefault:"10"`

	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	MigrateOnStart bool          `env:"MIGRATE_ON_START" envDefault:"true"`

	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv   string `env:"APP_ENV" envDefault:"production"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

// Load reads an optional .env file from the working directory, then the environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config.Load: dotenv: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}
