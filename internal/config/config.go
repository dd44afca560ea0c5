package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Configはアプリ全体の設定
type Config struct {
	Port     string // サーバーポート（8080）
	GoEnv    string // development/production
	LogLevel string // debug/info/warn/error

	StoreDriver string // postgres / memory

	DatabaseURL      string // 指定があれば POSTGRES_* より優先
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     int
	PostgresSSLMode  string

	JWTSecret string // JWT署名シークレット
	FEURL     string // フロントURL（CORS）

	PaymentCurrency      string // 決済通貨（inr）
	PaymentWebhookSecret string // コールバック署名の共有鍵
	StripeSecretKey      string // 空ならサンドボックス決済

	RedisURL      string        // 空ならキャッシュなし
	OfferCacheTTL time.Duration // カテゴリセールのキャッシュ期間

	RabbitMQURL      string // 空ならイベント送信なし
	RabbitMQExchange string

	CheckoutRatePerMinute int

	ReferralSignupBonus int64
	ReferralReward      int64
}

func (c Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// Loadは環境変数から設定を読む。.env の読み込みは呼び出し側
func Load() (Config, error) {
	var err error
	cfg := Config{
		Port:     getenv("PORT", "8080"),
		GoEnv:    getenv("GO_ENV", "production"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		StoreDriver: getenv("STORE_DRIVER", StoreDriverPostgres),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     getenv("POSTGRES_USER", "postgres"),
		PostgresPassword: getenv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getenv("POSTGRES_DB", "storefront"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		FEURL:     getenv("FE_URL", "http://localhost:3000"),

		PaymentCurrency:      getenv("PAYMENT_CURRENCY", "inr"),
		PaymentWebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		StripeSecretKey:      os.Getenv("STRIPE_SECRET_KEY"),

		RedisURL: os.Getenv("REDIS_URL"),

		RabbitMQURL:      os.Getenv("RABBITMQ_URL"),
		RabbitMQExchange: getenv("RABBITMQ_EXCHANGE", "storefront.events"),
	}

	if cfg.PostgresPort, err = atoiOr("POSTGRES_PORT", 5432); err != nil {
		return Config{}, err
	}
	if cfg.CheckoutRatePerMinute, err = atoiOr("CHECKOUT_RATE_PER_MINUTE", 30); err != nil {
		return Config{}, err
	}
	bonus, err := atoiOr("REFERRAL_SIGNUP_BONUS", 50)
	if err != nil {
		return Config{}, err
	}
	reward, err := atoiOr("REFERRAL_REWARD", 100)
	if err != nil {
		return Config{}, err
	}
	cfg.ReferralSignupBonus = int64(bonus)
	cfg.ReferralReward = int64(reward)

	ttl := getenv("OFFER_CACHE_TTL", "30s")
	if cfg.OfferCacheTTL, err = time.ParseDuration(ttl); err != nil {
		return Config{}, fmt.Errorf("OFFER_CACHE_TTL must be duration: %w", err)
	}

	//必須チェック
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.PaymentWebhookSecret == "" {
		return Config{}, fmt.Errorf("PAYMENT_WEBHOOK_SECRET is required")
	}
	switch cfg.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return Config{}, fmt.Errorf("STORE_DRIVER must be %q or %q", StoreDriverPostgres, StoreDriverMemory)
	}
	if cfg.CheckoutRatePerMinute <= 0 {
		return Config{}, fmt.Errorf("CHECKOUT_RATE_PER_MINUTE must be positive")
	}

	return cfg, nil
}

// DSN は DATABASE_URL を優先して接続文字列を返す
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoiOr(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}
