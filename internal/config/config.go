package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Configはアプリ全体の設定
type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	GoEnv    string `envconfig:"GO_ENV" default:"dev"` // dev/prod
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	//埋め込みにしてキーにプレフィックスを付けない
	DB

	JWTSecret string `envconfig:"JWT_SECRET"` // 管理者API用

	SiteURL string `envconfig:"SITE_URL"` // 決済後の戻り先（/checkout）

	Payment

	AMQPURL        string `envconfig:"AMQP_URL"`
	NotifyExchange string `envconfig:"NOTIFY_EXCHANGE" default:"storefront.events"`
}

type DB struct {
	Driver      string `envconfig:"DB_DRIVER" default:"postgres"` // postgres/mysql
	DatabaseURL string `envconfig:"DATABASE_URL"`
	MySQLDSN    string `envconfig:"MYSQL_DSN"`

	PostgresUser     string `envconfig:"POSTGRES_USER" default:"postgres"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD" default:"postgres"`
	PostgresDB       string `envconfig:"POSTGRES_DB" default:"app"`
	PostgresHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresSSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

type Payment struct {
	PaystackSecretKey string        `envconfig:"PAYSTACK_SECRET_KEY"`
	PaystackBaseURL   string        `envconfig:"PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
	Currency          string        `envconfig:"PAYMENT_CURRENCY" default:"USD"`
	Channels          []string      `envconfig:"PAYMENT_CHANNELS" default:"card"`
	ReferencePrefix   string        `envconfig:"REFERENCE_PREFIX" default:"ICE"`
	GatewayTimeout    time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"15s"`

	ShippingFee       decimal.Decimal `envconfig:"SHIPPING_FEE" default:"2500"`
	RecomputeAmount   bool            `envconfig:"RECOMPUTE_AMOUNT" default:"true"`
	LowStockThreshold int64           `envconfig:"LOW_STOCK_THRESHOLD" default:"5"`
}

func (c Config) IsProd() bool {
	return c.GoEnv == "prod"
}

// Loadは.env（あれば）と環境変数から読む
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		//無くてもよい
		_ = godotenv.Load(f)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// 必須チェック
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.SiteURL == "" {
		return fmt.Errorf("SITE_URL is required")
	}
	c.SiteURL = strings.TrimRight(c.SiteURL, "/")

	if c.Payment.PaystackSecretKey == "" {
		return fmt.Errorf("PAYSTACK_SECRET_KEY is required")
	}

	unit, err := currency.ParseISO(c.Payment.Currency)
	if err != nil {
		return fmt.Errorf("PAYMENT_CURRENCY must be ISO 4217: %w", err)
	}
	c.Payment.Currency = unit.String()

	if c.Payment.ShippingFee.IsNegative() {
		return fmt.Errorf("SHIPPING_FEE must not be negative")
	}

	switch c.DB.Driver {
	case "postgres", "mysql":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or mysql")
	}
	if c.DB.Driver == "mysql" && c.DB.MySQLDSN == "" {
		return fmt.Errorf("MYSQL_DSN is required")
	}

	return nil
}
