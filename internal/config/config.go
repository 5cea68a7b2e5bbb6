package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the whole application configuration, read from the environment.
type Config struct {
	Port     string // server port (8080)
	GoEnv    string // dev/prod
	LogLevel string

	DB DBConfig

	// smallest accepted order total, in minor units
	MinOrderAmount int64

	MoMo  MoMoConfig
	Kafka KafkaConfig
}

type DBConfig struct {
	URL          string // DATABASE_URL wins over the POSTGRES_* parts
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
}

// DSN builds the connection string for gorm's postgres driver.
func (c DBConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// MoMoConfig holds the redirect-payment gateway credentials and URLs.
type MoMoConfig struct {
	AccessKey   string
	SecretKey   string
	PartnerCode string
	PartnerName string
	StoreID     string
	Endpoint    string
	RedirectURL string
	IPNURL      string
	RequestType string
	Lang        string
	Timeout     time.Duration
}

// Configured is false when any credential is missing.
func (c MoMoConfig) Configured() bool {
	return c.AccessKey != "" && c.SecretKey != "" && c.PartnerCode != ""
}

type KafkaConfig struct {
	Brokers      []string
	InvoiceTopic string
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// Load reads the environment. Missing optional values fall back to defaults;
// malformed numbers and durations are errors.
func Load() (Config, error) {
	pgPort, err := atoiDefault("POSTGRES_PORT", 5432)
	if err != nil {
		return Config{}, err
	}
	maxConns, err := atoiDefault("DB_MAX_OPEN_CONNS", 20)
	if err != nil {
		return Config{}, err
	}
	minAmount, err := atoiDefault("ORDER_MIN_AMOUNT", 1000)
	if err != nil {
		return Config{}, err
	}
	momoTimeout, err := durationDefault("MOMO_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:     getenv("PORT", "8080"),
		GoEnv:    getenv("GO_ENV", "dev"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		DB: DBConfig{
			URL:          os.Getenv("DATABASE_URL"),
			Host:         getenv("POSTGRES_HOST", "localhost"),
			Port:         pgPort,
			User:         getenv("POSTGRES_USER", "postgres"),
			Password:     getenv("POSTGRES_PASSWORD", "postgres"),
			Name:         getenv("POSTGRES_DB", "app"),
			SSLMode:      getenv("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns: maxConns,
		},

		MinOrderAmount: int64(minAmount),

		MoMo: MoMoConfig{
			AccessKey:   os.Getenv("MOMO_ACCESS_KEY"),
			SecretKey:   os.Getenv("MOMO_SECRET_KEY"),
			PartnerCode: os.Getenv("MOMO_PARTNER_CODE"),
			PartnerName: getenv("MOMO_PARTNER_NAME", "Test"),
			StoreID:     getenv("MOMO_STORE_ID", "MomoTestStore"),
			Endpoint:    getenv("MOMO_ENDPOINT", "https://test-payment.momo.vn/v2/gateway/api/create"),
			RedirectURL: getenv("MOMO_REDIRECT_URL", "http://localhost:5173/checkout/finalize"),
			IPNURL:      getenv("MOMO_IPN_URL", "http://localhost:8080/orders/momo/ipn"),
			RequestType: getenv("MOMO_REQUEST_TYPE", "payWithMethod"),
			Lang:        getenv("MOMO_LANG", "vi"),
			Timeout:     momoTimeout,
		},

		Kafka: KafkaConfig{
			Brokers:      splitList(os.Getenv("KAFKA_BROKERS")),
			InvoiceTopic: getenv("KAFKA_INVOICE_TOPIC", "shop.invoice.requests"),
		},
	}

	// sanity checks
	if cfg.MinOrderAmount < 0 {
		return Config{}, fmt.Errorf("ORDER_MIN_AMOUNT must not be negative")
	}
	if cfg.DB.MaxOpenConns < 1 {
		return Config{}, fmt.Errorf("DB_MAX_OPEN_CONNS must be positive")
	}
	if cfg.MoMo.Timeout <= 0 {
		return Config{}, fmt.Errorf("MOMO_TIMEOUT must be positive")
	}
	switch cfg.GoEnv {
	case "dev", "test", "prod":
	default:
		return Config{}, fmt.Errorf("GO_ENV must be one of dev/test/prod, got %q", cfg.GoEnv)
	}

	return cfg, nil
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoiDefault(key string, def int) (int, error) {
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

func durationDefault(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
