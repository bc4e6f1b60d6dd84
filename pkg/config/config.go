package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = "KASUWA"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "KASUWA_DB_DSN"
	EnvDBHost = "KASUWA_DB_HOST"
	EnvDBUser = "KASUWA_DB_USER"
	EnvDBName = "KASUWA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Paystack PaystackConfig
	Platform PlatformConfig
	Outbox   OutboxConfig

	FeatureFlags FeatureFlagsConfig
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"KASUWA_FEATURE_AUTO_MIGRATE" default:"false"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Platform.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"KASUWA_APP_ENV" required:"true"`
	Port         string `envconfig:"KASUWA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"KASUWA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KASUWA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"KASUWA_DB_DSN"`
	Driver string `envconfig:"KASUWA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"KASUWA_DB_HOST"`
	LegacyPort     int    `envconfig:"KASUWA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"KASUWA_DB_USER"`
	LegacyPassword string `envconfig:"KASUWA_DB_PASSWORD"`
	LegacyName     string `envconfig:"KASUWA_DB_NAME"`
	LegacySSLMode  string `envconfig:"KASUWA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KASUWA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KASUWA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KASUWA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KASUWA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"KASUWA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"KASUWA_REDIS_ADDR"`
	Password     string        `envconfig:"KASUWA_REDIS_PASSWORD"`
	DB           int           `envconfig:"KASUWA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KASUWA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KASUWA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KASUWA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KASUWA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KASUWA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type PaystackConfig struct {
	SecretKey     string        `envconfig:"KASUWA_PAYSTACK_SECRET_KEY" required:"true"`
	BaseURL       string        `envconfig:"KASUWA_PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
	CallbackURL   string        `envconfig:"KASUWA_PAYSTACK_CALLBACK_URL"`
	Currency      string        `envconfig:"KASUWA_PAYSTACK_CURRENCY" default:"NGN"`
	HTTPTimeout   time.Duration `envconfig:"KASUWA_PAYSTACK_HTTP_TIMEOUT" default:"30s"`
	WebhookSecret string        `envconfig:"KASUWA_PAYSTACK_WEBHOOK_SECRET"`

	// WebhookDedupeTTL bounds how long a processed gateway event ID is
	// remembered for replay suppression.
	WebhookDedupeTTL time.Duration `envconfig:"KASUWA_PAYSTACK_WEBHOOK_DEDUPE_TTL" default:"24h"`
}

// SigningSecret returns the secret used for webhook signature checks. The
// gateway signs with the account secret key unless a dedicated webhook
// secret is configured.
func (p PaystackConfig) SigningSecret() string {
	if s := strings.TrimSpace(p.WebhookSecret); s != "" {
		return s
	}
	return strings.TrimSpace(p.SecretKey)
}

type PlatformConfig struct {
	Mode                 string        `envconfig:"KASUWA_PLATFORM_MODE" default:"multi_vendor"`
	CommissionRate       string        `envconfig:"KASUWA_COMMISSION_RATE_PERCENT" default:"10"`
	ProcessingFeeRate    string        `envconfig:"KASUWA_PROCESSING_FEE_PERCENT" default:"1.5"`
	MinimumPayoutCents   int64         `envconfig:"KASUWA_MINIMUM_PAYOUT_CENTS" default:"100000"`
	RiderLoadCeiling     int           `envconfig:"KASUWA_RIDER_LOAD_CEILING" default:"10"`
	PaymentLockTTL       time.Duration `envconfig:"KASUWA_PAYMENT_LOCK_TTL" default:"2m"`
	VerificationTokenTTL time.Duration `envconfig:"KASUWA_VERIFICATION_TOKEN_TTL" default:"6h"`
}

// CommissionRatePercent parses the configured commission rate.
func (p PlatformConfig) CommissionRatePercent() decimal.Decimal {
	d, err := decimal.NewFromString(p.CommissionRate)
	if err != nil {
		return decimal.NewFromInt(10)
	}
	return d
}

// ProcessingFeePercent parses the configured processing fee rate.
func (p PlatformConfig) ProcessingFeePercent() decimal.Decimal {
	d, err := decimal.NewFromString(p.ProcessingFeeRate)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (p PlatformConfig) validate() error {
	if _, err := decimal.NewFromString(p.CommissionRate); err != nil {
		return fmt.Errorf("invalid commission rate %q: %w", p.CommissionRate, err)
	}
	if _, err := decimal.NewFromString(p.ProcessingFeeRate); err != nil {
		return fmt.Errorf("invalid processing fee rate %q: %w", p.ProcessingFeeRate, err)
	}
	if p.MinimumPayoutCents < 0 {
		return fmt.Errorf("minimum payout must not be negative")
	}
	if p.RiderLoadCeiling <= 0 {
		return fmt.Errorf("rider load ceiling must be positive")
	}
	return nil
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"KASUWA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"KASUWA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"KASUWA_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
