package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Dodo         DodoConfig
	Resend       ResendConfig
	Reminders    RemindersConfig
	Tiers        TierConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SUBSAGE_APP_ENV" required:"true"`
	Port         string `envconfig:"SUBSAGE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SUBSAGE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SUBSAGE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SUBSAGE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SUBSAGE_DB_DSN"`
	Driver string `envconfig:"SUBSAGE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SUBSAGE_DB_HOST"`
	LegacyPort     int    `envconfig:"SUBSAGE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SUBSAGE_DB_USER"`
	LegacyPassword string `envconfig:"SUBSAGE_DB_PASSWORD"`
	LegacyName     string `envconfig:"SUBSAGE_DB_NAME"`
	LegacySSLMode  string `envconfig:"SUBSAGE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SUBSAGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SUBSAGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SUBSAGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SUBSAGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SUBSAGE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SUBSAGE_REDIS_ADDR"`
	Password     string        `envconfig:"SUBSAGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"SUBSAGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SUBSAGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SUBSAGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SUBSAGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SUBSAGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SUBSAGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string `envconfig:"SUBSAGE_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"SUBSAGE_JWT_ISSUER" required:"true"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"SUBSAGE_CORS_ALLOWED_ORIGINS" default:"http://localhost:5173"`
}

// DodoConfig carries the Dodo Payments credentials and checkout wiring.
type DodoConfig struct {
	APIKey             string `envconfig:"SUBSAGE_DODO_API_KEY"`
	ProductID          string `envconfig:"SUBSAGE_DODO_PRODUCT_ID"`
	WebhookSecret      string `envconfig:"SUBSAGE_DODO_WEBHOOK_SECRET"`
	BaseURL            string `envconfig:"SUBSAGE_DODO_BASE_URL" default:"https://api.dodopayments.com"`
	ReturnURL          string `envconfig:"SUBSAGE_DODO_RETURN_URL"`
	InsecureSkipVerify bool   `envconfig:"SUBSAGE_DODO_INSECURE_SKIP_VERIFY" default:"false"`
}

// VerificationRequired reports whether inbound webhooks must carry a valid
// signature. Skipping verification is an explicit local-development opt-in.
func (d DodoConfig) VerificationRequired() bool {
	return !d.InsecureSkipVerify
}

type ResendConfig struct {
	APIKey      string `envconfig:"SUBSAGE_RESEND_API_KEY"`
	DefaultFrom string `envconfig:"SUBSAGE_RESEND_FROM_EMAIL" default:"SubSage <reminders@resend.dev>"`
}

type RemindersConfig struct {
	LeadDays     int           `envconfig:"SUBSAGE_REMINDER_LEAD_DAYS" default:"3"`
	Interval     time.Duration `envconfig:"SUBSAGE_REMINDER_INTERVAL" default:"24h"`
	TriggerToken string        `envconfig:"SUBSAGE_REMINDER_TRIGGER_TOKEN"`
}

type TierConfig struct {
	FreeSubscriptionLimit int `envconfig:"SUBSAGE_FREE_SUBSCRIPTION_LIMIT" default:"5"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SUBSAGE_AUTO_MIGRATE" default:"false"`
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
