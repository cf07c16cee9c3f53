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
	Razorpay     RazorpayConfig
	Meta         MetaConfig
	Sweeper      SweeperConfig
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
	Env          string `envconfig:"INTERESTMINER_APP_ENV" required:"true"`
	Port         string `envconfig:"INTERESTMINER_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"INTERESTMINER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"INTERESTMINER_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"INTERESTMINER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"INTERESTMINER_DB_DSN"`
	Driver string `envconfig:"INTERESTMINER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"INTERESTMINER_DB_HOST"`
	LegacyPort     int    `envconfig:"INTERESTMINER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"INTERESTMINER_DB_USER"`
	LegacyPassword string `envconfig:"INTERESTMINER_DB_PASSWORD"`
	LegacyName     string `envconfig:"INTERESTMINER_DB_NAME"`
	LegacySSLMode  string `envconfig:"INTERESTMINER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"INTERESTMINER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"INTERESTMINER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"INTERESTMINER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"INTERESTMINER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"INTERESTMINER_REDIS_URL" required:"true"`
	Address      string        `envconfig:"INTERESTMINER_REDIS_ADDR"`
	Password     string        `envconfig:"INTERESTMINER_REDIS_PASSWORD"`
	DB           int           `envconfig:"INTERESTMINER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"INTERESTMINER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"INTERESTMINER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"INTERESTMINER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"INTERESTMINER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"INTERESTMINER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"INTERESTMINER_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"INTERESTMINER_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"INTERESTMINER_JWT_EXPIRATION_MINUTES" required:"true"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type RazorpayConfig struct {
	KeyID     string `envconfig:"INTERESTMINER_RAZORPAY_KEY_ID"`
	KeySecret string `envconfig:"INTERESTMINER_RAZORPAY_KEY_SECRET"`
	// ExchangeRate converts plan prices into the gateway currency before the
	// minor-unit conversion. 1.0 means prices are already in gateway currency.
	ExchangeRate float64       `envconfig:"INTERESTMINER_RAZORPAY_EXCHANGE_RATE" default:"1.0"`
	Currency     string        `envconfig:"INTERESTMINER_RAZORPAY_CURRENCY" default:"INR"`
	Timeout      time.Duration `envconfig:"INTERESTMINER_RAZORPAY_TIMEOUT" default:"15s"`
}

type MetaConfig struct {
	AccessToken string        `envconfig:"INTERESTMINER_META_ACCESS_TOKEN"`
	APIVersion  string        `envconfig:"INTERESTMINER_META_API_VERSION" default:"v19.0"`
	Timeout     time.Duration `envconfig:"INTERESTMINER_META_TIMEOUT" default:"15s"`
}

type SweeperConfig struct {
	ExpiryInterval  time.Duration `envconfig:"INTERESTMINER_SWEEPER_EXPIRY_INTERVAL" default:"1h"`
	RenewalInterval time.Duration `envconfig:"INTERESTMINER_SWEEPER_RENEWAL_INTERVAL" default:"24h"`
	RenewalWindow   time.Duration `envconfig:"INTERESTMINER_SWEEPER_RENEWAL_WINDOW" default:"24h"`
	BatchLimit      int           `envconfig:"INTERESTMINER_SWEEPER_BATCH_LIMIT" default:"250"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"INTERESTMINER_AUTO_MIGRATE" default:"false"`
	SeedPlans   bool `envconfig:"INTERESTMINER_SEED_PLANS" default:"false"`
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
