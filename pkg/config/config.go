package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "souqly"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv = "SOUQLY_APP_ENV"
	EnvDBDSN  = "SOUQLY_DB_DSN"
	EnvDBHost = "SOUQLY_DB_HOST"
	EnvDBUser = "SOUQLY_DB_USER"
	EnvDBName = "SOUQLY_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Orders       OrdersConfig
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
	Env          string `envconfig:"SOUQLY_APP_ENV" required:"true"`
	Port         string `envconfig:"SOUQLY_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"SOUQLY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SOUQLY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"SOUQLY_DB_DSN"`

	LegacyHost     string `envconfig:"SOUQLY_DB_HOST"`
	LegacyPort     int    `envconfig:"SOUQLY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SOUQLY_DB_USER"`
	LegacyPassword string `envconfig:"SOUQLY_DB_PASSWORD"`
	LegacyName     string `envconfig:"SOUQLY_DB_NAME"`
	LegacySSLMode  string `envconfig:"SOUQLY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SOUQLY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SOUQLY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SOUQLY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SOUQLY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SOUQLY_REDIS_URL"`
	Address      string        `envconfig:"SOUQLY_REDIS_ADDR"`
	Password     string        `envconfig:"SOUQLY_REDIS_PASSWORD"`
	DB           int           `envconfig:"SOUQLY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SOUQLY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SOUQLY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SOUQLY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SOUQLY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SOUQLY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SOUQLY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SOUQLY_JWT_ISSUER" default:"souqly"`
	ExpirationMinutes int    `envconfig:"SOUQLY_JWT_EXPIRATION_MINUTES" default:"60"`
}

// AccessTokenTTL returns the configured access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type OrdersConfig struct {
	NumberPrefix  string `envconfig:"SOUQLY_ORDER_NUMBER_PREFIX" default:"ORD"`
	Currency      string `envconfig:"SOUQLY_ORDER_CURRENCY" default:"EUR"`
	NumberTokenLn int    `envconfig:"SOUQLY_ORDER_NUMBER_TOKEN_LEN" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SOUQLY_AUTO_MIGRATE" default:"false"`
	Idempotency bool `envconfig:"SOUQLY_IDEMPOTENCY" default:"true"`
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
