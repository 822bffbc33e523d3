package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	RateLimit     RateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	CORS          CORSConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Cron          CronConfig
	Moderation    ModerationConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.JWT.validateAudiences(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"NURSERYFINDER_APP_ENV" required:"true"`
	Port         string `envconfig:"NURSERYFINDER_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"NURSERYFINDER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"NURSERYFINDER_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"NURSERYFINDER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"NURSERYFINDER_DB_DSN"`
	Driver string `envconfig:"NURSERYFINDER_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"NURSERYFINDER_DB_HOST"`
	Port     int    `envconfig:"NURSERYFINDER_DB_PORT" default:"5432"`
	User     string `envconfig:"NURSERYFINDER_DB_USER"`
	Password string `envconfig:"NURSERYFINDER_DB_PASSWORD"`
	Name     string `envconfig:"NURSERYFINDER_DB_NAME"`
	SSLMode  string `envconfig:"NURSERYFINDER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"NURSERYFINDER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"NURSERYFINDER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"NURSERYFINDER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"NURSERYFINDER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"NURSERYFINDER_REDIS_URL" required:"true"`
	Address      string        `envconfig:"NURSERYFINDER_REDIS_ADDR"`
	Password     string        `envconfig:"NURSERYFINDER_REDIS_PASSWORD"`
	DB           int           `envconfig:"NURSERYFINDER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"NURSERYFINDER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"NURSERYFINDER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"NURSERYFINDER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"NURSERYFINDER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"NURSERYFINDER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig carries one secret and issuer for both session domains. The
// audiences keep admin and user tokens from being accepted by each other.
type JWTConfig struct {
	Secret                 string `envconfig:"NURSERYFINDER_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"NURSERYFINDER_JWT_ISSUER" required:"true"`
	AdminAudience          string `envconfig:"NURSERYFINDER_JWT_ADMIN_AUDIENCE" default:"nurseryfinder-admin"`
	UserAudience           string `envconfig:"NURSERYFINDER_JWT_USER_AUDIENCE" default:"nurseryfinder-user"`
	ExpirationMinutes      int    `envconfig:"NURSERYFINDER_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"NURSERYFINDER_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

// AccessTokenTTL returns the access token TTL configured in minutes.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

func (j JWTConfig) validateAudiences() error {
	admin := strings.TrimSpace(j.AdminAudience)
	user := strings.TrimSpace(j.UserAudience)
	if admin == "" || user == "" {
		return fmt.Errorf("%s and %s must both be set", EnvJWTAdminAudience, EnvJWTUserAudience)
	}
	if admin == user {
		return fmt.Errorf("%s and %s must differ", EnvJWTAdminAudience, EnvJWTUserAudience)
	}
	return nil
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"NURSERYFINDER_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"NURSERYFINDER_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"NURSERYFINDER_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"NURSERYFINDER_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"NURSERYFINDER_ARGON_KEY_LEN" default:"32"`
	MinLength        int `envconfig:"NURSERYFINDER_PASSWORD_MIN_LENGTH" default:"8"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"NURSERYFINDER_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"NURSERYFINDER_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"NURSERYFINDER_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"NURSERYFINDER_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"NURSERYFINDER_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"NURSERYFINDER_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

// RateLimitConfig bounds review submissions per client IP and per reviewer
// email inside the same window.
type RateLimitConfig struct {
	ReviewSubmitLimit      int           `envconfig:"NURSERYFINDER_RATE_LIMIT_REVIEW_SUBMIT_LIMIT" default:"10"`
	ReviewSubmitEmailLimit int           `envconfig:"NURSERYFINDER_RATE_LIMIT_REVIEW_SUBMIT_EMAIL_LIMIT" default:"3"`
	ReviewSubmitWindow     time.Duration `envconfig:"NURSERYFINDER_RATE_LIMIT_REVIEW_SUBMIT_WINDOW" default:"1h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"NURSERYFINDER_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"NURSERYFINDER_AUTO_MIGRATE" default:"false"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"NURSERYFINDER_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"NURSERYFINDER_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	ReviewEventsTopic        string `envconfig:"NURSERYFINDER_PUBSUB_REVIEW_EVENTS_TOPIC" default:"nf-review-events"`
	ReviewEventsSubscription string `envconfig:"NURSERYFINDER_PUBSUB_REVIEW_EVENTS_SUBSCRIPTION" default:"nf-review-events-sub"`
	DeadLetterTopic          string `envconfig:"NURSERYFINDER_PUBSUB_DEAD_LETTER_TOPIC" default:"nf-review-events-dlq"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"NURSERYFINDER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"NURSERYFINDER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"NURSERYFINDER_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"NURSERYFINDER_OUTBOX_RETENTION" default:"720h"`
	DLQRetention   time.Duration `envconfig:"NURSERYFINDER_OUTBOX_DLQ_RETENTION" default:"2160h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"NURSERYFINDER_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"NURSERYFINDER_CRON_LOCK_TTL" default:"10m"`
}

// ModerationConfig bounds how long a moderation or list call may run before
// the caller surfaces a recoverable timeout.
type ModerationConfig struct {
	RequestTimeout time.Duration `envconfig:"NURSERYFINDER_MODERATION_REQUEST_TIMEOUT" default:"15s"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
