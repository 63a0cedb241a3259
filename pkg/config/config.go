package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Escrow    EscrowConfig
	Payouts   PayoutsConfig
	Disputes  DisputesConfig
	Webhooks  WebhooksConfig
	Cron      CronConfig
	Notify    NotifyConfig
	GCP       GCPConfig
	PubSub    PubSubConfig
	Outbox    OutboxConfig
	Stripe    StripeConfig
	Square    SquareConfig
	Listener  ListenerConfig
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
	Env          string `envconfig:"OKRIKA_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"OKRIKA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"OKRIKA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"OKRIKA_DB_DSN"`
	Driver string `envconfig:"OKRIKA_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"OKRIKA_DB_HOST"`
	Port     int    `envconfig:"OKRIKA_DB_PORT" default:"5432"`
	User     string `envconfig:"OKRIKA_DB_USER"`
	Password string `envconfig:"OKRIKA_DB_PASSWORD"`
	Name     string `envconfig:"OKRIKA_DB_NAME"`
	SSLMode  string `envconfig:"OKRIKA_DB_SSLMODE" default:"disable"`

	AutoMigrate bool `envconfig:"OKRIKA_DB_AUTO_MIGRATE" default:"false"`

	MaxOpenConns    int           `envconfig:"OKRIKA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"OKRIKA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"OKRIKA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"OKRIKA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"OKRIKA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"OKRIKA_REDIS_ADDR"`
	Password     string        `envconfig:"OKRIKA_REDIS_PASSWORD"`
	DB           int           `envconfig:"OKRIKA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"OKRIKA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"OKRIKA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"OKRIKA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"OKRIKA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"OKRIKA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type EscrowConfig struct {
	HoldDuration time.Duration `envconfig:"OKRIKA_ESCROW_HOLD_DURATION" default:"720h"`
}

type PayoutsConfig struct {
	MinAmountMinor  int64         `envconfig:"OKRIKA_PAYOUTS_MIN_AMOUNT_MINOR" default:"50000"`
	ProviderTimeout time.Duration `envconfig:"OKRIKA_PAYOUTS_PROVIDER_TIMEOUT" default:"30s"`
	MaxAttempts     int           `envconfig:"OKRIKA_PAYOUTS_MAX_ATTEMPTS" default:"3"`
}

type DisputesConfig struct {
	EscalationWindow time.Duration `envconfig:"OKRIKA_DISPUTES_ESCALATION_WINDOW" default:"168h"`
}

type WebhooksConfig struct {
	MaxRetryAttempts int           `envconfig:"OKRIKA_WEBHOOKS_MAX_RETRY_ATTEMPTS" default:"5"`
	BackoffUnit      time.Duration `envconfig:"OKRIKA_WEBHOOKS_BACKOFF_UNIT" default:"1m"`
}

type CronConfig struct {
	Interval              time.Duration `envconfig:"OKRIKA_CRON_INTERVAL" default:"1h"`
	LockKey               string        `envconfig:"OKRIKA_CRON_LOCK_KEY" default:"okrika:cron:lock"`
	LockTTL               time.Duration `envconfig:"OKRIKA_CRON_LOCK_TTL" default:"2h"`
	HoldExpiryEvery       time.Duration `envconfig:"OKRIKA_CRON_HOLD_EXPIRY_EVERY" default:"6h"`
	ScheduledPayoutsEvery time.Duration `envconfig:"OKRIKA_CRON_SCHEDULED_PAYOUTS_EVERY" default:"4h"`
	DisputeEscalateEvery  time.Duration `envconfig:"OKRIKA_CRON_DISPUTE_ESCALATE_EVERY" default:"24h"`
	WebhookRetryEvery     time.Duration `envconfig:"OKRIKA_CRON_WEBHOOK_RETRY_EVERY" default:"1h"`
}

type NotifyConfig struct {
	CooldownTTL time.Duration `envconfig:"OKRIKA_NOTIFY_COOLDOWN_TTL" default:"15m"`
	AdminUserID string        `envconfig:"OKRIKA_NOTIFY_ADMIN_USER_ID"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"OKRIKA_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"OKRIKA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"OKRIKA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic        string `envconfig:"OKRIKA_PUBSUB_NOTIFICATION_TOPIC" default:"okrika-notification-events"`
	NotificationSubscription string `envconfig:"OKRIKA_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
	DomainTopic              string `envconfig:"OKRIKA_PUBSUB_DOMAIN_TOPIC" default:"okrika-domain-events"`
	DomainSubscription       string `envconfig:"OKRIKA_PUBSUB_DOMAIN_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"OKRIKA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"OKRIKA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"OKRIKA_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type StripeConfig struct {
	APIKey string `envconfig:"OKRIKA_STRIPE_API_KEY"`
	Env    string `envconfig:"OKRIKA_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SquareConfig struct {
	AccessToken   string `envconfig:"OKRIKA_SQUARE_ACCESS_TOKEN"`
	Environment   string `envconfig:"OKRIKA_SQUARE_ENV" default:"sandbox"`
	WebhookSecret string `envconfig:"OKRIKA_SQUARE_WEBHOOK_SECRET"`
}

type ListenerConfig struct {
	Port string `envconfig:"OKRIKA_LISTENER_PORT" default:"8081"`
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
	for _, env := range requiredDBEnvVars {
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
