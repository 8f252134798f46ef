package app

import (
	"errors"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"120s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"90s"`
	AdminBaseURL      string        `envconfig:"ADMIN_BASE_URL" default:"http://localhost:8080"`
	RateLimitPerMin   int           `envconfig:"APP_RATE_LIMIT_PER_MIN" default:"300"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	// PGDSN is optional; the sync log and webhook de-duplication are
	// disabled without it.
	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"12h"`
	CSRFSecret    string        `envconfig:"CSRF_SECRET" required:"true"`

	AdminUser         string `envconfig:"ADMIN_USER" default:"admin"`
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH"`
	AdminAPIKeys      string `envconfig:"ADMIN_API_KEYS"`

	BatchAllowedIPs string `envconfig:"BATCH_ALLOWED_IPS" default:"127.0.0.1,::1"`
	// TrustedProxies lists peers whose X-Forwarded-For / X-Real-IP headers
	// are believed. Empty means the socket address is always used.
	TrustedProxies string `envconfig:"APP_TRUSTED_PROXIES"`

	ThreeDCart ThreeDCartConfig
	NetSuite   NetSuiteConfig
	HubSpot    HubSpotConfig
	Google     GoogleConfig
	PayPal     PayPalConfig
	SMTP       SMTPConfig
	Notify     NotifyConfig
	Sync       SyncConfig
	Worker     WorkerConfig
}

// ThreeDCartConfig configures the commerce platform client.
type ThreeDCartConfig struct {
	BaseURL       string        `envconfig:"THREEDCART_BASE_URL" default:"https://apirest.3dcart.com/3dCartWebAPI/v1"`
	SecureURL     string        `envconfig:"THREEDCART_SECURE_URL"`
	PrivateKey    string        `envconfig:"THREEDCART_PRIVATE_KEY"`
	Token         string        `envconfig:"THREEDCART_TOKEN"`
	Timeout       time.Duration `envconfig:"THREEDCART_TIMEOUT" default:"30s"`
	RatePerSec    float64       `envconfig:"THREEDCART_RATE_PER_SEC" default:"2"`
	WebhookSecret string        `envconfig:"THREEDCART_WEBHOOK_SECRET"`
	// PassThroughGroupIDs lists customer group ids whose orders ship through
	// a third-party store account.
	PassThroughGroupIDs []int64 `envconfig:"THREEDCART_PASSTHROUGH_GROUPS"`
}

// NetSuiteConfig configures the ERP client (token based authentication).
type NetSuiteConfig struct {
	AccountID      string        `envconfig:"NETSUITE_ACCOUNT_ID"`
	BaseURL        string        `envconfig:"NETSUITE_BASE_URL"`
	ConsumerKey    string        `envconfig:"NETSUITE_CONSUMER_KEY"`
	ConsumerSecret string        `envconfig:"NETSUITE_CONSUMER_SECRET"`
	TokenID        string        `envconfig:"NETSUITE_TOKEN_ID"`
	TokenSecret    string        `envconfig:"NETSUITE_TOKEN_SECRET"`
	Timeout        time.Duration `envconfig:"NETSUITE_TIMEOUT" default:"60s"`
	RatePerSec     float64       `envconfig:"NETSUITE_RATE_PER_SEC" default:"5"`
	WebhookSecret  string        `envconfig:"NETSUITE_WEBHOOK_SECRET"`
	// StoreParentID is the parent account under which store customers live.
	StoreParentID string `envconfig:"NETSUITE_STORE_PARENT_ID"`
	SubsidiaryID  string `envconfig:"NETSUITE_SUBSIDIARY_ID" default:"1"`
	LocationID    string `envconfig:"NETSUITE_LOCATION_ID"`
}

// HubSpotConfig configures the CRM client.
type HubSpotConfig struct {
	BaseURL      string        `envconfig:"HUBSPOT_BASE_URL" default:"https://api.hubapi.com"`
	AccessToken  string        `envconfig:"HUBSPOT_ACCESS_TOKEN"`
	ClientSecret string        `envconfig:"HUBSPOT_CLIENT_SECRET"`
	Timeout      time.Duration `envconfig:"HUBSPOT_TIMEOUT" default:"20s"`
	RatePerSec   float64       `envconfig:"HUBSPOT_RATE_PER_SEC" default:"8"`
	FieldMapPath string        `envconfig:"FIELD_MAP_PATH"`
}

// GoogleConfig configures Google Business Profile access.
type GoogleConfig struct {
	ClientID     string        `envconfig:"GOOGLE_CLIENT_ID"`
	ClientSecret string        `envconfig:"GOOGLE_CLIENT_SECRET"`
	RedirectURL  string        `envconfig:"GOOGLE_REDIRECT_URL" default:"http://localhost:8080/oauth/google/callback"`
	TokenPath    string        `envconfig:"GOOGLE_TOKEN_PATH" default:"var/google_token.json"`
	AccountID    string        `envconfig:"GOOGLE_ACCOUNT_ID"`
	LocationID   string        `envconfig:"GOOGLE_LOCATION_ID"`
	Timeout      time.Duration `envconfig:"GOOGLE_TIMEOUT" default:"20s"`
}

// PayPalConfig configures the PayPal REST client.
type PayPalConfig struct {
	BaseURL      string        `envconfig:"PAYPAL_BASE_URL" default:"https://api-m.paypal.com"`
	ClientID     string        `envconfig:"PAYPAL_CLIENT_ID"`
	ClientSecret string        `envconfig:"PAYPAL_CLIENT_SECRET"`
	Timeout      time.Duration `envconfig:"PAYPAL_TIMEOUT" default:"20s"`
}

// SMTPConfig configures outbound email.
type SMTPConfig struct {
	Host     string        `envconfig:"SMTP_HOST" default:"127.0.0.1"`
	Port     int           `envconfig:"SMTP_PORT" default:"1025"`
	Username string        `envconfig:"SMTP_USERNAME"`
	Password string        `envconfig:"SMTP_PASSWORD"`
	From     string        `envconfig:"SMTP_FROM" default:"no-reply@storebridge.local"`
	StartTLS bool          `envconfig:"SMTP_STARTTLS" default:"false"`
	Timeout  time.Duration `envconfig:"SMTP_TIMEOUT" default:"30s"`
}

// NotifyConfig configures recipient storage.
type NotifyConfig struct {
	SettingsPath     string `envconfig:"NOTIFY_SETTINGS_PATH" default:"var/notification_settings.json"`
	DefaultRecipient string `envconfig:"NOTIFY_DEFAULT_RECIPIENT" default:"ops@storebridge.local"`
	ViaQueue         bool   `envconfig:"NOTIFY_VIA_QUEUE" default:"false"`
	BackupKeep       int    `envconfig:"NOTIFY_BACKUP_KEEP" default:"20"`
}

// SyncConfig configures order sync behaviour.
type SyncConfig struct {
	RetryAttempts   int           `envconfig:"SYNC_RETRY_ATTEMPTS" default:"3"`
	RetryDelay      time.Duration `envconfig:"SYNC_RETRY_DELAY" default:"5s"`
	WritebackStatus bool          `envconfig:"ORDER_WRITEBACK_STATUS" default:"true"`
	// QueueWebhooks routes webhook-triggered creations through the worker.
	QueueWebhooks bool `envconfig:"SYNC_QUEUE_WEBHOOKS" default:"true"`
	// DedupeRetention bounds how long processed webhook event ids are kept.
	DedupeRetention time.Duration `envconfig:"WEBHOOK_DEDUPE_RETENTION" default:"720h"`
}

// WorkerConfig holds the schedules for recurring jobs.
type WorkerConfig struct {
	Concurrency     int    `envconfig:"WORKER_CONCURRENCY" default:"2"`
	MetricsAddr     string `envconfig:"WORKER_METRICS_ADDR" default:":9091"`
	InventoryCron   string `envconfig:"WORKER_INVENTORY_CRON" default:"0 */4 * * *"`
	InventoryLimit  int    `envconfig:"WORKER_INVENTORY_LIMIT" default:"200"`
	StatusSweepCron string `envconfig:"WORKER_STATUS_SWEEP_CRON" default:"30 * * * *"`
	StatusSweepDays int    `envconfig:"WORKER_STATUS_SWEEP_DAYS" default:"14"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants envconfig cannot express.
func (c *Config) Validate() error {
	if c.SessionSecret == "" {
		return errors.New("session secret must be provided")
	}
	if c.CSRFSecret == "" {
		return errors.New("csrf secret must be provided")
	}
	if c.Sync.RetryAttempts < 1 {
		return errors.New("SYNC_RETRY_ATTEMPTS must be at least 1")
	}
	if c.Sync.RetryDelay < 0 {
		return errors.New("SYNC_RETRY_DELAY must not be negative")
	}
	if c.Notify.DefaultRecipient == "" {
		return errors.New("NOTIFY_DEFAULT_RECIPIENT must be provided")
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// APIKeys returns the configured admin API keys.
func (c *Config) APIKeys() []string {
	return splitList(c.AdminAPIKeys)
}

// BatchAllowList returns the IPs allowed to call batch endpoints.
func (c *Config) BatchAllowList() []string {
	return splitList(c.BatchAllowedIPs)
}

// TrustedProxyList returns the peers allowed to set forwarding headers.
func (c *Config) TrustedProxyList() []string {
	return splitList(c.TrustedProxies)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
