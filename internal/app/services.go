package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/storebridge/storebridge/internal/auth"
	"github.com/storebridge/storebridge/internal/batch"
	"github.com/storebridge/storebridge/internal/google"
	"github.com/storebridge/storebridge/internal/hubspot"
	"github.com/storebridge/storebridge/internal/inventory"
	"github.com/storebridge/storebridge/internal/netsuite"
	"github.com/storebridge/storebridge/internal/notify"
	"github.com/storebridge/storebridge/internal/oauth"
	"github.com/storebridge/storebridge/internal/observability"
	"github.com/storebridge/storebridge/internal/orders"
	"github.com/storebridge/storebridge/internal/paypal"
	"github.com/storebridge/storebridge/internal/platform/cache"
	"github.com/storebridge/storebridge/internal/platform/db"
	"github.com/storebridge/storebridge/internal/shared"
	"github.com/storebridge/storebridge/internal/synclog"
	"github.com/storebridge/storebridge/internal/threedcart"
	"github.com/storebridge/storebridge/internal/webhooks"
	"github.com/storebridge/storebridge/jobs"
)

const googleBusinessScope = "https://www.googleapis.com/auth/business.manage"

// BuildOptions tunes service wiring per binary.
type BuildOptions struct {
	// DirectMail forces SMTP delivery even when NOTIFY_VIA_QUEUE is set. The
	// worker uses it so mail:send tasks do not enqueue themselves.
	DirectMail bool
}

// Services holds every long-lived dependency built from Config.
type Services struct {
	Config *Config
	Logger *slog.Logger

	Redis     *redis.Client
	Pool      *pgxpool.Pool
	Queue     *jobs.Client
	Inspector *asynq.Inspector
	Jobs      *jobs.Control

	ThreeDCart *threedcart.Client
	NetSuite   *netsuite.Client
	HubSpot    *hubspot.Client
	Google     *google.Client
	GoogleAuth *oauth.Manager
	PayPal     *paypal.Client

	SMTP       *notify.SMTPMailer
	Recipients *notify.Store
	Notifier   *notify.Notifier
	SyncLog    synclog.Log
	Dedupe     *shared.IdempotencyStore

	Orders    *orders.Service
	Inventory *inventory.Service
	Runner    *batch.Runner
}

// BuildServices connects to Redis (required) and Postgres (optional) and
// constructs the remote clients and domain services.
func BuildServices(ctx context.Context, cfg *Config, logger *slog.Logger, opts BuildOptions) (*Services, error) {
	s := &Services{Config: cfg, Logger: logger}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, err
	}
	s.Redis = redisClient

	pool, err := db.Open(ctx, cfg.PGDSN)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Pool = pool
	if pool != nil {
		repo := synclog.NewRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("sync log schema: %w", err)
		}
		s.SyncLog = repo
		s.Dedupe = shared.NewIdempotencyStore(pool)
		if err := s.Dedupe.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("idempotency schema: %w", err)
		}
		if err := s.Dedupe.Cleanup(ctx, cfg.Sync.DedupeRetention); err != nil {
			logger.Warn("prune webhook dedupe keys", slog.Any("error", err))
		}
	} else {
		logger.Warn("PG_DSN not set; sync log kept in memory and webhook de-duplication disabled")
	}

	queueOpts := cache.QueueOpts(cfg.RedisAddr)
	s.Queue = jobs.NewClient(queueOpts, cfg.Sync.RetryAttempts)
	s.Inspector = asynq.NewInspector(queueOpts)
	s.Jobs = jobs.NewControl(s.Queue, s.Inspector)

	s.ThreeDCart = threedcart.NewClient(threedcart.Config{
		BaseURL:    cfg.ThreeDCart.BaseURL,
		SecureURL:  cfg.ThreeDCart.SecureURL,
		PrivateKey: cfg.ThreeDCart.PrivateKey,
		Token:      cfg.ThreeDCart.Token,
		Timeout:    cfg.ThreeDCart.Timeout,
		RatePerSec: cfg.ThreeDCart.RatePerSec,
		Logger:     logger,
	})
	s.NetSuite = netsuite.NewClient(netsuite.Config{
		AccountID:      cfg.NetSuite.AccountID,
		BaseURL:        cfg.NetSuite.BaseURL,
		ConsumerKey:    cfg.NetSuite.ConsumerKey,
		ConsumerSecret: cfg.NetSuite.ConsumerSecret,
		TokenID:        cfg.NetSuite.TokenID,
		TokenSecret:    cfg.NetSuite.TokenSecret,
		Timeout:        cfg.NetSuite.Timeout,
		RatePerSec:     cfg.NetSuite.RatePerSec,
		Logger:         logger,
	})
	s.HubSpot = hubspot.NewClient(hubspot.Config{
		BaseURL:     cfg.HubSpot.BaseURL,
		AccessToken: cfg.HubSpot.AccessToken,
		Timeout:     cfg.HubSpot.Timeout,
		RatePerSec:  cfg.HubSpot.RatePerSec,
		Logger:      logger,
	})
	if cfg.Google.ClientID != "" {
		s.GoogleAuth = oauth.NewManager("google", &oauth2.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
			Scopes:       []string{googleBusinessScope},
			Endpoint:     endpoints.Google,
		}, oauth.NewFileStore(cfg.Google.TokenPath), logger, oauth.WithLocker(oauth.NewRedisLocker(redisClient)))
		s.Google = google.NewClient(google.Config{
			AccountID:  cfg.Google.AccountID,
			LocationID: cfg.Google.LocationID,
			Timeout:    cfg.Google.Timeout,
			Logger:     logger,
		}, s.GoogleAuth)
	}
	if cfg.PayPal.ClientID != "" {
		s.PayPal = paypal.NewClient(paypal.Config{
			BaseURL:      cfg.PayPal.BaseURL,
			ClientID:     cfg.PayPal.ClientID,
			ClientSecret: cfg.PayPal.ClientSecret,
			Timeout:      cfg.PayPal.Timeout,
			Logger:       logger,
		})
	}

	s.SMTP = notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		StartTLS: cfg.SMTP.StartTLS,
		Timeout:  cfg.SMTP.Timeout,
	})
	var mailer notify.Mailer = s.SMTP
	if cfg.Notify.ViaQueue && !opts.DirectMail {
		mailer = s.Queue
	}
	s.Recipients = notify.NewStore(cfg.Notify.SettingsPath, cfg.Notify.DefaultRecipient)
	s.Recipients.SetBackupLimit(cfg.Notify.BackupKeep)
	s.Notifier = notify.NewNotifier(s.Recipients, mailer, cfg.AdminBaseURL, logger)

	s.Orders = orders.NewService(s.ThreeDCart, s.NetSuite, s.Notifier, s.SyncLog, orders.Config{
		StoreParentID:     cfg.NetSuite.StoreParentID,
		SubsidiaryID:      cfg.NetSuite.SubsidiaryID,
		LocationID:        cfg.NetSuite.LocationID,
		PassThroughGroups: cfg.ThreeDCart.PassThroughGroupIDs,
		WritebackStatus:   cfg.Sync.WritebackStatus,
		RetryAttempts:     cfg.Sync.RetryAttempts,
		RetryDelay:        cfg.Sync.RetryDelay,
	}, logger)
	s.Inventory = inventory.NewService(s.ThreeDCart, s.NetSuite, s.Notifier, logger)
	s.Runner = batch.NewRunner(s.Inventory, s.Orders, s.Jobs)
	return s, nil
}

// Router builds the HTTP handler tree for the admin server.
func (s *Services) Router(metrics *observability.Metrics) (http.Handler, error) {
	cfg, logger := s.Config, s.Logger

	fields, err := webhooks.LoadFieldMap(cfg.HubSpot.FieldMapPath)
	if err != nil {
		return nil, fmt.Errorf("field map: %w", err)
	}
	var dispatcher webhooks.OrderDispatcher = webhooks.InlineDispatcher(s.Orders)
	if cfg.Sync.QueueWebhooks {
		dispatcher = s.Queue
	}
	var dedupe webhooks.Deduper
	if s.Dedupe != nil {
		dedupe = s.Dedupe
	}
	webhookHandler := webhooks.NewHandler(webhooks.Config{
		ThreeDCartSecret: cfg.ThreeDCart.WebhookSecret,
		HubSpotSecret:    cfg.HubSpot.ClientSecret,
		NetSuiteSecret:   cfg.NetSuite.WebhookSecret,
	}, dispatcher, s.HubSpot, s.NetSuite, dedupe, fields, logger).WithObserver(metrics)

	sessions := shared.NewSessionManager(s.Redis, "storebridge_session", cfg.SessionTTL, cfg.IsProduction())
	csrf := shared.NewCSRFManager(cfg.CSRFSecret)
	authService := auth.NewService(auth.NewStaticDirectory(cfg.AdminUser, cfg.AdminPasswordHash), cfg.APIKeys())

	params := RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessions,
		CSRFManager:      csrf,
		AuthService:      authService,
		AuthHandler:      auth.NewHandler(logger, authService, sessions, csrf),
		OrdersHandler:    orders.NewHandler(s.Orders, nil, cfg.AdminBaseURL, logger),
		InventoryHandler: inventory.NewHandler(s.Inventory, logger),
		NotifyHandler:    notify.NewHandler(s.Recipients, logger),
		WebhookHandler:   webhookHandler,
		BatchHandler:     batch.NewHandler(s.Runner, logger),
		JobHandler:       jobs.NewHandler(s.Inspector, logger),
		Metrics:          metrics,
	}
	if s.Google != nil {
		params.GoogleHandler = google.NewHandler(s.Google, logger)
		params.OAuthHandler = oauth.NewHandler(s.GoogleAuth, logger)
	}
	if s.PayPal != nil {
		params.PayPalHandler = paypal.NewHandler(s.PayPal, logger)
	}
	return NewRouter(params), nil
}

// Close releases connections opened by BuildServices.
func (s *Services) Close() {
	if s.Inspector != nil {
		if err := s.Inspector.Close(); err != nil {
			s.Logger.Warn("inspector close", slog.Any("error", err))
		}
	}
	if s.Queue != nil {
		if err := s.Queue.Close(); err != nil {
			s.Logger.Warn("queue client close", slog.Any("error", err))
		}
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			s.Logger.Warn("redis close", slog.Any("error", err))
		}
	}
}
