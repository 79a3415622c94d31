package http

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/nfdrepairs/repair-ops/internal/cache"
	"github.com/nfdrepairs/repair-ops/internal/config"
	"github.com/nfdrepairs/repair-ops/internal/http/middleware"
	"github.com/nfdrepairs/repair-ops/internal/metrics"
	"github.com/nfdrepairs/repair-ops/internal/notify"
	"github.com/nfdrepairs/repair-ops/internal/relay"
	"github.com/nfdrepairs/repair-ops/internal/repository"
	"github.com/nfdrepairs/repair-ops/internal/warranty"
	"github.com/nfdrepairs/repair-ops/internal/workflow"
)

type Server struct{ e *echo.Echo }

func NewServer(cfg config.Config, db *sqlx.DB, rds *redis.Client, emailSender notify.EmailSender) *Server {
	// repos
	jobsRepo := repository.NewJobsRepository(db)
	eventsRepo := repository.NewJobEventsRepository(db)
	smsRepo := repository.NewSMSRepository(db)
	emailTplRepo := repository.NewEmailTemplatesRepository(db)
	notifsRepo := repository.NewNotificationsRepository(db)
	warrantyRepo := repository.NewWarrantyRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	settingsCache := cache.NewSettings(rds, settingsRepo, cfg.Settings.CacheTTL)

	// services
	dispatcher := notify.NewDispatcher(notify.DispatcherOpts{
		Jobs:     jobsRepo,
		SMS:      smsRepo,
		Emails:   emailTplRepo,
		Notifs:   notifsRepo,
		Events:   eventsRepo,
		Settings: settingsCache,
		Relay:    relay.NewClient(cfg.Relay.TimeoutMs),
		Email:    emailSender,
		BaseURL:  cfg.Business.BaseURL,
		RelayURL: cfg.Relay.WebhookURL,
	})
	wf := workflow.NewService(jobsRepo, eventsRepo, notifsRepo, dispatcher, cfg.Workflow.EnforceTransitions)
	creator := workflow.NewCreator(wf, cfg.Business.ReferencePrefix)
	warrantySvc := warranty.NewService(warrantyRepo, notifsRepo, warranty.NewMatcher(jobsRepo), cfg.Business.WarrantyPrefix)
	push := notify.NewPushBroadcaster(notifsRepo, cfg.Push.TimeoutMs)

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	warrantyAuth := middleware.APIKeyMiddleware(settingsCache)
	warrantyRL := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		RPS:            cfg.RateLimit.RPS,
		Burst:          cfg.RateLimit.Burst,
		KeyPrefix:      "rl:warranty:",
		Window:         time.Second,
		RetryAfterHint: true,
	})
	cronAuth := middleware.CronAuthMiddleware(cfg.Cron.Secret)

	api := e.Group("/api")

	// jobs
	api.POST("/jobs/create-v3", createJobHandler(creator, cfg.Business.BaseURL))
	api.GET("/jobs", listJobsHandler(jobsRepo))
	api.GET("/jobs/:id", getJobHandler(jobsRepo))
	api.POST("/jobs/change-status", changeStatusHandler(wf))
	api.POST("/jobs/mark-deposit-received", markDepositReceivedHandler(wf))
	api.POST("/jobs/complete-onboarding", completeOnboardingHandler(jobsRepo))
	api.POST("/jobs/queue-status-sms", queueStatusSMSHandler(dispatcher))
	api.POST("/jobs/schedule-collection-sms", scheduleCollectionSMSHandler(wf))
	api.POST("/jobs/send-collection-sms", sendCollectionSMSHandler(jobsRepo, dispatcher))
	api.GET("/jobs/send-collection-sms", sweepCollectionSMSHandler(jobsRepo, dispatcher), cronAuth)

	// public tracking
	api.GET("/track/:token", trackJobHandler(jobsRepo, eventsRepo))

	// sms
	api.POST("/sms/resend", resendSMSHandler(dispatcher))
	api.POST("/sms/reply", inboundSMSHandler(warrantySvc))

	// warranty (external, API-key + rate limited)
	api.POST("/warranty-tickets", createWarrantyTicketHandler(warrantySvc), warrantyAuth, warrantyRL)

	// email
	api.POST("/email/send", sendEmailHandler(jobsRepo, dispatcher))

	// staff notifications + push
	api.GET("/notifications", listNotificationsHandler(notifsRepo))
	api.POST("/notifications/:id/read", markNotificationReadHandler(notifsRepo))
	api.POST("/notifications/send-push", sendPushHandler(push))
	api.POST("/notifications/subscribe-push", subscribePushHandler(notifsRepo))

	// settings
	api.GET("/settings", listSettingsHandler(settingsRepo))
	api.PUT("/settings", putSettingHandler(settingsRepo, settingsCache))

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	log.Printf("http: listening on %s", addr)
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
