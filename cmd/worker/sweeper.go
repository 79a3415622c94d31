package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/nfdrepairs/repair-ops/internal/cache"
	"github.com/nfdrepairs/repair-ops/internal/config"
	"github.com/nfdrepairs/repair-ops/internal/db"
	"github.com/nfdrepairs/repair-ops/internal/logger"
	"github.com/nfdrepairs/repair-ops/internal/metrics"
	"github.com/nfdrepairs/repair-ops/internal/notify"
	"github.com/nfdrepairs/repair-ops/internal/relay"
	"github.com/nfdrepairs/repair-ops/internal/repository"
	"github.com/nfdrepairs/repair-ops/internal/worker"
)

var sweeperCmd = &cobra.Command{
	Use:   "sweeper",
	Short: "Run the post-collection SMS sweeper",
	RunE:  runSweeper,
}

func runSweeper(cmd *cobra.Command, args []string) error {
	// 1) load config
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init(cfg.Log.Level)
	metrics.MustRegister(prometheus.DefaultRegisterer)

	// 2) DB connection (MySQL)
	dbx, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
		MaxOpenConns:    cfg.MySQL.MaxOpenConns,
		MaxIdleConns:    cfg.MySQL.MaxIdleConns,
		ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
		PingTimeout:     cfg.MySQL.PingTimeout,
	})
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}
	defer dbx.Close()

	rds, err := db.NewRedisClient(db.RedisOpts{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout,
	})
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	defer func() { _ = rds.Close() }()

	// 3) repositories + dispatcher
	jobsRepo := repository.NewJobsRepository(dbx)
	smsRepo := repository.NewSMSRepository(dbx)
	eventsRepo := repository.NewJobEventsRepository(dbx)
	notifsRepo := repository.NewNotificationsRepository(dbx)
	emailTplRepo := repository.NewEmailTemplatesRepository(dbx)
	settingsRepo := repository.NewSettingsRepository(dbx)
	settingsCache := cache.NewSettings(rds, settingsRepo, cfg.Settings.CacheTTL)

	disp := notify.NewDispatcher(notify.DispatcherOpts{
		Jobs:     jobsRepo,
		SMS:      smsRepo,
		Emails:   emailTplRepo,
		Notifs:   notifsRepo,
		Events:   eventsRepo,
		Settings: settingsCache,
		Relay:    relay.NewClient(cfg.Relay.TimeoutMs),
		BaseURL:  cfg.Business.BaseURL,
		RelayURL: cfg.Relay.WebhookURL,
	})

	w := &worker.Sweeper{
		Jobs:       jobsRepo,
		Dispatcher: disp,
		Interval:   cfg.Sweeper.Interval,
	}

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf(">> sweeper started interval=%s", cfg.Sweeper.Interval)

	return w.Run(ctx)
}
