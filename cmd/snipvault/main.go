package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/snipvault/snipvault/internal/archive"
	"github.com/snipvault/snipvault/internal/config"
	"github.com/snipvault/snipvault/internal/db"
	"github.com/snipvault/snipvault/internal/handler"
	"github.com/snipvault/snipvault/internal/job"
	"github.com/snipvault/snipvault/internal/middleware"
	"github.com/snipvault/snipvault/internal/repo"
	"github.com/snipvault/snipvault/internal/schedule"
	"github.com/snipvault/snipvault/internal/service"
	"github.com/snipvault/snipvault/internal/uaclass"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "snipvault",
		Short: "snipvault share engine server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run snipvault server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, conn)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("timezone", cfg.Stats.Timezone),
	)

	loc, err := time.LoadLocation(cfg.Stats.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	tokenRepo := repo.NewShareTokenRepo(conn)
	logRepo := repo.NewAccessLogRepo(conn)

	classifier := uaclass.WrapLRU(uaclass.NewHeuristicClassifier(nil), 4096, time.Hour)

	shareService := service.NewShareService(tokenRepo, logRepo, cfg.Share)
	accessService := service.NewAccessService(tokenRepo, logRepo, classifier, cfg.Share.StorageTimeout(), loc)
	statsService := service.NewStatsService(tokenRepo, logRepo, loc)
	bulkService := service.NewBulkService(tokenRepo, logRepo)

	deps := handler.RouterDeps{
		Shares:    handler.NewShareHandler(shareService),
		Access:    handler.NewAccessHandler(accessService),
		Stats:     handler.NewStatsHandler(statsService),
		Bulk:      handler.NewBulkHandler(bulkService),
		JWTSecret: []byte(cfg.JWTSecret),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if cfg.Archive.Enabled {
		store, err := archive.New(cfg.Archive)
		if err != nil {
			return fmt.Errorf("init archive store: %w", err)
		}
		retention := job.NewLogRetentionJob(logRepo, store, cfg.Archive.RetentionDays)
		if err := scheduler.AddJob(retention, cfg.Archive.Cron); err != nil {
			return fmt.Errorf("schedule retention job: %w", err)
		}
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
