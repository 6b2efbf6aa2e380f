// @title           Credit Risk Lens API
// @version         1.0
// @description     Ordinal credit risk scoring with local explanations grouped into the five Cs of credit.
// @BasePath        /
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/analysis"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/config"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/database"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/dataset"
	apperrors "github.com/ZanzyTHEbar/credit-risk-lens/internal/errors"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/leaderboard"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/monitoring"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/privacy"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/ratelimit"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/resilience"
)

func main() {
	appLogger := monitoring.NewLogger()
	slog.SetDefault(appLogger.Logger)

	cfg, err := config.Load()
	if err != nil {
		appErr := apperrors.NewConfigurationError(err.Error(), err)
		slog.Error("Invalid configuration", "error", appErr.Error(), "cause", err, "category", appErr.Category)
		os.Exit(1)
	}
	gin.SetMode(cfg.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db *database.DB
	err = resilience.Retry(ctx, cfg.Retry, func(ctx context.Context) error {
		var openErr error
		db, openErr = database.NewDB(ctx, cfg.Storage.DataDir)
		return openErr
	})
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer apperrors.SafeClose(db, "database")
	repo := database.NewRepository(db)

	appMetrics := monitoring.NewMetrics()
	analyzer, err := analysis.NewAnalyzer(cfg.Analysis, repo,
		analysis.WithMetrics(appMetrics),
		analysis.WithLogger(appLogger),
		analysis.WithResultSink(repo),
	)
	if err != nil {
		slog.Error("Failed to create analyzer", "error", err)
		os.Exit(1)
	}

	if err := bootstrapModel(ctx, cfg.Storage, repo, analyzer); err != nil {
		// The service still starts; /api/ml/retrain can fit a model later.
		slog.Warn("Starting without a trained model", "error", err)
	}

	redisClient, err := ratelimit.NewRedisClient(ctx, cfg.Limits.RedisAddr, cfg.Retry)
	if err != nil {
		slog.Warn("Redis unavailable, rate limiting stays in memory", "error", err)
	}
	defer apperrors.SafeClose(redisClient, "redis")

	limiter := ratelimit.NewRateLimiter(redisClient, ratelimit.Config{
		IPLimitPerMin: cfg.Limits.RequestsPerMinute,
		Burst:         cfg.Limits.Burst,
	}, appMetrics)
	defer limiter.Close()

	memoryMonitor := monitoring.NewMemoryMonitor(30*time.Second, 512<<20, appLogger)
	memoryMonitor.Start(ctx)

	privacyService := privacy.NewService(db, analyzer, cfg.Storage.AnalysisRetention)
	privacyService.StartCleanup(ctx, time.Hour)

	s := &server{
		cfg:      cfg,
		analyzer: analyzer,
		repo:     repo,
		db:       db,
		redis:    redisClient,
		limiter:  limiter,
		metrics:  appMetrics,
		logger:   appLogger,
		memory:   memoryMonitor,
		privacy:  privacyService,
		board:    leaderboard.NewService(db, cfg.Server.LeaderboardTTL),
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Server.Port, "model_ready", analyzer.Pipeline() != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	slog.Info("Server exited")
}

// bootstrapModel trains the first pipeline. A configured training CSV is
// loaded into the store first; otherwise whatever the store already holds
// is used.
func bootstrapModel(ctx context.Context, storage config.StorageConfig, repo *database.Repository, analyzer *analysis.Analyzer) error {
	if storage.TrainingCSV != "" {
		records, err := dataset.ReadFile(storage.TrainingCSV)
		if err != nil {
			return err
		}
		if err := repo.SaveApplications(ctx, records); err != nil {
			return err
		}
		slog.Info("Loaded training corpus", "path", storage.TrainingCSV, "rows", len(records))
	}

	records, err := repo.ListApplications(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return errors.New("no stored applications to train on")
	}
	_, err = analyzer.Retrain(ctx, records)
	return err
}
