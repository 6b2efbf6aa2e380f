package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/ZanzyTHEbar/credit-risk-lens/docs"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/analysis"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/config"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/database"
	apperrors "github.com/ZanzyTHEbar/credit-risk-lens/internal/errors"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/leaderboard"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/middleware"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/monitoring"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/privacy"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/ratelimit"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/security"
)

// retrainPerMinute caps retraining per client; a pass refits the whole model.
const retrainPerMinute = 6

// server holds the collaborators the handlers share.
type server struct {
	cfg      config.Config
	analyzer *analysis.Analyzer
	repo     *database.Repository
	db       *database.DB
	redis    *ratelimit.RedisClient
	limiter  *ratelimit.RateLimiter
	metrics  *monitoring.Metrics
	logger   *monitoring.Logger
	memory   *monitoring.MemoryMonitor
	security *security.SecurityMiddleware
	gzip     *middleware.CompressionMiddleware
	privacy  *privacy.Service
	board    *leaderboard.Service
}

// routes builds the gin engine. Middleware order: metrics and recovery
// first so every request is counted, then headers, limits and errors.
func (s *server) routes() *gin.Engine {
	if s.security == nil {
		s.security = security.NewSecurityMiddleware(security.SecurityConfig{
			MaxIDLength:    64,
			MaxUploadBytes: s.cfg.Server.MaxUploadBytes,
			AllowedOrigins: s.cfg.Server.AllowedOrigins,
			RequestTimeout: s.cfg.Server.RequestTimeout,
		})
	}
	if s.gzip == nil {
		s.gzip = middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig())
	}
	if s.privacy == nil {
		s.privacy = privacy.NewService(s.db, s.analyzer, s.cfg.Storage.AnalysisRetention)
	}
	if s.board == nil {
		s.board = leaderboard.NewService(s.db, s.cfg.Server.LeaderboardTTL)
	}

	r := gin.New()
	r.Use(monitoring.MonitoringMiddleware(s.metrics, s.logger))
	r.Use(apperrors.RecoveryHandler())
	r.Use(s.security.CORSConfig())
	r.Use(s.security.SecurityHeaders)
	r.Use(s.limiter.IPRateLimitMiddleware())
	r.Use(s.security.RequestTimeout)
	r.Use(s.security.ValidateContentType)
	r.Use(s.security.LimitBody)
	r.Use(s.gzip.Handler())
	r.Use(apperrors.ErrorHandler())

	r.GET("/health", s.handleHealth)

	docs.SwaggerInfo.BasePath = "/"
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api")
	api.POST("/applications", s.handleStoreApplications)
	api.DELETE("/applications/:id", s.security.ApplicationIDParam, s.handleDeleteApplication)
	api.GET("/applications/:id/privacy", s.security.ApplicationIDParam, s.handleFootprint)

	ml := api.Group("/ml")
	ml.POST("/analysis", s.handleAnalyze)
	ml.GET("/analysis/:id", s.security.ApplicationIDParam, s.handleGetAnalysis)
	ml.GET("/analysis/:id/explain", s.security.ApplicationIDParam, s.handleExplain)
	ml.DELETE("/analysis/:id", s.security.ApplicationIDParam, s.handleInvalidate)
	ml.DELETE("/analysis", s.handleResetAll)
	ml.POST("/retrain", s.limiter.EndpointRateLimitMiddleware("retrain", retrainPerMinute), s.handleRetrain)
	ml.POST("/categorize", s.handleCategorize)
	ml.GET("/health", s.handleModelHealth)
	ml.GET("/taxonomy", s.handleTaxonomy)
	ml.GET("/leaderboard", s.handleLeaderboard)
	ml.GET("/leaderboard/:id", s.security.ApplicationIDParam, s.handleRank)

	return r
}
