package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/analysis"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/dataset"
	apperrors "github.com/ZanzyTHEbar/credit-risk-lens/internal/errors"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/features"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/fivec"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/leaderboard"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/types"
)

const maxBatchRows = 50000

var errEmptyBody = errors.New("request body is empty")

// RetrainResponse reports a finished training pass.
type RetrainResponse struct {
	ModelVersion string                   `json:"model_version"`
	TrainedAt    time.Time                `json:"trained_at"`
	Training     analysis.TrainingSummary `json:"training"`
	Stored       int                      `json:"stored"`
	Source       string                   `json:"source"`
}

// CategorizeResponse holds batch predictions in input order.
type CategorizeResponse struct {
	Count        int                   `json:"count"`
	ModelVersion string                `json:"model_version"`
	Predictions  []analysis.Prediction `json:"predictions"`
}

// TaxonomyResponse lists the features behind each C.
type TaxonomyResponse struct {
	Categories map[fivec.Category][]string `json:"categories"`
	Unmapped   []string                    `json:"unmapped"`
}

func respondError(c *gin.Context, err error) {
	appErr := apperrors.ToAppError(err)
	appErr.RequestID = c.GetHeader("X-Request-ID")
	apperrors.LogError(c, appErr)
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
}

// readRecords decodes applications from a multipart "file" field, a CSV
// body or a JSON {"records": [...]} body.
func readRecords(c *gin.Context) ([]types.ApplicationRecord, error) {
	if c.Request.ContentLength == 0 {
		return nil, errEmptyBody
	}

	switch c.ContentType() {
	case "multipart/form-data":
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, apperrors.NewValidationError("multipart upload needs a \"file\" field", err)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, apperrors.NewValidationError("unable to open upload", err)
		}
		defer f.Close()
		return readCSV(f)
	case "text/csv":
		return readCSV(c.Request.Body)
	default:
		var req types.RetrainRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errEmptyBody
			}
			return nil, apperrors.NewValidationError("invalid JSON body", err)
		}
		return req.Records, nil
	}
}

func readCSV(r io.Reader) ([]types.ApplicationRecord, error) {
	records, err := dataset.Read(r)
	if err != nil {
		if errors.Is(err, dataset.ErrMissingID) {
			return nil, err
		}
		return nil, apperrors.NewValidationError("invalid CSV upload", err)
	}
	return records, nil
}

func (s *server) validateIDs(records []types.ApplicationRecord) error {
	bad := make(map[string]string)
	for i, r := range records {
		if err := s.security.ValidateApplicationID(r.ID); err != nil {
			bad[fmt.Sprintf("records[%d]", i)] = err.Error()
			if len(bad) == 10 {
				break
			}
		}
	}
	if len(bad) > 0 {
		return apperrors.NewValidationErrorWithMap(bad)
	}
	return nil
}

// handleAnalyze godoc
// @Summary      Analyze an application
// @Description  Scores a stored application and explains the result. Results are cached per application until invalidated or the model is retrained.
// @Tags         analysis
// @Accept       json
// @Produce      json
// @Param        request  body      types.AnalyzeRequest  true  "Application to analyze"
// @Success      200      {object}  analysis.AnalysisResult
// @Failure      400      {object}  apperrors.AppError
// @Failure      404      {object}  apperrors.AppError
// @Failure      503      {object}  apperrors.AppError
// @Router       /api/ml/analysis [post]
func (s *server) handleAnalyze(c *gin.Context) {
	var req types.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewValidationError("application_id is required", err))
		return
	}
	if err := s.security.ValidateApplicationID(req.ApplicationID); err != nil {
		respondError(c, apperrors.NewValidationError(err.Error(), nil))
		return
	}
	s.analyze(c, req.ApplicationID)
}

// handleGetAnalysis godoc
// @Summary      Get the analysis of an application
// @Tags         analysis
// @Produce      json
// @Param        id   path      string  true  "Application ID"
// @Success      200  {object}  analysis.AnalysisResult
// @Failure      404  {object}  apperrors.AppError
// @Failure      503  {object}  apperrors.AppError
// @Router       /api/ml/analysis/{id} [get]
func (s *server) handleGetAnalysis(c *gin.Context) {
	s.analyze(c, c.Param("id"))
}

func (s *server) analyze(c *gin.Context, id string) {
	result, err := s.analyzer.Analyze(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleExplain godoc
// @Summary      Explain a risk category
// @Description  Attributes the model output for the requested category, or the predicted one when omitted. Not cached.
// @Tags         analysis
// @Produce      json
// @Param        id        path      string  true   "Application ID"
// @Param        category  query     string  false  "Risk category label"
// @Success      200       {object}  analysis.Explanation
// @Failure      400       {object}  apperrors.AppError
// @Failure      404       {object}  apperrors.AppError
// @Failure      503       {object}  apperrors.AppError
// @Router       /api/ml/analysis/{id}/explain [get]
func (s *server) handleExplain(c *gin.Context) {
	exp, err := s.analyzer.Explain(c.Request.Context(), c.Param("id"), c.Query("category"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, exp)
}

// handleInvalidate godoc
// @Summary      Drop one cached analysis
// @Tags         analysis
// @Produce      json
// @Param        id   path      string  true  "Application ID"
// @Success      200  {object}  map[string]interface{}
// @Router       /api/ml/analysis/{id} [delete]
func (s *server) handleInvalidate(c *gin.Context) {
	id := c.Param("id")
	c.JSON(http.StatusOK, gin.H{
		"application_id": id,
		"invalidated":    s.analyzer.Invalidate(id),
	})
}

// handleResetAll godoc
// @Summary      Drop every cached analysis
// @Tags         analysis
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/ml/analysis [delete]
func (s *server) handleResetAll(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cleared": s.analyzer.ResetAll()})
}

// handleRetrain godoc
// @Summary      Retrain the model
// @Description  Fits a new pipeline on an uploaded corpus (multipart "file", text/csv or JSON records) or, with an empty body, on every stored application. The serving model changes only when training succeeds.
// @Tags         model
// @Accept       json,mpfd,text/csv
// @Produce      json
// @Param        request  body      types.RetrainRequest  false  "Training corpus"
// @Success      200      {object}  RetrainResponse
// @Failure      400      {object}  apperrors.AppError
// @Failure      422      {object}  apperrors.AppError
// @Failure      429      {object}  apperrors.AppError
// @Router       /api/ml/retrain [post]
func (s *server) handleRetrain(c *gin.Context) {
	ctx := c.Request.Context()
	source := "upload"

	records, err := readRecords(c)
	switch {
	case errors.Is(err, errEmptyBody):
		source = "store"
		records, err = s.repo.ListApplications(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
	case err != nil:
		respondError(c, err)
		return
	default:
		if err := s.validateIDs(records); err != nil {
			respondError(c, err)
			return
		}
	}

	p, err := s.analyzer.Retrain(ctx, records)
	if err != nil {
		respondError(c, err)
		return
	}

	stored := 0
	if source == "upload" {
		if err := s.repo.SaveApplications(ctx, records); err != nil {
			slog.Error("Model retrained but corpus was not stored", "error", err, "rows", len(records))
		} else {
			stored = len(records)
		}
	}

	c.JSON(http.StatusOK, RetrainResponse{
		ModelVersion: p.Version,
		TrainedAt:    p.TrainedAt,
		Training:     p.Summary,
		Stored:       stored,
		Source:       source,
	})
}

// handleCategorize godoc
// @Summary      Categorize a batch
// @Description  Predicts risk categories for many applications at once, without explanations. Records are not stored.
// @Tags         model
// @Accept       json,mpfd,text/csv
// @Produce      json
// @Param        request  body      types.CategorizeRequest  true  "Applications"
// @Success      200      {object}  CategorizeResponse
// @Failure      400      {object}  apperrors.AppError
// @Failure      503      {object}  apperrors.AppError
// @Router       /api/ml/categorize [post]
func (s *server) handleCategorize(c *gin.Context) {
	records, err := readRecords(c)
	if errors.Is(err, errEmptyBody) || (err == nil && len(records) == 0) {
		respondError(c, apperrors.NewValidationError("at least one record is required", err))
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	if len(records) > maxBatchRows {
		respondError(c, apperrors.NewValidationError(fmt.Sprintf("batch exceeds %d rows", maxBatchRows), nil))
		return
	}

	predictions, err := s.analyzer.Categorize(c.Request.Context(), records)
	if err != nil {
		respondError(c, err)
		return
	}
	version := ""
	if p := s.analyzer.Pipeline(); p != nil {
		version = p.Version
	}
	c.JSON(http.StatusOK, CategorizeResponse{
		Count:        len(predictions),
		ModelVersion: version,
		Predictions:  predictions,
	})
}

// handleStoreApplications godoc
// @Summary      Store applications
// @Description  Inserts or replaces applications so they can be analyzed by id. Cached analyses of replaced applications are dropped.
// @Tags         applications
// @Accept       json,mpfd,text/csv
// @Produce      json
// @Param        request  body      types.RetrainRequest  true  "Applications"
// @Success      201      {object}  map[string]interface{}
// @Failure      400      {object}  apperrors.AppError
// @Router       /api/applications [post]
func (s *server) handleStoreApplications(c *gin.Context) {
	records, err := readRecords(c)
	if errors.Is(err, errEmptyBody) || (err == nil && len(records) == 0) {
		respondError(c, apperrors.NewValidationError("at least one record is required", err))
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.validateIDs(records); err != nil {
		respondError(c, err)
		return
	}

	if err := s.repo.SaveApplications(c.Request.Context(), records); err != nil {
		respondError(c, err)
		return
	}
	for _, r := range records {
		s.analyzer.Invalidate(r.ID)
	}
	c.JSON(http.StatusCreated, gin.H{"stored": len(records)})
}

// handleDeleteApplication godoc
// @Summary      Erase an application
// @Description  Deletes a stored application with its whole analysis history and drops its cached result.
// @Tags         applications
// @Produce      json
// @Param        id   path      string  true  "Application ID"
// @Success      200  {object}  privacy.Erasure
// @Failure      400  {object}  apperrors.AppError
// @Failure      404  {object}  apperrors.AppError
// @Router       /api/applications/{id} [delete]
func (s *server) handleDeleteApplication(c *gin.Context) {
	erasure, err := s.privacy.DeleteApplication(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	s.board.InvalidateAll()
	c.JSON(http.StatusOK, erasure)
}

// handleFootprint godoc
// @Summary      Stored data for an application
// @Tags         applications
// @Produce      json
// @Param        id   path      string  true  "Application ID"
// @Success      200  {object}  privacy.Footprint
// @Failure      404  {object}  apperrors.AppError
// @Router       /api/applications/{id}/privacy [get]
func (s *server) handleFootprint(c *gin.Context) {
	fp, err := s.privacy.Footprint(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fp)
}

func parsePeriod(c *gin.Context) (leaderboard.Period, error) {
	period, err := leaderboard.ParsePeriod(c.Query("period"))
	if err != nil {
		return "", apperrors.NewValidationError("period must be daily, weekly, monthly or all_time", err)
	}
	return period, nil
}

// handleLeaderboard godoc
// @Summary      Riskiest applications
// @Description  Ranks applications by the risk score of their latest analysis in the period. Boards are cached briefly.
// @Tags         analysis
// @Produce      json
// @Param        period  query     string  false  "daily, weekly (default), monthly or all_time"
// @Param        limit   query     int     false  "Entries to return, at most 100"
// @Success      200     {object}  leaderboard.Board
// @Failure      400     {object}  apperrors.AppError
// @Router       /api/ml/leaderboard [get]
func (s *server) handleLeaderboard(c *gin.Context) {
	period, err := parsePeriod(c)
	if err != nil {
		respondError(c, err)
		return
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			respondError(c, apperrors.NewValidationError("limit must be an integer", err))
			return
		}
	}

	board, err := s.board.GetLeaderboard(c.Request.Context(), period, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

// handleRank godoc
// @Summary      Rank of one application
// @Tags         analysis
// @Produce      json
// @Param        id      path      string  true   "Application ID"
// @Param        period  query     string  false  "daily, weekly (default), monthly or all_time"
// @Success      200     {object}  leaderboard.Entry
// @Failure      404     {object}  apperrors.AppError
// @Router       /api/ml/leaderboard/{id} [get]
func (s *server) handleRank(c *gin.Context) {
	period, err := parsePeriod(c)
	if err != nil {
		respondError(c, err)
		return
	}
	entry, err := s.board.Rank(c.Request.Context(), c.Param("id"), period)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// handleModelHealth godoc
// @Summary      Model status
// @Tags         model
// @Produce      json
// @Success      200  {object}  analysis.Health
// @Router       /api/ml/health [get]
func (s *server) handleModelHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"model": s.analyzer.Health(),
		"cache": s.analyzer.CacheStats(),
	})
}

// handleTaxonomy godoc
// @Summary      Five Cs taxonomy
// @Tags         model
// @Produce      json
// @Success      200  {object}  TaxonomyResponse
// @Router       /api/ml/taxonomy [get]
func (s *server) handleTaxonomy(c *gin.Context) {
	t := fivec.DefaultTaxonomy()
	resp := TaxonomyResponse{
		Categories: make(map[fivec.Category][]string, len(fivec.Categories())),
		Unmapped:   t.Unmapped(features.Names()),
	}
	for _, cat := range fivec.Categories() {
		resp.Categories[cat] = t.Features(cat)
	}
	c.JSON(http.StatusOK, resp)
}

// handleHealth godoc
// @Summary      Service health
// @Description  Reports storage, rate limiter, runtime and request metrics. Answers 503 when the database is unreachable.
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}
// @Router       /health [get]
func (s *server) handleHealth(c *gin.Context) {
	status, code := "ok", http.StatusOK
	dbStatus := "ok"
	if err := s.db.PingContext(c.Request.Context()); err != nil {
		status, code, dbStatus = "degraded", http.StatusServiceUnavailable, err.Error()
	}

	model := s.analyzer.Health()
	if !model.Ready && code == http.StatusOK {
		status = "untrained"
	}

	redisStatus := "disabled"
	if s.redis.IsEnabled() {
		redisStatus = "ok"
		if err := s.redis.HealthCheck(c.Request.Context()); err != nil {
			redisStatus = err.Error()
		}
	}

	resp := gin.H{
		"status":      status,
		"timestamp":   time.Now().Format(time.RFC3339),
		"version":     "1.0.0",
		"model_ready": model.Ready,
		"services": gin.H{
			"database": gin.H{"status": dbStatus, "pool": s.db.GetPoolStats()},
			"redis":    redisStatus,
		},
		"rate_limiter": s.limiter.GetStats(),
		"leaderboard":  s.board.GetCacheStats(),
		"retention":    s.privacy.GetRetentionInfo(),
		"compression":  s.gzip.GetStats(),
		"metrics":      s.metrics.GetStats(),
	}
	if s.memory != nil {
		resp["memory"] = s.memory.GetStats()
	}
	c.JSON(code, resp)
}
