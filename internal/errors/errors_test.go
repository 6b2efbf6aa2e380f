package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/analysis"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/explain"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/features"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/labeling"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/model"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/resilience"
)

func TestFromDomain(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		category ErrorCategory
	}{
		{"not found", analysis.ErrApplicationNotFound, http.StatusNotFound, CategoryNotFound},
		{"not fitted", analysis.ErrNotFitted, http.StatusServiceUnavailable, CategoryNotReady},
		{"unknown category", analysis.ErrUnknownCategory, http.StatusBadRequest, CategoryValidation},
		{"empty corpus", features.ErrEmptyCorpus, http.StatusUnprocessableEntity, CategoryTraining},
		{"degenerate", labeling.ErrDegenerateDistribution, http.StatusUnprocessableEntity, CategoryTraining},
		{"insufficient", model.ErrInsufficientTrainingData, http.StatusUnprocessableEntity, CategoryTraining},
		{"attribution", explain.ErrAttributionUnavailable, http.StatusServiceUnavailable, CategoryUnavailable},
		{"breaker", resilience.ErrOpen, http.StatusServiceUnavailable, CategoryUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("context: %w", tt.err)
			appErr := FromDomain(wrapped)
			require.NotNil(t, appErr)
			assert.Equal(t, tt.status, appErr.HTTPStatus)
			assert.Equal(t, tt.category, appErr.Category)
			assert.ErrorIs(t, appErr, tt.err)
		})
	}

	assert.Nil(t, FromDomain(errors.New("plain")))
}

func TestToAppError(t *testing.T) {
	assert.Nil(t, ToAppError(nil))

	original := NewValidationError("bad", nil)
	assert.Same(t, original, ToAppError(fmt.Errorf("wrapped: %w", original)))

	assert.Equal(t, http.StatusGatewayTimeout, ToAppError(context.DeadlineExceeded).HTTPStatus)
	assert.Equal(t, http.StatusInternalServerError, ToAppError(errors.New("boom")).HTTPStatus)
	assert.Equal(t, http.StatusNotFound, ToAppError(analysis.ErrApplicationNotFound).HTTPStatus)
}

func TestAppError_Message(t *testing.T) {
	assert.Equal(t, "[VALIDATION_ERROR] bad input", NewValidationError("bad input", nil).Error())
	assert.Equal(t, "[NOT_FOUND] application not found", NewNotFoundError("application", "APP-1", nil).Error())
	assert.Equal(t, "[RATE_LIMIT_EXCEEDED] Rate limit exceeded", NewRateLimitError("1m").Error())
}

func TestNewConfigurationError(t *testing.T) {
	cause := errors.New("fallback needs 4 thresholds, got 2")
	appErr := NewConfigurationError(cause.Error(), cause)

	assert.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus)
	assert.Equal(t, CategoryConfiguration, appErr.Category)
	assert.Equal(t, "[FAILED_PRECONDITION] Configuration error", appErr.Error())
	assert.ErrorIs(t, appErr, cause)
}

func TestErrorHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/missing", func(c *gin.Context) {
		_ = c.Error(fmt.Errorf("lookup: %w", analysis.ErrApplicationNotFound))
	})
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"category":"not_found"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRecoveryHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RecoveryHandler())
	r.GET("/panic", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
