package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/analysis"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/dataset"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/explain"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/features"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/labeling"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/model"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/resilience"
)

// ErrorCategory defines the type of error for proper handling
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryNotFound      ErrorCategory = "not_found"
	CategoryNotReady      ErrorCategory = "not_ready"
	CategoryTraining      ErrorCategory = "training"
	CategoryUnavailable   ErrorCategory = "unavailable"
	CategoryTimeout       ErrorCategory = "timeout"
	CategoryRateLimit     ErrorCategory = "rate_limit"
	CategoryInternal      ErrorCategory = "internal"
	CategoryConfiguration ErrorCategory = "configuration"
)

// AppError wraps an errbuilder error with the HTTP mapping
type AppError struct {
	*errbuilder.ErrBuilder
	Category   ErrorCategory `json:"category"`
	HTTPStatus int           `json:"http_status"`
	Timestamp  time.Time     `json:"timestamp"`
	RequestID  string        `json:"request_id,omitempty"`
	StackTrace string        `json:"stack_trace,omitempty"`
}

// Error renders "[CODE] message"
func (e *AppError) Error() string {
	codeStr := "UNKNOWN_ERROR"
	switch e.ErrBuilder.ErrCode() {
	case errbuilder.CodeInvalidArgument:
		codeStr = "VALIDATION_ERROR"
	case errbuilder.CodeNotFound:
		codeStr = "NOT_FOUND"
	case errbuilder.CodeUnavailable:
		codeStr = "UNAVAILABLE"
	case errbuilder.CodeDeadlineExceeded:
		codeStr = "TIMEOUT_ERROR"
	case errbuilder.CodeResourceExhausted:
		codeStr = "RATE_LIMIT_EXCEEDED"
	case errbuilder.CodeInternal:
		codeStr = "INTERNAL_ERROR"
	case errbuilder.CodeFailedPrecondition:
		codeStr = "FAILED_PRECONDITION"
	}

	return fmt.Sprintf("[%s] %s", codeStr, e.ErrBuilder.Msg)
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.ErrBuilder.Unwrap()
}

// NewAppError creates an AppError from errbuilder with additional context
func NewAppError(builder *errbuilder.ErrBuilder, category ErrorCategory, httpStatus int) *AppError {
	return &AppError{
		ErrBuilder: builder,
		Category:   category,
		HTTPStatus: httpStatus,
		Timestamp:  time.Now(),
	}
}

func build(builder *errbuilder.ErrBuilder, message string, cause error, details map[string]string) *errbuilder.ErrBuilder {
	builder = builder.WithMsg(message)
	if cause != nil {
		builder = builder.WithCause(cause)
	}
	if len(details) > 0 {
		errorMap := errbuilder.ErrorMap{}
		for k, v := range details {
			errorMap.Set(k, errors.New(v))
		}
		builder = builder.WithDetails(errbuilder.NewErrDetails(errorMap))
	}
	return builder
}

// NewValidationError is a 400 for bad client input
func NewValidationError(message string, cause error) *AppError {
	return NewAppError(build(errbuilder.New().WithCode(errbuilder.CodeInvalidArgument), message, cause, nil), CategoryValidation, http.StatusBadRequest)
}

// NewValidationErrorWithMap reports several field problems at once
func NewValidationErrorWithMap(validationErrors map[string]string) *AppError {
	return NewAppError(build(errbuilder.New().WithCode(errbuilder.CodeInvalidArgument), "Multiple validation errors", nil, validationErrors), CategoryValidation, http.StatusBadRequest)
}

// NewNotFoundError is a 404 naming the missing resource
func NewNotFoundError(resource, id string, cause error) *AppError {
	var details map[string]string
	if id != "" {
		details = map[string]string{"id": id}
	}
	builder := build(errbuilder.New().WithCode(errbuilder.CodeNotFound), fmt.Sprintf("%s not found", resource), cause, details)
	return NewAppError(builder, CategoryNotFound, http.StatusNotFound)
}

// NewNotReadyError is a 503 returned until a model has been trained
func NewNotReadyError(cause error) *AppError {
	builder := build(errbuilder.New().WithCode(errbuilder.CodeFailedPrecondition), "Model not trained yet", cause, map[string]string{"hint": "POST /api/ml/retrain"})
	return NewAppError(builder, CategoryNotReady, http.StatusServiceUnavailable)
}

// NewTrainingError is a 422 for a corpus the pipeline cannot learn from
func NewTrainingError(message string, cause error) *AppError {
	return NewAppError(build(errbuilder.New().WithCode(errbuilder.CodeFailedPrecondition), message, cause, nil), CategoryTraining, http.StatusUnprocessableEntity)
}

// NewUnavailableError is a 503 for a degraded dependency
func NewUnavailableError(message string, cause error) *AppError {
	return NewAppError(build(errbuilder.New().WithCode(errbuilder.CodeUnavailable), message, cause, nil), CategoryUnavailable, http.StatusServiceUnavailable)
}

// NewTimeoutError is a 504
func NewTimeoutError(message string, cause error) *AppError {
	return NewAppError(build(errbuilder.New().WithCode(errbuilder.CodeDeadlineExceeded), message, cause, nil), CategoryTimeout, http.StatusGatewayTimeout)
}

// NewRateLimitError is a 429 carrying the retry hint
func NewRateLimitError(retryAfter string) *AppError {
	builder := build(errbuilder.New().WithCode(errbuilder.CodeResourceExhausted), "Rate limit exceeded", nil, map[string]string{"retry_after": retryAfter})
	return NewAppError(builder, CategoryRateLimit, http.StatusTooManyRequests)
}

// NewInternalError is a 500; stack traces are kept outside release mode
func NewInternalError(message string, cause error) *AppError {
	builder := build(errbuilder.New().WithCode(errbuilder.CodeInternal), "Internal server error", cause, map[string]string{"internal_details": message})
	appErr := NewAppError(builder, CategoryInternal, http.StatusInternalServerError)

	if gin.Mode() == gin.DebugMode || gin.Mode() == gin.TestMode {
		appErr.StackTrace = captureStackTrace()
	}
	return appErr
}

// NewConfigurationError is a 500 for a bad deployment
func NewConfigurationError(message string, cause error) *AppError {
	builder := build(errbuilder.New().WithCode(errbuilder.CodeFailedPrecondition), "Configuration error", cause, map[string]string{"config_details": message})
	return NewAppError(builder, CategoryConfiguration, http.StatusInternalServerError)
}

func captureStackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// FromDomain maps the sentinel errors of the analysis packages to AppErrors.
// It returns nil when err wraps none of them.
func FromDomain(err error) *AppError {
	switch {
	case errors.Is(err, analysis.ErrApplicationNotFound):
		return NewNotFoundError("application", "", err)
	case errors.Is(err, features.ErrNotFitted):
		return NewNotReadyError(err)
	case errors.Is(err, analysis.ErrUnknownCategory):
		return NewValidationError("Unknown risk category", err)
	case errors.Is(err, features.ErrEmptyCorpus),
		errors.Is(err, labeling.ErrDegenerateDistribution),
		errors.Is(err, model.ErrInsufficientTrainingData):
		return NewTrainingError("Training corpus rejected", err)
	case errors.Is(err, dataset.ErrMissingID):
		return NewValidationError("Malformed corpus", err)
	case errors.Is(err, explain.ErrAttributionUnavailable),
		errors.Is(err, resilience.ErrOpen):
		return NewUnavailableError("Explanation unavailable", err)
	}
	return nil
}

// ToAppError converts any error to an AppError
func ToAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if ebErr, ok := err.(*errbuilder.ErrBuilder); ok {
		return NewAppError(ebErr, CategoryInternal, http.StatusInternalServerError)
	}
	if domain := FromDomain(err); domain != nil {
		return domain
	}

	if errors.Is(err, context.Canceled) {
		return NewTimeoutError("Request cancelled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError("Request deadline exceeded", err)
	}

	return NewInternalError("An unexpected error occurred", err)
}

// ErrorHandler is a Gin middleware that renders the last handler error
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			appErr := ToAppError(c.Errors.Last().Err)
			appErr.RequestID = c.GetHeader("X-Request-ID")
			LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
		}
	}
}

// RecoveryHandler provides panic recovery with structured error responses
func RecoveryHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, err interface{}) {
		appErr := NewInternalError(
			fmt.Sprintf("Panic recovered: %v", err),
			fmt.Errorf("%v", err),
		)
		appErr.StackTrace = captureStackTrace()

		LogError(c, appErr)
		c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
	})
}

// LogError logs an error at a level chosen by its category
func LogError(c *gin.Context, err *AppError) {
	logEntry := slog.With(
		"error_category", err.Category,
		"error_code", err.ErrBuilder.ErrCode(),
		"http_status", err.HTTPStatus,
		"ip", c.ClientIP(),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"request_id", c.GetHeader("X-Request-ID"),
	)

	msg := err.ErrBuilder.Msg
	cause := err.ErrBuilder.Unwrap()
	switch err.Category {
	case CategoryValidation, CategoryNotFound, CategoryRateLimit:
		if details := err.ErrBuilder.Details; len(details.Errors) > 0 {
			logEntry.Warn(msg, "details", details.Errors)
		} else {
			logEntry.Warn(msg)
		}
	case CategoryNotReady, CategoryUnavailable, CategoryTimeout, CategoryTraining:
		logEntry.Info(msg, "cause", fmt.Sprint(cause))
	default:
		logEntry.Error(msg, "cause", fmt.Sprint(cause))
	}

	if err.StackTrace != "" && (gin.Mode() == gin.DebugMode || gin.Mode() == gin.TestMode) {
		logEntry.Debug("stack_trace", "trace", err.StackTrace)
	}
}

// SafeClose closes a resource and logs any error
func SafeClose(closer interface{ Close() error }, resourceName string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		slog.Warn("Failed to close resource",
			"resource", resourceName,
			"error", err)
	}
}
