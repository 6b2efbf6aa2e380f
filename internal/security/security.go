package security

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	apperrors "github.com/ZanzyTHEbar/credit-risk-lens/internal/errors"
)

// SecurityConfig holds security configuration
type SecurityConfig struct {
	MaxIDLength    int           `json:"max_id_length"`
	MaxUploadBytes int64         `json:"max_upload_bytes"`
	AllowedOrigins []string      `json:"allowed_origins"`
	RequestTimeout time.Duration `json:"request_timeout"`
}

// DefaultSecurityConfig returns secure defaults
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		MaxIDLength:    64,
		MaxUploadBytes: 32 << 20,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		RequestTimeout: 30 * time.Second,
	}
}

var applicationIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// SecurityMiddleware bundles the request hardening middleware
type SecurityMiddleware struct {
	config SecurityConfig
}

// NewSecurityMiddleware creates a new security middleware instance
func NewSecurityMiddleware(config SecurityConfig) *SecurityMiddleware {
	if config.MaxIDLength <= 0 {
		config.MaxIDLength = 64
	}
	return &SecurityMiddleware{config: config}
}

// ValidateApplicationID rejects ids that are empty, too long or carry
// characters outside letters, digits, '.', '_' and '-'.
func (sm *SecurityMiddleware) ValidateApplicationID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return fmt.Errorf("application_id is required")
	case len(id) > sm.config.MaxIDLength:
		return fmt.Errorf("application_id exceeds %d characters", sm.config.MaxIDLength)
	case !applicationIDPattern.MatchString(id):
		return fmt.Errorf("application_id %q contains invalid characters", id)
	}
	return nil
}

// ApplicationIDParam validates the :id path parameter before the handler runs.
func (sm *SecurityMiddleware) ApplicationIDParam(c *gin.Context) {
	if err := sm.ValidateApplicationID(c.Param("id")); err != nil {
		appErr := apperrors.NewValidationError(err.Error(), nil)
		c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
		return
	}
	c.Next()
}

// SecurityHeaders adds security headers to responses
func (sm *SecurityMiddleware) SecurityHeaders(c *gin.Context) {
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("X-Frame-Options", "DENY")
	c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
	c.Header("Cache-Control", "no-store")

	if c.Request.TLS != nil {
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}

	// The swagger UI needs inline scripts, the API itself serves only JSON.
	if !strings.HasPrefix(c.Request.URL.Path, "/swagger/") {
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	}

	c.Next()
}

// ValidateContentType accepts JSON, CSV and multipart bodies
func (sm *SecurityMiddleware) ValidateContentType(c *gin.Context) {
	contentType := strings.ToLower(c.GetHeader("Content-Type"))
	if contentType == "" || c.Request.ContentLength == 0 {
		c.Next()
		return
	}

	for _, allowed := range []string{"application/json", "multipart/form-data", "text/csv"} {
		if strings.Contains(contentType, allowed) {
			c.Next()
			return
		}
	}

	c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
		"error": "unsupported content type",
	})
}

// LimitBody caps request bodies at MaxUploadBytes.
func (sm *SecurityMiddleware) LimitBody(c *gin.Context) {
	if sm.config.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, sm.config.MaxUploadBytes)
	}
	c.Next()
}

// RequestTimeout bounds the request context
func (sm *SecurityMiddleware) RequestTimeout(c *gin.Context) {
	if sm.config.RequestTimeout <= 0 {
		c.Next()
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), sm.config.RequestTimeout)
	defer cancel()

	c.Request = c.Request.WithContext(ctx)
	c.Header("X-Timeout", strconv.Itoa(int(sm.config.RequestTimeout.Seconds())))

	c.Next()
}

// CORSConfig returns the CORS middleware for the configured origins.
func (sm *SecurityMiddleware) CORSConfig() gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(sm.config.AllowedOrigins) == 0 || sm.config.AllowedOrigins[0] == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = sm.config.AllowedOrigins
	}
	return cors.New(cfg)
}
