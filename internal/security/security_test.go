package security

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityConfig(t *testing.T) {
	config := DefaultSecurityConfig()

	assert.Equal(t, 64, config.MaxIDLength)
	assert.EqualValues(t, 32<<20, config.MaxUploadBytes)
	assert.Equal(t, 30*time.Second, config.RequestTimeout)
	assert.NotEmpty(t, config.AllowedOrigins)
}

func TestValidateApplicationID(t *testing.T) {
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	tests := []struct {
		name    string
		id      string
		wantErr string
	}{
		{"generated id", "APP-20250101-1234", ""},
		{"dotted", "loan.2025_01", ""},
		{"empty", "", "required"},
		{"blank", "   ", "required"},
		{"too long", strings.Repeat("a", 65), "exceeds 64"},
		{"path traversal", "../etc/passwd", "invalid characters"},
		{"script", "<script>", "invalid characters"},
		{"space", "APP 1", "invalid characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sm.ValidateApplicationID(tt.id)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplicationIDParam(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	r := gin.New()
	r.GET("/analysis/:id", sm.ApplicationIDParam, func(c *gin.Context) {
		c.String(http.StatusOK, c.Param("id"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/analysis/APP-1", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/analysis/%3Cx%3E", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid characters")
}

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	r := gin.New()
	r.Use(sm.SecurityHeaders)
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "test"})
	})
	r.GET("/swagger/index.html", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	headers := w.Header()
	assert.Equal(t, "nosniff", headers.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", headers.Get("X-Frame-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", headers.Get("Referrer-Policy"))
	assert.Contains(t, headers.Get("Content-Security-Policy"), "default-src 'none'")
	assert.Empty(t, headers.Get("Strict-Transport-Security"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	assert.Empty(t, w.Header().Get("Content-Security-Policy"))
}

func TestValidateContentType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	r := gin.New()
	r.Use(sm.ValidateContentType)
	r.POST("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})

	tests := []struct {
		name           string
		contentType    string
		expectedStatus int
	}{
		{"valid JSON", "application/json; charset=utf-8", http.StatusOK},
		{"csv upload", "text/csv", http.StatusOK},
		{"multipart", "multipart/form-data; boundary=x", http.StatusOK},
		{"plain text", "text/plain", http.StatusUnsupportedMediaType},
		{"form encoded", "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{"no content type", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(`{"application_id":"APP-1"}`))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestLimitBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sm := NewSecurityMiddleware(SecurityConfig{MaxUploadBytes: 8})

	r := gin.New()
	r.Use(sm.LimitBody)
	r.POST("/upload", func(c *gin.Context) {
		if _, err := c.GetRawData(); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("short")))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("much too long for the cap")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRequestTimeout(t *testing.T) {
	gin.SetMode(gin.TestMode)

	config := DefaultSecurityConfig()
	config.RequestTimeout = 5 * time.Millisecond
	sm := NewSecurityMiddleware(config)

	r := gin.New()
	r.Use(sm.RequestTimeout)
	r.GET("/test", func(c *gin.Context) {
		select {
		case <-c.Request.Context().Done():
			c.Status(http.StatusGatewayTimeout)
		case <-time.After(time.Second):
			c.Status(http.StatusOK)
		}
	})

	w := httptest.NewRecorder()
	start := time.Now()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-Timeout"))
}

func TestCORSConfig(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sm := NewSecurityMiddleware(SecurityConfig{AllowedOrigins: []string{"http://localhost:3000"}})

	r := gin.New()
	r.Use(sm.CORSConfig())
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	r.ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Origin", "http://evil.example")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
