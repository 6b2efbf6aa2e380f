package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCompressedRouter(cm *CompressionMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(cm.Handler())
	r.GET("/large", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"summary": strings.Repeat("capacity ", 400)})
	})
	r.GET("/small", func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})
	r.GET("/abort", func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": strings.Repeat("slow down ", 200)})
	})
	return r
}

func TestCompression(t *testing.T) {
	cm := NewCompressionMiddleware(DefaultCompressionConfig())
	r := newCompressedRouter(cm)

	tests := []struct {
		name       string
		path       string
		accept     string
		status     int
		compressed bool
	}{
		{"large json", "/large", "gzip, deflate", http.StatusOK, true},
		{"client refuses gzip", "/large", "", http.StatusOK, false},
		{"below min size", "/small", "gzip", http.StatusCreated, false},
		{"aborted response", "/abort", "gzip", http.StatusTooManyRequests, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.accept != "" {
				req.Header.Set("Accept-Encoding", tt.accept)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if !tt.compressed {
				assert.Empty(t, w.Header().Get("Content-Encoding"))
				assert.True(t, strings.HasPrefix(w.Body.String(), "{"))
				return
			}

			assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
			gz, err := gzip.NewReader(w.Body)
			require.NoError(t, err)
			body, err := io.ReadAll(gz)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(string(body), "{"))
		})
	}

	stats := cm.GetStats()
	assert.EqualValues(t, 3, stats["total_requests"])
	assert.EqualValues(t, 2, stats["compressed_requests"])
	assert.Less(t, stats["compression_ratio"].(float64), 1.0)
}
