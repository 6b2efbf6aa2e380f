package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// CompressionConfig holds configuration for response compression
type CompressionConfig struct {
	MinSize          int      // Minimum response size to compress (bytes)
	CompressionLevel int      // Gzip compression level (1-9, 9 is best compression)
	ContentTypes     []string // Content types to compress
}

// DefaultCompressionConfig returns the default compression configuration
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize:          1024,
		CompressionLevel: gzip.DefaultCompression,
		ContentTypes: []string{
			"application/json",
			"text/csv",
			"text/plain",
		},
	}
}

// CompressionMiddleware gzips large responses. Explanations and batch
// categorizations run to tens of kilobytes of JSON.
type CompressionMiddleware struct {
	config CompressionConfig
	stats  *CompressionStats
	pool   sync.Pool
}

// NewCompressionMiddleware creates a new compression middleware
func NewCompressionMiddleware(config CompressionConfig) *CompressionMiddleware {
	level := config.CompressionLevel
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	return &CompressionMiddleware{
		config: config,
		stats:  NewCompressionStats(),
		pool: sync.Pool{
			New: func() interface{} {
				gz, _ := gzip.NewWriterLevel(io.Discard, level)
				return gz
			},
		},
	}
}

// Handler buffers the response and compresses it on the way out when the
// client accepts gzip and the body is large enough.
func (cm *CompressionMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !clientAcceptsGzip(c.Request) || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}

		original := c.Writer
		bw := &bufferedWriter{ResponseWriter: original}
		c.Writer = bw
		c.Next()
		c.Writer = original

		cm.flush(original, bw.buf.Bytes())
	}
}

func (cm *CompressionMiddleware) flush(w gin.ResponseWriter, body []byte) {
	if len(body) < cm.config.MinSize || !cm.shouldCompress(w.Header().Get("Content-Type")) ||
		w.Header().Get("Content-Encoding") != "" {
		cm.stats.RecordRequest(int64(len(body)), int64(len(body)), false)
		if _, err := w.Write(body); err != nil {
			slog.Debug("Failed to write response", "error", err)
		}
		return
	}

	var out bytes.Buffer
	gz := cm.pool.Get().(*gzip.Writer)
	gz.Reset(&out)
	_, err := gz.Write(body)
	if err == nil {
		err = gz.Close()
	}
	cm.pool.Put(gz)
	if err != nil {
		slog.Warn("Gzip compression failed, sending identity body", "error", err)
		w.Write(body)
		return
	}

	w.Header().Set("Content-Encoding", "gzip")
	w.Header().Add("Vary", "Accept-Encoding")
	w.Header().Set("Content-Length", strconv.Itoa(out.Len()))
	cm.stats.RecordRequest(int64(len(body)), int64(out.Len()), true)
	if _, err := w.Write(out.Bytes()); err != nil {
		slog.Debug("Failed to write compressed response", "error", err)
	}
}

func clientAcceptsGzip(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}

func (cm *CompressionMiddleware) shouldCompress(contentType string) bool {
	for _, ct := range cm.config.ContentTypes {
		if strings.Contains(contentType, ct) {
			return true
		}
	}
	return false
}

// bufferedWriter holds the body and defers sending headers until flush.
type bufferedWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (bw *bufferedWriter) Write(data []byte) (int, error) {
	return bw.buf.Write(data)
}

func (bw *bufferedWriter) WriteString(s string) (int, error) {
	return bw.buf.WriteString(s)
}

func (bw *bufferedWriter) WriteHeaderNow() {}

func (bw *bufferedWriter) Written() bool { return bw.buf.Len() > 0 }

func (bw *bufferedWriter) Size() int { return bw.buf.Len() }

func (bw *bufferedWriter) Flush() {}

// CompressionStats tracks compression statistics
type CompressionStats struct {
	TotalRequests      int64
	CompressedRequests int64
	TotalBytes         int64
	CompressedBytes    int64
	mutex              sync.RWMutex
}

// NewCompressionStats creates new compression statistics
func NewCompressionStats() *CompressionStats {
	return &CompressionStats{}
}

// RecordRequest records a request's compression stats
func (cs *CompressionStats) RecordRequest(originalSize, compressedSize int64, compressed bool) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	cs.TotalRequests++
	cs.TotalBytes += originalSize

	if compressed {
		cs.CompressedRequests++
		cs.CompressedBytes += compressedSize
	} else {
		cs.CompressedBytes += originalSize
	}
}

// GetStats returns current compression statistics
func (cs *CompressionStats) GetStats() map[string]interface{} {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	ratio := float64(1)
	if cs.TotalBytes > 0 {
		ratio = float64(cs.CompressedBytes) / float64(cs.TotalBytes)
	}

	return map[string]interface{}{
		"total_requests":      cs.TotalRequests,
		"compressed_requests": cs.CompressedRequests,
		"total_bytes":         cs.TotalBytes,
		"compressed_bytes":    cs.CompressedBytes,
		"compression_ratio":   ratio,
		"compression_savings": 1.0 - ratio,
	}
}

// GetStats returns compression statistics
func (cm *CompressionMiddleware) GetStats() map[string]interface{} {
	return cm.stats.GetStats()
}
