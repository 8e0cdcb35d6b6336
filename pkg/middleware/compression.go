package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

// Gzip compression levels
const (
	GzipBestSpeed       = gzip.BestSpeed
	GzipBestCompression = gzip.BestCompression
	GzipDefaultLevel    = gzip.DefaultCompression
)

// Pool of gzip writers to reduce allocations
var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(io.Discard, GzipDefaultLevel)
		return w
	},
}

// gzipResponseWriter wraps http.ResponseWriter with gzip compression
type gzipResponseWriter struct {
	http.ResponseWriter
	gzipWriter *gzip.Writer
	statusCode int
	written    bool
}

// WriteHeader captures status code and writes headers
func (w *gzipResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Write compresses response body
func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
		if w.statusCode == 0 {
			w.statusCode = http.StatusOK
		}
	}
	return w.gzipWriter.Write(b)
}

// GzipHandler wraps an HTTP handler with gzip compression for clients that
// accept it.
func GzipHandler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
				next.ServeHTTP(w, r)
				return
			}

			contentType := w.Header().Get("Content-Type")
			if contentType != "" && !CompressibleContentType(contentType) {
				next.ServeHTTP(w, r)
				return
			}

			gz := gzipWriterPool.Get().(*gzip.Writer)
			defer func() {
				gz.Close()
				gzipWriterPool.Put(gz)
			}()

			gz.Reset(w)

			w.Header().Set("Content-Encoding", "gzip")
			w.Header().Set("Vary", "Accept-Encoding")
			// Content-Length would be wrong after compression
			w.Header().Del("Content-Length")

			next.ServeHTTP(&gzipResponseWriter{
				ResponseWriter: w,
				gzipWriter:     gz,
			}, r)
		})
	}
}

// CompressibleContentType returns true if content type should be compressed
func CompressibleContentType(contentType string) bool {
	compressible := []string{
		"text/",
		"application/json",
		"application/javascript",
		"application/xml",
	}

	for _, prefix := range compressible {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}
