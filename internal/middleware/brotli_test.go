package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func brotliRouter(body string) *gin.Engine {
	r := gin.New()
	r.Use(Brotli(BrotliOptions{MinLength: 64, SkipPrefixes: []string{"/stream"}}))
	handler := func(c *gin.Context) { c.String(http.StatusOK, body) }
	r.GET("/paper", handler)
	r.GET("/stream", handler)
	return r
}

func TestBrotliCompressesLargeBodies(t *testing.T) {
	body := strings.Repeat("soal ujian ", 50)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/paper", nil)
	req.Header.Set("Accept-Encoding", "gzip, br;q=1.0")
	brotliRouter(body).ServeHTTP(w, req)

	require.Equal(t, "br", w.Header().Get("Content-Encoding"))
	decoded, err := io.ReadAll(brotli.NewReader(w.Body))
	require.NoError(t, err)
	assert.Equal(t, body, string(decoded))
}

func TestBrotliPassThrough(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		accept string
	}{
		{"small body", "/paper", "ok", "br"},
		{"client without br", "/paper", strings.Repeat("x", 200), "gzip"},
		{"streaming path", "/stream", strings.Repeat("x", 200), "br"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set("Accept-Encoding", tt.accept)
			brotliRouter(tt.body).ServeHTTP(w, req)

			assert.Empty(t, w.Header().Get("Content-Encoding"))
			assert.Equal(t, tt.body, w.Body.String())
		})
	}
}
