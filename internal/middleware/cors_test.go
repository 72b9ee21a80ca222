package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/playmatatu/billiards/internal/config"
)

func newRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware(cfg))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/ws", WebSocketCORSCheck(cfg), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestCORSAllowedOrigins(t *testing.T) {
	tests := []struct {
		name   string
		cfg    config.Config
		origin string
		allow  bool
	}{
		{"dev localhost", config.Config{Environment: "development"}, "http://localhost:3000", true},
		{"dev loopback", config.Config{Environment: "development"}, "http://127.0.0.1:5173", true},
		{"dev remote", config.Config{Environment: "development"}, "https://example.com", false},
		{"prod frontend", config.Config{Environment: "production", FrontendURL: "https://a.example, https://b.example"}, "https://b.example", true},
		{"prod other", config.Config{Environment: "production", FrontendURL: "https://a.example"}, "http://localhost:3000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(&tt.cfg)
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get("Access-Control-Allow-Origin") == tt.origin
			if got != tt.allow {
				t.Errorf("allowed = %v, want %v (status %d)", got, tt.allow, w.Code)
			}
		})
	}
}

func TestWebSocketCORSCheck(t *testing.T) {
	cfg := &config.Config{Environment: "production", FrontendURL: "https://a.example"}
	r := newRouter(cfg)

	tests := []struct {
		name    string
		upgrade bool
		origin  string
		want    int
	}{
		{"plain request passes", false, "", http.StatusOK},
		{"missing origin", true, "", http.StatusBadRequest},
		{"allowed origin", true, "https://a.example", http.StatusOK},
		{"foreign origin", true, "https://evil.example", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.upgrade {
				req.Header.Set("Connection", "keep-alive, Upgrade")
				req.Header.Set("Upgrade", "websocket")
			}
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
