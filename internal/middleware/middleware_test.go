package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"cashback-advisor/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeParser map[string]int64

func (f fakeParser) ParseToken(tokenStr string) (int64, error) {
	id, ok := f[tokenStr]
	if !ok {
		return 0, errors.New("unknown token")
	}
	return id, nil
}

func newEngine(m *metrics.Metrics) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestMetrics(m))
	authed := r.Group("/")
	authed.Use(NewAuthMiddleware(fakeParser{"good": 42}).RequireAuth())
	authed.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.MustGet(UserIDKey).(int64)})
	})
	return r
}

func TestRequireAuth(t *testing.T) {
	r := newEngine(metrics.New())
	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"no bearer prefix", "good", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"unknown token", "Bearer bad", http.StatusUnauthorized},
		{"valid", "Bearer good", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("got %d, want %d: %s", w.Code, tt.want, w.Body)
			}
		})
	}
}

func TestRequestMetrics(t *testing.T) {
	m := metrics.New()
	r := newEngine(m)

	for _, path := range []string{"/me", "/me", "/missing"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer good")
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/me", "200")); got != 2 {
		t.Errorf("/me 200 = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("unmatched", "404")); got != 1 {
		t.Errorf("unmatched 404 = %v, want 1", got)
	}
}
