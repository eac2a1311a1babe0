package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func authRouter(apiKeys []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	e := gin.New()
	e.Use(Auth(apiKeys))
	e.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return e
}

func TestAuth(t *testing.T) {
	r := authRouter([]string{"good-key", "other-key"})

	cases := []struct {
		name       string
		header     string
		value      string
		wantStatus int
	}{
		{"missing key", "", "", http.StatusUnauthorized},
		{"wrong key", "X-API-Key", "bad-key", http.StatusUnauthorized},
		{"valid x-api-key", "X-API-Key", "good-key", http.StatusOK},
		{"valid second key", "X-API-Key", "other-key", http.StatusOK},
		{"valid bearer", "Authorization", "Bearer good-key", http.StatusOK},
		{"bearer wrong key", "Authorization", "Bearer bad-key", http.StatusUnauthorized},
		{"basic scheme ignored", "Authorization", "Basic good-key", http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tc.wantStatus)
			}
		})
	}
}

func TestAuthOpensWhenNoKeysConfigured(t *testing.T) {
	r := authRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("open access expected with no keys, got %d", w.Code)
	}
}
