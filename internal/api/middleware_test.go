package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "github.com/Corphon/BookRunner/internal/errors"
	"github.com/gin-gonic/gin"
)

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter()

	for i := 0; i < 2; i++ {
		if allowed, _ := rl.Allow("a", 2, time.Minute); !allowed {
			t.Fatalf("request %d refused", i)
		}
	}
	allowed, visitor := rl.Allow("a", 2, time.Minute)
	if allowed || visitor.Remaining != 0 {
		t.Errorf("third request = %v %+v", allowed, visitor)
	}
	if allowed, _ := rl.Allow("b", 2, time.Minute); !allowed {
		t.Error("other keys have their own window")
	}

	rl.cleanup(time.Now().Add(2 * time.Minute))
	if len(rl.visitors) != 0 {
		t.Errorf("%d visitors left after cleanup", len(rl.visitors))
	}
	if allowed, _ := rl.Allow("a", 2, time.Minute); !allowed {
		t.Error("a new window should start after cleanup")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware(), RateLimitByIP(NewRateLimiter(), 1, time.Minute))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusNoContent || w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("first = %d %v", w.Code, w.Header())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second = %d", w.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(requestIDKey)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Body.String() != "abc" || w.Header().Get(requestIDHeader) != "abc" {
		t.Errorf("kept id = %q %q", w.Body.String(), w.Header().Get(requestIDHeader))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(w.Body.String()) != 36 {
		t.Errorf("generated id = %q", w.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(corsMiddleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/", nil))
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight = %d %v", w.Code, w.Header())
	}
}

func TestStatusOf(t *testing.T) {
	for _, tc := range []struct {
		err    error
		status int
	}{
		{apperrors.NewValidationError("x", nil), http.StatusBadRequest},
		{apperrors.NewNotFoundError("x", nil), http.StatusNotFound},
		{apperrors.NewConflictError("x", nil), http.StatusConflict},
		{apperrors.NewUnavailableError("x", nil), http.StatusServiceUnavailable},
		{apperrors.NewTimeoutError("x", nil), http.StatusGatewayTimeout},
		{apperrors.NewProcessingError("x", nil), http.StatusInternalServerError},
		{http.ErrAbortHandler, http.StatusInternalServerError},
	} {
		if status, _ := statusOf(tc.err); status != tc.status {
			t.Errorf("statusOf(%v) = %d, want %d", tc.err, status, tc.status)
		}
	}
}
