package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"support-chat/config"
	"support-chat/internal/domain/user"
	"support-chat/internal/redis"
	"support-chat/internal/services"
	"support-chat/internal/transport/httpdto"
	chat_errors "support-chat/pkg/errors"
	"support-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "middleware-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthService() *services.AuthService {
	return services.NewAuthService(nil, nil, &config.Config{JWTSecret: testSecret, JWTExpiryMin: 5, RefreshExpiry: 1})
}

func signToken(t *testing.T, userID uuid.UUID, roles ...user.Role) string {
	t.Helper()
	codes := make([]int, 0, len(roles))
	for _, r := range roles {
		codes = append(codes, int(r))
	}
	claims := services.AccessClaims{
		UserID:    userID.String(),
		SessionID: uuid.NewString(),
		Roles:     codes,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) httpdto.Response[json.RawMessage] {
	t.Helper()
	var resp httpdto.Response[json.RawMessage]
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestAuthMiddleware(t *testing.T) {
	auth := newAuthService()
	r := gin.New()
	r.GET("/me", AuthMiddleware(auth), func(c *gin.Context) {
		id, ok := services.UserIDFromContext(c.Request.Context())
		if !ok {
			t.Errorf("principal missing from context")
		}
		c.String(http.StatusOK, id.String())
	})

	userID := uuid.New()
	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer not-a-token", http.StatusUnauthorized},
		{"valid", "Bearer " + signToken(t, userID, user.RoleUser), http.StatusOK},
		{"lowercase scheme", "bearer " + signToken(t, userID, user.RoleUser), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d", w.Code, tc.status)
			}
			if tc.status == http.StatusOK && w.Body.String() != userID.String() {
				t.Fatalf("body = %q", w.Body.String())
			}
			if tc.status == http.StatusUnauthorized {
				if resp := decodeEnvelope(t, w); resp.Success || resp.Code != httpdto.CodeUnauthorized {
					t.Fatalf("unexpected envelope %+v", resp)
				}
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	auth := newAuthService()
	r := gin.New()
	r.GET("/admin", AuthMiddleware(auth), RequireRole(user.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	call := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if got := call(signToken(t, uuid.New(), user.RoleUser)); got != http.StatusForbidden {
		t.Fatalf("user role: status = %d", got)
	}
	if got := call(signToken(t, uuid.New(), user.RoleUser, user.RoleAdmin)); got != http.StatusNoContent {
		t.Fatalf("admin role: status = %d", got)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		id, _ := c.Request.Context().Value(logger.RequestIdKey).(string)
		c.String(http.StatusOK, id)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(RequestIDHeader)
	if len(generated) != 26 || w.Body.String() != generated {
		t.Fatalf("generated id %q, body %q", generated, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get(RequestIDHeader) != "abc-123" || w.Body.String() != "abc-123" {
		t.Fatalf("incoming id not propagated: %q", w.Body.String())
	}
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(logger.NewNop()))
	r.GET("/missing", func(c *gin.Context) {
		_ = c.Error(chat_errors.ErrNotFound)
	})
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("database exploded"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if w.Code != http.StatusNotFound || decodeEnvelope(t, w).Code != httpdto.CodeNotFound {
		t.Fatalf("missing: %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	resp := decodeEnvelope(t, w)
	if w.Code != http.StatusInternalServerError || resp.Message != "internal error" {
		t.Fatalf("boom: %d %+v", w.Code, resp)
	}
}

type stubLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (s *stubLimiter) result() (*redis.RateLimitResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	remaining := 0
	if s.allowed {
		remaining = 1
	}
	return &redis.RateLimitResult{Allowed: s.allowed, Remaining: remaining, ResetIn: 30 * time.Second, Limit: 2}, nil
}

func (s *stubLimiter) AllowAuth(_ context.Context, ip string) (*redis.RateLimitResult, error) {
	s.keys = append(s.keys, ip)
	return s.result()
}

func (s *stubLimiter) AllowMessage(_ context.Context, userID string) (*redis.RateLimitResult, error) {
	s.keys = append(s.keys, userID)
	return s.result()
}

func TestAuthRateLimitMiddleware(t *testing.T) {
	cases := []struct {
		name    string
		limiter *stubLimiter
		status  int
	}{
		{"allowed", &stubLimiter{allowed: true}, http.StatusOK},
		{"exhausted", &stubLimiter{allowed: false}, http.StatusTooManyRequests},
		{"limiter down", &stubLimiter{err: errors.New("connection refused")}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/login", AuthRateLimitMiddleware(tc.limiter, logger.NewNop()), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d", w.Code, tc.status)
			}
			if tc.limiter.err == nil && w.Header().Get("X-RateLimit-Limit") != "2" {
				t.Fatalf("missing rate limit headers: %v", w.Header())
			}
			if tc.status == http.StatusTooManyRequests && decodeEnvelope(t, w).Code != httpdto.CodeRateLimited {
				t.Fatalf("unexpected body %s", w.Body.String())
			}
		})
	}
}

func TestMessageRateLimitKeysByUser(t *testing.T) {
	limiter := &stubLimiter{allowed: true}
	userID := uuid.New()
	r := gin.New()
	r.POST("/messages", AuthMiddleware(newAuthService()), MessageRateLimitMiddleware(limiter, logger.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/messages", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, userID, user.RoleUser))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d", w.Code)
	}
	if len(limiter.keys) != 1 || limiter.keys[0] != userID.String() {
		t.Fatalf("limiter keys = %v", limiter.keys)
	}
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://app.example"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "https://app.example" {
		t.Fatalf("allow origin = %q", w.Header().Get("Access-Control-Allow-Origin"))
	}
	if w.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("credentials not allowed")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign origin status = %d", w.Code)
	}
}
