package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"syscall"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bybench/internal/apperr"
	"bybench/internal/models"
	"bybench/internal/security"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAuthenticator struct {
	users map[string]models.User
}

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (models.User, *security.AccessClaims, error) {
	user, ok := s.users[token]
	if !ok {
		return models.User{}, nil, apperr.Unauthenticated("invalid_token", "Invalid or expired token")
	}
	return user, &security.AccessClaims{UserID: user.ID, Role: string(user.Role)}, nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func protectedRouter(roles ...models.UserRole) *gin.Engine {
	auth := stubAuthenticator{users: map[string]models.User{
		"user-token":  {ID: "u1", Role: models.UserRoleUser},
		"admin-token": {ID: "a1", Role: models.UserRoleAdmin},
	}}
	r := gin.New()
	handlers := []gin.HandlerFunc{Auth(auth, "access_token", zerolog.Nop())}
	if len(roles) > 0 {
		handlers = append(handlers, RequireRoles(roles...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		user, _ := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"id": user.ID})
	})
	r.GET("/me", handlers...)
	r.GET("/ws", handlers...)
	return r
}

func TestAuthTokenSources(t *testing.T) {
	r := protectedRouter()

	cases := []struct {
		name   string
		build  func(req *http.Request)
		path   string
		status int
		code   string
	}{
		{"bearer", func(req *http.Request) { req.Header.Set("Authorization", "Bearer user-token") }, "/me", http.StatusOK, ""},
		{"cookie", func(req *http.Request) { req.AddCookie(&http.Cookie{Name: "access_token", Value: "user-token"}) }, "/me", http.StatusOK, ""},
		{"missing", func(*http.Request) {}, "/me", http.StatusUnauthorized, "missing_token"},
		{"invalid", func(req *http.Request) { req.Header.Set("Authorization", "Bearer nope") }, "/me", http.StatusUnauthorized, "invalid_token"},
		{"query ignored on plain requests", func(*http.Request) {}, "/me?token=user-token", http.StatusUnauthorized, "missing_token"},
		{"query on websocket upgrade", func(req *http.Request) { req.Header.Set("Upgrade", "websocket") }, "/ws?token=user-token", http.StatusOK, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			tc.build(req)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			body := decode(t, rec)
			if tc.code != "" {
				assert.Equal(t, tc.code, body["code"])
				assert.Equal(t, false, body["success"])
			} else {
				assert.Equal(t, "u1", body["id"])
			}
		})
	}
}

func TestRequireRoles(t *testing.T) {
	r := protectedRouter(models.UserRoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decode(t, rec)["code"])

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiterPerClientIP(t *testing.T) {
	limiter := NewRateLimiter(4)
	r := gin.New()
	r.POST("/login", limiter.Handler(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = ip + ":5000"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, send("10.0.0.1").Code)
	limited := send("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "rate_limited", decode(t, limited)["code"])
	assert.Equal(t, http.StatusNoContent, send("10.0.0.2").Code)

	disabled := NewRateLimiter(0)
	assert.Nil(t, disabled)
	r2 := gin.New()
	r2.POST("/login", disabled.Handler(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		r2.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestAbortWithErrorMapsKinds(t *testing.T) {
	var logs bytes.Buffer
	log := zerolog.New(&logs)

	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apperr.NotFound("user_not_found", "User not found"), http.StatusNotFound, "user_not_found"},
		{apperr.RateLimited("otp_attempts_exceeded", "slow down"), http.StatusTooManyRequests, "otp_attempts_exceeded"},
		{assert.AnError, http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)

		AbortWithError(c, log, tc.err)
		assert.Equal(t, tc.status, rec.Code)
		assert.Equal(t, tc.code, decode(t, rec)["code"])
	}
	assert.Contains(t, logs.String(), assert.AnError.Error())
}

func TestRecoveryAndRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(zerolog.Nop()))
	r.GET("/boom", func(*gin.Context) { panic("kaboom") })
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", decode(t, rec)["code"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("X-Request-Id", "abc123")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "abc123", rec.Header().Get("X-Request-Id"))
}

func TestRecoverySkipsResponseWhenClientGone(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(zerolog.Nop()))
	r.GET("/gone", func(*gin.Context) {
		panic(&net.OpError{Op: "write", Err: os.NewSyscallError("write", syscall.EPIPE)})
	})
	r.GET("/abort", func(*gin.Context) { panic(http.ErrAbortHandler) })

	for _, path := range []string{"/gone", "/abort"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Zero(t, rec.Body.Len(), path)
	}

	assert.False(t, clientGone("kaboom"))
	assert.True(t, clientGone(fmt.Errorf("copy body: %w", syscall.ECONNRESET)))
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:3000"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
