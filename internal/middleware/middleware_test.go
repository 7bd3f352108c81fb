package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hmis-api/internal/model"
	"github.com/jwalitptl/hmis-api/pkg/auth"
	"github.com/jwalitptl/hmis-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(engine *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func ok(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func TestRequestIDPropagates(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/", ok)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXRequestID, "abc-123")
	w := perform(engine, req)
	assert.Equal(t, "abc-123", w.Header().Get(HeaderXRequestID))

	w = perform(engine, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(w.Header().Get(HeaderXRequestID))
	assert.NoError(t, err)
}

func TestAuthenticateAndRequireRole(t *testing.T) {
	jwtSvc := auth.NewJWTService("secret", "hmis-api", time.Hour)
	engine := gin.New()
	engine.Use(NewAuthMiddleware(jwtSvc, true).Authenticate())
	engine.GET("/admin", RequireRole(model.RoleAdmin), ok)

	tokenFor := func(role model.Role) string {
		token, err := jwtSvc.GenerateAccessToken(&model.User{Base: model.Base{ID: uuid.New()}, Role: role})
		require.NoError(t, err)
		return token
	}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"wrong role", "Bearer " + tokenFor(model.RoleNurse), http.StatusForbidden},
		{"allowed", "Bearer " + tokenFor(model.RoleAdmin), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, perform(engine, req).Code)
		})
	}
}

func TestAuthenticateDisabledActsAsAdmin(t *testing.T) {
	engine := gin.New()
	engine.Use(NewAuthMiddleware(nil, false).Authenticate())
	engine.GET("/admin", RequireRole(model.RoleAdmin), ok)

	assert.Equal(t, http.StatusOK, perform(engine, httptest.NewRequest(http.MethodGet, "/admin", nil)).Code)
}

func TestRateLimitPerClient(t *testing.T) {
	limiter := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 2})
	engine := gin.New()
	engine.Use(limiter.RateLimit())
	engine.GET("/", ok)

	request := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		return perform(engine, req).Code
	}

	assert.Equal(t, http.StatusOK, request("10.0.0.1"))
	assert.Equal(t, http.StatusOK, request("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, request("10.0.0.1"))
	assert.Equal(t, http.StatusOK, request("10.0.0.2"))
}

func TestRecoveryReturnsEnvelope(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID(), Recovery())
	engine.GET("/", func(c *gin.Context) { panic("boom") })

	w := perform(engine, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestTimeoutWritesGatewayTimeout(t *testing.T) {
	engine := gin.New()
	engine.Use(Timeout(10 * time.Millisecond))
	engine.GET("/slow", func(c *gin.Context) {
		<-c.Request.Context().Done()
	})

	assert.Equal(t, http.StatusGatewayTimeout, perform(engine, httptest.NewRequest(http.MethodGet, "/slow", nil)).Code)
}

func TestSizeLimit(t *testing.T) {
	engine := gin.New()
	engine.Use(SizeLimit(8))
	engine.POST("/", ok)

	w := perform(engine, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":"0123456789"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = perform(engine, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestErrorHandlerRendersAttachedError(t *testing.T) {
	engine := gin.New()
	engine.Use(ErrorHandler())
	engine.GET("/", func(c *gin.Context) {
		_ = c.Error(errors.NotFound("appointment", nil))
	})

	w := perform(engine, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "appointment not found")
}

func TestSecurityHeaders(t *testing.T) {
	engine := gin.New()
	engine.Use(SecurityHeaders(DefaultSecurityConfig()))
	engine.GET("/", ok)

	w := perform(engine, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}
