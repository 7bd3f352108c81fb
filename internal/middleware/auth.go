package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/hmis-api/internal/model"
	"github.com/jwalitptl/hmis-api/pkg/auth"
	"github.com/jwalitptl/hmis-api/pkg/errors"
	"github.com/jwalitptl/hmis-api/pkg/httputil"
)

const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

type AuthMiddleware struct {
	jwtSvc  auth.JWTService
	enabled bool
}

// NewAuthMiddleware returns a middleware that validates bearer tokens. With
// enabled false every request passes as admin, for local development.
func NewAuthMiddleware(jwtSvc auth.JWTService, enabled bool) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSvc:  jwtSvc,
		enabled: enabled,
	}
}

// Authenticate verifies the JWT and stores user id and role in the context
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.enabled {
			c.Set(ContextRole, model.RoleAdmin)
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			httputil.RespondWithError(c, errors.Unauthorized("missing authorization header"))
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.RespondWithError(c, errors.Unauthorized("invalid authorization format"))
			return
		}

		claims, err := m.jwtSvc.ValidateToken(parts[1])
		if err != nil {
			httputil.RespondWithError(c, errors.Unauthorized("invalid token"))
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, claims.Role)

		logger := zerolog.Ctx(c.Request.Context()).With().
			Str("user_id", claims.UserID.String()).
			Str("role", string(claims.Role)).
			Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))
		c.Next()
	}
}

// RequireRole rejects callers whose role is not listed
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	allowed := make(map[model.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, ok := c.Get(ContextRole)
		if !ok {
			httputil.RespondWithError(c, errors.Unauthorized("authentication required"))
			return
		}
		if _, ok := allowed[role.(model.Role)]; !ok {
			httputil.RespondWithError(c, errors.Forbidden("insufficient permissions"))
			return
		}
		c.Next()
	}
}
