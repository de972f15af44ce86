package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edupanel/school-admin-api/internal/models"
	"github.com/edupanel/school-admin-api/internal/service"
	appErrors "github.com/edupanel/school-admin-api/pkg/errors"
	"github.com/edupanel/school-admin-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// JWT protects routes by requiring a valid access token.
func JWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// RequireTenant blocks tokens that carry no school binding. Every
// school-scoped route sits behind this check.
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)
		if claims.SchoolID == "" {
			response.Error(c, appErrors.ErrTenantUnresolved)
			c.Abort()
			return
		}
		c.Next()
	}
}
