package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/edupanel/school-admin-api/internal/middleware"
	"github.com/edupanel/school-admin-api/internal/models"
	"github.com/edupanel/school-admin-api/internal/service"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func actorFromContext(c *gin.Context, claims *models.JWTClaims) service.Actor {
	return service.Actor{
		UserID:    claims.UserID,
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
}
