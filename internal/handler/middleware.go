package handler

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"
)

const adminSecretHeader = "X-Admin-Secret"

// RequireAdminSecret guards the admin surface with the single shared
// secret from config. An empty configured secret disables the surface
// entirely rather than leaving it open.
func RequireAdminSecret(secret string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if secret == "" {
			ctx.AbortWithStatusJSON(403, gin.H{"error": "Admin surface is disabled"})
			return
		}
		provided := ctx.GetHeader(adminSecretHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			ctx.AbortWithStatusJSON(401, gin.H{"error": "Unauthorized"})
			return
		}
		ctx.Next()
	}
}
