package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/sswpa/box-office/internal/service"
)

// writeError maps the service error taxonomy to HTTP. Declined and
// gateway-unavailable need the order attached and are handled at the
// checkout call sites instead.
func writeError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		ctx.JSON(404, gin.H{
			"error": "Not found",
		})
	case errors.Is(err, service.ErrValidation):
		ctx.JSON(422, gin.H{
			"error":  "Validation failed",
			"detail": err.Error(),
		})
	case errors.Is(err, service.ErrSoldOut):
		ctx.JSON(409, gin.H{
			"error":  "Sold out",
			"detail": err.Error(),
		})
	case errors.Is(err, service.ErrConflict):
		ctx.JSON(409, gin.H{
			"error":  "Conflict",
			"detail": err.Error(),
		})
	default:
		ctx.JSON(500, gin.H{
			"error": "Internal server error",
		})
	}
}

func writeBadRequest(ctx *gin.Context, err error) {
	ctx.JSON(400, gin.H{
		"error":  "Invalid request format",
		"detail": err.Error(),
	})
}
