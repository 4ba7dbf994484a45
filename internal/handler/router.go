package handler

import (
	"github.com/gin-gonic/gin"
)

func NewRouter(public *PublicHandler, admin *AdminHandler, adminSecret string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.GET("/health", public.HandleHealth)
	router.GET("/recitals", public.HandleListRecitals)
	router.GET("/recitals/:slug/ticket-types", public.HandleListTicketTypes)
	router.GET("/ticket-types/:id/availability", public.HandleCheckAvailability)
	router.POST("/checkout", public.HandleCheckout)
	router.POST("/orders/:reference/retry", public.HandleRetryCheckout)
	router.GET("/orders/:reference", public.HandleGetOrder)

	adminGroup := router.Group("/admin", RequireAdminSecret(adminSecret))
	adminGroup.POST("/recitals", admin.HandleCreateRecital)
	adminGroup.GET("/recitals", admin.HandleListRecitals)
	adminGroup.PUT("/recitals/:id", admin.HandleUpdateRecital)
	adminGroup.PATCH("/recitals/:id/status", admin.HandleChangeRecitalStatus)
	adminGroup.POST("/recitals/:id/ticket-types", admin.HandleCreateTicketType)
	adminGroup.GET("/recitals/:id/ticket-types", admin.HandleListTicketTypes)
	adminGroup.PATCH("/ticket-types/:id", admin.HandleUpdateTicketType)
	adminGroup.GET("/recitals/:id/orders", admin.HandleListOrders)
	adminGroup.GET("/orders/:reference", admin.HandleGetOrder)
	adminGroup.POST("/orders/:reference/refund", admin.HandleRefundOrder)

	return router
}
