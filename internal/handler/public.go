package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sswpa/box-office/internal/model"
	"github.com/sswpa/box-office/internal/service"
	"github.com/sswpa/box-office/internal/service/domain"
	"github.com/sswpa/box-office/internal/service/workflow"
)

// PublicHandler serves the buyer-facing surface: recital listing,
// ticket types, checkout, and order polling by reference.
type PublicHandler struct {
	recitals domain.RecitalService
	catalog  domain.CatalogService
	orders   domain.OrderService
	checkout *workflow.CheckoutWorkflow
}

func NewPublicHandler(recitals domain.RecitalService, catalog domain.CatalogService,
	orders domain.OrderService, checkout *workflow.CheckoutWorkflow) *PublicHandler {
	return &PublicHandler{
		recitals: recitals,
		catalog:  catalog,
		orders:   orders,
		checkout: checkout,
	}
}

func (h *PublicHandler) HandleHealth(ctx *gin.Context) {
	ctx.JSON(200, gin.H{"status": "healthy"})
}

func (h *PublicHandler) HandleListRecitals(ctx *gin.Context) {
	recitals, err := h.recitals.ListVisible(ctx.Request.Context())
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(200, gin.H{"recitals": toRecitalResponses(recitals)})
}

func (h *PublicHandler) HandleListTicketTypes(ctx *gin.Context) {
	slug := ctx.Param("slug")
	recital, ticketTypes, err := h.catalog.ListPurchasableTicketTypes(ctx.Request.Context(), slug)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(200, gin.H{
		"recital":      toRecitalResponse(recital),
		"ticket_types": toTicketTypeResponses(ticketTypes),
	})
}

// HandleCheckAvailability answers "can I still buy N of this type".
// Advisory only; the checkout transaction re-checks under lock.
func (h *PublicHandler) HandleCheckAvailability(ctx *gin.Context) {
	id, err := parseID(ctx, "id")
	if err != nil {
		writeBadRequest(ctx, err)
		return
	}
	qty, err := strconv.Atoi(ctx.DefaultQuery("quantity", "1"))
	if err != nil || qty <= 0 {
		writeBadRequest(ctx, errors.New("quantity must be a positive integer"))
		return
	}

	remaining, ok, err := h.catalog.CheckAvailability(ctx.Request.Context(), id, qty)
	if err != nil {
		writeError(ctx, err)
		return
	}
	resp := gin.H{"available": ok}
	if remaining != nil {
		resp["remaining"] = *remaining
	}
	ctx.JSON(200, resp)
}

func (h *PublicHandler) HandleCheckout(ctx *gin.Context) {
	var req CheckoutPayload
	if err := ctx.ShouldBindJSON(&req); err != nil {
		writeBadRequest(ctx, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeBadRequest(ctx, err)
		return
	}

	lines := make([]domain.LineItem, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, domain.LineItem{
			TicketTypeID: item.TicketTypeID,
			Quantity:     item.Quantity,
		})
	}

	order, err := h.checkout.Checkout(ctx.Request.Context(), workflow.CheckoutRequest{
		RecitalSlug: req.RecitalSlug,
		Buyer: domain.Buyer{
			Name:  req.Buyer.Name,
			Email: req.Buyer.Email,
			Phone: req.Buyer.Phone,
		},
		Lines:        lines,
		PaymentToken: req.PaymentToken,
	})
	h.writeCheckoutResult(ctx, order, err)
}

func (h *PublicHandler) HandleRetryCheckout(ctx *gin.Context) {
	var req RetryPayload
	if err := ctx.ShouldBindJSON(&req); err != nil {
		writeBadRequest(ctx, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeBadRequest(ctx, err)
		return
	}

	order, err := h.checkout.Retry(ctx.Request.Context(), ctx.Param("reference"), req.PaymentToken)
	h.writeCheckoutResult(ctx, order, err)
}

// writeCheckoutResult distinguishes the two checkout failures that need
// the order reference in the body: a decline is terminal for that
// order, while a gateway outage leaves the order pending and retryable
// against the same reference.
func (h *PublicHandler) writeCheckoutResult(ctx *gin.Context, order *model.Order, err error) {
	switch {
	case err == nil:
		ctx.JSON(201, gin.H{"order": toOrderResponse(order, nil)})
	case errors.Is(err, service.ErrDeclined):
		ctx.JSON(402, gin.H{
			"error":     "Payment declined",
			"detail":    err.Error(),
			"order":     toOrderResponse(order, nil),
			"retryable": false,
		})
	case errors.Is(err, service.ErrGatewayUnavailable):
		ctx.JSON(503, gin.H{
			"error":     "Payment gateway unavailable",
			"message":   "Payment status unknown. Retry this order by reference; do not submit a new checkout.",
			"order":     toOrderResponse(order, nil),
			"retryable": true,
		})
	default:
		writeError(ctx, err)
	}
}

func (h *PublicHandler) HandleGetOrder(ctx *gin.Context) {
	order, items, err := h.orders.GetByReference(ctx.Request.Context(), ctx.Param("reference"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(200, gin.H{"order": toOrderResponse(order, items)})
}
