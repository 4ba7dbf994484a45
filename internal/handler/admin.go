package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sswpa/box-office/internal/model"
	"github.com/sswpa/box-office/internal/service/domain"
)

// AdminHandler is the management surface: recital and ticket-type CRUD,
// order inspection, refunds. Everything behind the shared-secret
// middleware.
type AdminHandler struct {
	recitals domain.RecitalService
	catalog  domain.CatalogService
	orders   domain.OrderService
}

func NewAdminHandler(recitals domain.RecitalService, catalog domain.CatalogService,
	orders domain.OrderService) *AdminHandler {
	return &AdminHandler{
		recitals: recitals,
		catalog:  catalog,
		orders:   orders,
	}
}

func (h *AdminHandler) HandleCreateRecital(ctx *gin.Context) {
	var req CreateRecitalPayload
	if err := ctx.ShouldBindJSON(&req); err != nil {
		writeBadRequest(ctx, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeBadRequest(ctx, err)
		return
	}

	recital := &model.Recital{
		Slug:     req.Slug,
		Title:    req.Title,
		Artist:   req.Artist,
		Venue:    req.Venue,
		StartsAt: req.StartsAt,
		Status:   model.RecitalStatusUpcoming,
	}
	if err := h.recitals.CreateRecital(ctx.Request.Context(), recital); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(201, gin.H{"recital": toRecitalResponse(recital)})
}

// HandleUpdateRecital replaces the descriptive fields. Status changes
// go through the dedicated transition endpoint, never through here.
func (h *AdminHandler) HandleUpdateRecital(ctx *gin.Context) {
	id, err := parseID(ctx, "id")
	if err != nil {
		writeBadRequest(ctx, err)
		return
	}
	var req UpdateRecitalPayload
	if err := ctx.ShouldBindJSON(&req); err != nil {
		writeBadRequest(ctx, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeBadRequest(ctx, err)
		return
	}

	recital, err := h.recitals.GetByID(ctx.Request.Context(), id)
	if err != nil {
		writeError(ctx, err)
		return
	}
	recital.Title = req.Title
	recital.Artist = req.Artist
	recital.Venue = req.Venue
	recital.StartsAt = req.StartsAt
	if err := h.recitals.UpdateRecital(ctx.Request.Context(), recital); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(200, gin.H{"recital": toRecitalResponse(recital)})
}

func (h *AdminHandler) HandleListRecitals(ctx *gin.Context) {
	recitals, err := h.recitals.ListAll(ctx.Request.Context())
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(200, gin.H{"recitals": toRecitalResponses(recitals)})
}

func (h *AdminHandler) HandleChangeRecitalStatus(ctx *gin.Context) {
	id, err := parseID(ctx, "id")
	if err != nil {
		writeBadRequest(ctx, err)
		return
	}
	var req ChangeStatusPayload
	if err := ctx.ShouldBindJSON(&req); err != nil {
		writeBadRequest(ctx, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeBadRequest(ctx, err)
		return
	}

	recital, err := h.recitals.ChangeStatus(ctx.Request.Context(), id, req.Status)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(200, gin.H{"recital": toRecitalResponse(recital)})
}

func (h *AdminHandler) HandleCreateTicketType(ctx *gin.Context) {
	recitalID, err := parseID(ctx, "id")
	if err != nil {
		writeBadRequest(ctx, err)
		return
	}
	var req CreateTicketTypePayload
	if err := ctx.ShouldBindJSON(&req); err != nil {
		writeBadRequest(ctx, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeBadRequest(ctx, err)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	tt := &model.TicketType{
		RecitalID:      recitalID,
		Name:           req.Name,
		PriceCents:     req.PriceCents,
		TotalAvailable: req.TotalAvailable,
		MaxPerOrder:    req.MaxPerOrder,
		SortOrder:      req.SortOrder,
		Active:         active,
	}
	if err := h.catalog.CreateTicketType(ctx.Request.Context(), tt); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(201, gin.H{"ticket_types": toTicketTypeResponses([]model.TicketType{*tt})})
}

func (h *AdminHandler) HandleListTicketTypes(ctx *gin.Context) {
	recitalID, err := parseID(ctx, "id")
	if err != nil {
		writeBadRequest(ctx, err)
		return
	}
	ticketTypes, err := h.catalog.ListByRecitalID(ctx.Request.Context(), recitalID)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(200, gin.H{"ticket_types": toTicketTypeResponses(ticketTypes)})
}

// HandleUpdateTicketType applies a partial update on top of the stored
// row, so omitting a field can never zero a price or lift a cap by
// accident.
func (h *AdminHandler) HandleUpdateTicketType(ctx *gin.Context) {
	id, err := parseID(ctx, "id")
	if err != nil {
		writeBadRequest(ctx, err)
		return
	}
	var req UpdateTicketTypePayload
	if err := ctx.ShouldBindJSON(&req); err != nil {
		writeBadRequest(ctx, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeBadRequest(ctx, err)
		return
	}

	tt, err := h.catalog.GetTicketType(ctx.Request.Context(), id)
	if err != nil {
		writeError(ctx, err)
		return
	}
	if req.Name != nil {
		tt.Name = *req.Name
	}
	if req.PriceCents != nil {
		tt.PriceCents = *req.PriceCents
	}
	if req.TotalAvailable != nil {
		if *req.TotalAvailable == 0 {
			tt.TotalAvailable = nil
		} else {
			tt.TotalAvailable = req.TotalAvailable
		}
	}
	if req.MaxPerOrder != nil {
		tt.MaxPerOrder = *req.MaxPerOrder
	}
	if req.SortOrder != nil {
		tt.SortOrder = *req.SortOrder
	}
	if req.Active != nil {
		tt.Active = *req.Active
	}
	if err := h.catalog.UpdateTicketType(ctx.Request.Context(), tt); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(200, gin.H{"ticket_types": toTicketTypeResponses([]model.TicketType{*tt})})
}

func (h *AdminHandler) HandleListOrders(ctx *gin.Context) {
	recitalID, err := parseID(ctx, "id")
	if err != nil {
		writeBadRequest(ctx, err)
		return
	}
	orders, err := h.orders.ListByRecitalID(ctx.Request.Context(), recitalID)
	if err != nil {
		writeError(ctx, err)
		return
	}
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderResponse(&orders[i], nil))
	}
	ctx.JSON(200, gin.H{"orders": out})
}

func (h *AdminHandler) HandleGetOrder(ctx *gin.Context) {
	order, items, err := h.orders.GetByReference(ctx.Request.Context(), ctx.Param("reference"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(200, gin.H{"order": toOrderResponse(order, items)})
}

// HandleRefundOrder records the administrative refund transition. The
// actual money movement happens in the Square dashboard; this keeps the
// order record in step with it.
func (h *AdminHandler) HandleRefundOrder(ctx *gin.Context) {
	order, _, err := h.orders.GetByReference(ctx.Request.Context(), ctx.Param("reference"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	if err := h.orders.MarkRefunded(ctx.Request.Context(), order.ID); err != nil {
		writeError(ctx, err)
		return
	}
	order.PaymentStatus = model.PaymentStatusRefunded
	ctx.JSON(200, gin.H{"order": toOrderResponse(order, nil)})
}

func parseID(ctx *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
