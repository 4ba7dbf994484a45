package handler

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sswpa/box-office/internal/model"
)

var validate = validator.New()

type BuyerPayload struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"max=40"`
}

type LineItemPayload struct {
	TicketTypeID uint `json:"ticket_type_id" validate:"required"`
	Quantity     int  `json:"quantity" validate:"required,gt=0"`
}

type CheckoutPayload struct {
	RecitalSlug  string            `json:"recital_slug" validate:"required"`
	Buyer        BuyerPayload      `json:"buyer" validate:"required"`
	Items        []LineItemPayload `json:"items" validate:"required,min=1,dive"`
	PaymentToken string            `json:"payment_token" validate:"required"`
}

type RetryPayload struct {
	PaymentToken string `json:"payment_token" validate:"required"`
}

type CreateRecitalPayload struct {
	Slug     string    `json:"slug" validate:"required,max=128"`
	Title    string    `json:"title" validate:"required,max=200"`
	Artist   string    `json:"artist" validate:"required,max=200"`
	Venue    string    `json:"venue" validate:"max=200"`
	StartsAt time.Time `json:"starts_at" validate:"required"`
}

// UpdateRecitalPayload carries everything but the slug and status; the
// slug is the recital's permanent public identity.
type UpdateRecitalPayload struct {
	Title    string    `json:"title" validate:"required,max=200"`
	Artist   string    `json:"artist" validate:"required,max=200"`
	Venue    string    `json:"venue" validate:"max=200"`
	StartsAt time.Time `json:"starts_at" validate:"required"`
}

type ChangeStatusPayload struct {
	Status model.RecitalStatus `json:"status" validate:"required,oneof=upcoming on_sale past cancelled"`
}

type CreateTicketTypePayload struct {
	Name           string `json:"name" validate:"required,max=100"`
	PriceCents     int64  `json:"price_cents" validate:"gte=0"`
	TotalAvailable *int   `json:"total_available" validate:"omitempty,gt=0"`
	MaxPerOrder    int    `json:"max_per_order" validate:"omitempty,gt=0"`
	SortOrder      int    `json:"sort_order"`
	Active         *bool  `json:"active"`
}

// UpdateTicketTypePayload is a partial update: absent fields keep their
// stored value. A total_available of 0 lifts the cap (unlimited).
type UpdateTicketTypePayload struct {
	Name           *string `json:"name" validate:"omitempty,max=100"`
	PriceCents     *int64  `json:"price_cents" validate:"omitempty,gte=0"`
	TotalAvailable *int    `json:"total_available" validate:"omitempty,gte=0"`
	MaxPerOrder    *int    `json:"max_per_order" validate:"omitempty,gt=0"`
	SortOrder      *int    `json:"sort_order"`
	Active         *bool   `json:"active"`
}

type RecitalResponse struct {
	ID       uint      `json:"id"`
	Slug     string    `json:"slug"`
	Title    string    `json:"title"`
	Artist   string    `json:"artist"`
	Venue    string    `json:"venue"`
	StartsAt time.Time `json:"starts_at"`
	Status   string    `json:"status"`
}

func toRecitalResponse(r *model.Recital) RecitalResponse {
	return RecitalResponse{
		ID:       r.ID,
		Slug:     r.Slug,
		Title:    r.Title,
		Artist:   r.Artist,
		Venue:    r.Venue,
		StartsAt: r.StartsAt,
		Status:   string(r.Status),
	}
}

func toRecitalResponses(recitals []model.Recital) []RecitalResponse {
	out := make([]RecitalResponse, 0, len(recitals))
	for i := range recitals {
		out = append(out, toRecitalResponse(&recitals[i]))
	}
	return out
}

type TicketTypeResponse struct {
	ID             uint   `json:"id"`
	Name           string `json:"name"`
	PriceCents     int64  `json:"price_cents"`
	TotalAvailable *int   `json:"total_available,omitempty"`
	MaxPerOrder    int    `json:"max_per_order"`
	SortOrder      int    `json:"sort_order"`
	Active         bool   `json:"active"`
}

func toTicketTypeResponses(tts []model.TicketType) []TicketTypeResponse {
	out := make([]TicketTypeResponse, 0, len(tts))
	for _, tt := range tts {
		out = append(out, TicketTypeResponse{
			ID:             tt.ID,
			Name:           tt.Name,
			PriceCents:     tt.PriceCents,
			TotalAvailable: tt.TotalAvailable,
			MaxPerOrder:    tt.MaxPerOrder,
			SortOrder:      tt.SortOrder,
			Active:         tt.Active,
		})
	}
	return out
}

type OrderItemResponse struct {
	TicketTypeID        uint  `json:"ticket_type_id"`
	Quantity            int   `json:"quantity"`
	PricePerTicketCents int64 `json:"price_per_ticket_cents"`
}

type OrderResponse struct {
	Reference        string              `json:"reference"`
	PaymentStatus    string              `json:"payment_status"`
	TotalAmountCents int64               `json:"total_amount_cents"`
	FailureReason    string              `json:"failure_reason,omitempty"`
	BuyerEmail       string              `json:"buyer_email"`
	CreatedAt        time.Time           `json:"created_at"`
	Items            []OrderItemResponse `json:"items,omitempty"`
}

func toOrderResponse(order *model.Order, items []model.OrderItem) OrderResponse {
	resp := OrderResponse{
		Reference:        order.Reference,
		PaymentStatus:    string(order.PaymentStatus),
		TotalAmountCents: order.TotalAmountCents,
		FailureReason:    order.FailureReason,
		BuyerEmail:       order.BuyerEmail,
		CreatedAt:        order.CreatedAt,
	}
	for _, item := range items {
		resp.Items = append(resp.Items, OrderItemResponse{
			TicketTypeID:        item.TicketTypeID,
			Quantity:            item.Quantity,
			PricePerTicketCents: item.PricePerTicketCents,
		})
	}
	return resp
}
