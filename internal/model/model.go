package model

import (
	"time"
)

// Recital is a single concert put on by the society. Buyers address
// recitals by slug, never by numeric id.
type Recital struct {
	ID        uint          `gorm:"primaryKey"`
	Slug      string        `gorm:"size:128;not null;uniqueIndex"`
	Title     string        `gorm:"size:200;not null"`
	Artist    string        `gorm:"size:200;not null"`
	Venue     string        `gorm:"size:200"`
	StartsAt  time.Time     `gorm:"not null"`
	Status    RecitalStatus `gorm:"type:varchar(16);not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type RecitalStatus string

const (
	RecitalStatusUpcoming  RecitalStatus = "upcoming"
	RecitalStatusOnSale    RecitalStatus = "on_sale"
	RecitalStatusPast      RecitalStatus = "past"
	RecitalStatusCancelled RecitalStatus = "cancelled"
)

// Visible reports whether buyers can see the recital at all. The same
// predicate backs the listing endpoint and the checkout gate so the two
// can never diverge.
func (s RecitalStatus) Visible() bool {
	return s == RecitalStatusUpcoming || s == RecitalStatusOnSale
}

// Purchasable reports whether the recital accepts orders.
func (s RecitalStatus) Purchasable() bool {
	return s == RecitalStatusOnSale
}

// CanTransitionTo enforces the one-directional lifecycle
// upcoming -> on_sale -> past, with cancelled reachable from any state.
func (s RecitalStatus) CanTransitionTo(next RecitalStatus) bool {
	if next == RecitalStatusCancelled {
		return s != RecitalStatusCancelled
	}
	switch s {
	case RecitalStatusUpcoming:
		return next == RecitalStatusOnSale || next == RecitalStatusPast
	case RecitalStatusOnSale:
		return next == RecitalStatusPast
	default:
		return false
	}
}

// TicketType is one price level for a recital. Prices are integer cents;
// TotalAvailable == nil means unlimited.
type TicketType struct {
	ID             uint    `gorm:"primaryKey"`
	RecitalID      uint    `gorm:"not null;index"`
	Recital        Recital `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Name           string  `gorm:"size:100;not null"`
	PriceCents     int64   `gorm:"not null"`
	TotalAvailable *int
	MaxPerOrder    int  `gorm:"not null;default:10"`
	SortOrder      int  `gorm:"not null;default:0"`
	Active         bool `gorm:"not null;default:true"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Order is one checkout transaction. Reference is the public,
// unguessable handle used in URLs, emails and the gateway idempotency
// key; the numeric id never leaves the service.
type Order struct {
	ID               uint          `gorm:"primaryKey"`
	Reference        string        `gorm:"size:64;not null;uniqueIndex"`
	RecitalID        uint          `gorm:"not null;index"`
	Recital          Recital       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	BuyerName        string        `gorm:"size:200;not null"`
	BuyerEmail       string        `gorm:"size:200;not null;index"`
	BuyerPhone       string        `gorm:"size:40"`
	TotalAmountCents int64         `gorm:"not null"`
	PaymentStatus    PaymentStatus `gorm:"type:varchar(16);not null;index"`
	PaymentRef       string        `gorm:"size:128"`
	FailureReason    string        `gorm:"size:200"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IdempotencyKey is the token handed to the payment gateway. It is
// derived from the order's stored reference, so every retry of the same
// pending order presents the same key.
func (o *Order) IdempotencyKey() string {
	return "order-" + o.Reference
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Terminal reports whether the status can still change. Completed is
// terminal except for the administrative completed -> refunded edge.
func (s PaymentStatus) Terminal() bool {
	return s != PaymentStatusPending
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentStatusPending:
		return next == PaymentStatusCompleted || next == PaymentStatusFailed
	case PaymentStatusCompleted:
		return next == PaymentStatusRefunded
	default:
		return false
	}
}

// OrderItem is a line of an order. PricePerTicketCents is copied from
// the ticket type at purchase time; later price edits must not touch it.
type OrderItem struct {
	ID                  uint       `gorm:"primaryKey"`
	OrderID             uint       `gorm:"not null;index"`
	Order               Order      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	TicketTypeID        uint       `gorm:"not null;index"`
	TicketType          TicketType `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Quantity            int        `gorm:"not null"`
	PricePerTicketCents int64      `gorm:"not null"`
	CreatedAt           time.Time
}

// ItemsTotalCents sums price x quantity over the given items. The
// stored order total must always equal this sum.
func ItemsTotalCents(items []OrderItem) int64 {
	var total int64
	for _, item := range items {
		total += item.PricePerTicketCents * int64(item.Quantity)
	}
	return total
}
