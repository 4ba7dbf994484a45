package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecitalStatusTransitions(t *testing.T) {
	cases := []struct {
		from    RecitalStatus
		to      RecitalStatus
		allowed bool
	}{
		{RecitalStatusUpcoming, RecitalStatusOnSale, true},
		{RecitalStatusUpcoming, RecitalStatusPast, true},
		{RecitalStatusUpcoming, RecitalStatusCancelled, true},
		{RecitalStatusOnSale, RecitalStatusPast, true},
		{RecitalStatusOnSale, RecitalStatusCancelled, true},
		{RecitalStatusOnSale, RecitalStatusUpcoming, false},
		{RecitalStatusPast, RecitalStatusOnSale, false},
		{RecitalStatusPast, RecitalStatusUpcoming, false},
		{RecitalStatusPast, RecitalStatusCancelled, true},
		{RecitalStatusCancelled, RecitalStatusOnSale, false},
		{RecitalStatusCancelled, RecitalStatusCancelled, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.allowed, c.from.CanTransitionTo(c.to),
			"%s -> %s", c.from, c.to)
	}
}

func TestRecitalStatusVisibility(t *testing.T) {
	assert.True(t, RecitalStatusUpcoming.Visible())
	assert.True(t, RecitalStatusOnSale.Visible())
	assert.False(t, RecitalStatusPast.Visible())
	assert.False(t, RecitalStatusCancelled.Visible())

	// Purchasable implies visible, never the other way around.
	assert.True(t, RecitalStatusOnSale.Purchasable())
	assert.False(t, RecitalStatusUpcoming.Purchasable())
	assert.False(t, RecitalStatusPast.Purchasable())
	assert.False(t, RecitalStatusCancelled.Purchasable())
}

func TestPaymentStatusTransitions(t *testing.T) {
	assert.True(t, PaymentStatusPending.CanTransitionTo(PaymentStatusCompleted))
	assert.True(t, PaymentStatusPending.CanTransitionTo(PaymentStatusFailed))
	assert.False(t, PaymentStatusPending.CanTransitionTo(PaymentStatusRefunded))
	assert.True(t, PaymentStatusCompleted.CanTransitionTo(PaymentStatusRefunded))
	assert.False(t, PaymentStatusCompleted.CanTransitionTo(PaymentStatusPending))
	assert.False(t, PaymentStatusFailed.CanTransitionTo(PaymentStatusCompleted))
	assert.False(t, PaymentStatusRefunded.CanTransitionTo(PaymentStatusCompleted))

	assert.False(t, PaymentStatusPending.Terminal())
	assert.True(t, PaymentStatusCompleted.Terminal())
	assert.True(t, PaymentStatusFailed.Terminal())
	assert.True(t, PaymentStatusRefunded.Terminal())
}

func TestItemsTotalCents(t *testing.T) {
	items := []OrderItem{
		{Quantity: 2, PricePerTicketCents: 2500},
		{Quantity: 1, PricePerTicketCents: 1500},
	}
	assert.Equal(t, int64(6500), ItemsTotalCents(items))
	assert.Equal(t, int64(0), ItemsTotalCents(nil))
}

func TestOrderIdempotencyKey(t *testing.T) {
	order := &Order{Reference: "9f4b7c1e"}
	assert.Equal(t, "order-9f4b7c1e", order.IdempotencyKey())
	// Stable across calls; a retried charge must present the same key.
	assert.Equal(t, order.IdempotencyKey(), order.IdempotencyKey())
}
