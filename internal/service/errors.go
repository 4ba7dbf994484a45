// Package service defines the error taxonomy shared by domain services,
// workflows and handlers. Handlers translate these sentinels into HTTP
// status codes; nothing below the handler layer knows about HTTP.
package service

import "errors"

var (
	// ErrNotFound covers unknown slugs and references.
	ErrNotFound = errors.New("not found")

	// ErrValidation covers bad input the caller can correct:
	// inactive ticket types, quantities over the per-order cap,
	// recitals that are not on sale.
	ErrValidation = errors.New("validation failed")

	// ErrConflict signals an illegal state transition, such as
	// completing an order that already failed.
	ErrConflict = errors.New("conflicting state")

	// ErrSoldOut means the requested quantity exceeds remaining
	// availability. Surfaced before the gateway is ever called.
	ErrSoldOut = errors.New("not enough tickets available")

	// ErrDeclined is terminal for the attempt; the order moves to
	// failed and the buyer must start a new one.
	ErrDeclined = errors.New("payment declined")

	// ErrGatewayUnavailable is transient. The order stays pending and
	// the same order may be retried with the same idempotency key.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)
