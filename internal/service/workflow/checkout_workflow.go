package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sswpa/box-office/internal/model"
	"github.com/sswpa/box-office/internal/mq"
	"github.com/sswpa/box-office/internal/service"
	"github.com/sswpa/box-office/internal/service/domain"
)

// CheckoutWorkflow sequences one user-visible checkout: validate the
// cart, create the pending order (the idempotency anchor), charge the
// gateway, finalize. The reserve step commits before the network call
// so no database lock is held while the gateway blocks.
type CheckoutWorkflow struct {
	recitals    domain.RecitalService
	orders      domain.OrderService
	payments    domain.PaymentService
	publisher   mq.Publisher
	orderExpiry time.Duration
	log         *zap.Logger
}

func NewCheckoutWorkflow(recitals domain.RecitalService, orders domain.OrderService,
	payments domain.PaymentService, publisher mq.Publisher,
	orderExpiry time.Duration, log *zap.Logger) *CheckoutWorkflow {
	return &CheckoutWorkflow{
		recitals:    recitals,
		orders:      orders,
		payments:    payments,
		publisher:   publisher,
		orderExpiry: orderExpiry,
		log:         log,
	}
}

type CheckoutRequest struct {
	RecitalSlug  string
	Buyer        domain.Buyer
	Lines        []domain.LineItem
	PaymentToken string
}

// Checkout runs the full flow. On ErrGatewayUnavailable the returned
// order is non-nil and still pending: the caller should retry that
// order by reference instead of submitting a new checkout, otherwise
// the inventory is booked twice.
func (w *CheckoutWorkflow) Checkout(ctx context.Context, req CheckoutRequest) (*model.Order, error) {
	recital, err := w.recitals.GetVisibleBySlug(ctx, req.RecitalSlug)
	if err != nil {
		return nil, err
	}
	if !recital.Status.Purchasable() {
		return nil, fmt.Errorf("%w: recital %q is not on sale", service.ErrValidation, req.RecitalSlug)
	}

	order, err := w.orders.CreatePendingOrder(ctx, recital.ID, req.Buyer, req.Lines)
	if err != nil {
		return nil, err
	}

	// Best effort: the ticker backstop in the sweep covers a lost
	// message.
	if w.publisher != nil {
		if err := w.publisher.Publish(mq.OrderExpiryDelayQueue,
			mq.OrderExpiryMessage{OrderID: order.ID}); err != nil {
			w.log.Warn("failed to publish expiry message",
				zap.String("reference", order.Reference), zap.Error(err))
		}
	}

	return w.chargeAndFinalize(ctx, order, req.PaymentToken)
}

// Retry re-runs the charge for an order left pending by a gateway
// outage. The idempotency key is stable per order, so this never
// produces a second capture; an order that already completed returns
// success immediately. A pending order is only retryable inside the
// expiry window: past it the hold no longer counts against
// availability and completing the order could oversell, so the retry
// resolves the order as expired instead of charging it.
func (w *CheckoutWorkflow) Retry(ctx context.Context, reference, paymentToken string) (*model.Order, error) {
	order, _, err := w.orders.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	switch order.PaymentStatus {
	case model.PaymentStatusCompleted:
		return order, nil
	case model.PaymentStatusPending:
		if time.Since(order.CreatedAt) < w.orderExpiry {
			return w.chargeAndFinalize(ctx, order, paymentToken)
		}
		return w.resolveExpired(ctx, reference, order)
	default:
		return order, fmt.Errorf("%w: order is %s and cannot be retried",
			service.ErrConflict, order.PaymentStatus)
	}
}

// resolveExpired marks a stale pending order failed ahead of the sweep.
// Losing the race to another finalizer is fine; the fresh read reports
// whatever outcome won.
func (w *CheckoutWorkflow) resolveExpired(ctx context.Context, reference string, order *model.Order) (*model.Order, error) {
	expired, err := w.orders.ExpireIfPending(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if expired {
		order.PaymentStatus = model.PaymentStatusFailed
		order.FailureReason = domain.FailureReasonExpired
	} else {
		order, _, err = w.orders.GetByReference(ctx, reference)
		if err != nil {
			return nil, err
		}
		if order.PaymentStatus == model.PaymentStatusCompleted {
			return order, nil
		}
	}
	return order, fmt.Errorf("%w: order expired and its tickets were released",
		service.ErrConflict)
}

func (w *CheckoutWorkflow) chargeAndFinalize(ctx context.Context, order *model.Order, paymentToken string) (*model.Order, error) {
	result, err := w.payments.Charge(ctx, order, paymentToken)
	if err != nil {
		if errors.Is(err, service.ErrGatewayUnavailable) {
			// Order stays pending; the sweep resolves it if the
			// buyer never comes back.
			return order, err
		}
		return order, err
	}

	if !result.Approved {
		if err := w.orders.MarkFailed(ctx, order.ID, result.ReasonCode); err != nil {
			return order, err
		}
		order.PaymentStatus = model.PaymentStatusFailed
		order.FailureReason = result.ReasonCode
		return order, fmt.Errorf("%w: %s", service.ErrDeclined, result.ReasonCode)
	}

	if err := w.orders.MarkCompleted(ctx, order.ID, result.Reference); err != nil {
		return order, err
	}
	order.PaymentStatus = model.PaymentStatusCompleted
	order.PaymentRef = result.Reference

	if w.publisher != nil {
		if err := w.publisher.Publish(mq.OrderNotificationQueue,
			mq.OrderNotificationMessage{OrderID: order.ID}); err != nil {
			w.log.Warn("failed to publish notification message",
				zap.String("reference", order.Reference), zap.Error(err))
		}
	}

	w.log.Info("checkout completed",
		zap.String("reference", order.Reference),
		zap.String("payment_ref", result.Reference))
	return order, nil
}
