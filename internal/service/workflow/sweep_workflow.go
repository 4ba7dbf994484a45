package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/sswpa/box-office/internal/mq"
	"github.com/sswpa/box-office/internal/service"
	"github.com/sswpa/box-office/internal/service/domain"
)

// SweepWorkflow resolves pending orders that never reached a terminal
// state, releasing the inventory they hold. Two triggers: the delayed
// expiry message published at checkout, and a periodic scan that
// catches anything the queue lost.
type SweepWorkflow struct {
	orders   domain.OrderService
	interval time.Duration
	log      *zap.Logger
}

func NewSweepWorkflow(orders domain.OrderService, interval time.Duration, log *zap.Logger) *SweepWorkflow {
	return &SweepWorkflow{
		orders:   orders,
		interval: interval,
		log:      log,
	}
}

func (w *SweepWorkflow) Start(ctx context.Context, mqConn *amqp.Connection) error {
	if mqConn != nil {
		if err := w.consumeExpiry(mqConn); err != nil {
			return err
		}
	}
	go w.runTicker(ctx)
	return nil
}

func (w *SweepWorkflow) consumeExpiry(conn *amqp.Connection) error {
	ch, err := mq.NewChannel(conn)
	if err != nil {
		return err
	}

	msgs, err := ch.Consume(mq.OrderExpiryReadyQueue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	go func() {
		for msg := range msgs {
			if err := w.handleExpiry(msg); err != nil {
				w.log.Warn("failed to handle expiry message", zap.Error(err))
			}
		}
	}()

	return nil
}

func (w *SweepWorkflow) handleExpiry(msg amqp.Delivery) error {
	var message mq.OrderExpiryMessage
	if err := json.Unmarshal(msg.Body, &message); err != nil {
		msg.Nack(false, false)
		return err
	}

	_, err := w.orders.ExpireIfPending(context.Background(), message.OrderID)
	if err != nil {
		// A vanished order is not worth redelivering.
		if errors.Is(err, service.ErrNotFound) {
			msg.Ack(false)
			return err
		}
		msg.Nack(false, true)
		return err
	}

	msg.Ack(false)
	return nil
}

func (w *SweepWorkflow) runTicker(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := w.orders.ExpireStalePending(ctx)
			if err != nil {
				w.log.Warn("stale order sweep failed", zap.Error(err))
				continue
			}
			if expired > 0 {
				w.log.Info("stale order sweep", zap.Int("expired", expired))
			}
		}
	}
}
