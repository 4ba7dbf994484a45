package workflow

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/sswpa/box-office/internal/mailer"
	"github.com/sswpa/box-office/internal/mq"
	"github.com/sswpa/box-office/internal/service/domain"
)

// NotificationWorkflow sends confirmation emails for completed orders.
// Delivery is fire-and-forget: a failed send is logged and the message
// acked, never requeued against an order that is already final.
type NotificationWorkflow struct {
	orders   domain.OrderService
	recitals domain.RecitalService
	mailer   *mailer.Mailer
	log      *zap.Logger
}

func NewNotificationWorkflow(orders domain.OrderService, recitals domain.RecitalService,
	m *mailer.Mailer, log *zap.Logger) *NotificationWorkflow {
	return &NotificationWorkflow{
		orders:   orders,
		recitals: recitals,
		mailer:   m,
		log:      log,
	}
}

func (w *NotificationWorkflow) Start(conn *amqp.Connection) error {
	ch, err := mq.NewChannel(conn)
	if err != nil {
		return err
	}

	msgs, err := ch.Consume(mq.OrderNotificationQueue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	go func() {
		for msg := range msgs {
			w.handleNotification(msg)
		}
	}()

	return nil
}

func (w *NotificationWorkflow) handleNotification(msg amqp.Delivery) {
	var message mq.OrderNotificationMessage
	if err := json.Unmarshal(msg.Body, &message); err != nil {
		w.log.Warn("bad notification message", zap.Error(err))
		msg.Nack(false, false)
		return
	}

	ctx := context.Background()
	order, items, err := w.orders.GetByID(ctx, message.OrderID)
	if err != nil {
		w.log.Warn("order not found for notification",
			zap.Uint("order_id", message.OrderID), zap.Error(err))
		msg.Ack(false)
		return
	}

	recital, err := w.recitals.GetByID(ctx, order.RecitalID)
	if err != nil {
		w.log.Warn("recital not found for notification",
			zap.Uint("order_id", message.OrderID), zap.Error(err))
		msg.Ack(false)
		return
	}

	if err := w.mailer.SendOrderConfirmation(order, recital, items); err != nil {
		w.log.Warn("confirmation email failed",
			zap.String("reference", order.Reference), zap.Error(err))
	}
	msg.Ack(false)
}
