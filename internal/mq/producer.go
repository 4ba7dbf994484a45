package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher is the producing side of the queue topology. Workflows hold
// this interface so tests can substitute a recording stub.
type Publisher interface {
	Publish(queueName string, message any) error
}

// ChannelPublisher publishes on a fresh channel per call; channels are
// not safe for concurrent use but connections are.
type ChannelPublisher struct {
	conn *amqp.Connection
}

var _ Publisher = (*ChannelPublisher)(nil)

func NewChannelPublisher(conn *amqp.Connection) *ChannelPublisher {
	return &ChannelPublisher{conn: conn}
}

func (p *ChannelPublisher) Publish(queueName string, message any) error {
	ch, err := NewChannel(p.conn)
	if err != nil {
		return err
	}
	defer ch.Close()

	return SendMessage(ch, queueName, message)
}

func SendMessage(ch *amqp.Channel, queueName string, message any) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = ch.PublishWithContext(
		context.Background(),
		"",
		queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message to queue %s: %w", queueName, err)
	}

	return nil
}
