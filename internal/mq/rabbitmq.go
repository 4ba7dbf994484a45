package mq

import (
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// InitQueues declares the queue topology. The expiry window is passed in
// from config because the delay-queue TTL is a queue property, not a
// per-message one.
func InitQueues(mqConn *amqp.Connection, expiry time.Duration) error {
	ch, err := NewChannel(mqConn)
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := SetupDelayQueue(ch, OrderExpiryDelayQueue, OrderExpiryExchange,
		OrderExpiryReadyQueue, OrderExpiryRoutingKey, expiry); err != nil {
		return err
	}
	if err := SetupImmediateQueue(ch, OrderNotificationQueue); err != nil {
		return err
	}

	return nil
}

func NewMQConn(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func NewChannel(conn *amqp.Connection) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func SetupImmediateQueue(ch *amqp.Channel, immediateQueueName string) error {
	_, err := ch.QueueDeclare(immediateQueueName, true, false, false, false, nil)
	return err
}

// the delay queue consists of three parts: delay queue, dead-letter
// exchange, ready queue
// produce to the delay queue, and consume from the ready queue
func SetupDelayQueue(ch *amqp.Channel, delayQueueName, exchangeName, readyQueueName, routingKey string, ttl time.Duration) error {
	delayArgs := amqp.Table{
		"x-message-ttl":             int32(ttl / time.Millisecond),
		"x-dead-letter-exchange":    exchangeName,
		"x-dead-letter-routing-key": routingKey,
	}

	if _, err := ch.QueueDeclare(
		delayQueueName, true, false, false, false, delayArgs); err != nil {
		return err
	}

	if err := ch.ExchangeDeclare(exchangeName, "direct", true, false, false, false, nil); err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(readyQueueName, true, false, false, false, nil); err != nil {
		return err
	}

	return ch.QueueBind(readyQueueName, routingKey, exchangeName, false, nil)
}
