package mq

import (
	"fmt"

	"github.com/rabbitmq/amqp091-go"
)

// ExchangeName is the topic exchange carrying report lifecycle events.
const ExchangeName = "events"

// NewConnection dials RabbitMQ.
func NewConnection(url string) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// DeclareExchange declares the durable topic exchange.
func DeclareExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(
		ExchangeName,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
}
