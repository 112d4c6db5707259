package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldops/backend/internal/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Config holds RabbitMQ publisher configuration.
type Config struct {
	URL           string
	Exchange      string
	RetryAttempts int
	RetryInterval time.Duration
}

// Publisher mirrors dispatched notification events onto a durable exchange
// for out-of-process consumers such as the mobile push worker.
type Publisher struct {
	config  Config
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewPublisher connects to RabbitMQ with retry and declares the exchange.
func NewPublisher(config Config) (*Publisher, error) {
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 3
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = 2 * time.Second
	}
	if config.Exchange == "" {
		config.Exchange = "fieldops.events"
	}

	p := &Publisher{config: config}

	var err error
	for attempt := 1; attempt <= config.RetryAttempts; attempt++ {
		p.conn, err = amqp.Dial(config.URL)
		if err == nil {
			break
		}
		logger.Warn("Failed to connect to RabbitMQ", map[string]interface{}{
			"attempt": attempt,
			"error":   err.Error(),
		})
		if attempt < config.RetryAttempts {
			time.Sleep(config.RetryInterval)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w",
			config.RetryAttempts, err)
	}

	p.channel, err = p.conn.Channel()
	if err != nil {
		p.conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	if err := p.channel.ExchangeDeclare(
		config.Exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		p.channel.Close()
		p.conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	logger.Info("Connected to RabbitMQ", map[string]interface{}{"exchange": config.Exchange})
	return p, nil
}

// Publish sends a JSON body with the given routing key.
func (p *Publisher) Publish(routingKey string, body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return p.channel.PublishWithContext(ctx,
		p.config.Exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// Close shuts down the channel and connection.
func (p *Publisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
