// Package amqp publishes snapshot events to a RabbitMQ exchange.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Config selects the broker and exchange events are routed through.
type Config struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
	// PublishTimeout bounds a single publish.
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends JSON messages with the topic as routing key.
type Publisher struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
	timeout  time.Duration
	now      func() time.Time
	seq      atomic.Uint64
}

// Open dials the broker, opens a channel and declares a durable topic exchange
// when one is configured.
func Open(cfg Config) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("amqp url is required")
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if cfg.Exchange != "" {
		if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
		}
	}
	p := newWithChannel(ch, cfg.Exchange, cfg.PublishTimeout)
	p.conn = conn
	return p, nil
}

func newWithChannel(ch channel, exchange string, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Publisher{ch: ch, exchange: exchange, timeout: timeout, now: time.Now}
}

// Publish marshals payload to JSON and publishes it as a persistent message.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if p.ch == nil {
		return "", fmt.Errorf("amqp publisher is not configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	id := fmt.Sprintf("%s-%d", topic, p.seq.Add(1))
	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now(),
		MessageId:    id,
	}

	publishCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.ch.PublishWithContext(publishCtx, p.exchange, topic, false, false, msg); err != nil {
		return "", fmt.Errorf("publish to %s: %w", topic, err)
	}
	return id, nil
}

// Close closes the channel and the connection.
func (p *Publisher) Close() error {
	var err error
	if p.ch != nil {
		err = p.ch.Close()
	}
	if p.conn != nil {
		if cerr := p.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("close amqp publisher: %w", err)
	}
	return nil
}
