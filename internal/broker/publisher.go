// Package broker publishes domain events to RabbitMQ.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/ringlink/internal/config"
	"github.com/mbeoliero/ringlink/internal/service"
	amqp "github.com/rabbitmq/amqp091-go"
)

const maxDialDelay = 30 * time.Second

// Publisher sends JSON events to a topic exchange
type Publisher struct {
	mu       sync.Mutex
	url      string
	exchange string
	conn     *amqp.Connection
}

var _ service.EventPublisher = (*Publisher)(nil)

// NewPublisher dials the broker, retrying with backoff, and declares the
// exchange
func NewPublisher(ctx context.Context, cfg config.RabbitMQConfig, attempts int) (*Publisher, error) {
	p := &Publisher{url: cfg.URL, exchange: cfg.Exchange}

	conn, err := dialWithRetry(ctx, cfg.URL, attempts, time.Second)
	if err != nil {
		return nil, err
	}
	if err := declare(conn, cfg.Exchange); err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn

	log.Info("rabbitmq publisher ready: exchange=%s", cfg.Exchange)
	return p, nil
}

func declare(conn *amqp.Connection, exchange string) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	return ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil)
}

func dialWithRetry(ctx context.Context, url string, attempts int, delay time.Duration) (*amqp.Connection, error) {
	var lastErr error
	for i := 1; i <= max(attempts, 1); i++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		sleep := min(delay*time.Duration(math.Pow(2, float64(i-1))), maxDialDelay)
		log.CtxWarn(ctx, "rabbitmq dial failed: attempt=%d, sleep=%s, error=%v", i, sleep, err)

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.New("dial cancelled: " + ctx.Err().Error())
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("connect rabbitmq after %d attempts: %w", attempts, lastErr)
}

// connection returns a live connection, redialing once if the broker closed
// the previous one
func (p *Publisher) connection() (*amqp.Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn, nil
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, err
	}
	p.conn = conn
	return conn, nil
}

// Publish encodes payload as JSON and publishes it under routingKey
func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	msg, err := buildPublishing(payload, time.Now())
	if err != nil {
		return err
	}

	conn, err := p.connection()
	if err != nil {
		return fmt.Errorf("rabbitmq connection: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
		return err
	}
	log.CtxDebug(ctx, "event published: exchange=%s, key=%s, id=%s", p.exchange, routingKey, msg.MessageId)
	return nil
}

func buildPublishing(payload any, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    now,
		Body:         body,
	}, nil
}

// Close closes the broker connection
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	return p.conn.Close()
}
