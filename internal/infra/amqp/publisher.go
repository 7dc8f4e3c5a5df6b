// Package amqp announces finished sessions on a RabbitMQ topic exchange.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"mathsprint-service/internal/domain"
)

// RoutingKeySessionFinished is the routing key of SessionFinished events.
const RoutingKeySessionFinished = "session.finished"

// SessionFinished is the message body published for every persisted result.
type SessionFinished struct {
	EventID     string    `json:"eventId"`
	UserID      string    `json:"uid"`
	DisplayName string    `json:"username"`
	Score       int       `json:"score"`
	Date        time.Time `json:"date"`
}

// channel is the part of *amqp091.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Publisher implements app.ResultPublisher.
type Publisher struct {
	conn     *amqp091.Connection
	channel  channel
	exchange string
	log      *zap.Logger
	now      func() time.Time
}

// Dial connects to url and declares a durable topic exchange.
func Dial(url, exchange string, log *zap.Logger) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	p := newPublisher(ch, exchange, log)
	p.conn = conn
	log.Info("event publisher ready", zap.String("exchange", exchange))
	return p, nil
}

func newPublisher(ch channel, exchange string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{channel: ch, exchange: exchange, log: log, now: time.Now}
}

func (p *Publisher) PublishResult(ctx context.Context, userID, displayName string, result domain.SessionResult) error {
	event := SessionFinished{
		EventID:     uuid.NewString(),
		UserID:      userID,
		DisplayName: displayName,
		Score:       result.Score,
		Date:        result.Timestamp,
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,                // exchange
		RoutingKeySessionFinished, // routing key
		false,                     // mandatory
		false,                     // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    event.EventID,
			Timestamp:    p.now(),
			Body:         body,
			Headers: amqp091.Table{
				"event_type": RoutingKeySessionFinished,
				"user_id":    userID,
			},
		},
	)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	p.log.Debug("published event", zap.String("event_id", event.EventID), zap.String("user_id", userID))
	return nil
}

func (p *Publisher) Close() error {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			return err
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
