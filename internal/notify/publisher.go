// Package notify publishes domain events to RabbitMQ for the external mail
// dispatcher. Publishing is best-effort: failures are logged and returned so
// callers can ignore them without failing the request.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/Shivanand-hulikatti/event-presale/internal/model"
)

// Queue names.
const (
	QueueRegistrationCreated = "registration.created"
	QueueOrderCompleted      = "order.completed"
)

// RegistrationCreated is sent after a registration is durably recorded.
type RegistrationCreated struct {
	EventID          string     `json:"eventId"`
	EventName        string     `json:"eventName"`
	RegistrationCode string     `json:"registrationCode"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	SaleStartTime    *time.Time `json:"saleStartTime,omitempty"`
	RegisteredAt     time.Time  `json:"registeredAt"`
}

// OrderCompleted is sent after a purchase is admitted.
type OrderCompleted struct {
	OrderNumber      string    `json:"orderNumber"`
	EventID          string    `json:"eventId"`
	EventName        string    `json:"eventName"`
	RegistrationCode string    `json:"registrationCode"`
	Quantity         int       `json:"quantity"`
	Email            string    `json:"email"`
	PurchasedAt      time.Time `json:"purchasedAt"`
}

// NewRegistrationCreated builds the message for reg.
func NewRegistrationCreated(event *model.Event, reg *model.Registration) RegistrationCreated {
	return RegistrationCreated{
		EventID:          reg.EventID,
		EventName:        event.Name,
		RegistrationCode: reg.RegistrationCode,
		Name:             reg.UserData.Name,
		Email:            reg.UserData.Email,
		SaleStartTime:    event.SaleStartTime,
		RegisteredAt:     reg.RegistrationTime,
	}
}

// NewOrderCompleted builds the message for order.
func NewOrderCompleted(event *model.Event, reg *model.Registration, order *model.Order) OrderCompleted {
	return OrderCompleted{
		OrderNumber:      order.OrderNumber,
		EventID:          order.EventID,
		EventName:        event.Name,
		RegistrationCode: order.RegistrationCode,
		Quantity:         order.Quantity,
		Email:            reg.UserData.Email,
		PurchasedAt:      order.PurchaseTime,
	}
}

// Publisher delivers domain events to the mail collaborator.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg any) error
	Close() error
}

// Noop discards every message.
type Noop struct{}

func (Noop) Publish(context.Context, string, any) error { return nil }
func (Noop) Close() error                                { return nil }

// AMQPPublisher publishes persistent JSON messages to durable queues over a
// single shared channel.
type AMQPPublisher struct {
	url string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPPublisher dials url and declares the queues.
func NewAMQPPublisher(url string) (*AMQPPublisher, error) {
	p := &AMQPPublisher{url: url}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *AMQPPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	for _, q := range []string{QueueRegistrationCreated, QueueOrderCompleted} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return fmt.Errorf("rabbitmq declare %s: %w", q, err)
		}
	}
	p.conn, p.ch = conn, ch
	return nil
}

// Publish marshals msg and sends it to queue via the default exchange,
// reconnecting once if the connection was lost.
func (p *AMQPPublisher) Publish(ctx context.Context, queue string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", queue, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() {
		if err := p.connect(); err != nil {
			log.Warn().Err(err).Str("queue", queue).Msg("rabbitmq reconnect failed")
			return err
		}
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
		log.Warn().Err(err).Str("queue", queue).Msg("rabbitmq publish failed")
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
