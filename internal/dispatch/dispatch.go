// Package dispatch delivers verification codes to mail and sms recipients.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ChannelMail = "mail"
	ChannelSMS  = "sms"
)

var ErrEmptyDestination = errors.New("dispatch: empty destination")

type CodeDispatcher interface {
	SendCode(ctx context.Context, destination, code string) error
}

// ChannelFor picks mail for anything that looks like an address, sms otherwise.
func ChannelFor(destination string) string {
	if strings.Contains(destination, "@") {
		return ChannelMail
	}
	return ChannelSMS
}

// Message is what the external notifier consumes.
type Message struct {
	Channel     string    `json:"channel"`
	Destination string    `json:"destination"`
	Code        string    `json:"code"`
	IssuedAt    time.Time `json:"issued_at"`
}

// LogDispatcher writes codes to the log. Development only.
type LogDispatcher struct {
	Logger *slog.Logger
}

func (d LogDispatcher) SendCode(ctx context.Context, destination, code string) error {
	if destination == "" {
		return ErrEmptyDestination
	}
	l := d.Logger
	if l == nil {
		l = slog.Default()
	}
	l.InfoContext(ctx, "verification_code", "channel", ChannelFor(destination), "destination", destination, "code", code)
	return nil
}

type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type AMQPDispatcher struct {
	mu        sync.Mutex
	pub       Publisher
	conn      *amqp.Connection
	mailQueue string
	smsQueue  string
	now       func() time.Time
}

func NewAMQPDispatcher(pub Publisher, mailQueue, smsQueue string) *AMQPDispatcher {
	return &AMQPDispatcher{pub: pub, mailQueue: mailQueue, smsQueue: smsQueue, now: time.Now}
}

// DialAMQP connects to the broker and declares both durable queues.
func DialAMQP(url, mailQueue, smsQueue string) (*AMQPDispatcher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	for _, q := range []string{mailQueue, smsQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("amqp declare %s: %w", q, err)
		}
	}
	d := NewAMQPDispatcher(ch, mailQueue, smsQueue)
	d.conn = conn
	return d, nil
}

func (d *AMQPDispatcher) SendCode(ctx context.Context, destination, code string) error {
	if destination == "" {
		return ErrEmptyDestination
	}
	channel := ChannelFor(destination)
	queue := d.smsQueue
	if channel == ChannelMail {
		queue = d.mailQueue
	}

	body, err := json.Marshal(Message{
		Channel:     channel,
		Destination: destination,
		Code:        code,
		IssuedAt:    d.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("amqp: json.Marshal failed: %w", err)
	}

	// amqp channels are not safe for concurrent publishing.
	d.mu.Lock()
	defer d.mu.Unlock()
	err = d.pub.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    d.now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("amqp: publish to %s failed: %w", queue, err)
	}
	return nil
}

func (d *AMQPDispatcher) Close() error {
	if d.conn == nil {
		return nil
	}
	return d.conn.Close()
}
