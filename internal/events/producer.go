// Package events publishes user and client domain events to kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	UserSignedUp     = "user.signed_up"
	UserMerged       = "user.merged"
	UserUpgraded     = "user.upgraded"
	UserPhoneRebound = "user.phone_rebound"
	UserDeleted      = "user.deleted"
	ClientCreated    = "client.created"
	ClientUpdated    = "client.updated"
	ClientBlocked    = "client.blocked"
)

const publishTimeout = 5 * time.Second

type Event struct {
	Type    string         `json:"type"`
	Subject string         `json:"subject"`
	At      time.Time      `json:"at"`
	Data    map[string]any `json:"data,omitempty"`
}

func New(typ, subject string, data map[string]any) Event {
	return Event{Type: typ, Subject: subject, At: time.Now().UTC(), Data: data}
}

type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	w messageWriter
}

func NewProducer(brokers []string) *Producer {
	return &Producer{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}}
}

func (p *Producer) PublishEvent(ctx context.Context, topic, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.w.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("kafka: delivery to %s failed: %w", topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.w.Close()
}

// Noop drops every event. Used when no brokers are configured.
type Noop struct{}

func (Noop) PublishEvent(context.Context, string, string, any) error { return nil }
