// Package messaging provides abstractions for message broker communication.
// Services publish and subscribe through these interfaces without being
// coupled to a specific broker implementation.
package messaging

import (
	"context"
	"time"
)

// Message represents a message received from or sent to a broker.
type Message struct {
	Subject string
	Data    []byte

	// Metadata carries message headers.
	Metadata map[string]string

	// Timestamp is when the message was received locally.
	Timestamp time.Time
}

// MessageHandler processes a received message.
type MessageHandler func(ctx context.Context, msg *Message) error

// Subscription represents an active subscription to a subject.
type Subscription interface {
	Unsubscribe() error
	Subject() string
}

// Publisher publishes messages to subjects. Publishing is fire-and-forget.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	PublishMsg(ctx context.Context, msg *Message) error
	Close() error
}

// Subscriber subscribes to messages on subjects.
type Subscriber interface {
	Subscribe(subject string, handler MessageHandler) (Subscription, error)
	Close() error
}

// Client combines Publisher and Subscriber.
type Client interface {
	Publisher
	Subscriber

	// Drain closes the connection after in-flight messages complete.
	Drain() error
	IsConnected() bool
}

// NopPublisher discards everything. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, []byte) error { return nil }
func (NopPublisher) PublishMsg(context.Context, *Message) error    { return nil }
func (NopPublisher) Close() error                                  { return nil }
