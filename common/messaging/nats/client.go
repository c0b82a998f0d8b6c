// Package nats provides a NATS implementation of the messaging interfaces.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/nevc-media/vidstream/common/messaging"
)

// Client implements messaging.Client using core NATS.
type Client struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs []*subscription
}

// Config holds NATS client configuration.
type Config struct {
	URL  string
	Name string

	// MaxReconnects of -1 reconnects forever.
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration

	Username string
	Password string
	Token    string
}

func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          "vidstream",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NewClient connects to NATS.
func NewClient(cfg Config) (*Client, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	}

	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Client{conn: conn}, nil
}

func (c *Client) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.conn.Publish(subject, data)
}

func (c *Client) PublishMsg(ctx context.Context, msg *messaging.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	natsMsg := &nats.Msg{
		Subject: msg.Subject,
		Data:    msg.Data,
	}
	if len(msg.Metadata) > 0 {
		natsMsg.Header = make(nats.Header)
		for k, v := range msg.Metadata {
			natsMsg.Header.Set(k, v)
		}
	}

	return c.conn.PublishMsg(natsMsg)
}

func (c *Client) Subscribe(subject string, handler messaging.MessageHandler) (messaging.Subscription, error) {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		if err := handler(context.Background(), natsToMessage(msg)); err != nil {
			slog.Warn("nats handler failed", slog.String("subject", msg.Subject), slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return nil, err
	}

	s := &subscription{natsSub: sub}
	c.mu.Lock()
	c.subs = append(c.subs, s)
	c.mu.Unlock()

	return s, nil
}

// Close unsubscribes everything and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.subs = nil

	c.conn.Close()
	return nil
}

func (c *Client) Drain() error {
	return c.conn.Drain()
}

func (c *Client) IsConnected() bool {
	return c.conn.IsConnected()
}

type subscription struct {
	natsSub *nats.Subscription
}

func (s *subscription) Unsubscribe() error {
	return s.natsSub.Unsubscribe()
}

func (s *subscription) Subject() string {
	return s.natsSub.Subject
}

func natsToMessage(msg *nats.Msg) *messaging.Message {
	m := &messaging.Message{
		Subject:   msg.Subject,
		Data:      msg.Data,
		Timestamp: time.Now(),
	}

	if msg.Header != nil {
		m.Metadata = make(map[string]string, len(msg.Header))
		for k := range msg.Header {
			m.Metadata[k] = msg.Header.Get(k)
		}
	}

	return m
}
