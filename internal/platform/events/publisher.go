package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Conn is the slice of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Publisher sends JSON events to NATS under <prefix>.<topic>. A nil
// Publisher is valid and drops everything.
type Publisher struct {
	conn   Conn
	prefix string
	log    zerolog.Logger
}

// Connect dials NATS. An empty url disables publishing and returns nil.
func Connect(url, prefix string, log zerolog.Logger) (*Publisher, error) {
	if strings.TrimSpace(url) == "" {
		return nil, nil
	}
	conn, err := nats.Connect(url,
		nats.Name("hrims"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, err
	}
	return NewPublisher(conn, prefix, log), nil
}

func NewPublisher(conn Conn, prefix string, log zerolog.Logger) *Publisher {
	return &Publisher{conn: conn, prefix: strings.Trim(prefix, "."), log: log}
}

func (p *Publisher) Subject(topic string) string {
	if p == nil || p.prefix == "" {
		return topic
	}
	return p.prefix + "." + topic
}

func (p *Publisher) Publish(ctx context.Context, topic string, payload any) error {
	if p == nil || p.conn == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	subject := p.Subject(topic)
	if err := p.conn.Publish(subject, data); err != nil {
		return err
	}
	p.log.Debug().Str("subject", subject).Msg("event published")
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.log.Warn().Err(err).Msg("nats drain failed")
	}
}
