package datalayer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/i474232898/wearable-weather-sync/internal/datasync"
)

// ErrNotConnected is returned when the NATS connection is down.
var ErrNotConnected = errors.New("nats connection not established")

// defaultFlushTimeout applies when the caller's context has no deadline.
const defaultFlushTimeout = 30 * time.Second

// Dial connects to NATS. The client keeps reconnecting in the background;
// Connector reports whether a round trip currently succeeds.
func Dial(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

// Connector checks the NATS connection with a server round trip.
type Connector struct {
	conn *nats.Conn
}

// NewConnector creates a Connector over conn.
func NewConnector(conn *nats.Conn) *Connector {
	return &Connector{conn: conn}
}

// Connect blocks until the server answers a flush or ctx ends.
func (c *Connector) Connect(ctx context.Context) (datasync.Session, error) {
	if c.conn == nil || c.conn.IsClosed() {
		return nil, ErrNotConnected
	}
	if err := flush(ctx, c.conn); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("flush: %w", err)
	}
	return datasync.NopSession{}, nil
}

// Subscriber feeds batches received on a subject into a queue.
type Subscriber struct {
	conn    *nats.Conn
	subject string
	queue   *datasync.Queue
	log     *zap.SugaredLogger

	sub *nats.Subscription
}

// NewSubscriber creates a Subscriber. Call Start to begin receiving.
func NewSubscriber(conn *nats.Conn, subject string, q *datasync.Queue, log *zap.SugaredLogger) *Subscriber {
	return &Subscriber{
		conn:    conn,
		subject: subject,
		queue:   q,
		log:     log,
	}
}

// Start subscribes to the subject. Messages are enqueued in arrival order;
// undecodable messages are logged and discarded.
func (s *Subscriber) Start(ctx context.Context) error {
	sub, err := s.conn.Subscribe(s.subject, func(msg *nats.Msg) {
		batch, err := Decode(msg.Data)
		if err != nil {
			s.log.Warnw("discarding undecodable message", "subject", msg.Subject, "error", err)
			return
		}
		if err := s.queue.Enqueue(ctx, batch); err != nil {
			s.log.Warnw("inbound queue rejected batch", "events", len(batch), "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}
	s.sub = sub
	s.log.Infow("Subscribed to data layer", "subject", s.subject)
	return nil
}

// Stop drains the subscription.
func (s *Subscriber) Stop() error {
	if s.sub == nil {
		return nil
	}
	return s.sub.Drain()
}

// Publisher is the producer side: it sends batches to the subject.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

// NewPublisher creates a Publisher.
func NewPublisher(conn *nats.Conn, subject string) *Publisher {
	return &Publisher{conn: conn, subject: subject}
}

// Publish sends b and waits for the server to acknowledge the flush.
func (p *Publisher) Publish(ctx context.Context, b datasync.Batch) error {
	if p.conn == nil || p.conn.IsClosed() {
		return ErrNotConnected
	}
	data, err := Encode(b)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(p.subject)
	msg.Header.Set(nats.MsgIdHdr, uuid.NewString())
	msg.Data = data

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish batch: %w", err)
	}
	if err := flush(ctx, p.conn); err != nil {
		return fmt.Errorf("flush publish: %w", err)
	}
	return nil
}

// flush waits for a server round trip. nats requires a deadline on ctx.
func flush(ctx context.Context, conn *nats.Conn) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultFlushTimeout)
		defer cancel()
	}
	return conn.FlushWithContext(ctx)
}
