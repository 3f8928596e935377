package archive

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"supplysim/internal/infra/eventstream"
	"supplysim/internal/pkg/errs"
)

const insertTimeout = 10 * time.Second

// Consumer drains the lifecycle event stream into the archive store.
// Messages are acked only after the row is written; failed writes are
// nak'ed so JetStream redelivers them. Redelivery is harmless because
// the store keys every row by event id.
type Consumer struct {
	js      jetstream.JetStream
	store   *Store
	stream  string
	durable string

	transactionSubject string
	reservationSubject string

	mu sync.Mutex
	cc jetstream.ConsumeContext
}

func NewConsumer(js jetstream.JetStream, store *Store, stream, prefix, durable string) *Consumer {
	return &Consumer{
		js:                 js,
		store:              store,
		stream:             stream,
		durable:            durable,
		transactionSubject: prefix + ".events.transaction",
		reservationSubject: prefix + ".events.reservation",
	}
}

// Start binds a durable consumer to the event stream and begins pulling
// messages. It returns once the subscription is live; Stop ends it.
func (c *Consumer) Start(ctx context.Context) error {
	stream, err := c.js.Stream(ctx, c.stream)
	if err != nil {
		return errs.Wrap(err, "look up event stream")
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:   c.durable,
		AckPolicy: jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return errs.Wrap(err, "create durable consumer")
	}

	cc, err := cons.Consume(c.handle)
	if err != nil {
		return errs.Wrap(err, "start consuming event stream")
	}

	c.mu.Lock()
	c.cc = cc
	c.mu.Unlock()

	slog.Info("Archive consumer started", "stream", c.stream, "durable", c.durable)
	return nil
}

// Stop halts message delivery. Safe to call before Start or twice.
func (c *Consumer) Stop() {
	c.mu.Lock()
	cc := c.cc
	c.cc = nil
	c.mu.Unlock()

	if cc != nil {
		cc.Stop()
	}
}

func (c *Consumer) handle(msg jetstream.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()

	var err error
	switch msg.Subject() {
	case c.transactionSubject:
		err = c.archiveTransaction(ctx, msg.Data())
	case c.reservationSubject:
		err = c.archiveReservation(ctx, msg.Data())
	default:
		slog.Warn("Unexpected subject on event stream", "subject", msg.Subject())
		_ = msg.Ack()
		return
	}

	if err != nil {
		slog.Error("Failed to archive lifecycle event", "subject", msg.Subject(), "error", err)
		_ = msg.Nak()
		return
	}

	if err := msg.Ack(); err != nil {
		slog.Warn("Failed to ack archived event", "subject", msg.Subject(), "error", err)
	}
}

func (c *Consumer) archiveTransaction(ctx context.Context, data []byte) error {
	var event eventstream.TransactionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		// A payload that never decodes would be redelivered forever, so
		// it is logged and dropped rather than nak'ed.
		slog.Warn("Undecodable transaction event dropped", "error", err)
		return nil
	}
	return c.store.InsertTransaction(ctx, event)
}

func (c *Consumer) archiveReservation(ctx context.Context, data []byte) error {
	var event eventstream.ReservationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		slog.Warn("Undecodable reservation event dropped", "error", err)
		return nil
	}
	return c.store.InsertReservation(ctx, event)
}
