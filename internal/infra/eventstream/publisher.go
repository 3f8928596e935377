package eventstream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"supplysim/internal/pkg/errs"
	"supplysim/internal/usecase"

	"github.com/nats-io/nats.go/jetstream"
)

const publishTimeout = 5 * time.Second

// EnsureStream creates or updates the archival stream. Work-queue retention
// keeps each event until the archive worker has consumed it.
func EnsureStream(ctx context.Context, js jetstream.JetStream, name, prefix string) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        name,
		Description: "Negotiation lifecycle events awaiting archival",
		Subjects:    []string{prefix + ".events.>"},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      24 * time.Hour,
		Replicas:    1,
	})
	if err != nil {
		return errs.Wrap(err, "ensure stream "+name)
	}
	return nil
}

// Publisher forwards lifecycle events to JetStream from a background pump.
// Engines hand events over without blocking; when the buffer is full the
// event is dropped with a warning rather than stalling the protocol.
type Publisher struct {
	js          jetstream.JetStream
	transaction string
	reservation string

	queue chan payload
	quit  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

type payload struct {
	subject string
	data    []byte
}

var _ usecase.Observer = (*Publisher)(nil)

func NewPublisher(js jetstream.JetStream, prefix string, buffer int) *Publisher {
	if buffer <= 0 {
		buffer = 1
	}
	p := &Publisher{
		js:          js,
		transaction: prefix + ".events.transaction",
		reservation: prefix + ".events.reservation",
		queue:       make(chan payload, buffer),
		quit:        make(chan struct{}),
	}
	p.wg.Add(1)
	go p.pump()
	return p
}

func (p *Publisher) OnTransactionClosed(e usecase.TransactionClosed) {
	p.enqueue(p.transaction, NewTransactionEvent(e))
}

func (p *Publisher) OnReservationTransition(e usecase.ReservationTransition) {
	p.enqueue(p.reservation, NewReservationEvent(e))
}

// Close stops the pump after draining whatever is already queued.
func (p *Publisher) Close() {
	p.once.Do(func() { close(p.quit) })
	p.wg.Wait()
}

func (p *Publisher) enqueue(subject string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to encode lifecycle event", "subject", subject, "error", err)
		return
	}
	select {
	case <-p.quit:
		slog.Warn("Lifecycle event after close dropped", "subject", subject)
	case p.queue <- payload{subject: subject, data: data}:
	default:
		slog.Warn("Event stream buffer full, dropping lifecycle event", "subject", subject)
	}
}

func (p *Publisher) pump() {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			for {
				select {
				case pl := <-p.queue:
					p.publish(pl)
				default:
					return
				}
			}
		case pl := <-p.queue:
			p.publish(pl)
		}
	}
}

func (p *Publisher) publish(pl payload) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if _, err := p.js.Publish(ctx, pl.subject, pl.data); err != nil {
		slog.Error("Failed to publish lifecycle event", "subject", pl.subject, "error", err)
	}
}
