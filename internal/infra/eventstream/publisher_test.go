//go:build unit

package eventstream

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"supplysim/internal/domain/negotiation"
	"supplysim/internal/pkg/ident"
	"supplysim/internal/usecase"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeJetStream records published payloads; the embedded interface covers the
// methods the publisher never touches.
type fakeJetStream struct {
	jetstream.JetStream
	mu   sync.Mutex
	gate chan struct{}
	sent []publishedPayload
}

type publishedPayload struct {
	subject string
	data    []byte
}

func (f *fakeJetStream) Publish(_ context.Context, subject string, data []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, publishedPayload{subject: subject, data: data})
	return &jetstream.PubAck{Sequence: uint64(len(f.sent))}, nil
}

func (f *fakeJetStream) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeJetStream) all() []publishedPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]publishedPayload, len(f.sent))
	copy(out, f.sent)
	return out
}

func sampleClosed() usecase.TransactionClosed {
	winner := ident.MustRef(ident.KindWarehouse, 2)
	score := 2.5
	return usecase.TransactionClosed{
		EventID:     uuid.New(),
		RequestID:   ident.ComposeRequestID(ident.MustRef(ident.KindStore, 1), 12),
		Requester:   ident.MustRef(ident.KindStore, 1),
		Resource:    "A",
		Quantity:    10,
		Outcome:     negotiation.TransactionDone,
		Winner:      &winner,
		WinnerScore: &score,
		Responses:   2,
		Accepts:     2,
		OpenedAt:    time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC),
		ClosedAt:    time.Date(2025, 1, 15, 9, 0, 5, 0, time.UTC),
	}
}

func TestWireEvents(t *testing.T) {
	t.Run("success: transaction event keeps every field", func(t *testing.T) {
		e := sampleClosed()
		w := NewTransactionEvent(e)

		assert.Equal(t, e.EventID.String(), w.EventID)
		assert.Equal(t, int64(101_000_012), w.RequestID)
		assert.Equal(t, "store-1", w.Requester)
		assert.Equal(t, "done", w.Outcome)
		require.NotNil(t, w.Winner)
		assert.Equal(t, "warehouse-2", *w.Winner)
		require.NotNil(t, w.WinnerScore)
		assert.Equal(t, 2.5, *w.WinnerScore)

		data, err := json.Marshal(w)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"request_id":101000012`)
		assert.Contains(t, string(data), `"winner":"warehouse-2"`)
	})

	t.Run("success: failed transaction omits the winner", func(t *testing.T) {
		e := sampleClosed()
		e.Outcome = negotiation.TransactionFailed
		e.Winner = nil
		e.WinnerScore = nil

		data, err := json.Marshal(NewTransactionEvent(e))
		require.NoError(t, err)
		assert.NotContains(t, string(data), "winner")
	})

	t.Run("success: reservation event carries the transition", func(t *testing.T) {
		e := usecase.ReservationTransition{
			EventID:   uuid.New(),
			RequestID: ident.ComposeRequestID(ident.MustRef(ident.KindStore, 1), 3),
			Responder: ident.MustRef(ident.KindWarehouse, 1),
			Requester: ident.MustRef(ident.KindStore, 1),
			Resource:  "B",
			Quantity:  4,
			From:      negotiation.ReservationLocked,
			To:        negotiation.ReservationReleased,
			Trigger:   usecase.TriggerTimeout,
			At:        time.Date(2025, 1, 15, 9, 0, 10, 0, time.UTC),
		}
		w := NewReservationEvent(e)
		assert.Equal(t, "locked", w.From)
		assert.Equal(t, "released", w.To)
		assert.Equal(t, "timeout", w.Trigger)
	})
}

func TestPublisher(t *testing.T) {
	t.Run("success: events reach their subjects in order", func(t *testing.T) {
		js := &fakeJetStream{}
		p := NewPublisher(js, "supplysim", 16)

		p.OnTransactionClosed(sampleClosed())
		p.OnReservationTransition(usecase.ReservationTransition{
			EventID:   uuid.New(),
			RequestID: ident.ComposeRequestID(ident.MustRef(ident.KindStore, 1), 1),
			Responder: ident.MustRef(ident.KindWarehouse, 1),
			Requester: ident.MustRef(ident.KindStore, 1),
			Resource:  "A",
			Quantity:  1,
			To:        negotiation.ReservationLocked,
			Trigger:   usecase.TriggerBuy,
			At:        time.Now().UTC(),
		})

		require.Eventually(t, func() bool { return js.count() == 2 }, time.Second, 5*time.Millisecond)
		sent := js.all()
		assert.Equal(t, "supplysim.events.transaction", sent[0].subject)
		assert.Equal(t, "supplysim.events.reservation", sent[1].subject)
		p.Close()
	})

	t.Run("success: close drains the queue", func(t *testing.T) {
		js := &fakeJetStream{}
		p := NewPublisher(js, "supplysim", 16)
		for i := 0; i < 5; i++ {
			p.OnTransactionClosed(sampleClosed())
		}

		p.Close()
		assert.Equal(t, 5, js.count())
	})

	t.Run("success: full buffer drops instead of blocking the caller", func(t *testing.T) {
		js := &fakeJetStream{gate: make(chan struct{})}
		p := NewPublisher(js, "supplysim", 1)

		// First event parks inside Publish, second sits in the buffer, the
		// rest must be dropped without stalling this goroutine.
		done := make(chan struct{})
		go func() {
			for i := 0; i < 6; i++ {
				p.OnTransactionClosed(sampleClosed())
			}
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("publisher blocked the event producer")
		}

		close(js.gate)
		require.Eventually(t, func() bool { return js.count() >= 1 }, time.Second, 5*time.Millisecond)
		p.Close()
		assert.LessOrEqual(t, js.count(), 3)
	})
}
