//go:build unit

package inproc_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"supplysim/internal/infra/transport/inproc"
	"supplysim/internal/pkg/ident"
	"supplysim/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	storeRef = ident.MustRef(ident.KindStore, 1)
	whRef    = ident.MustRef(ident.KindWarehouse, 1)
)

func buyMsg(from ident.Ref, to ident.Ref, seq int) usecase.Message {
	return usecase.Message{
		Kind:      usecase.KindBuy,
		Requester: from,
		Responder: to,
		RequestID: ident.ComposeRequestID(from, seq),
		Location:  "node-0",
		Resource:  "A",
		Quantity:  1,
	}
}

// collector gathers delivered messages behind a lock.
type collector struct {
	mu   sync.Mutex
	msgs []usecase.Message
}

func (c *collector) handle(msg usecase.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func (c *collector) all() []usecase.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]usecase.Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

func TestBusDelivery(t *testing.T) {
	t.Run("success: delivers to the subscribed recipient", func(t *testing.T) {
		bus := inproc.New(16)
		defer bus.Close()
		got := make(chan usecase.Message, 1)
		_, err := bus.Subscribe(whRef, func(m usecase.Message) { got <- m })
		require.NoError(t, err)

		msg := buyMsg(storeRef, whRef, 1)
		require.NoError(t, bus.Send(context.Background(), msg))

		select {
		case m := <-got:
			assert.Equal(t, msg, m)
		case <-time.After(time.Second):
			t.Fatal("message never delivered")
		}
	})

	t.Run("success: delivery order follows send order", func(t *testing.T) {
		bus := inproc.New(64)
		defer bus.Close()
		c := &collector{}
		_, err := bus.Subscribe(whRef, c.handle)
		require.NoError(t, err)

		const n = 50
		for i := 0; i < n; i++ {
			require.NoError(t, bus.Send(context.Background(), buyMsg(storeRef, whRef, i)))
		}

		require.Eventually(t, func() bool { return c.len() == n }, time.Second, 5*time.Millisecond)
		for i, m := range c.all() {
			assert.Equal(t, ident.ComposeRequestID(storeRef, i), m.RequestID)
		}
	})

	t.Run("success: interleaved senders each keep their own order", func(t *testing.T) {
		bus := inproc.New(128)
		defer bus.Close()
		c := &collector{}
		_, err := bus.Subscribe(whRef, c.handle)
		require.NoError(t, err)

		other := ident.MustRef(ident.KindStore, 2)
		const per = 25
		var wg sync.WaitGroup
		for _, from := range []ident.Ref{storeRef, other} {
			wg.Add(1)
			go func(from ident.Ref) {
				defer wg.Done()
				for i := 0; i < per; i++ {
					assert.NoError(t, bus.Send(context.Background(), buyMsg(from, whRef, i)))
				}
			}(from)
		}
		wg.Wait()

		require.Eventually(t, func() bool { return c.len() == 2*per }, time.Second, 5*time.Millisecond)
		seen := map[ident.Ref]int{}
		for _, m := range c.all() {
			want := ident.ComposeRequestID(m.Requester, seen[m.Requester])
			assert.Equal(t, want, m.RequestID)
			seen[m.Requester]++
		}
	})

	t.Run("error: no subscriber for the recipient", func(t *testing.T) {
		bus := inproc.New(4)
		defer bus.Close()
		err := bus.Send(context.Background(), buyMsg(storeRef, whRef, 1))
		assert.ErrorIs(t, err, inproc.ErrNoSubscriber)
	})

	t.Run("error: stalled consumer eventually fills its queue", func(t *testing.T) {
		bus := inproc.New(2)
		defer bus.Close()
		release := make(chan struct{})
		c := &collector{}
		_, err := bus.Subscribe(whRef, func(m usecase.Message) {
			<-release
			c.handle(m)
		})
		require.NoError(t, err)

		sent := 0
		var sendErr error
		for i := 0; i < 10 && sendErr == nil; i++ {
			sendErr = bus.Send(context.Background(), buyMsg(storeRef, whRef, i))
			if sendErr == nil {
				sent++
			}
		}
		require.ErrorIs(t, sendErr, inproc.ErrQueueFull)
		assert.LessOrEqual(t, sent, 3)

		close(release)
		require.Eventually(t, func() bool { return c.len() == sent }, time.Second, 5*time.Millisecond)
	})
}

func TestBusLifecycle(t *testing.T) {
	t.Run("success: unsubscribe stops delivery", func(t *testing.T) {
		bus := inproc.New(4)
		defer bus.Close()
		c := &collector{}
		unsub, err := bus.Subscribe(whRef, c.handle)
		require.NoError(t, err)

		unsub()
		err = bus.Send(context.Background(), buyMsg(storeRef, whRef, 1))
		assert.ErrorIs(t, err, inproc.ErrNoSubscriber)
		unsub() // second call is a no-op
	})

	t.Run("error: duplicate subscription is rejected", func(t *testing.T) {
		bus := inproc.New(4)
		defer bus.Close()
		_, err := bus.Subscribe(whRef, func(usecase.Message) {})
		require.NoError(t, err)
		_, err = bus.Subscribe(whRef, func(usecase.Message) {})
		assert.ErrorIs(t, err, inproc.ErrDuplicateSub)
	})

	t.Run("error: closed bus rejects sends and subscriptions", func(t *testing.T) {
		bus := inproc.New(4)
		_, err := bus.Subscribe(whRef, func(usecase.Message) {})
		require.NoError(t, err)

		bus.Close()

		assert.ErrorIs(t, bus.Send(context.Background(), buyMsg(storeRef, whRef, 1)), inproc.ErrBusClosed)
		_, err = bus.Subscribe(storeRef, func(usecase.Message) {})
		assert.ErrorIs(t, err, inproc.ErrBusClosed)
		bus.Close() // idempotent
	})
}
