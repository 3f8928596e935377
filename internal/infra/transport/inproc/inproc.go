// Package inproc is the in-process transport: every actor of the fleet runs
// in one process and messages move over per-recipient queues. Delivery order
// between any two actors follows send order, and each recipient consumes its
// queue one message at a time.
package inproc

import (
	"context"
	"sync"

	"supplysim/internal/pkg/errs"
	"supplysim/internal/pkg/ident"
	"supplysim/internal/usecase"
)

var (
	ErrNoSubscriber = errs.New("no subscriber for recipient")
	ErrQueueFull    = errs.New("recipient queue full")
	ErrBusClosed    = errs.New("bus closed")
	ErrDuplicateSub = errs.New("recipient already subscribed")
)

type Bus struct {
	mu     sync.RWMutex
	buffer int
	subs   map[ident.Ref]*subscriber
	closed bool
}

type subscriber struct {
	ch   chan usecase.Message
	stop chan struct{}
}

var _ usecase.Transport = (*Bus)(nil)

func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 1
	}
	return &Bus{
		buffer: buffer,
		subs:   make(map[ident.Ref]*subscriber),
	}
}

// Send enqueues the message for its recipient. It never blocks: a full queue
// fails the send and the protocol's timeouts absorb the loss, the same way a
// lossy wire would.
func (b *Bus) Send(_ context.Context, msg usecase.Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	sub, ok := b.subs[msg.Recipient()]
	if !ok {
		return errs.Wrap(ErrNoSubscriber, msg.Recipient().String())
	}
	select {
	case sub.ch <- msg:
		return nil
	default:
		return errs.Wrap(ErrQueueFull, msg.Recipient().String())
	}
}

// Subscribe starts a delivery goroutine for ref. The returned function stops
// delivery; messages still queued at that point are discarded.
func (b *Bus) Subscribe(ref ident.Ref, handler func(usecase.Message)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	if _, ok := b.subs[ref]; ok {
		return nil, errs.Wrap(ErrDuplicateSub, ref.String())
	}
	sub := &subscriber{
		ch:   make(chan usecase.Message, b.buffer),
		stop: make(chan struct{}),
	}
	b.subs[ref] = sub
	go deliver(sub, handler)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ref)
			b.mu.Unlock()
			close(sub.stop)
		})
	}, nil
}

// Close stops every subscriber. Sends after Close fail with ErrBusClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ref, sub := range b.subs {
		close(sub.stop)
		delete(b.subs, ref)
	}
}

func deliver(sub *subscriber, handler func(usecase.Message)) {
	for {
		select {
		case <-sub.stop:
			return
		case msg := <-sub.ch:
			handler(msg)
		}
	}
}
