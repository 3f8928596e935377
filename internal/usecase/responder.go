package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"supplysim/internal/domain/inventory"
	"supplysim/internal/domain/negotiation"
	"supplysim/internal/domain/scoring"
	"supplysim/internal/pkg/clock"
	"supplysim/internal/pkg/ident"

	"github.com/google/uuid"
)

// Responder runs the selling side of the negotiation for one actor. A buy
// either locks stock and answers accept, or answers reject with a reason.
// Locked stock is held until the requester confirms or denies, or until the
// confirmation timer expires, whichever the reservation sees first.
type Responder struct {
	self      ident.Ref
	location  scoring.Token
	transport Transport
	stock     *Stockroom
	observer  Observer
	clk       clock.Clock
	timeout   time.Duration

	mu   sync.Mutex
	held map[ident.RequestID]*hold
}

type hold struct {
	res   *negotiation.Reservation
	timer clock.Timer
}

func NewResponder(
	self ident.Ref,
	location scoring.Token,
	transport Transport,
	stock *Stockroom,
	observer Observer,
	clk clock.Clock,
	confirmTimeout time.Duration,
) *Responder {
	return &Responder{
		self:      self,
		location:  location,
		transport: transport,
		stock:     stock,
		observer:  observer,
		clk:       clk,
		timeout:   confirmTimeout,
		held:      make(map[ident.RequestID]*hold),
	}
}

// HandleBuy answers a buy request. The full quantity is locked or none of it;
// a short book rejects with insufficient_stock and keeps its state untouched.
// A repeated request id is ignored, the first reservation stands.
func (w *Responder) HandleBuy(ctx context.Context, msg Message) {
	w.mu.Lock()
	if _, dup := w.held[msg.RequestID]; dup {
		w.mu.Unlock()
		slog.Debug("Duplicate buy ignored",
			"actor", w.self.String(), "request_id", msg.RequestID.String(), "requester", msg.Requester.String())
		return
	}
	now := w.clk.Now()
	if err := w.stock.Lock(msg.Resource, msg.Quantity); err != nil {
		w.mu.Unlock()
		if errors.Is(err, inventory.ErrInsufficientStock) {
			slog.Info("Buy rejected",
				"actor", w.self.String(), "request_id", msg.RequestID.String(),
				"resource", msg.Resource, "quantity", msg.Quantity, "reason", negotiation.ReasonInsufficientStock)
			w.send(ctx, Message{
				Kind:      KindReject,
				Requester: msg.Requester,
				Responder: w.self,
				RequestID: msg.RequestID,
				Resource:  msg.Resource,
				Quantity:  msg.Quantity,
				Reason:    negotiation.ReasonInsufficientStock,
			})
			return
		}
		slog.Warn("Failed to lock stock, dropping buy",
			"actor", w.self.String(), "request_id", msg.RequestID.String(), "error", err)
		return
	}
	res, err := negotiation.NewReservation(msg.RequestID, msg.Requester, msg.Resource, msg.Quantity, now)
	if err != nil {
		if uerr := w.stock.Unlock(msg.Resource, msg.Quantity); uerr != nil {
			slog.Error("Failed to unwind lock for bad reservation",
				"actor", w.self.String(), "request_id", msg.RequestID.String(), "error", uerr)
		}
		w.mu.Unlock()
		slog.Warn("Failed to build reservation, dropping buy",
			"actor", w.self.String(), "request_id", msg.RequestID.String(), "error", err)
		return
	}
	h := &hold{res: res}
	w.held[msg.RequestID] = h
	h.timer = w.clk.Schedule(w.timeout, func() {
		w.onConfirmTimeout(msg.RequestID)
	})
	event := w.transition(res, "", TriggerBuy, now)
	w.mu.Unlock()

	w.observer.OnReservationTransition(event)
	w.send(ctx, Message{
		Kind:      KindAccept,
		Requester: msg.Requester,
		Responder: w.self,
		RequestID: msg.RequestID,
		Location:  string(w.location),
		Resource:  msg.Resource,
		Quantity:  msg.Quantity,
	})
}

// HandleConfirm commits a locked reservation: the hold moves from locked to
// pending delivery. Confirms for settled or unknown reservations are ignored.
func (w *Responder) HandleConfirm(ctx context.Context, msg Message) {
	w.mu.Lock()
	h, ok := w.held[msg.RequestID]
	if !ok {
		w.mu.Unlock()
		slog.Debug("Confirm for unknown reservation ignored",
			"actor", w.self.String(), "request_id", msg.RequestID.String())
		return
	}
	if h.res.Requester() != msg.Requester {
		w.mu.Unlock()
		slog.Warn("Confirm from wrong requester ignored",
			"actor", w.self.String(), "request_id", msg.RequestID.String(),
			"expected", h.res.Requester().String(), "got", msg.Requester.String())
		return
	}
	now := w.clk.Now()
	from := h.res.State()
	if err := h.res.Confirm(now); err != nil {
		w.mu.Unlock()
		slog.Debug("Confirm ignored, reservation already settled",
			"actor", w.self.String(), "request_id", msg.RequestID.String(), "state", from.String())
		return
	}
	h.timer.Cancel()
	if err := w.stock.Commit(msg.RequestID, h.res.Requester(), h.res.Resource(), h.res.Quantity()); err != nil {
		slog.Error("Failed to commit confirmed reservation",
			"actor", w.self.String(), "request_id", msg.RequestID.String(), "error", err)
	}
	event := w.transition(h.res, from, TriggerConfirm, now)
	w.mu.Unlock()

	w.observer.OnReservationTransition(event)
}

// HandleDeny releases a locked reservation and puts the stock back. Denies
// for settled or unknown reservations are ignored.
func (w *Responder) HandleDeny(ctx context.Context, msg Message) {
	w.mu.Lock()
	h, ok := w.held[msg.RequestID]
	if !ok {
		w.mu.Unlock()
		slog.Debug("Deny for unknown reservation ignored",
			"actor", w.self.String(), "request_id", msg.RequestID.String())
		return
	}
	if h.res.Requester() != msg.Requester {
		w.mu.Unlock()
		slog.Warn("Deny from wrong requester ignored",
			"actor", w.self.String(), "request_id", msg.RequestID.String(),
			"expected", h.res.Requester().String(), "got", msg.Requester.String())
		return
	}
	now := w.clk.Now()
	from := h.res.State()
	if err := h.res.Release(now); err != nil {
		w.mu.Unlock()
		slog.Debug("Deny ignored, reservation already settled",
			"actor", w.self.String(), "request_id", msg.RequestID.String(), "state", from.String())
		return
	}
	h.timer.Cancel()
	if err := w.stock.Unlock(h.res.Resource(), h.res.Quantity()); err != nil {
		slog.Error("Failed to unlock denied reservation",
			"actor", w.self.String(), "request_id", msg.RequestID.String(), "error", err)
	}
	event := w.transition(h.res, from, TriggerDeny, now)
	w.mu.Unlock()

	w.observer.OnReservationTransition(event)
}

// onConfirmTimeout fires when the requester went quiet after an accept. If a
// confirm or deny settled the reservation first, the release fails its state
// gate and the timer backs off without touching the book.
func (w *Responder) onConfirmTimeout(id ident.RequestID) {
	w.mu.Lock()
	h, ok := w.held[id]
	if !ok {
		w.mu.Unlock()
		return
	}
	now := w.clk.Now()
	from := h.res.State()
	if err := h.res.Release(now); err != nil {
		w.mu.Unlock()
		return
	}
	if err := w.stock.Unlock(h.res.Resource(), h.res.Quantity()); err != nil {
		slog.Error("Failed to unlock expired reservation",
			"actor", w.self.String(), "request_id", id.String(), "error", err)
	}
	event := w.transition(h.res, from, TriggerTimeout, now)
	w.mu.Unlock()

	slog.Info("Reservation expired",
		"actor", w.self.String(), "request_id", id.String(),
		"resource", h.res.Resource(), "quantity", h.res.Quantity())
	w.observer.OnReservationTransition(event)
}

func (w *Responder) transition(res *negotiation.Reservation, from negotiation.ReservationState, trigger string, at time.Time) ReservationTransition {
	return ReservationTransition{
		EventID:   uuid.New(),
		RequestID: res.RequestID(),
		Responder: w.self,
		Requester: res.Requester(),
		Resource:  res.Resource(),
		Quantity:  res.Quantity(),
		From:      from,
		To:        res.State(),
		Trigger:   trigger,
		At:        at,
	}
}

func (w *Responder) send(ctx context.Context, msg Message) {
	if err := w.transport.Send(ctx, msg); err != nil {
		slog.Warn("Failed to send message",
			"actor", w.self.String(), "kind", string(msg.Kind),
			"request_id", msg.RequestID.String(), "to", msg.Recipient().String(), "error", err)
	}
}

func (w *Responder) Self() ident.Ref         { return w.self }
func (w *Responder) Location() scoring.Token { return w.location }
func (w *Responder) Stock() *Stockroom       { return w.stock }

// ActiveHolds counts reservations still waiting on a confirm or deny.
func (w *Responder) ActiveHolds() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, h := range w.held {
		if h.res.IsLocked() {
			n++
		}
	}
	return n
}

// ReservationSnapshot is a read-only copy of one reservation's state.
type ReservationSnapshot struct {
	RequestID ident.RequestID
	Requester ident.Ref
	Resource  string
	Quantity  int
	State     negotiation.ReservationState
	LockedAt  time.Time
	SettledAt time.Time
}

// Reservations lists every reservation this responder has taken, settled ones
// included, ordered by request id.
func (w *Responder) Reservations() []ReservationSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]ReservationSnapshot, 0, len(w.held))
	for _, h := range w.held {
		out = append(out, ReservationSnapshot{
			RequestID: h.res.RequestID(),
			Requester: h.res.Requester(),
			Resource:  h.res.Resource(),
			Quantity:  h.res.Quantity(),
			State:     h.res.State(),
			LockedAt:  h.res.LockedAt(),
			SettledAt: h.res.SettledAt(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestID < out[j].RequestID })
	return out
}
