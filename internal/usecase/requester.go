package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"supplysim/internal/domain/negotiation"
	"supplysim/internal/domain/scoring"
	"supplysim/internal/pkg/clock"
	"supplysim/internal/pkg/errs"
	"supplysim/internal/pkg/ident"

	"github.com/google/uuid"
)

// Requester runs the buying side of the negotiation for one actor. It
// broadcasts buy requests, collects accept/reject responses, picks the
// cheapest accepting responder and settles the outcome. Every transaction
// closes exactly once: either all responders answered, or the collection
// timer expired, whichever happens first.
type Requester struct {
	self      ident.Ref
	location  scoring.Token
	alloc     *ident.Allocator
	scorer    scoring.Scorer
	transport Transport
	stock     *Stockroom
	retry     *RetryQueue
	observer  Observer
	clk       clock.Clock
	timeout   time.Duration

	mu   sync.Mutex
	open map[ident.RequestID]*openRequest
}

type openRequest struct {
	tx       *negotiation.Transaction
	timer    clock.Timer
	openedAt time.Time
}

func NewRequester(
	self ident.Ref,
	location scoring.Token,
	alloc *ident.Allocator,
	scorer scoring.Scorer,
	transport Transport,
	stock *Stockroom,
	retry *RetryQueue,
	observer Observer,
	clk clock.Clock,
	collectTimeout time.Duration,
) *Requester {
	return &Requester{
		self:      self,
		location:  location,
		alloc:     alloc,
		scorer:    scorer,
		transport: transport,
		stock:     stock,
		retry:     retry,
		observer:  observer,
		clk:       clk,
		timeout:   collectTimeout,
		open:      make(map[ident.RequestID]*openRequest),
	}
}

// Initiate opens a new transaction and broadcasts the buy to every responder.
// The collection timer is armed before the first message leaves, so a
// response can never find the transaction unregistered.
func (r *Requester) Initiate(ctx context.Context, resource string, quantity int, responders []ident.Ref) (ident.RequestID, error) {
	id, err := r.alloc.Next()
	if err != nil {
		return 0, errs.Wrap(err, "allocate request id")
	}
	now := r.clk.Now()
	req, err := negotiation.NewRequest(id, r.self, resource, quantity, now)
	if err != nil {
		return 0, errs.Wrap(err, "build request")
	}
	tx, err := negotiation.NewTransaction(req, responders)
	if err != nil {
		return 0, errs.Wrap(err, "open transaction")
	}

	r.mu.Lock()
	st := &openRequest{tx: tx, openedAt: now}
	r.open[id] = st
	st.timer = r.clk.Schedule(r.timeout, func() {
		r.finalize(context.Background(), id)
	})
	r.mu.Unlock()

	slog.Info("Buy broadcast",
		"actor", r.self.String(), "request_id", id.String(),
		"resource", resource, "quantity", quantity, "responders", len(responders))
	for _, to := range responders {
		r.send(ctx, Message{
			Kind:      KindBuy,
			Requester: r.self,
			Responder: to,
			RequestID: id,
			Location:  string(r.location),
			Resource:  resource,
			Quantity:  quantity,
		})
	}
	return id, nil
}

// HandleResponse records one accept or reject. Accepts are scored on arrival;
// an accept whose location the scorer cannot resolve is dropped, and the
// responder's own confirmation timeout reclaims the stock it locked.
func (r *Requester) HandleResponse(ctx context.Context, msg Message) {
	r.mu.Lock()
	st, ok := r.open[msg.RequestID]
	if !ok {
		r.mu.Unlock()
		slog.Debug("Response for unknown or settled transaction ignored",
			"actor", r.self.String(), "request_id", msg.RequestID.String(), "responder", msg.Responder.String())
		return
	}

	rec := negotiation.ResponseRecord{
		Responder:  msg.Responder,
		ReceivedAt: r.clk.Now(),
	}
	switch msg.Kind {
	case KindAccept:
		score, err := r.scorer.Score(scoring.Token(msg.Location), r.location)
		if err != nil {
			r.mu.Unlock()
			slog.Warn("Failed to score accept, dropping response",
				"actor", r.self.String(), "request_id", msg.RequestID.String(),
				"responder", msg.Responder.String(), "location", msg.Location, "error", err)
			return
		}
		rec.Accepted = true
		rec.Location = msg.Location
		rec.Score = score
	case KindReject:
		rec.Reason = msg.Reason
	default:
		r.mu.Unlock()
		return
	}

	if err := st.tx.Record(rec); err != nil {
		r.mu.Unlock()
		slog.Debug("Response ignored",
			"actor", r.self.String(), "request_id", msg.RequestID.String(),
			"responder", msg.Responder.String(), "error", err)
		return
	}
	complete := st.tx.AllAnswered()
	r.mu.Unlock()

	if complete {
		r.finalize(ctx, msg.RequestID)
	}
}

// finalize closes the transaction. Both the all-answered path and the timer
// path land here; BeginSelection lets exactly one of them through and the
// loser returns without touching anything.
func (r *Requester) finalize(ctx context.Context, id ident.RequestID) {
	r.mu.Lock()
	st, ok := r.open[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	if err := st.tx.BeginSelection(); err != nil {
		r.mu.Unlock()
		return
	}
	st.timer.Cancel()

	now := r.clk.Now()
	winner, err := st.tx.Settle(now)
	if err != nil {
		r.mu.Unlock()
		slog.Error("Failed to settle transaction",
			"actor", r.self.String(), "request_id", id.String(), "error", err)
		return
	}
	req := st.tx.Request()
	outcome := st.tx.State()
	responses := st.tx.Responses()
	losers := st.tx.AcceptedLosers()
	responders := st.tx.Responders()
	delete(r.open, id)

	if winner != nil {
		if err := r.stock.Receive(req.Resource(), req.Quantity()); err != nil {
			slog.Error("Failed to receive purchased stock",
				"actor", r.self.String(), "request_id", id.String(), "error", err)
		}
	}
	r.mu.Unlock()

	accepts := 0
	for _, rec := range responses {
		if rec.Accepted {
			accepts++
		}
	}
	event := TransactionClosed{
		EventID:   uuid.New(),
		RequestID: id,
		Requester: r.self,
		Resource:  req.Resource(),
		Quantity:  req.Quantity(),
		Outcome:   outcome,
		Responses: len(responses),
		Accepts:   accepts,
		OpenedAt:  st.openedAt,
		ClosedAt:  now,
	}

	if winner == nil {
		queued := r.retry.Push(FailedRequest{
			Resource:   req.Resource(),
			Quantity:   req.Quantity(),
			Responders: responders,
			FailedID:   id,
			FailedAt:   now,
		})
		slog.Info("Transaction failed",
			"actor", r.self.String(), "request_id", id.String(),
			"resource", req.Resource(), "responses", len(responses), "queued_for_retry", queued)
		r.observer.OnTransactionClosed(event)
		return
	}

	chosen := winner.Responder
	score := winner.Score
	event.Winner = &chosen
	event.WinnerScore = &score

	slog.Info("Transaction settled",
		"actor", r.self.String(), "request_id", id.String(),
		"winner", chosen.String(), "score", score, "losers", len(losers))
	r.send(ctx, Message{
		Kind:      KindConfirm,
		Requester: r.self,
		Responder: chosen,
		RequestID: id,
		Resource:  req.Resource(),
		Quantity:  req.Quantity(),
	})
	for _, loser := range losers {
		r.send(ctx, Message{
			Kind:      KindDeny,
			Requester: r.self,
			Responder: loser.Responder,
			RequestID: id,
			Resource:  req.Resource(),
			Quantity:  req.Quantity(),
		})
	}
	r.observer.OnTransactionClosed(event)
}

func (r *Requester) send(ctx context.Context, msg Message) {
	if err := r.transport.Send(ctx, msg); err != nil {
		slog.Warn("Failed to send message",
			"actor", r.self.String(), "kind", string(msg.Kind),
			"request_id", msg.RequestID.String(), "to", msg.Recipient().String(), "error", err)
	}
}

func (r *Requester) Self() ident.Ref         { return r.self }
func (r *Requester) Location() scoring.Token { return r.location }
func (r *Requester) Stock() *Stockroom       { return r.stock }
func (r *Requester) RetryBacklog() int       { return r.retry.Len() }

// NextRetry pops the oldest failed request, if any.
func (r *Requester) NextRetry() (FailedRequest, bool) {
	return r.retry.Pop()
}

// OpenTransactions reports how many transactions are still collecting.
func (r *Requester) OpenTransactions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.open)
}
