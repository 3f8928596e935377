package negotiation

import (
	"errors"
	"sort"
	"time"

	"supplysim/internal/pkg/ident"
)

var (
	ErrNoResponders      = errors.New("no responders addressed")
	ErrNotCollecting     = errors.New("transaction is not collecting")
	ErrNotSelecting      = errors.New("transaction is not selecting")
	ErrUnknownResponder  = errors.New("responder was not addressed by this request")
	ErrDuplicateResponse = errors.New("responder already answered")
)

// Transaction tracks one broadcast from the requester's side: which
// responders still owe an answer, every answer received, and the single
// terminal outcome. It moves Collecting -> Selecting exactly once and then
// settles into exactly one of Done or Failed.
type Transaction struct {
	request   Request
	answered  map[ident.Ref]bool
	responses []ResponseRecord
	state     TransactionState
	winner    *ResponseRecord
	closedAt  time.Time
}

func NewTransaction(req Request, responders []ident.Ref) (*Transaction, error) {
	if len(responders) == 0 {
		return nil, ErrNoResponders
	}
	answered := make(map[ident.Ref]bool, len(responders))
	for _, r := range responders {
		if r.IsZero() {
			return nil, ErrUnknownResponder
		}
		answered[r] = false
	}
	return &Transaction{
		request:  req,
		answered: answered,
		state:    TransactionCollecting,
	}, nil
}

// Record stores a responder's answer. Answers outside the collecting window,
// from responders the request never addressed, or from responders that
// already answered are rejected without mutating the transaction.
func (t *Transaction) Record(rec ResponseRecord) error {
	if t.state != TransactionCollecting {
		return ErrNotCollecting
	}
	done, addressed := t.answered[rec.Responder]
	if !addressed {
		return ErrUnknownResponder
	}
	if done {
		return ErrDuplicateResponse
	}
	t.answered[rec.Responder] = true
	rec.Arrival = len(t.responses)
	t.responses = append(t.responses, rec)
	return nil
}

// AllAnswered reports whether every addressed responder has answered.
func (t *Transaction) AllAnswered() bool {
	for _, done := range t.answered {
		if !done {
			return false
		}
	}
	return true
}

// BeginSelection closes the collecting window. Whichever of "all answered"
// and "deadline elapsed" happens first calls this; the loser of that race
// gets ErrNotCollecting and backs off.
func (t *Transaction) BeginSelection() error {
	if t.state != TransactionCollecting {
		return ErrNotCollecting
	}
	t.state = TransactionSelecting
	return nil
}

// Settle picks the winner among accepted responses: lowest score first,
// earliest arrival on equal scores. With no accepted responses the
// transaction fails and the returned winner is nil.
func (t *Transaction) Settle(now time.Time) (*ResponseRecord, error) {
	if t.state != TransactionSelecting {
		return nil, ErrNotSelecting
	}
	var winner *ResponseRecord
	for i := range t.responses {
		r := &t.responses[i]
		if !r.Accepted {
			continue
		}
		if winner == nil || r.Score < winner.Score {
			winner = r
		}
	}
	t.closedAt = now
	if winner == nil {
		t.state = TransactionFailed
		return nil, nil
	}
	t.state = TransactionDone
	w := *winner
	t.winner = &w
	return &w, nil
}

// AcceptedLosers returns the accepted responses that did not win, in arrival
// order. Only meaningful once the transaction is done.
func (t *Transaction) AcceptedLosers() []ResponseRecord {
	if t.winner == nil {
		return nil
	}
	var losers []ResponseRecord
	for _, r := range t.responses {
		if r.Accepted && r.Responder != t.winner.Responder {
			losers = append(losers, r)
		}
	}
	return losers
}

func (t *Transaction) Request() Request        { return t.request }
func (t *Transaction) State() TransactionState { return t.state }
func (t *Transaction) ClosedAt() time.Time     { return t.closedAt }

func (t *Transaction) Responses() []ResponseRecord {
	out := make([]ResponseRecord, len(t.responses))
	copy(out, t.responses)
	return out
}

func (t *Transaction) Winner() *ResponseRecord {
	if t.winner == nil {
		return nil
	}
	w := *t.winner
	return &w
}

// Outstanding lists responders that have not answered yet.
func (t *Transaction) Outstanding() []ident.Ref {
	var refs []ident.Ref
	for r, done := range t.answered {
		if !done {
			refs = append(refs, r)
		}
	}
	return refs
}

// Responders lists every addressed responder in a stable order.
func (t *Transaction) Responders() []ident.Ref {
	refs := make([]ident.Ref, 0, len(t.answered))
	for r := range t.answered {
		refs = append(refs, r)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Kind() != refs[j].Kind() {
			return refs[i].Kind() < refs[j].Kind()
		}
		return refs[i].Instance() < refs[j].Instance()
	})
	return refs
}
