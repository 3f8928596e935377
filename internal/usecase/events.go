package usecase

import (
	"log/slog"
	"time"

	"supplysim/internal/domain/negotiation"
	"supplysim/internal/pkg/ident"

	"github.com/google/uuid"
)

// TransactionClosed is emitted once per transaction, when it reaches its
// terminal state.
type TransactionClosed struct {
	EventID     uuid.UUID
	RequestID   ident.RequestID
	Requester   ident.Ref
	Resource    string
	Quantity    int
	Outcome     negotiation.TransactionState
	Winner      *ident.Ref
	WinnerScore *float64
	Responses   int
	Accepts     int
	OpenedAt    time.Time
	ClosedAt    time.Time
}

// ReservationTransition is emitted by responders on every reservation state
// change, the initial lock included (From is empty there).
type ReservationTransition struct {
	EventID   uuid.UUID
	RequestID ident.RequestID
	Responder ident.Ref
	Requester ident.Ref
	Resource  string
	Quantity  int
	From      negotiation.ReservationState
	To        negotiation.ReservationState
	Trigger   string
	At        time.Time
}

// Reservation transition triggers.
const (
	TriggerBuy     = "buy"
	TriggerConfirm = "confirm"
	TriggerDeny    = "deny"
	TriggerTimeout = "timeout"
)

// Observer receives lifecycle events. Engines call observers synchronously on
// their protocol goroutines, so implementations must return promptly and do
// their own buffering.
type Observer interface {
	OnTransactionClosed(e TransactionClosed)
	OnReservationTransition(e ReservationTransition)
}

// Observers fans out to every registered observer. A panicking observer is
// contained and logged so it cannot take a protocol goroutine down.
type Observers []Observer

func (os Observers) OnTransactionClosed(e TransactionClosed) {
	for _, o := range os {
		notifyTransaction(o, e)
	}
}

func (os Observers) OnReservationTransition(e ReservationTransition) {
	for _, o := range os {
		notifyReservation(o, e)
	}
}

func notifyTransaction(o Observer, e TransactionClosed) {
	defer recoverObserver("transaction_closed")
	o.OnTransactionClosed(e)
}

func notifyReservation(o Observer, e ReservationTransition) {
	defer recoverObserver("reservation_transition")
	o.OnReservationTransition(e)
}

func recoverObserver(event string) {
	if r := recover(); r != nil {
		slog.Error("Observer panicked", "event", event, "panic", r)
	}
}
