// Package eventstream moves negotiation lifecycle events onto JetStream so
// the archive worker can persist them out of band. The write path never
// depends on archival: publishing is buffered and best effort.
package eventstream

import (
	"time"

	"supplysim/internal/usecase"
)

// TransactionEvent is the wire form of usecase.TransactionClosed.
type TransactionEvent struct {
	EventID     string    `json:"event_id"`
	RequestID   int64     `json:"request_id"`
	Requester   string    `json:"requester"`
	Resource    string    `json:"resource"`
	Quantity    int       `json:"quantity"`
	Outcome     string    `json:"outcome"`
	Winner      *string   `json:"winner,omitempty"`
	WinnerScore *float64  `json:"winner_score,omitempty"`
	Responses   int       `json:"responses"`
	Accepts     int       `json:"accepts"`
	OpenedAt    time.Time `json:"opened_at"`
	ClosedAt    time.Time `json:"closed_at"`
}

func NewTransactionEvent(e usecase.TransactionClosed) TransactionEvent {
	out := TransactionEvent{
		EventID:   e.EventID.String(),
		RequestID: int64(e.RequestID),
		Requester: e.Requester.String(),
		Resource:  e.Resource,
		Quantity:  e.Quantity,
		Outcome:   e.Outcome.String(),
		Responses: e.Responses,
		Accepts:   e.Accepts,
		OpenedAt:  e.OpenedAt,
		ClosedAt:  e.ClosedAt,
	}
	if e.Winner != nil {
		w := e.Winner.String()
		out.Winner = &w
	}
	if e.WinnerScore != nil {
		s := *e.WinnerScore
		out.WinnerScore = &s
	}
	return out
}

// ReservationEvent is the wire form of usecase.ReservationTransition.
type ReservationEvent struct {
	EventID   string    `json:"event_id"`
	RequestID int64     `json:"request_id"`
	Responder string    `json:"responder"`
	Requester string    `json:"requester"`
	Resource  string    `json:"resource"`
	Quantity  int       `json:"quantity"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to"`
	Trigger   string    `json:"trigger"`
	At        time.Time `json:"at"`
}

func NewReservationEvent(e usecase.ReservationTransition) ReservationEvent {
	return ReservationEvent{
		EventID:   e.EventID.String(),
		RequestID: int64(e.RequestID),
		Responder: e.Responder.String(),
		Requester: e.Requester.String(),
		Resource:  e.Resource,
		Quantity:  e.Quantity,
		From:      e.From.String(),
		To:        e.To.String(),
		Trigger:   e.Trigger,
		At:        e.At,
	}
}
