package negotiation

import (
	"errors"
	"time"

	"supplysim/internal/pkg/ident"
)

var ErrAlreadyTerminal = errors.New("reservation already settled")

// Reservation is a responder's lock of stock against one request. It settles
// exactly once: confirm and release are rejected after either has happened,
// which is what makes duplicate confirms and cancel-after-timeout harmless.
type Reservation struct {
	requestID ident.RequestID
	requester ident.Ref
	resource  string
	quantity  int
	state     ReservationState
	lockedAt  time.Time
	settledAt time.Time
}

func NewReservation(requestID ident.RequestID, requester ident.Ref, resource string, quantity int, now time.Time) (*Reservation, error) {
	if requestID == 0 {
		return nil, ErrInvalidRequestID
	}
	if requester.IsZero() {
		return nil, ErrInvalidRequester
	}
	if resource == "" {
		return nil, ErrInvalidResource
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	return &Reservation{
		requestID: requestID,
		requester: requester,
		resource:  resource,
		quantity:  quantity,
		state:     ReservationLocked,
		lockedAt:  now,
	}, nil
}

func (r *Reservation) Confirm(now time.Time) error {
	if r.state != ReservationLocked {
		return ErrAlreadyTerminal
	}
	r.state = ReservationConfirmed
	r.settledAt = now
	return nil
}

func (r *Reservation) Release(now time.Time) error {
	if r.state != ReservationLocked {
		return ErrAlreadyTerminal
	}
	r.state = ReservationReleased
	r.settledAt = now
	return nil
}

func (r *Reservation) IsLocked() bool    { return r.state == ReservationLocked }
func (r *Reservation) IsConfirmed() bool { return r.state == ReservationConfirmed }
func (r *Reservation) IsReleased() bool  { return r.state == ReservationReleased }

func (r *Reservation) RequestID() ident.RequestID { return r.requestID }
func (r *Reservation) Requester() ident.Ref      { return r.requester }
func (r *Reservation) Resource() string          { return r.resource }
func (r *Reservation) Quantity() int             { return r.quantity }
func (r *Reservation) State() ReservationState   { return r.state }
func (r *Reservation) LockedAt() time.Time       { return r.lockedAt }
func (r *Reservation) SettledAt() time.Time      { return r.settledAt }
