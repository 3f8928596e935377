//go:build unit || e2e

package builder

import (
	"time"

	"supplysim/internal/domain/negotiation"
	"supplysim/internal/pkg/ident"
)

var builderBase = time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

type RequestBuilder struct {
	ID        ident.RequestID
	Requester ident.Ref
	Resource  string
	Quantity  int
	IssuedAt  time.Time
}

func NewRequestBuilder() *RequestBuilder {
	requester := ident.MustRef(ident.KindStore, 1)
	return &RequestBuilder{
		ID:        ident.ComposeRequestID(requester, 0),
		Requester: requester,
		Resource:  "A",
		Quantity:  10,
		IssuedAt:  builderBase,
	}
}

func (b *RequestBuilder) With(mutate func(*RequestBuilder)) *RequestBuilder {
	mutate(b)
	return b
}

// Build methods
func (b *RequestBuilder) BuildDomain() (negotiation.Request, error) {
	return negotiation.NewRequest(b.ID, b.Requester, b.Resource, b.Quantity, b.IssuedAt)
}

func (b *RequestBuilder) BuildTransaction(responders ...ident.Ref) (*negotiation.Transaction, error) {
	req, err := b.BuildDomain()
	if err != nil {
		return nil, err
	}
	return negotiation.NewTransaction(req, responders)
}

// Fluent builder methods
func (b *RequestBuilder) WithID(id ident.RequestID) *RequestBuilder {
	b.ID = id
	return b
}

func (b *RequestBuilder) WithRequester(r ident.Ref) *RequestBuilder {
	b.Requester = r
	b.ID = ident.ComposeRequestID(r, b.ID.Sequence())
	return b
}

func (b *RequestBuilder) WithResource(resource string) *RequestBuilder {
	b.Resource = resource
	return b
}

func (b *RequestBuilder) WithQuantity(quantity int) *RequestBuilder {
	b.Quantity = quantity
	return b
}

func (b *RequestBuilder) WithIssuedAt(t time.Time) *RequestBuilder {
	b.IssuedAt = t
	return b
}

type ReservationBuilder struct {
	RequestID ident.RequestID
	Requester ident.Ref
	Resource  string
	Quantity  int
	LockedAt  time.Time
}

func NewReservationBuilder() *ReservationBuilder {
	requester := ident.MustRef(ident.KindStore, 1)
	return &ReservationBuilder{
		RequestID: ident.ComposeRequestID(requester, 0),
		Requester: requester,
		Resource:  "A",
		Quantity:  10,
		LockedAt:  builderBase,
	}
}

func (b *ReservationBuilder) With(mutate func(*ReservationBuilder)) *ReservationBuilder {
	mutate(b)
	return b
}

func (b *ReservationBuilder) BuildDomain() (*negotiation.Reservation, error) {
	return negotiation.NewReservation(b.RequestID, b.Requester, b.Resource, b.Quantity, b.LockedAt)
}

func (b *ReservationBuilder) WithRequestID(id ident.RequestID) *ReservationBuilder {
	b.RequestID = id
	return b
}

func (b *ReservationBuilder) WithRequester(r ident.Ref) *ReservationBuilder {
	b.Requester = r
	return b
}

func (b *ReservationBuilder) WithResource(resource string) *ReservationBuilder {
	b.Resource = resource
	return b
}

func (b *ReservationBuilder) WithQuantity(quantity int) *ReservationBuilder {
	b.Quantity = quantity
	return b
}
