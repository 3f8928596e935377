package negotiation

import (
	"errors"
	"time"

	"supplysim/internal/pkg/ident"
)

var (
	ErrInvalidQuantity  = errors.New("quantity must be positive")
	ErrInvalidResource  = errors.New("resource name is empty")
	ErrInvalidRequester = errors.New("requester ref is empty")
	ErrInvalidRequestID = errors.New("request id is empty")
)

// Request is the immutable description of one buy broadcast.
type Request struct {
	id        ident.RequestID
	requester ident.Ref
	resource  string
	quantity  int
	issuedAt  time.Time
}

func NewRequest(id ident.RequestID, requester ident.Ref, resource string, quantity int, issuedAt time.Time) (Request, error) {
	if id == 0 {
		return Request{}, ErrInvalidRequestID
	}
	if requester.IsZero() {
		return Request{}, ErrInvalidRequester
	}
	if resource == "" {
		return Request{}, ErrInvalidResource
	}
	if quantity <= 0 {
		return Request{}, ErrInvalidQuantity
	}
	return Request{
		id:        id,
		requester: requester,
		resource:  resource,
		quantity:  quantity,
		issuedAt:  issuedAt,
	}, nil
}

func (r Request) ID() ident.RequestID  { return r.id }
func (r Request) Requester() ident.Ref { return r.requester }
func (r Request) Resource() string     { return r.resource }
func (r Request) Quantity() int        { return r.quantity }
func (r Request) IssuedAt() time.Time  { return r.issuedAt }
