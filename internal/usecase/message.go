package usecase

import (
	"supplysim/internal/pkg/errs"
	"supplysim/internal/pkg/ident"
)

var ErrMalformedMessage = errs.New("malformed message")

// MessageKind names the five protocol messages.
type MessageKind string

const (
	KindBuy     MessageKind = "buy"
	KindAccept  MessageKind = "accept"
	KindReject  MessageKind = "reject"
	KindConfirm MessageKind = "confirm"
	KindDeny    MessageKind = "deny"
)

func (k MessageKind) IsValid() bool {
	switch k {
	case KindBuy, KindAccept, KindReject, KindConfirm, KindDeny:
		return true
	default:
		return false
	}
}

// Message is the wire envelope every actor exchanges. Location carries the
// sender's location token: the requester's on buy (where goods must go), the
// responder's on accept (what the requester scores). Reason is only set on
// reject.
type Message struct {
	Kind      MessageKind     `json:"kind"`
	Requester ident.Ref       `json:"requester"`
	Responder ident.Ref       `json:"responder"`
	RequestID ident.RequestID `json:"request_id"`
	Location  string          `json:"location,omitempty"`
	Resource  string          `json:"resource"`
	Quantity  int             `json:"quantity"`
	Reason    string          `json:"reason,omitempty"`
}

// Recipient is the actor the transport must deliver to.
func (m Message) Recipient() ident.Ref {
	switch m.Kind {
	case KindAccept, KindReject:
		return m.Requester
	default:
		return m.Responder
	}
}

// Sender is the counterparty of Recipient.
func (m Message) Sender() ident.Ref {
	switch m.Kind {
	case KindAccept, KindReject:
		return m.Responder
	default:
		return m.Requester
	}
}

// Validate rejects envelopes an engine must not act on. Anything that fails
// here is dropped and logged, never answered.
func (m Message) Validate() error {
	if !m.Kind.IsValid() {
		return errs.Mark(errs.Newf("unknown kind %q", m.Kind), ErrMalformedMessage)
	}
	if m.Requester.IsZero() || m.Responder.IsZero() {
		return errs.Mark(errs.New("missing requester or responder"), ErrMalformedMessage)
	}
	if m.RequestID == 0 {
		return errs.Mark(errs.New("missing request id"), ErrMalformedMessage)
	}
	switch m.Kind {
	case KindBuy:
		if m.Resource == "" {
			return errs.Mark(errs.New("buy without resource"), ErrMalformedMessage)
		}
		if m.Quantity <= 0 {
			return errs.Mark(errs.Newf("buy with quantity %d", m.Quantity), ErrMalformedMessage)
		}
	case KindAccept:
		if m.Location == "" {
			return errs.Mark(errs.New("accept without location"), ErrMalformedMessage)
		}
	case KindReject:
		if m.Reason == "" {
			return errs.Mark(errs.New("reject without reason"), ErrMalformedMessage)
		}
	}
	return nil
}
