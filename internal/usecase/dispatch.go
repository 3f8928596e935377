package usecase

import (
	"context"
	"log/slog"

	"supplysim/internal/pkg/ident"
)

// NewDispatcher builds the inbound message handler for one actor. Either
// engine may be nil when the actor does not play that role; messages for a
// missing role are dropped, as are envelopes that fail validation.
func NewDispatcher(self ident.Ref, requester *Requester, responder *Responder) func(Message) {
	return func(msg Message) {
		if err := msg.Validate(); err != nil {
			slog.Warn("Malformed message dropped", "actor", self.String(), "error", err)
			return
		}
		ctx := context.Background()
		switch msg.Kind {
		case KindBuy:
			if responder == nil {
				dropForRole(self, msg)
				return
			}
			responder.HandleBuy(ctx, msg)
		case KindAccept, KindReject:
			if requester == nil {
				dropForRole(self, msg)
				return
			}
			requester.HandleResponse(ctx, msg)
		case KindConfirm:
			if responder == nil {
				dropForRole(self, msg)
				return
			}
			responder.HandleConfirm(ctx, msg)
		case KindDeny:
			if responder == nil {
				dropForRole(self, msg)
				return
			}
			responder.HandleDeny(ctx, msg)
		}
	}
}

func dropForRole(self ident.Ref, msg Message) {
	slog.Warn("Message for a role this actor does not play dropped",
		"actor", self.String(), "kind", string(msg.Kind), "request_id", msg.RequestID.String())
}
