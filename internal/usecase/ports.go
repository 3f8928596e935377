package usecase

import (
	"context"

	"supplysim/internal/pkg/ident"
)

// Transport delivers protocol messages between actors. Implementations must
// preserve send order between any two actors; delivery is asynchronous and a
// recipient's handler runs messages one at a time.
type Transport interface {
	Send(ctx context.Context, msg Message) error
	// Subscribe registers the handler for everything addressed to ref. The
	// returned function stops delivery.
	Subscribe(ref ident.Ref, handler func(Message)) (func(), error)
}
