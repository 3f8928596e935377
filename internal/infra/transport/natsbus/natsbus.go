// Package natsbus is the NATS transport: each actor listens on its own
// subject and messages travel as JSON. It lets the fleet spread across
// processes while keeping the same delivery contract as the in-process bus:
// per-publisher order on a subject is preserved and a subscription handles
// one message at a time.
package natsbus

import (
	"context"
	"encoding/json"
	"log/slog"

	"supplysim/internal/pkg/errs"
	"supplysim/internal/pkg/ident"
	"supplysim/internal/usecase"

	"github.com/nats-io/nats.go"
)

type Bus struct {
	nc     *nats.Conn
	prefix string
}

var _ usecase.Transport = (*Bus)(nil)

func New(nc *nats.Conn, prefix string) *Bus {
	return &Bus{nc: nc, prefix: prefix}
}

func (b *Bus) Send(_ context.Context, msg usecase.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errs.Wrap(err, "encode message")
	}
	if err := b.nc.Publish(b.subject(msg.Recipient()), data); err != nil {
		return errs.Wrap(err, "publish message")
	}
	return nil
}

func (b *Bus) Subscribe(ref ident.Ref, handler func(usecase.Message)) (func(), error) {
	sub, err := b.nc.Subscribe(b.subject(ref), inbound(ref, handler))
	if err != nil {
		return nil, errs.Wrap(err, "subscribe "+ref.String())
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			slog.Warn("Failed to unsubscribe", "actor", ref.String(), "error", err)
		}
	}, nil
}

// inbound decodes raw wire payloads for one subscriber. Payloads that do not
// parse, and envelopes addressed to somebody else, are dropped and logged.
func inbound(ref ident.Ref, handler func(usecase.Message)) nats.MsgHandler {
	return func(raw *nats.Msg) {
		var msg usecase.Message
		if err := json.Unmarshal(raw.Data, &msg); err != nil {
			slog.Warn("Undecodable payload dropped",
				"actor", ref.String(), "subject", raw.Subject, "bytes", len(raw.Data), "error", err)
			return
		}
		if msg.Recipient() != ref {
			slog.Warn("Misrouted message dropped",
				"actor", ref.String(), "subject", raw.Subject, "recipient", msg.Recipient().String())
			return
		}
		handler(msg)
	}
}

func (b *Bus) subject(ref ident.Ref) string {
	return b.prefix + ".msg." + ref.String()
}
