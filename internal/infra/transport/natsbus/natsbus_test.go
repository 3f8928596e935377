//go:build unit

package natsbus

import (
	"encoding/json"
	"testing"

	"supplysim/internal/pkg/ident"
	"supplysim/internal/usecase"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubjectNaming(t *testing.T) {
	b := New(nil, "supplysim")
	assert.Equal(t, "supplysim.msg.warehouse-2", b.subject(ident.MustRef(ident.KindWarehouse, 2)))
	assert.Equal(t, "supplysim.msg.store-1", b.subject(ident.MustRef(ident.KindStore, 1)))
}

func TestInbound(t *testing.T) {
	store := ident.MustRef(ident.KindStore, 1)
	wh := ident.MustRef(ident.KindWarehouse, 1)
	msg := usecase.Message{
		Kind:      usecase.KindBuy,
		Requester: store,
		Responder: wh,
		RequestID: ident.ComposeRequestID(store, 7),
		Location:  "node-0",
		Resource:  "A",
		Quantity:  5,
	}

	t.Run("success: well-formed payload reaches the handler", func(t *testing.T) {
		data, err := json.Marshal(msg)
		require.NoError(t, err)

		var got []usecase.Message
		h := inbound(wh, func(m usecase.Message) { got = append(got, m) })
		h(&nats.Msg{Subject: "supplysim.msg.warehouse-1", Data: data})

		require.Len(t, got, 1)
		assert.Equal(t, msg, got[0])
	})

	t.Run("success: wire encoding survives the round trip", func(t *testing.T) {
		data, err := json.Marshal(msg)
		require.NoError(t, err)

		var decoded usecase.Message
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, msg, decoded)
		assert.Equal(t, wh, decoded.Recipient())
		assert.Equal(t, store, decoded.Sender())
	})

	t.Run("error: undecodable payload is dropped", func(t *testing.T) {
		called := false
		h := inbound(wh, func(usecase.Message) { called = true })
		h(&nats.Msg{Subject: "supplysim.msg.warehouse-1", Data: []byte("{not json")})
		assert.False(t, called)
	})

	t.Run("error: misrouted envelope is dropped", func(t *testing.T) {
		other := usecase.Message{
			Kind:      usecase.KindBuy,
			Requester: store,
			Responder: ident.MustRef(ident.KindWarehouse, 2),
			RequestID: ident.ComposeRequestID(store, 8),
			Resource:  "A",
			Quantity:  5,
		}
		data, err := json.Marshal(other)
		require.NoError(t, err)

		called := false
		h := inbound(wh, func(usecase.Message) { called = true })
		h(&nats.Msg{Subject: "supplysim.msg.warehouse-1", Data: data})
		assert.False(t, called)
	})
}
