//go:build unit

package inventory_test

import (
	"testing"

	"supplysim/internal/domain/inventory"
	"supplysim/internal/pkg/ident"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBook(t *testing.T) {
	store1 := ident.MustRef(ident.KindStore, 1)
	reqID := ident.ComposeRequestID(store1, 0)

	t.Run("受領とロックの往復", func(t *testing.T) {
		b := inventory.NewBook()
		require.NoError(t, b.Receive("A", 20))

		require.NoError(t, b.Lock("A", 10))
		assert.Equal(t, 10, b.Available("A"))
		assert.Equal(t, 10, b.Locked("A"))

		require.NoError(t, b.Unlock("A", 10))
		assert.Equal(t, 20, b.Available("A"))
		assert.Equal(t, 0, b.Locked("A"))
		require.NoError(t, b.CheckConservation())
	})

	t.Run("確定でロック分がペンディングへ移る", func(t *testing.T) {
		b := inventory.NewBook()
		require.NoError(t, b.Receive("A", 20))
		require.NoError(t, b.Lock("A", 10))

		require.NoError(t, b.Commit(reqID, store1, "A", 10))

		assert.Equal(t, 10, b.Available("A"))
		assert.Equal(t, 0, b.Locked("A"))
		assert.Equal(t, 10, b.PendingQuantity("A"))
		assert.Equal(t, 20, b.TotalAdded("A"))
		require.NoError(t, b.CheckConservation())
	})

	t.Run("在庫不足は全量拒否で無変化", func(t *testing.T) {
		b := inventory.NewBook()
		require.NoError(t, b.Receive("A", 5))

		err := b.Lock("A", 10)
		require.ErrorIs(t, err, inventory.ErrInsufficientStock)
		assert.Equal(t, 5, b.Available("A"))
		assert.Equal(t, 0, b.Locked("A"))
		require.NoError(t, b.CheckConservation())
	})

	t.Run("未知リソースのロックは在庫不足", func(t *testing.T) {
		b := inventory.NewBook()
		require.ErrorIs(t, b.Lock("Z", 1), inventory.ErrInsufficientStock)
	})

	t.Run("ロック超過の解放はアンダーフロー", func(t *testing.T) {
		b := inventory.NewBook()
		require.NoError(t, b.Receive("A", 10))
		require.NoError(t, b.Lock("A", 5))

		require.ErrorIs(t, b.Unlock("A", 6), inventory.ErrStockUnderflow)
		assert.Equal(t, 5, b.Locked("A"))
		require.NoError(t, b.CheckConservation())
	})

	t.Run("ロック超過の確定はアンダーフロー", func(t *testing.T) {
		b := inventory.NewBook()
		require.NoError(t, b.Receive("A", 10))
		require.NoError(t, b.Lock("A", 5))

		require.ErrorIs(t, b.Commit(reqID, store1, "A", 6), inventory.ErrStockUnderflow)
		assert.Equal(t, 5, b.Locked("A"))
		assert.Equal(t, 0, b.PendingQuantity("A"))
		require.NoError(t, b.CheckConservation())
	})

	t.Run("同一リクエストの二重確定は拒否", func(t *testing.T) {
		b := inventory.NewBook()
		require.NoError(t, b.Receive("A", 20))
		require.NoError(t, b.Lock("A", 20))
		require.NoError(t, b.Commit(reqID, store1, "A", 10))

		require.ErrorIs(t, b.Commit(reqID, store1, "A", 10), inventory.ErrDuplicatePending)
		assert.Equal(t, 10, b.Locked("A"))
		require.NoError(t, b.CheckConservation())
	})

	t.Run("数量検証", func(t *testing.T) {
		b := inventory.NewBook()
		require.ErrorIs(t, b.Receive("A", 0), inventory.ErrInvalidQuantity)
		require.ErrorIs(t, b.Lock("A", -1), inventory.ErrInvalidQuantity)
		require.ErrorIs(t, b.Unlock("A", 0), inventory.ErrInvalidQuantity)
		require.ErrorIs(t, b.Commit(reqID, store1, "A", 0), inventory.ErrInvalidQuantity)
	})

	t.Run("無制限台帳はロック時に自動補充する", func(t *testing.T) {
		b := inventory.NewUnlimitedBook()

		require.NoError(t, b.Lock("A", 15))
		assert.Equal(t, 0, b.Available("A"))
		assert.Equal(t, 15, b.Locked("A"))
		assert.Equal(t, 15, b.TotalAdded("A"))
		require.NoError(t, b.CheckConservation())

		require.NoError(t, b.Receive("A", 5))
		require.NoError(t, b.Lock("A", 8))
		assert.Equal(t, 0, b.Available("A"))
		assert.Equal(t, 23, b.Locked("A"))
		assert.Equal(t, 23, b.TotalAdded("A"))
		require.NoError(t, b.CheckConservation())
	})

	t.Run("スナップショットは元台帳から独立", func(t *testing.T) {
		b := inventory.NewBook()
		require.NoError(t, b.Receive("A", 20))
		require.NoError(t, b.Lock("A", 10))
		require.NoError(t, b.Commit(reqID, store1, "A", 10))

		s := b.Snapshot()
		s.Available["A"] = 999

		assert.Equal(t, 10, b.Available("A"))
		require.Len(t, s.Pending, 1)
		assert.Equal(t, reqID, s.Pending[0].RequestID)
		assert.Equal(t, store1, s.Pending[0].To)
	})
}
