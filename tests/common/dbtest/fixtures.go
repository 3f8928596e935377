//go:build unit || e2e

package dbtest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// CountRows reports how many rows an archive table currently holds.
func CountRows(t *testing.T, db DBLike, table string) int {
	t.Helper()

	var n int
	err := db.QueryRow(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n)
	require.NoError(t, err)
	return n
}

// TransactionOutcome fetches the archived outcome of one transaction event.
func TransactionOutcome(t *testing.T, db DBLike, eventID string) string {
	t.Helper()

	var outcome string
	err := db.QueryRow(context.Background(),
		"SELECT outcome FROM transaction_events WHERE event_id = $1", eventID).Scan(&outcome)
	require.NoError(t, err)
	return outcome
}

// TransactionWinner fetches the archived winner; nil when the negotiation failed.
func TransactionWinner(t *testing.T, db DBLike, eventID string) *string {
	t.Helper()

	var winner *string
	err := db.QueryRow(context.Background(),
		"SELECT winner FROM transaction_events WHERE event_id = $1", eventID).Scan(&winner)
	require.NoError(t, err)
	return winner
}

// ReservationStates fetches the archived from/to pair of one reservation
// event; from is nil for the initial lock.
func ReservationStates(t *testing.T, db DBLike, eventID string) (from *string, to string) {
	t.Helper()

	err := db.QueryRow(context.Background(),
		"SELECT from_state, to_state FROM reservation_events WHERE event_id = $1", eventID).Scan(&from, &to)
	require.NoError(t, err)
	return from, to
}

var (
	buildTruncateOnce sync.Once
	truncateSQL       atomic.Value // string
)

// truncates the archive tables between tests
func ResetArchive(pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	buildTruncateOnce.Do(func() {
		rows, err := pool.Query(ctx, `
		  SELECT 'public.' || quote_ident(tablename)
		  FROM pg_tables
		  WHERE schemaname = 'public'
		    AND tablename NOT IN ('schema_migrations')`)
		if err != nil {
			truncateSQL.Store("")
			return
		}
		defer rows.Close()
		var tables []string
		for rows.Next() {
			var t string
			if err := rows.Scan(&t); err != nil {
				truncateSQL.Store("")
				return
			}
			tables = append(tables, t)
		}
		if rows.Err() != nil {
			truncateSQL.Store("")
			return
		}
		if len(tables) == 0 {
			truncateSQL.Store("SELECT 1")
			return
		}
		truncateSQL.Store("TRUNCATE " + strings.Join(tables, ", ") + " RESTART IDENTITY CASCADE;")
	})
	sqlAny := truncateSQL.Load()
	if sqlAny == nil || sqlAny.(string) == "" {
		return fmt.Errorf("failed to build TRUNCATE SQL")
	}
	if _, err := pool.Exec(ctx, sqlAny.(string)); err != nil {
		return err
	}

	return nil
}
