// Package archive persists negotiation lifecycle events to PostgreSQL. The
// JetStream consumer delivers at least once, so every insert is keyed by
// event id and replays land on conflict-do-nothing.
package archive

import (
	"context"

	"supplysim/internal/infra/eventstream"
	"supplysim/internal/pkg/errs"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) InsertTransaction(ctx context.Context, e eventstream.TransactionEvent) error {
	const stmt = `
INSERT INTO transaction_events (
	event_id, request_id, requester, resource, quantity, outcome,
	winner, winner_score, responses, accepts, opened_at, closed_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (event_id) DO NOTHING`

	_, err := s.pool.Exec(ctx, stmt,
		e.EventID,
		e.RequestID,
		e.Requester,
		e.Resource,
		e.Quantity,
		e.Outcome,
		e.Winner,
		e.WinnerScore,
		e.Responses,
		e.Accepts,
		e.OpenedAt,
		e.ClosedAt,
	)
	if err != nil {
		return errs.Wrap(err, "insert transaction event")
	}
	return nil
}

func (s *Store) InsertReservation(ctx context.Context, e eventstream.ReservationEvent) error {
	const stmt = `
INSERT INTO reservation_events (
	event_id, request_id, responder, requester, resource, quantity,
	from_state, to_state, triggered_by, occurred_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (event_id) DO NOTHING`

	var from *string
	if e.From != "" {
		from = &e.From
	}
	_, err := s.pool.Exec(ctx, stmt,
		e.EventID,
		e.RequestID,
		e.Responder,
		e.Requester,
		e.Resource,
		e.Quantity,
		from,
		e.To,
		e.Trigger,
		e.At,
	)
	if err != nil {
		return errs.Wrap(err, "insert reservation event")
	}
	return nil
}

// CountEvents reports how many events of each kind have been archived.
func (s *Store) CountEvents(ctx context.Context) (transactions int64, reservations int64, err error) {
	if err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transaction_events`).Scan(&transactions); err != nil {
		return 0, 0, errs.Wrap(err, "count transaction events")
	}
	if err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM reservation_events`).Scan(&reservations); err != nil {
		return 0, 0, errs.Wrap(err, "count reservation events")
	}
	return transactions, reservations, nil
}
