package sim

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"supplysim/internal/pkg/clock"
	"supplysim/internal/pkg/ident"
	"supplysim/internal/usecase"
)

// Store simulates retail demand. Every buy period it rolls the dice and, on a
// hit, opens one negotiation for a random product and quantity against the
// warehouse tier. A second behaviour drains the engine's retry backlog and
// re-initiates failed buys under fresh request ids.
type Store struct {
	engine   *usecase.Requester
	contacts []ident.Ref
	products []string
	maxQty   int
	chance   float64

	// rng draws happen on timer goroutines, which are concurrent under the
	// real clock.
	rmu sync.Mutex
	rng *rand.Rand

	buying   *periodic
	retrying *periodic
}

func NewStore(engine *usecase.Requester, contacts []ident.Ref, products []string, maxQty int, chance float64, rng *rand.Rand) *Store {
	return &Store{
		engine:   engine,
		contacts: contacts,
		products: products,
		maxQty:   maxQty,
		chance:   chance,
		rng:      rng,
	}
}

func (s *Store) Start(clk clock.Clock, buyPeriod, retryPeriod time.Duration) {
	s.buying = startPeriodic(clk, buyPeriod, s.tickBuy)
	s.retrying = startPeriodic(clk, retryPeriod, s.tickRetry)
}

func (s *Store) Stop() {
	if s.buying != nil {
		s.buying.stop()
	}
	if s.retrying != nil {
		s.retrying.stop()
	}
}

func (s *Store) tickBuy() {
	// All three draws happen every tick so the rng stream stays aligned with
	// the seed regardless of how often the roll hits.
	s.rmu.Lock()
	roll := s.rng.Float64()
	product := s.products[s.rng.Intn(len(s.products))]
	quantity := 1 + s.rng.Intn(s.maxQty)
	s.rmu.Unlock()

	if roll >= s.chance {
		return
	}

	id, err := s.engine.Initiate(context.Background(), product, quantity, s.contacts)
	if err != nil {
		slog.Warn("Failed to open store buy",
			"store", s.engine.Self().String(), "resource", product, "error", err)
		return
	}
	slog.Debug("Store buy opened",
		"store", s.engine.Self().String(), "request_id", id.String(),
		"resource", product, "quantity", quantity)
}

func (s *Store) tickRetry() {
	fr, ok := s.engine.NextRetry()
	if !ok {
		return
	}
	id, err := s.engine.Initiate(context.Background(), fr.Resource, fr.Quantity, fr.Responders)
	if err != nil {
		slog.Warn("Failed to retry store buy",
			"store", s.engine.Self().String(), "failed_id", fr.FailedID.String(), "error", err)
		return
	}
	slog.Info("Failed buy retried",
		"store", s.engine.Self().String(), "failed_id", fr.FailedID.String(),
		"request_id", id.String(), "resource", fr.Resource, "quantity", fr.Quantity)
}
