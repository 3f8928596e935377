//go:build unit

package sim

import (
	"context"
	"sync"
	"testing"
	"time"

	"supplysim/internal/infra/transport/inproc"
	"supplysim/internal/infra/world"
	"supplysim/internal/pkg/clock"
	"supplysim/internal/pkg/config"
	"supplysim/internal/pkg/errs"
	"supplysim/internal/pkg/ident"
	"supplysim/internal/stats"
	"supplysim/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var simBase = time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

// directBus delivers synchronously on the caller's goroutine. Engines only
// send outside their own locks, so inline delivery cannot deadlock. Muted
// recipients swallow their traffic, standing in for a responder that never
// answers.
type directBus struct {
	mu       sync.Mutex
	handlers map[ident.Ref]func(usecase.Message)
	muted    map[ident.Ref]bool
}

func newDirectBus() *directBus {
	return &directBus{
		handlers: make(map[ident.Ref]func(usecase.Message)),
		muted:    make(map[ident.Ref]bool),
	}
}

func (b *directBus) Send(_ context.Context, msg usecase.Message) error {
	b.mu.Lock()
	handler, ok := b.handlers[msg.Recipient()]
	muted := b.muted[msg.Recipient()]
	b.mu.Unlock()

	if muted {
		return nil
	}
	if !ok {
		return errs.Newf("no handler for %s", msg.Recipient())
	}
	handler(msg)
	return nil
}

func (b *directBus) Subscribe(ref ident.Ref, handler func(usecase.Message)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, dup := b.handlers[ref]; dup {
		return nil, errs.Newf("handler already registered for %s", ref)
	}
	b.handlers[ref] = handler
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, ref)
	}, nil
}

func (b *directBus) mute(refs ...ident.Ref) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range refs {
		b.muted[r] = true
	}
}

func (b *directBus) unmute(refs ...ident.Ref) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range refs {
		delete(b.muted, r)
	}
}

func testSimConfig() config.SimConfig {
	return config.SimConfig{
		Products:          []string{"A"},
		Stores:            1,
		Warehouses:        1,
		Suppliers:         1,
		WarehouseCapacity: 80,
		ResupplyThreshold: 20,
		StoreMaxQuantity:  20,
		BuyPeriod:         5 * time.Second,
		BuyProbability:    1.0,
		ResupplyPeriod:    5 * time.Second,
		RetryPeriod:       5 * time.Second,
		GridWidth:         5,
		GridHeight:        5,
		Seed:              1,
	}
}

func testProtocol() config.ProtocolConfig {
	return config.ProtocolConfig{
		CollectTimeout: 5 * time.Second,
		ConfirmTimeout: 10 * time.Second,
		RetryQueueSize: 8,
		EventBuffer:    8,
	}
}

type fleetFixture struct {
	fleet     *Fleet
	bus       *directBus
	clk       *clock.FakeClock
	collector *stats.Collector
}

func buildFixture(t *testing.T, cfg config.SimConfig) *fleetFixture {
	t.Helper()
	grid, err := world.NewGrid(cfg.GridWidth, cfg.GridHeight)
	require.NoError(t, err)

	fx := &fleetFixture{
		bus:       newDirectBus(),
		clk:       clock.NewFakeClock(simBase),
		collector: stats.New(64),
	}
	fx.fleet, err = Build(Params{
		Sim:       cfg,
		Protocol:  testProtocol(),
		Transport: fx.bus,
		Grid:      grid,
		Clock:     fx.clk,
		Observer:  fx.collector,
	})
	require.NoError(t, err)
	t.Cleanup(fx.fleet.Stop)
	return fx
}

// ============================================================================
// Build
// ============================================================================

func TestFleetBuild(t *testing.T) {
	t.Run("success: same seed reproduces placements and stock", func(t *testing.T) {
		cfg := testSimConfig()
		cfg.Stores, cfg.Warehouses, cfg.Suppliers = 2, 2, 2
		cfg.Products = []string{"A", "B"}
		cfg.Seed = 42

		first := buildFixture(t, cfg)
		second := buildFixture(t, cfg)

		a, b := first.fleet.Actors(), second.fleet.Actors()
		require.Len(t, a, 6)
		require.Len(t, b, 6)
		for i := range a {
			assert.Equal(t, a[i].Ref, b[i].Ref)
			assert.Equal(t, a[i].Location, b[i].Location)
			assert.Equal(t, a[i].Inventory.Available, b[i].Inventory.Available)
		}
	})

	t.Run("success: warehouse stock seeded between threshold and capacity", func(t *testing.T) {
		cfg := testSimConfig()
		cfg.Products = []string{"A", "B", "C", "D"}
		fx := buildFixture(t, cfg)

		status, ok := fx.fleet.Actor(ident.MustRef(ident.KindWarehouse, 1))
		require.True(t, ok)
		for _, product := range cfg.Products {
			available := status.Inventory.Available[product]
			assert.GreaterOrEqual(t, available, cfg.ResupplyThreshold+1, product)
			assert.LessOrEqual(t, available, cfg.WarehouseCapacity, product)
		}
	})

	t.Run("success: unknown actor lookup misses", func(t *testing.T) {
		fx := buildFixture(t, testSimConfig())
		_, ok := fx.fleet.Actor(ident.MustRef(ident.KindStore, 7))
		assert.False(t, ok)
	})

	t.Run("error: second fleet on one bus fails on duplicate refs", func(t *testing.T) {
		grid, err := world.NewGrid(5, 5)
		require.NoError(t, err)
		bus := inproc.New(16)
		defer bus.Close()

		params := Params{
			Sim:       testSimConfig(),
			Protocol:  testProtocol(),
			Transport: bus,
			Grid:      grid,
			Clock:     clock.NewFakeClock(simBase),
			Observer:  stats.New(8),
		}
		first, err := Build(params)
		require.NoError(t, err)
		defer first.Stop()

		_, err = Build(params)
		assert.Error(t, err)
	})

	t.Run("error: invalid configuration rejected", func(t *testing.T) {
		cases := map[string]func(*config.SimConfig){
			"no products":          func(c *config.SimConfig) { c.Products = nil },
			"zero stores":          func(c *config.SimConfig) { c.Stores = 0 },
			"capacity = threshold": func(c *config.SimConfig) { c.WarehouseCapacity = c.ResupplyThreshold },
			"quantity zero":        func(c *config.SimConfig) { c.StoreMaxQuantity = 0 },
			"probability > 1":      func(c *config.SimConfig) { c.BuyProbability = 1.5 },
		}
		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				cfg := testSimConfig()
				mutate(&cfg)
				grid, err := world.NewGrid(5, 5)
				require.NoError(t, err)
				_, err = Build(Params{
					Sim: cfg, Protocol: testProtocol(), Transport: newDirectBus(),
					Grid: grid, Clock: clock.NewFakeClock(simBase), Observer: stats.New(8),
				})
				assert.Error(t, err)
			})
		}
	})
}

// ============================================================================
// Running fleet
// ============================================================================

func TestFleetRun(t *testing.T) {
	t.Run("success: market activity keeps every book balanced", func(t *testing.T) {
		cfg := testSimConfig()
		cfg.Stores, cfg.Warehouses, cfg.Suppliers = 2, 2, 2
		cfg.Products = []string{"A", "B"}
		fx := buildFixture(t, cfg)

		fx.fleet.Start()
		for i := 0; i < 6; i++ {
			fx.clk.Advance(5 * time.Second)
		}
		fx.fleet.Stop()

		require.NoError(t, fx.fleet.CheckConservation())
		totals := fx.collector.Totals()
		assert.GreaterOrEqual(t, totals.Transactions, 1)
		assert.GreaterOrEqual(t, totals.Done, 1)
		assert.Positive(t, totals.UnitsTraded)
	})

	t.Run("success: start and stop are idempotent", func(t *testing.T) {
		fx := buildFixture(t, testSimConfig())
		fx.fleet.Start()
		fx.fleet.Start()
		fx.fleet.Stop()
		fx.fleet.Stop()

		// A stopped fleet must not react to further clock movement.
		before := fx.collector.Totals().Transactions
		fx.clk.Advance(time.Minute)
		assert.Equal(t, before, fx.collector.Totals().Transactions)
	})
}
