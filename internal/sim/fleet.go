// Package sim assembles and drives the actor fleet: stores buying from
// warehouses, warehouses restocking from suppliers, suppliers manufacturing
// on demand. Behaviours are periodic ticks on the shared clock; all protocol
// traffic flows over the injected transport.
package sim

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"supplysim/internal/domain/inventory"
	"supplysim/internal/domain/scoring"
	"supplysim/internal/infra/world"
	"supplysim/internal/pkg/clock"
	"supplysim/internal/pkg/config"
	"supplysim/internal/pkg/errs"
	"supplysim/internal/pkg/ident"
	"supplysim/internal/usecase"
)

// Params collects everything a fleet needs. Observer receives lifecycle
// events from every engine; the fleet layers its own resupply tracking on
// top for the warehouse tier.
type Params struct {
	Sim       config.SimConfig
	Protocol  config.ProtocolConfig
	Transport usecase.Transport
	Grid      *world.Grid
	Clock     clock.Clock
	Observer  usecase.Observer
}

type Fleet struct {
	stores     []*Store
	warehouses []*Warehouse
	suppliers  []*Supplier

	clk            clock.Clock
	buyPeriod      time.Duration
	resupplyPeriod time.Duration
	retryPeriod    time.Duration

	mu      sync.Mutex
	unsubs  []func()
	started bool
}

// Build wires the configured actor counts to the transport. Engines receive
// traffic as soon as they are subscribed; demand stays quiet until Start.
func Build(p Params) (*Fleet, error) {
	if err := validate(p.Sim); err != nil {
		return nil, err
	}

	seed := p.Sim.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	scorer := scoring.NewEuclidean(p.Grid)

	f := &Fleet{
		clk:            p.Clock,
		buyPeriod:      p.Sim.BuyPeriod,
		resupplyPeriod: p.Sim.ResupplyPeriod,
		retryPeriod:    p.Sim.RetryPeriod,
	}

	supplierRefs := make([]ident.Ref, 0, p.Sim.Suppliers)
	for i := 1; i <= p.Sim.Suppliers; i++ {
		ref := ident.MustRef(ident.KindSupplier, i)
		engine := usecase.NewResponder(
			ref, p.Grid.RandomToken(rng), p.Transport,
			usecase.NewStockroom(inventory.NewUnlimitedBook()),
			p.Observer, p.Clock, p.Protocol.ConfirmTimeout,
		)
		if err := f.subscribe(p.Transport, ref, usecase.NewDispatcher(ref, nil, engine)); err != nil {
			return nil, err
		}
		f.suppliers = append(f.suppliers, NewSupplier(engine))
		supplierRefs = append(supplierRefs, ref)
	}

	warehouseRefs := make([]ident.Ref, 0, p.Sim.Warehouses)
	for i := 1; i <= p.Sim.Warehouses; i++ {
		ref := ident.MustRef(ident.KindWarehouse, i)
		location := p.Grid.RandomToken(rng)

		stock := usecase.NewStockroom(inventory.NewBook())
		for _, product := range p.Sim.Products {
			quantity := p.Sim.ResupplyThreshold + 1 + rng.Intn(p.Sim.WarehouseCapacity-p.Sim.ResupplyThreshold)
			if err := stock.Receive(product, quantity); err != nil {
				f.unsubscribeAll()
				return nil, errs.Wrap(err, "seed warehouse stock")
			}
		}

		tracker := NewResupplyTracker()
		responder := usecase.NewResponder(
			ref, location, p.Transport, stock, p.Observer, p.Clock, p.Protocol.ConfirmTimeout,
		)
		requester := usecase.NewRequester(
			ref, location, ident.NewAllocator(ref), scorer, p.Transport, stock,
			usecase.NewRetryQueue(p.Protocol.RetryQueueSize),
			usecase.Observers{p.Observer, tracker},
			p.Clock, p.Protocol.CollectTimeout,
		)
		if err := f.subscribe(p.Transport, ref, usecase.NewDispatcher(ref, requester, responder)); err != nil {
			return nil, err
		}
		f.warehouses = append(f.warehouses, NewWarehouse(
			responder, requester, supplierRefs, p.Sim.Products,
			p.Sim.WarehouseCapacity, p.Sim.ResupplyThreshold, tracker,
		))
		warehouseRefs = append(warehouseRefs, ref)
	}

	for i := 1; i <= p.Sim.Stores; i++ {
		ref := ident.MustRef(ident.KindStore, i)
		requester := usecase.NewRequester(
			ref, p.Grid.RandomToken(rng), ident.NewAllocator(ref), scorer, p.Transport,
			usecase.NewStockroom(inventory.NewBook()),
			usecase.NewRetryQueue(p.Protocol.RetryQueueSize),
			p.Observer, p.Clock, p.Protocol.CollectTimeout,
		)
		if err := f.subscribe(p.Transport, ref, usecase.NewDispatcher(ref, requester, nil)); err != nil {
			return nil, err
		}
		child := rand.New(rand.NewSource(rng.Int63()))
		f.stores = append(f.stores, NewStore(
			requester, warehouseRefs, p.Sim.Products,
			p.Sim.StoreMaxQuantity, p.Sim.BuyProbability, child,
		))
	}

	slog.Info("Fleet assembled",
		"stores", p.Sim.Stores, "warehouses", p.Sim.Warehouses,
		"suppliers", p.Sim.Suppliers, "products", len(p.Sim.Products), "seed", seed)
	return f, nil
}

func validate(cfg config.SimConfig) error {
	switch {
	case len(cfg.Products) == 0:
		return errs.New("at least one product required")
	case cfg.Stores < 1 || cfg.Stores > ident.MaxInstance:
		return errs.Newf("store count %d not in [1,%d]", cfg.Stores, ident.MaxInstance)
	case cfg.Warehouses < 1 || cfg.Warehouses > ident.MaxInstance:
		return errs.Newf("warehouse count %d not in [1,%d]", cfg.Warehouses, ident.MaxInstance)
	case cfg.Suppliers < 1 || cfg.Suppliers > ident.MaxInstance:
		return errs.Newf("supplier count %d not in [1,%d]", cfg.Suppliers, ident.MaxInstance)
	case cfg.ResupplyThreshold < 0:
		return errs.Newf("resupply threshold %d negative", cfg.ResupplyThreshold)
	case cfg.WarehouseCapacity <= cfg.ResupplyThreshold:
		return errs.Newf("warehouse capacity %d must exceed resupply threshold %d",
			cfg.WarehouseCapacity, cfg.ResupplyThreshold)
	case cfg.StoreMaxQuantity < 1:
		return errs.Newf("store max quantity %d must be positive", cfg.StoreMaxQuantity)
	case cfg.BuyProbability < 0 || cfg.BuyProbability > 1:
		return errs.Newf("buy probability %v not in [0,1]", cfg.BuyProbability)
	}
	return nil
}

func (f *Fleet) subscribe(t usecase.Transport, ref ident.Ref, handler func(usecase.Message)) error {
	unsub, err := t.Subscribe(ref, handler)
	if err != nil {
		f.unsubscribeAll()
		return errs.Wrapf(err, "subscribe %s", ref)
	}
	f.unsubs = append(f.unsubs, unsub)
	return nil
}

func (f *Fleet) unsubscribeAll() {
	for _, u := range f.unsubs {
		u()
	}
	f.unsubs = nil
}

// Start opens the demand taps. Idempotent.
func (f *Fleet) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return
	}
	f.started = true
	for _, s := range f.stores {
		s.Start(f.clk, f.buyPeriod, f.retryPeriod)
	}
	for _, w := range f.warehouses {
		w.Start(f.clk, f.resupplyPeriod, f.retryPeriod)
	}
	slog.Info("Fleet started")
}

// Stop halts the behaviours and detaches every actor from the bus.
func (f *Fleet) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.stores {
		s.Stop()
	}
	for _, w := range f.warehouses {
		w.Stop()
	}
	f.unsubscribeAll()
	f.started = false
	slog.Info("Fleet stopped")
}

// ActorStatus is a point-in-time view of one actor for the status API.
type ActorStatus struct {
	Ref              ident.Ref
	Location         scoring.Token
	Inventory        inventory.Snapshot
	Conservation     error
	OpenBuys         int
	RetryBacklog     int
	ActiveHolds      int
	Holds            []usecase.ReservationSnapshot
	InFlightResupply []string
}

// Actors lists every actor, stores first, then warehouses, then suppliers.
func (f *Fleet) Actors() []ActorStatus {
	out := make([]ActorStatus, 0, len(f.stores)+len(f.warehouses)+len(f.suppliers))
	for _, s := range f.stores {
		out = append(out, storeStatus(s))
	}
	for _, w := range f.warehouses {
		out = append(out, warehouseStatus(w))
	}
	for _, s := range f.suppliers {
		out = append(out, supplierStatus(s))
	}
	return out
}

// Actor looks one actor up by reference.
func (f *Fleet) Actor(ref ident.Ref) (ActorStatus, bool) {
	i := ref.Instance() - 1
	switch ref.Kind() {
	case ident.KindStore:
		if i >= 0 && i < len(f.stores) {
			return storeStatus(f.stores[i]), true
		}
	case ident.KindWarehouse:
		if i >= 0 && i < len(f.warehouses) {
			return warehouseStatus(f.warehouses[i]), true
		}
	case ident.KindSupplier:
		if i >= 0 && i < len(f.suppliers) {
			return supplierStatus(f.suppliers[i]), true
		}
	}
	return ActorStatus{}, false
}

// RetryBacklog sums the failed-buy backlog across every requester.
func (f *Fleet) RetryBacklog() int {
	total := 0
	for _, s := range f.stores {
		total += s.engine.RetryBacklog()
	}
	for _, w := range f.warehouses {
		total += w.requester.RetryBacklog()
	}
	return total
}

// CheckConservation sweeps every actor's book and reports the first broken
// invariant.
func (f *Fleet) CheckConservation() error {
	for _, a := range f.Actors() {
		if a.Conservation != nil {
			return errs.Wrapf(a.Conservation, "actor %s", a.Ref)
		}
	}
	return nil
}

func storeStatus(s *Store) ActorStatus {
	eng := s.engine
	return ActorStatus{
		Ref:          eng.Self(),
		Location:     eng.Location(),
		Inventory:    eng.Stock().Snapshot(),
		Conservation: eng.Stock().CheckConservation(),
		OpenBuys:     eng.OpenTransactions(),
		RetryBacklog: eng.RetryBacklog(),
	}
}

func warehouseStatus(w *Warehouse) ActorStatus {
	return ActorStatus{
		Ref:              w.requester.Self(),
		Location:         w.requester.Location(),
		Inventory:        w.requester.Stock().Snapshot(),
		Conservation:     w.requester.Stock().CheckConservation(),
		OpenBuys:         w.requester.OpenTransactions(),
		RetryBacklog:     w.requester.RetryBacklog(),
		ActiveHolds:      w.responder.ActiveHolds(),
		Holds:            w.responder.Reservations(),
		InFlightResupply: w.tracker.InFlight(),
	}
}

func supplierStatus(s *Supplier) ActorStatus {
	eng := s.engine
	return ActorStatus{
		Ref:          eng.Self(),
		Location:     eng.Location(),
		Inventory:    eng.Stock().Snapshot(),
		Conservation: eng.Stock().CheckConservation(),
		ActiveHolds:  eng.ActiveHolds(),
		Holds:        eng.Reservations(),
	}
}
