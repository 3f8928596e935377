package sim

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"supplysim/internal/domain/negotiation"
	"supplysim/internal/pkg/clock"
	"supplysim/internal/pkg/ident"
	"supplysim/internal/usecase"
)

// Warehouse is both sides of the market: a responder selling to stores and a
// requester restocking from the supplier tier. The two engines share one
// stockroom, so sales and restocking contend on the same inventory.
type Warehouse struct {
	responder *usecase.Responder
	requester *usecase.Requester
	suppliers []ident.Ref
	products  []string
	capacity  int
	threshold int
	tracker   *ResupplyTracker

	checking *periodic
	retrying *periodic
}

func NewWarehouse(
	responder *usecase.Responder,
	requester *usecase.Requester,
	suppliers []ident.Ref,
	products []string,
	capacity int,
	threshold int,
	tracker *ResupplyTracker,
) *Warehouse {
	return &Warehouse{
		responder: responder,
		requester: requester,
		suppliers: suppliers,
		products:  products,
		capacity:  capacity,
		threshold: threshold,
		tracker:   tracker,
	}
}

func (w *Warehouse) Start(clk clock.Clock, checkPeriod, retryPeriod time.Duration) {
	w.checking = startPeriodic(clk, checkPeriod, w.tickResupply)
	w.retrying = startPeriodic(clk, retryPeriod, w.tickRetry)
}

func (w *Warehouse) Stop() {
	if w.checking != nil {
		w.checking.stop()
	}
	if w.retrying != nil {
		w.retrying.stop()
	}
}

// tickResupply orders any product whose available stock fell below the
// threshold back up to capacity. At most one order per product is on the
// wire at a time.
func (w *Warehouse) tickResupply() {
	for _, product := range w.products {
		available := w.requester.Stock().Available(product)
		if available >= w.threshold {
			continue
		}
		if !w.tracker.begin(product) {
			continue
		}

		quantity := w.capacity - available
		id, err := w.requester.Initiate(context.Background(), product, quantity, w.suppliers)
		if err != nil {
			w.tracker.clear(product)
			slog.Warn("Failed to open resupply",
				"warehouse", w.requester.Self().String(), "resource", product, "error", err)
			continue
		}
		slog.Info("Resupply opened",
			"warehouse", w.requester.Self().String(), "request_id", id.String(),
			"resource", product, "quantity", quantity, "available", available)
	}
}

// tickRetry re-initiates one failed resupply per period. The product keeps
// its in-flight mark across the retry, so the threshold check cannot stack a
// second order on top.
func (w *Warehouse) tickRetry() {
	fr, ok := w.requester.NextRetry()
	if !ok {
		return
	}
	id, err := w.requester.Initiate(context.Background(), fr.Resource, fr.Quantity, fr.Responders)
	if err != nil {
		w.tracker.clear(fr.Resource)
		slog.Warn("Failed to retry resupply",
			"warehouse", w.requester.Self().String(), "failed_id", fr.FailedID.String(), "error", err)
		return
	}
	slog.Info("Failed resupply retried",
		"warehouse", w.requester.Self().String(), "failed_id", fr.FailedID.String(),
		"request_id", id.String(), "resource", fr.Resource, "quantity", fr.Quantity)
}

// ResupplyTracker keeps at most one resupply order in flight per product. A
// delivered order clears the mark; a failed one keeps it until the retry
// behaviour takes the order over.
type ResupplyTracker struct {
	mu      sync.Mutex
	pending map[string]bool
}

func NewResupplyTracker() *ResupplyTracker {
	return &ResupplyTracker{pending: make(map[string]bool)}
}

// begin marks resource as in flight; false means an order is already out.
func (t *ResupplyTracker) begin(resource string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending[resource] {
		return false
	}
	t.pending[resource] = true
	return true
}

func (t *ResupplyTracker) clear(resource string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, resource)
}

// InFlight lists products with an open resupply order, sorted.
func (t *ResupplyTracker) InFlight() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.pending))
	for p := range t.pending {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// OnTransactionClosed clears the in-flight mark once the order delivered.
// Failed closes keep the mark: the retry behaviour owns the order from there.
func (t *ResupplyTracker) OnTransactionClosed(e usecase.TransactionClosed) {
	if e.Outcome != negotiation.TransactionDone {
		return
	}
	t.clear(e.Resource)
}

func (t *ResupplyTracker) OnReservationTransition(usecase.ReservationTransition) {}
