// Package stats keeps an in-memory account of negotiation outcomes for the
// status API. The collector observes lifecycle events from every engine in
// the process; nothing here persists, the archive worker owns durability.
package stats

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"supplysim/internal/domain/negotiation"
	"supplysim/internal/pkg/errs"
	"supplysim/internal/usecase"
)

const defaultKeep = 256

// Totals aggregates outcomes across every actor in the process.
type Totals struct {
	Transactions int `json:"transactions"`
	Done         int `json:"done"`
	Failed       int `json:"failed"`
	UnitsTraded  int `json:"units_traded"`
	Locked       int `json:"locked"`
	Confirmed    int `json:"confirmed"`
	Denied       int `json:"denied"`
	Expired      int `json:"expired"`
}

// ResourceTotals breaks transaction outcomes down by resource.
type ResourceTotals struct {
	Resource string `json:"resource"`
	Done     int    `json:"done"`
	Failed   int    `json:"failed"`
	Units    int    `json:"units"`
}

// RequesterTotals breaks transaction outcomes down by initiating actor.
type RequesterTotals struct {
	Requester string `json:"requester"`
	Done      int    `json:"done"`
	Failed    int    `json:"failed"`
}

// Collector implements usecase.Observer over plain counters and a bounded
// ring of recent transactions. Engines notify observers outside their own
// locks, so a single mutex here is enough.
type Collector struct {
	mu        sync.Mutex
	keep      int
	totals    Totals
	resource  map[string]*ResourceTotals
	requester map[string]*RequesterTotals
	ring      []usecase.TransactionClosed
	next      int
	filled    bool
}

// New returns a collector retaining the last keep transactions; keep <= 0
// falls back to a sane default.
func New(keep int) *Collector {
	if keep <= 0 {
		keep = defaultKeep
	}
	return &Collector{
		keep:      keep,
		resource:  make(map[string]*ResourceTotals),
		requester: make(map[string]*RequesterTotals),
		ring:      make([]usecase.TransactionClosed, 0, keep),
	}
}

func (c *Collector) OnTransactionClosed(e usecase.TransactionClosed) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totals.Transactions++
	res := c.resourceLocked(e.Resource)
	req := c.requesterLocked(e.Requester.String())

	if e.Outcome == negotiation.TransactionDone {
		c.totals.Done++
		c.totals.UnitsTraded += e.Quantity
		res.Done++
		res.Units += e.Quantity
		req.Done++
	} else {
		c.totals.Failed++
		res.Failed++
		req.Failed++
	}

	if len(c.ring) < c.keep {
		c.ring = append(c.ring, e)
		return
	}
	c.ring[c.next] = e
	c.next = (c.next + 1) % c.keep
	c.filled = true
}

func (c *Collector) OnReservationTransition(e usecase.ReservationTransition) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e.Trigger {
	case usecase.TriggerBuy:
		c.totals.Locked++
	case usecase.TriggerConfirm:
		c.totals.Confirmed++
	case usecase.TriggerDeny:
		c.totals.Denied++
	case usecase.TriggerTimeout:
		c.totals.Expired++
	}
}

func (c *Collector) Totals() Totals {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totals
}

// ByResource lists per-resource totals sorted by resource name.
func (c *Collector) ByResource() []ResourceTotals {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]ResourceTotals, 0, len(c.resource))
	for _, v := range c.resource {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Resource < out[j].Resource })
	return out
}

// ByRequester lists per-actor totals sorted by actor reference.
func (c *Collector) ByRequester() []RequesterTotals {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]RequesterTotals, 0, len(c.requester))
	for _, v := range c.requester {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Requester < out[j].Requester })
	return out
}

// Recent returns up to n retained transactions, newest first.
func (c *Collector) Recent(n int) []usecase.TransactionClosed {
	c.mu.Lock()
	defer c.mu.Unlock()

	ordered := c.chronologicalLocked()
	if n <= 0 || n > len(ordered) {
		n = len(ordered)
	}
	out := make([]usecase.TransactionClosed, 0, n)
	for i := len(ordered) - 1; i >= len(ordered)-n; i-- {
		out = append(out, ordered[i])
	}
	return out
}

// WriteCSV streams every retained transaction in chronological order.
func (c *Collector) WriteCSV(w io.Writer) error {
	c.mu.Lock()
	ordered := c.chronologicalLocked()
	c.mu.Unlock()

	cw := csv.NewWriter(w)
	header := []string{
		"event_id", "request_id", "requester", "resource", "quantity",
		"outcome", "winner", "winner_score", "responses", "accepts",
		"opened_at", "closed_at",
	}
	if err := cw.Write(header); err != nil {
		return errs.Wrap(err, "write csv header")
	}
	for _, e := range ordered {
		if err := cw.Write(csvRow(e)); err != nil {
			return errs.Wrap(err, "write csv row")
		}
	}
	cw.Flush()
	return errs.Wrap(cw.Error(), "flush csv")
}

func csvRow(e usecase.TransactionClosed) []string {
	winner := ""
	if e.Winner != nil {
		winner = e.Winner.String()
	}
	score := ""
	if e.WinnerScore != nil {
		score = strconv.FormatFloat(*e.WinnerScore, 'f', -1, 64)
	}
	return []string{
		e.EventID.String(),
		strconv.FormatInt(int64(e.RequestID), 10),
		e.Requester.String(),
		e.Resource,
		strconv.Itoa(e.Quantity),
		e.Outcome.String(),
		winner,
		score,
		strconv.Itoa(e.Responses),
		strconv.Itoa(e.Accepts),
		e.OpenedAt.Format(time.RFC3339Nano),
		e.ClosedAt.Format(time.RFC3339Nano),
	}
}

func (c *Collector) chronologicalLocked() []usecase.TransactionClosed {
	if !c.filled {
		return append([]usecase.TransactionClosed(nil), c.ring...)
	}
	out := make([]usecase.TransactionClosed, 0, c.keep)
	out = append(out, c.ring[c.next:]...)
	out = append(out, c.ring[:c.next]...)
	return out
}

func (c *Collector) resourceLocked(name string) *ResourceTotals {
	v, ok := c.resource[name]
	if !ok {
		v = &ResourceTotals{Resource: name}
		c.resource[name] = v
	}
	return v
}

func (c *Collector) requesterLocked(name string) *RequesterTotals {
	v, ok := c.requester[name]
	if !ok {
		v = &RequesterTotals{Requester: name}
		c.requester[name] = v
	}
	return v
}
