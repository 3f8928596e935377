package inventory

import (
	"errors"
	"fmt"
	"sort"

	"supplysim/internal/pkg/ident"
)

var (
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStockUnderflow    = errors.New("stock underflow")
	ErrDuplicatePending  = errors.New("pending delivery already recorded")
	ErrConservation      = errors.New("stock conservation broken")
)

// PendingDelivery is confirmed stock awaiting hand-off, keyed by the request
// that bought it.
type PendingDelivery struct {
	RequestID ident.RequestID
	To        ident.Ref
	Resource  string
	Quantity  int
}

// Book is one actor's stock ledger. Every unit is in exactly one of three
// places: available, locked under an open reservation, or pending delivery
// after a confirm. The book is not safe for concurrent use; each actor's
// engine serializes access to its own book.
//
// An unlimited book models a source tier with infinite supply: locking
// provisions whatever is missing first, so the conservation equation still
// balances and the running total doubles as the amount ever supplied.
type Book struct {
	unlimited  bool
	available  map[string]int
	locked     map[string]int
	pending    map[ident.RequestID]PendingDelivery
	totalAdded map[string]int
}

func NewBook() *Book {
	return newBook(false)
}

func NewUnlimitedBook() *Book {
	return newBook(true)
}

func newBook(unlimited bool) *Book {
	return &Book{
		unlimited:  unlimited,
		available:  make(map[string]int),
		locked:     make(map[string]int),
		pending:    make(map[ident.RequestID]PendingDelivery),
		totalAdded: make(map[string]int),
	}
}

// Receive adds new stock to the available pool.
func (b *Book) Receive(resource string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	b.available[resource] += quantity
	b.totalAdded[resource] += quantity
	return nil
}

// Lock moves stock from available into the locked pool. A limited book
// rejects the whole request when available stock cannot cover it; nothing is
// partially locked.
func (b *Book) Lock(resource string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if b.available[resource] < quantity {
		if !b.unlimited {
			return ErrInsufficientStock
		}
		if err := b.Receive(resource, quantity-b.available[resource]); err != nil {
			return err
		}
	}
	b.available[resource] -= quantity
	b.locked[resource] += quantity
	return nil
}

// Unlock returns locked stock to the available pool.
func (b *Book) Unlock(resource string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if b.locked[resource] < quantity {
		return fmt.Errorf("%w: unlock %d of %q with %d locked", ErrStockUnderflow, quantity, resource, b.locked[resource])
	}
	b.locked[resource] -= quantity
	b.available[resource] += quantity
	return nil
}

// Commit moves locked stock into a pending delivery for the buyer.
func (b *Book) Commit(requestID ident.RequestID, to ident.Ref, resource string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if _, exists := b.pending[requestID]; exists {
		return ErrDuplicatePending
	}
	if b.locked[resource] < quantity {
		return fmt.Errorf("%w: commit %d of %q with %d locked", ErrStockUnderflow, quantity, resource, b.locked[resource])
	}
	b.locked[resource] -= quantity
	b.pending[requestID] = PendingDelivery{
		RequestID: requestID,
		To:        to,
		Resource:  resource,
		Quantity:  quantity,
	}
	return nil
}

// Available reports the stock open for new reservations.
func (b *Book) Available(resource string) int {
	return b.available[resource]
}

// Locked reports the stock held under open reservations.
func (b *Book) Locked(resource string) int {
	return b.locked[resource]
}

// PendingQuantity reports the committed stock awaiting hand-off.
func (b *Book) PendingQuantity(resource string) int {
	total := 0
	for _, d := range b.pending {
		if d.Resource == resource {
			total += d.Quantity
		}
	}
	return total
}

// TotalAdded reports every unit ever received for a resource. It only grows;
// the conservation check balances the three pools against it.
func (b *Book) TotalAdded(resource string) int {
	return b.totalAdded[resource]
}

// CheckConservation verifies available + locked + pending == total added for
// every resource the book has seen, and that no pool has gone negative.
func (b *Book) CheckConservation() error {
	resources := make(map[string]bool)
	for r := range b.available {
		resources[r] = true
	}
	for r := range b.locked {
		resources[r] = true
	}
	for r := range b.totalAdded {
		resources[r] = true
	}
	for _, d := range b.pending {
		resources[d.Resource] = true
	}
	for r := range resources {
		available := b.available[r]
		locked := b.locked[r]
		pending := b.PendingQuantity(r)
		if available < 0 || locked < 0 {
			return fmt.Errorf("%w: resource %q has negative pool (available=%d locked=%d)", ErrConservation, r, available, locked)
		}
		if available+locked+pending != b.totalAdded[r] {
			return fmt.Errorf("%w: resource %q available=%d locked=%d pending=%d total=%d",
				ErrConservation, r, available, locked, pending, b.totalAdded[r])
		}
	}
	return nil
}

// Snapshot is a copy of the book safe to hand to observers and the API.
type Snapshot struct {
	Available  map[string]int
	Locked     map[string]int
	Pending    []PendingDelivery
	TotalAdded map[string]int
}

// PendingFor totals the pending deliveries of one resource.
func (s Snapshot) PendingFor(resource string) int {
	total := 0
	for _, d := range s.Pending {
		if d.Resource == resource {
			total += d.Quantity
		}
	}
	return total
}

func (b *Book) Snapshot() Snapshot {
	s := Snapshot{
		Available:  make(map[string]int, len(b.available)),
		Locked:     make(map[string]int, len(b.locked)),
		Pending:    make([]PendingDelivery, 0, len(b.pending)),
		TotalAdded: make(map[string]int, len(b.totalAdded)),
	}
	for r, q := range b.available {
		s.Available[r] = q
	}
	for r, q := range b.locked {
		s.Locked[r] = q
	}
	for r, q := range b.totalAdded {
		s.TotalAdded[r] = q
	}
	for _, d := range b.pending {
		s.Pending = append(s.Pending, d)
	}
	sort.Slice(s.Pending, func(i, j int) bool { return s.Pending[i].RequestID < s.Pending[j].RequestID })
	return s
}
