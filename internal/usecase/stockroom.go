package usecase

import (
	"sync"

	"supplysim/internal/domain/inventory"
	"supplysim/internal/pkg/ident"
)

// Stockroom serializes access to one actor's inventory book. The domain book
// is single-writer on purpose; actors that run both a requester and a
// responder engine (warehouses) share the same stockroom, and the status API
// reads snapshots through it from its own goroutines.
type Stockroom struct {
	mu   sync.Mutex
	book *inventory.Book
}

func NewStockroom(book *inventory.Book) *Stockroom {
	return &Stockroom{book: book}
}

func (s *Stockroom) Receive(resource string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Receive(resource, quantity)
}

func (s *Stockroom) Lock(resource string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Lock(resource, quantity)
}

func (s *Stockroom) Unlock(resource string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Unlock(resource, quantity)
}

func (s *Stockroom) Commit(requestID ident.RequestID, to ident.Ref, resource string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Commit(requestID, to, resource, quantity)
}

func (s *Stockroom) Available(resource string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Available(resource)
}

func (s *Stockroom) Snapshot() inventory.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Snapshot()
}

func (s *Stockroom) CheckConservation() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.CheckConservation()
}
