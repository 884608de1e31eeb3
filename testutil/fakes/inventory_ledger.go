package fakes

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
)

// InventoryLedger is an in-memory circulation.InventoryLedger with the same
// conflict semantics as the Postgres implementation.
type InventoryLedger struct {
	mu    sync.Mutex
	books map[uuid.UUID]circulation.Book

	// FailReserve, FailRelease inject errors for compensation tests.
	FailReserve error
	FailRelease error
}

// NewInventoryLedger creates an empty in-memory ledger.
func NewInventoryLedger() *InventoryLedger {
	return &InventoryLedger{books: make(map[uuid.UUID]circulation.Book)}
}

// AddBook puts a book into the ledger, replacing any previous version.
func (l *InventoryLedger) AddBook(book circulation.Book) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.books[book.ID] = book
}

// Reserve decrements the book's available copies by one.
func (l *InventoryLedger) Reserve(_ context.Context, bookID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.FailReserve != nil {
		return l.FailReserve
	}

	book, exists := l.books[bookID]
	if !exists {
		return circulation.ErrBookNotFound
	}

	if book.AvailableCopies == 0 {
		return circulation.ErrNoCopiesAvailable
	}

	book.AvailableCopies--
	l.books[bookID] = book

	return nil
}

// Release increments the book's available copies by one.
func (l *InventoryLedger) Release(_ context.Context, bookID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.FailRelease != nil {
		return l.FailRelease
	}

	book, exists := l.books[bookID]
	if !exists {
		return circulation.ErrBookNotFound
	}

	if book.AvailableCopies >= book.TotalCopies {
		return circulation.ErrOverRelease
	}

	book.AvailableCopies++
	l.books[bookID] = book

	return nil
}

// GetBook reads a book from the ledger.
func (l *InventoryLedger) GetBook(_ context.Context, bookID uuid.UUID) (circulation.Book, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	book, exists := l.books[bookID]
	if !exists {
		return circulation.Book{}, circulation.ErrBookNotFound
	}

	return book, nil
}

// AvailableCopies returns the book's current available copy count, for assertions.
func (l *InventoryLedger) AvailableCopies(bookID uuid.UUID) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.books[bookID].AvailableCopies
}

var _ circulation.InventoryLedger = (*InventoryLedger)(nil)
