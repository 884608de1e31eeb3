package circulation

import (
	"time"

	"github.com/google/uuid"
)

// Book represents a catalogued title together with its copy counts.
// The inventory ledger is the single writer of AvailableCopies; all other fields
// are owned by catalogue management, which the core only reconciles against.
//
// Invariant: 0 <= AvailableCopies <= TotalCopies and
// AvailableCopies = TotalCopies - number of open issue records for this book.
type Book struct {
	ID              uuid.UUID
	Title           string
	Author          string
	ISBN            ISBNString
	PublicationDate *time.Time
	Description     string
	TotalCopies     int
	AvailableCopies int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BuildBook creates a new Book with all copies available.
func BuildBook(id uuid.UUID, title string, author string, isbn ISBNString, totalCopies int) (Book, error) {
	if title == "" {
		return Book{}, ErrEmptyBookTitle
	}

	if author == "" {
		return Book{}, ErrEmptyBookAuthor
	}

	if isbn == "" {
		return Book{}, ErrEmptyISBN
	}

	if totalCopies < 0 {
		return Book{}, ErrNegativeTotalCopies
	}

	return Book{
		ID:              id,
		Title:           title,
		Author:          author,
		ISBN:            isbn,
		TotalCopies:     totalCopies,
		AvailableCopies: totalCopies,
	}, nil
}

// IsAvailable returns true if at least one copy can currently be issued.
func (b Book) IsAvailable() bool {
	return b.AvailableCopies > 0
}

// OpenIssues returns the number of copies currently out on loan.
func (b Book) OpenIssues() int {
	return b.TotalCopies - b.AvailableCopies
}
