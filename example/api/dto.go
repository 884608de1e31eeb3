package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
)

// IssueRequest is the body of POST /issues/issue/.
type IssueRequest struct {
	BookID   uuid.UUID  `json:"book_id" binding:"required"`
	MemberID uuid.UUID  `json:"member_id" binding:"required"`
	DueDate  *time.Time `json:"due_date"`
}

// ReturnRequest is the body of POST /issues/return_book/.
type ReturnRequest struct {
	IssueRecordID uuid.UUID `json:"issue_record_id" binding:"required"`
}

// PaginatedResponse is the envelope of every list endpoint.
type PaginatedResponse struct {
	Count   int `json:"count"`
	Results any `json:"results"`
}

// BookResponse is the JSON shape of a catalogue book.
type BookResponse struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Author          string     `json:"author"`
	ISBN            string     `json:"isbn"`
	PublicationDate *time.Time `json:"publication_date"`
	Description     string     `json:"description"`
	TotalCopies     int        `json:"total_copies"`
	AvailableCopies int        `json:"available_copies"`
	IsAvailable     bool       `json:"is_available"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// MemberResponse is the JSON shape of a member.
type MemberResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	MemberCode string    `json:"member_code"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	JoinedAt   time.Time `json:"joined_at"`
	IsActive   bool      `json:"is_active"`
}

// IssueResponse is the JSON shape of a bare issue record, returned by the
// issue and return endpoints.
type IssueResponse struct {
	ID         uuid.UUID  `json:"id"`
	BookID     uuid.UUID  `json:"book_id"`
	MemberID   uuid.UUID  `json:"member_id"`
	IssueDate  time.Time  `json:"issue_date"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date"`
}

// IssueDetailResponse is the JSON shape of an enriched issue record, returned
// by the list endpoints. Status and fine are derived at request time.
type IssueDetailResponse struct {
	ID         uuid.UUID      `json:"id"`
	Book       BookResponse   `json:"book"`
	Member     MemberResponse `json:"member"`
	IssueDate  time.Time      `json:"issue_date"`
	DueDate    time.Time      `json:"due_date"`
	ReturnDate *time.Time     `json:"return_date"`
	Status     string         `json:"status"`
	FineCents  int64          `json:"fine_cents"`
}

func bookResponseFrom(book circulation.Book) BookResponse {
	return BookResponse{
		ID:              book.ID,
		Title:           book.Title,
		Author:          book.Author,
		ISBN:            book.ISBN,
		PublicationDate: book.PublicationDate,
		Description:     book.Description,
		TotalCopies:     book.TotalCopies,
		AvailableCopies: book.AvailableCopies,
		IsAvailable:     book.IsAvailable(),
		CreatedAt:       book.CreatedAt,
		UpdatedAt:       book.UpdatedAt,
	}
}

func bookResponsesFrom(books []circulation.Book) []BookResponse {
	result := make([]BookResponse, 0, len(books))
	for _, book := range books {
		result = append(result, bookResponseFrom(book))
	}

	return result
}

func memberResponseFrom(member circulation.Member) MemberResponse {
	return MemberResponse{
		ID:         member.ID,
		Name:       member.Name,
		MemberCode: member.Code,
		Email:      member.Email,
		Phone:      member.Phone,
		JoinedAt:   member.JoinedAt,
		IsActive:   member.Active,
	}
}

func memberResponsesFrom(members []circulation.Member) []MemberResponse {
	result := make([]MemberResponse, 0, len(members))
	for _, member := range members {
		result = append(result, memberResponseFrom(member))
	}

	return result
}

func issueResponseFrom(record circulation.IssueRecord) IssueResponse {
	return IssueResponse{
		ID:         record.ID,
		BookID:     record.BookID,
		MemberID:   record.MemberID,
		IssueDate:  record.IssueDate,
		DueDate:    record.DueDate,
		ReturnDate: record.ReturnDate,
	}
}

func issueDetailResponseFrom(details circulation.IssueDetails) IssueDetailResponse {
	return IssueDetailResponse{
		ID:         details.Record.ID,
		Book:       bookResponseFrom(details.Book),
		Member:     memberResponseFrom(details.Member),
		IssueDate:  details.Record.IssueDate,
		DueDate:    details.Record.DueDate,
		ReturnDate: details.Record.ReturnDate,
		Status:     string(details.Status),
		FineCents:  details.FineCents,
	}
}

func issueDetailResponsesFrom(details []circulation.IssueDetails) []IssueDetailResponse {
	result := make([]IssueDetailResponse, 0, len(details))
	for _, detail := range details {
		result = append(result, issueDetailResponseFrom(detail))
	}

	return result
}
