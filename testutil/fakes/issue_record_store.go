package fakes

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
)

// IssueRecordStore is an in-memory circulation.IssueRecordStore with the same
// conflict semantics as the Postgres implementation.
type IssueRecordStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]circulation.IssueRecord

	// FailCreate, FailClose, FailReopen inject errors for compensation tests.
	FailCreate error
	FailClose  error
	FailReopen error
}

// NewIssueRecordStore creates an empty in-memory store.
func NewIssueRecordStore() *IssueRecordStore {
	return &IssueRecordStore{records: make(map[uuid.UUID]circulation.IssueRecord)}
}

// Create appends a new open issue record.
func (s *IssueRecordStore) Create(
	_ context.Context,
	bookID uuid.UUID,
	memberID uuid.UUID,
	issueDate time.Time,
	dueDate time.Time,
) (circulation.IssueRecord, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCreate != nil {
		return circulation.IssueRecord{}, s.FailCreate
	}

	record := circulation.IssueRecord{
		ID:        uuid.New(),
		BookID:    bookID,
		MemberID:  memberID,
		IssueDate: circulation.ToTimestamp(issueDate),
		DueDate:   circulation.ToTimestamp(dueDate),
	}
	s.records[record.ID] = record

	return record, nil
}

// Close sets the record's return date.
func (s *IssueRecordStore) Close(_ context.Context, issueID uuid.UUID, returnDate time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailClose != nil {
		return s.FailClose
	}

	record, exists := s.records[issueID]
	if !exists {
		return circulation.ErrIssueNotFound
	}

	if record.ReturnDate != nil {
		return circulation.ErrAlreadyReturned
	}

	returned := circulation.ToTimestamp(returnDate)
	record.ReturnDate = &returned
	s.records[issueID] = record

	return nil
}

// Reopen clears the record's return date.
func (s *IssueRecordStore) Reopen(_ context.Context, issueID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailReopen != nil {
		return s.FailReopen
	}

	record, exists := s.records[issueID]
	if !exists {
		return circulation.ErrIssueNotFound
	}

	record.ReturnDate = nil
	s.records[issueID] = record

	return nil
}

// Get reads a single issue record.
func (s *IssueRecordStore) Get(_ context.Context, issueID uuid.UUID) (circulation.IssueRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.records[issueID]
	if !exists {
		return circulation.IssueRecord{}, circulation.ErrIssueNotFound
	}

	return record, nil
}

// CountOpenByMember returns the number of open records for the member.
func (s *IssueRecordStore) CountOpenByMember(_ context.Context, memberID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, record := range s.records {
		if record.MemberID == memberID && record.ReturnDate == nil {
			count++
		}
	}

	return count, nil
}

// HasOpenIssue reports whether the member holds an open record for the book.
func (s *IssueRecordStore) HasOpenIssue(_ context.Context, bookID uuid.UUID, memberID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.records {
		if record.BookID == bookID && record.MemberID == memberID && record.ReturnDate == nil {
			return true, nil
		}
	}

	return false, nil
}

// OpenRecordCount returns the number of open records, for assertions.
func (s *IssueRecordStore) OpenRecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, record := range s.records {
		if record.ReturnDate == nil {
			count++
		}
	}

	return count
}

var _ circulation.IssueRecordStore = (*IssueRecordStore)(nil)
