package circulation

import (
	"time"

	"github.com/google/uuid"
)

// Status is the derived circulation state of an issue record.
// It is computed from (due date, return date, now) and never stored, so stored
// state can never drift against wall-clock time.
type Status string

const (
	// StatusIssued means the book is out on loan and not yet due.
	StatusIssued Status = "issued"

	// StatusOverdue means the book is out on loan past its due date.
	// It is a time-derived sub-state of issued, not a stored transition.
	StatusOverdue Status = "overdue"

	// StatusReturned means the return date has been set.
	StatusReturned Status = "returned"
)

// DefaultLoanPeriod is applied when the caller does not supply a due date.
const DefaultLoanPeriod = 14 * 24 * time.Hour

// FinePerDayCents is charged per calendar day a returnable is overdue.
const FinePerDayCents = int64(100)

// IssueRecord represents one circulation transaction: who holds which book,
// since when, due when, and (once returned) returned when. Records are
// append-only; returning sets ReturnDate, nothing is ever deleted.
type IssueRecord struct {
	ID         uuid.UUID
	BookID     uuid.UUID
	MemberID   uuid.UUID
	IssueDate  time.Time
	DueDate    time.Time
	ReturnDate *time.Time
}

// IsOpen returns true while the book has not been returned.
func (r IssueRecord) IsOpen() bool {
	return r.ReturnDate == nil
}

// StatusAt derives the record's status at the given time.
func (r IssueRecord) StatusAt(now time.Time) Status {
	return DeriveStatus(r.DueDate, r.ReturnDate, now)
}

// FineCentsAt derives the fine accrued by the given time.
func (r IssueRecord) FineCentsAt(now time.Time) int64 {
	return DeriveFineCents(r.DueDate, r.ReturnDate, now)
}

// DeriveStatus computes the status of an issue record as a pure function of
// (due date, return date, now). The engine and the query facade both use this
// single derivation so they always agree:
//
//	returned  iff the return date is set
//	overdue   iff not returned and the due date lies before now
//	issued    otherwise
func DeriveStatus(dueDate time.Time, returnDate *time.Time, now time.Time) Status {
	if returnDate != nil {
		return StatusReturned
	}

	if dueDate.Before(now) {
		return StatusOverdue
	}

	return StatusIssued
}

// DeriveFineCents computes the fine for an issue record as a pure function of
// (due date, return date, now): FinePerDayCents per calendar day (UTC) between
// the due date and the return date (or now, while the book is still out). Days
// are counted by date, not by elapsed hours, so a book due at 23:00 and
// returned at 01:00 the next day accrues one day. Like the status, the fine is
// derived at read time and never persisted.
func DeriveFineCents(dueDate time.Time, returnDate *time.Time, now time.Time) int64 {
	end := now
	if returnDate != nil {
		end = *returnDate
	}

	daysOverdue := int64(startOfDay(end).Sub(startOfDay(dueDate)) / (24 * time.Hour))
	if daysOverdue <= 0 {
		return 0
	}

	return daysOverdue * FinePerDayCents
}

func startOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DueDateFor computes the due date for a new issue: the caller-supplied date if
// one is given, otherwise the issue date plus DefaultLoanPeriod. An explicit
// due date is honored even when it lies in the past (migrated paper records,
// librarian corrections); such a record is simply overdue from the start.
func DueDateFor(issueDate time.Time, requested *time.Time) time.Time {
	if requested == nil {
		return issueDate.Add(DefaultLoanPeriod)
	}

	return ToTimestamp(*requested)
}

// IssueDetails is the read-model shape consumed by the presentation layer:
// an issue record with its book and member embedded and the derived fields
// materialized for the moment the projection was taken.
type IssueDetails struct {
	Record    IssueRecord
	Book      Book
	Member    Member
	Status    Status
	FineCents int64
}
