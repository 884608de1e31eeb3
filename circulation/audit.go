package circulation

import (
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// Audit event type identifiers.
const (
	BookCopyIssuedEventType   = "BookCopyIssued"
	BookCopyReturnedEventType = "BookCopyReturned"
)

// ErrBuildingAuditEntryFailed is returned when an audit payload cannot be serialized.
var ErrBuildingAuditEntryFailed = errors.New("building audit entry failed")

// AuditEntry is one row of the append-only circulation audit trail. The payload
// is the JSON-serialized snapshot of the issue record at the time of the
// transition. Audit entries are written best-effort after the state transition
// committed; they never influence business outcomes.
type AuditEntry struct {
	EventType   string
	OccurredAt  time.Time
	PayloadJSON []byte
}

type auditPayload struct {
	IssueID    string  `json:"issue_id"`
	BookID     string  `json:"book_id"`
	MemberID   string  `json:"member_id"`
	IssueDate  string  `json:"issue_date"`
	DueDate    string  `json:"due_date"`
	ReturnDate *string `json:"return_date,omitempty"`
}

// BuildBookCopyIssuedEntry creates the audit entry for a successful issue.
func BuildBookCopyIssuedEntry(record IssueRecord) (AuditEntry, error) {
	return buildAuditEntry(BookCopyIssuedEventType, record.IssueDate, record)
}

// BuildBookCopyReturnedEntry creates the audit entry for a successful return.
func BuildBookCopyReturnedEntry(record IssueRecord) (AuditEntry, error) {
	occurredAt := record.IssueDate
	if record.ReturnDate != nil {
		occurredAt = *record.ReturnDate
	}

	return buildAuditEntry(BookCopyReturnedEventType, occurredAt, record)
}

func buildAuditEntry(eventType string, occurredAt time.Time, record IssueRecord) (AuditEntry, error) {
	payload := auditPayload{
		IssueID:   record.ID.String(),
		BookID:    record.BookID.String(),
		MemberID:  record.MemberID.String(),
		IssueDate: record.IssueDate.Format(time.RFC3339Nano),
		DueDate:   record.DueDate.Format(time.RFC3339Nano),
	}

	if record.ReturnDate != nil {
		returnDate := record.ReturnDate.Format(time.RFC3339Nano)
		payload.ReturnDate = &returnDate
	}

	payloadJSON, marshalErr := jsoniter.ConfigFastest.Marshal(payload)
	if marshalErr != nil {
		return AuditEntry{}, errors.Join(ErrBuildingAuditEntryFailed, marshalErr)
	}

	return AuditEntry{
		EventType:   eventType,
		OccurredAt:  ToTimestamp(occurredAt),
		PayloadJSON: payloadJSON,
	}, nil
}
