package circulation_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
)

func Test_BuildBookCopyIssuedEntry(t *testing.T) {
	record := circulation.IssueRecord{
		ID:        uuid.New(),
		BookID:    uuid.New(),
		MemberID:  uuid.New(),
		IssueDate: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		DueDate:   time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}

	entry, err := circulation.BuildBookCopyIssuedEntry(record)

	require.NoError(t, err)
	assert.Equal(t, circulation.BookCopyIssuedEventType, entry.EventType)
	assert.Equal(t, record.IssueDate, entry.OccurredAt, "an issued entry occurs at the issue date")

	var payload map[string]any
	require.NoError(t, jsoniter.ConfigFastest.Unmarshal(entry.PayloadJSON, &payload))
	assert.Equal(t, record.ID.String(), payload["issue_id"])
	assert.Equal(t, record.BookID.String(), payload["book_id"])
	assert.Equal(t, record.MemberID.String(), payload["member_id"])
	assert.NotContains(t, payload, "return_date", "an open record serializes without a return date")
}

func Test_BuildBookCopyReturnedEntry(t *testing.T) {
	returnDate := time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC)
	record := circulation.IssueRecord{
		ID:         uuid.New(),
		BookID:     uuid.New(),
		MemberID:   uuid.New(),
		IssueDate:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		DueDate:    time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
		ReturnDate: &returnDate,
	}

	entry, err := circulation.BuildBookCopyReturnedEntry(record)

	require.NoError(t, err)
	assert.Equal(t, circulation.BookCopyReturnedEventType, entry.EventType)
	assert.Equal(t, returnDate, entry.OccurredAt, "a returned entry occurs at the return date")

	var payload map[string]any
	require.NoError(t, jsoniter.ConfigFastest.Unmarshal(entry.PayloadJSON, &payload))
	assert.Equal(t, returnDate.Format(time.RFC3339Nano), payload["return_date"])
}
