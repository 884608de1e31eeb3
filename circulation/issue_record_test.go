package circulation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
)

func Test_DeriveStatus(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	returned := now.Add(-24 * time.Hour)

	tests := []struct {
		name       string
		dueDate    time.Time
		returnDate *time.Time
		expected   circulation.Status
	}{
		{
			name:     "open_record_before_due_date_is_issued",
			dueDate:  now.Add(48 * time.Hour),
			expected: circulation.StatusIssued,
		},
		{
			name:     "open_record_exactly_at_due_date_is_issued",
			dueDate:  now,
			expected: circulation.StatusIssued,
		},
		{
			name:     "open_record_past_due_date_is_overdue",
			dueDate:  now.Add(-time.Microsecond),
			expected: circulation.StatusOverdue,
		},
		{
			name:       "returned_record_is_returned",
			dueDate:    now.Add(48 * time.Hour),
			returnDate: &returned,
			expected:   circulation.StatusReturned,
		},
		{
			name:       "returned_record_past_due_date_is_still_returned",
			dueDate:    now.Add(-96 * time.Hour),
			returnDate: &returned,
			expected:   circulation.StatusReturned,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status := circulation.DeriveStatus(tc.dueDate, tc.returnDate, now)
			assert.Equal(t, tc.expected, status)
		})
	}
}

func Test_DeriveStatus_IsPureOverTime(t *testing.T) {
	// The same record flips from issued to overdue purely by moving "now",
	// without any stored state change.
	dueDate := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	beforeDue := dueDate.Add(-time.Hour)
	afterDue := dueDate.Add(time.Hour)

	assert.Equal(t, circulation.StatusIssued, circulation.DeriveStatus(dueDate, nil, beforeDue))
	assert.Equal(t, circulation.StatusOverdue, circulation.DeriveStatus(dueDate, nil, afterDue))
}

func Test_DeriveFineCents(t *testing.T) {
	// Fines count calendar days, not elapsed hours.
	dueDate := time.Date(2025, 6, 1, 23, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		returnDate *time.Time
		now        time.Time
		expected   int64
	}{
		{
			name:     "no_fine_before_due_date",
			now:      time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
			expected: 0,
		},
		{
			name:     "no_fine_late_by_hours_on_the_due_day_itself",
			now:      time.Date(2025, 6, 1, 23, 30, 0, 0, time.UTC),
			expected: 0,
		},
		{
			name:     "crossing_midnight_charges_one_day",
			now:      time.Date(2025, 6, 2, 1, 0, 0, 0, time.UTC),
			expected: 100,
		},
		{
			name:     "three_calendar_days_charge_three_days",
			now:      time.Date(2025, 6, 4, 1, 0, 0, 0, time.UTC),
			expected: 300,
		},
		{
			name:       "returned_record_freezes_the_fine",
			returnDate: timePtr(time.Date(2025, 6, 3, 8, 0, 0, 0, time.UTC)),
			now:        time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC),
			expected:   200,
		},
		{
			name:       "returned_on_time_never_accrues",
			returnDate: timePtr(time.Date(2025, 6, 1, 22, 0, 0, 0, time.UTC)),
			now:        time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC),
			expected:   0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fine := circulation.DeriveFineCents(dueDate, tc.returnDate, tc.now)
			assert.Equal(t, tc.expected, fine)
		})
	}
}

func Test_DueDateFor_DefaultsToLoanPeriod(t *testing.T) {
	issueDate := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	dueDate := circulation.DueDateFor(issueDate, nil)

	assert.Equal(t, issueDate.Add(circulation.DefaultLoanPeriod), dueDate)
}

func Test_DueDateFor_AcceptsRequestedDate(t *testing.T) {
	issueDate := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	requested := issueDate.Add(7 * 24 * time.Hour)

	dueDate := circulation.DueDateFor(issueDate, &requested)

	assert.Equal(t, circulation.ToTimestamp(requested), dueDate)
}

func Test_DueDateFor_HonorsBackdatedDate(t *testing.T) {
	// An explicit due date is taken as given even when it precedes the issue
	// date (migrated paper records); such a record is overdue from the start.
	issueDate := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	requested := issueDate.Add(-24 * time.Hour)

	dueDate := circulation.DueDateFor(issueDate, &requested)

	assert.Equal(t, circulation.ToTimestamp(requested), dueDate)
	assert.Equal(t, circulation.StatusOverdue, circulation.DeriveStatus(dueDate, nil, issueDate))
}

func Test_IssueRecord_IsOpen(t *testing.T) {
	record := circulation.IssueRecord{}
	assert.True(t, record.IsOpen())

	returned := time.Now()
	record.ReturnDate = &returned
	assert.False(t, record.IsOpen())
}

func timePtr(t time.Time) *time.Time {
	return &t
}
