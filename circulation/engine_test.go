package circulation_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
	"github.com/AntonStoeckl/library-circulation-go/testutil/fakes"
	"github.com/AntonStoeckl/library-circulation-go/testutil/helper"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type engineFixture struct {
	engine  circulation.CirculationEngine
	ledger  *fakes.InventoryLedger
	store   *fakes.IssueRecordStore
	members *fakes.MemberDirectory
	audit   *fakes.AuditLog
}

func givenEngine(t *testing.T, options ...circulation.EngineOption) engineFixture {
	t.Helper()

	ledger := fakes.NewInventoryLedger()
	store := fakes.NewIssueRecordStore()
	members := fakes.NewMemberDirectory()
	audit := fakes.NewAuditLog()

	options = append([]circulation.EngineOption{
		circulation.WithClock(func() time.Time { return fixedNow }),
		circulation.WithAuditLog(audit),
	}, options...)

	engine, err := circulation.NewCirculationEngine(ledger, store, members, options...)
	require.NoError(t, err)

	return engineFixture{engine: engine, ledger: ledger, store: store, members: members, audit: audit}
}

func givenBook(t *testing.T, f engineFixture, totalCopies int) circulation.Book {
	t.Helper()

	book, err := circulation.BuildBook(uuid.New(), "The Go Programming Language", "Donovan, Kernighan", "978-0134190440", totalCopies)
	require.NoError(t, err)
	f.ledger.AddBook(book)

	return book
}

func givenMember(t *testing.T, f engineFixture) circulation.Member {
	t.Helper()

	member, err := circulation.BuildMember(uuid.New(), "Ada Lovelace", "M-0001")
	require.NoError(t, err)
	f.members.AddMember(member)

	return member
}

func givenInactiveMember(t *testing.T, f engineFixture) circulation.Member {
	t.Helper()

	member, err := circulation.BuildMember(uuid.New(), "Grace Hopper", "M-0002")
	require.NoError(t, err)
	member.Active = false
	f.members.AddMember(member)

	return member
}

func Test_Issue_HappyPath(t *testing.T) {
	f := givenEngine(t)
	book := givenBook(t, f, 2)
	member := givenMember(t, f)

	record, err := f.engine.Issue(context.Background(), book.ID, member.ID, nil)

	require.NoError(t, err)
	assert.Equal(t, book.ID, record.BookID)
	assert.Equal(t, member.ID, record.MemberID)
	assert.Equal(t, circulation.ToTimestamp(fixedNow), record.IssueDate)
	assert.Equal(t, circulation.ToTimestamp(fixedNow).Add(circulation.DefaultLoanPeriod), record.DueDate)
	assert.True(t, record.IsOpen())

	assert.Equal(t, 1, f.ledger.AvailableCopies(book.ID), "one copy is now out on loan")
}

func Test_Issue_WithRequestedDueDate(t *testing.T) {
	f := givenEngine(t)
	book := givenBook(t, f, 1)
	member := givenMember(t, f)
	requested := fixedNow.Add(7 * 24 * time.Hour)

	record, err := f.engine.Issue(context.Background(), book.ID, member.ID, &requested)

	require.NoError(t, err)
	assert.Equal(t, circulation.ToTimestamp(requested), record.DueDate)
}

func Test_Issue_BackdatedDueDateIsImmediatelyOverdue(t *testing.T) {
	// The issue succeeds with a due date in the near past of "now plus a bit",
	// and the very next status read reports overdue with a fine accruing.
	f := givenEngine(t)
	book := givenBook(t, f, 1)
	member := givenMember(t, f)
	requested := fixedNow.Add(time.Hour)

	record, err := f.engine.Issue(context.Background(), book.ID, member.ID, &requested)
	require.NoError(t, err)

	later := fixedNow.Add(49 * time.Hour)
	assert.Equal(t, circulation.StatusOverdue, record.StatusAt(later))
	assert.Equal(t, circulation.FinePerDayCents*2, record.FineCentsAt(later))
}

func Test_Issue_DueDateYesterdayIsImmediatelyOverdue(t *testing.T) {
	// An explicit due date of yesterday is honored, not rejected; the record
	// reports overdue on the very next status read.
	f := givenEngine(t)
	book := givenBook(t, f, 1)
	member := givenMember(t, f)
	yesterday := fixedNow.Add(-24 * time.Hour)

	record, err := f.engine.Issue(context.Background(), book.ID, member.ID, &yesterday)

	require.NoError(t, err)
	assert.Equal(t, circulation.ToTimestamp(yesterday), record.DueDate)
	assert.Equal(t, circulation.StatusOverdue, record.StatusAt(fixedNow))
	assert.Equal(t, 0, f.ledger.AvailableCopies(book.ID))
}

func Test_Issue_UnknownBook(t *testing.T) {
	f := givenEngine(t)
	member := givenMember(t, f)

	_, err := f.engine.Issue(context.Background(), uuid.New(), member.ID, nil)

	assert.ErrorIs(t, err, circulation.ErrBookNotFound)
}

func Test_Issue_UnknownMember(t *testing.T) {
	f := givenEngine(t)
	book := givenBook(t, f, 1)

	_, err := f.engine.Issue(context.Background(), book.ID, uuid.New(), nil)

	assert.ErrorIs(t, err, circulation.ErrMemberNotFound)
	assert.Equal(t, 1, f.ledger.AvailableCopies(book.ID))
}

func Test_Issue_InactiveMemberIsRejectedBeforeReservation(t *testing.T) {
	f := givenEngine(t)
	book := givenBook(t, f, 1)
	member := givenInactiveMember(t, f)

	_, err := f.engine.Issue(context.Background(), book.ID, member.ID, nil)

	assert.ErrorIs(t, err, circulation.ErrMemberIneligible)
	assert.Equal(t, 1, f.ledger.AvailableCopies(book.ID), "an ineligible member must not consume inventory")
}

func Test_Issue_ExhaustedCopies(t *testing.T) {
	f := givenEngine(t)
	book := givenBook(t, f, 0)
	member := givenMember(t, f)

	_, err := f.engine.Issue(context.Background(), book.ID, member.ID, nil)

	assert.ErrorIs(t, err, circulation.ErrNoCopiesAvailable)
}

func Test_Issue_DuplicateOpenIssueIsRejected(t *testing.T) {
	f := givenEngine(t)
	book := givenBook(t, f, 3)
	member := givenMember(t, f)

	_, err := f.engine.Issue(context.Background(), book.ID, member.ID, nil)
	require.NoError(t, err)

	_, err = f.engine.Issue(context.Background(), book.ID, member.ID, nil)

	assert.ErrorIs(t, err, circulation.ErrDuplicateIssue)
	assert.Equal(t, 2, f.ledger.AvailableCopies(book.ID), "the rejected issue must not consume a second copy")
}

func Test_Issue_MaxOpenLoansPolicy(t *testing.T) {
	f := givenEngine(t, circulation.WithEligibilityPolicy(circulation.MaxOpenLoansPolicy(1)))
	first := givenBook(t, f, 1)
	second := givenBook(t, f, 1)
	member := givenMember(t, f)

	_, err := f.engine.Issue(context.Background(), first.ID, member.ID, nil)
	require.NoError(t, err)

	_, err = f.engine.Issue(context.Background(), second.ID, member.ID, nil)

	assert.ErrorIs(t, err, circulation.ErrMemberIneligible)
}

func Test_Issue_LastCopyUnderConcurrency(t *testing.T) {
	// Two members race for the last copy; exactly one wins and the loser sees
	// the no-copies conflict, never a second record.
	f := givenEngine(t)
	book := givenBook(t, f, 1)
	first := givenMember(t, f)

	second, err := circulation.BuildMember(uuid.New(), "Grace Hopper", "M-0002")
	require.NoError(t, err)
	f.members.AddMember(second)

	var wg sync.WaitGroup
	results := make([]error, 2)

	for i, memberID := range []uuid.UUID{first.ID, second.ID} {
		wg.Add(1)
		go func(slot int, id uuid.UUID) {
			defer wg.Done()
			_, results[slot] = f.engine.Issue(context.Background(), book.ID, id, nil)
		}(i, memberID)
	}
	wg.Wait()

	successes := 0
	for _, resultErr := range results {
		if resultErr == nil {
			successes++
		} else {
			assert.ErrorIs(t, resultErr, circulation.ErrNoCopiesAvailable)
		}
	}

	assert.Equal(t, 1, successes, "exactly one issue of the last copy may succeed")
	assert.Equal(t, 0, f.ledger.AvailableCopies(book.ID))
	assert.Equal(t, 1, f.store.OpenRecordCount())
}

func Test_Issue_CompensatesFailedRecordCreation(t *testing.T) {
	f := givenEngine(t)
	book := givenBook(t, f, 1)
	member := givenMember(t, f)

	storeFailure := errors.New("store is down")
	f.store.FailCreate = storeFailure

	_, err := f.engine.Issue(context.Background(), book.ID, member.ID, nil)

	assert.ErrorIs(t, err, storeFailure)
	assert.NotErrorIs(t, err, circulation.ErrLedgerInconsistent, "a compensated rollback is not an inconsistency")
	assert.Equal(t, 1, f.ledger.AvailableCopies(book.ID), "the reserved copy must be released again")
}

func Test_Issue_FailedCompensationIsFatal(t *testing.T) {
	f := givenEngine(t)
	book := givenBook(t, f, 1)
	member := givenMember(t, f)

	f.store.FailCreate = errors.New("store is down")
	f.ledger.FailRelease = errors.New("ledger is down too")

	_, err := f.engine.Issue(context.Background(), book.ID, member.ID, nil)

	assert.ErrorIs(t, err, circulation.ErrLedgerInconsistent)
	assert.Equal(t, circulation.ClassConsistency, circulation.Classify(err))
}

func Test_ReturnBook_HappyPath(t *testing.T) {
	f := givenEngine(t)
	book := givenBook(t, f, 1)
	member := givenMember(t, f)

	issued, err := f.engine.Issue(context.Background(), book.ID, member.ID, nil)
	require.NoError(t, err)
	require.Equal(t, 0, f.ledger.AvailableCopies(book.ID))

	returned, err := f.engine.ReturnBook(context.Background(), issued.ID)

	require.NoError(t, err)
	require.NotNil(t, returned.ReturnDate)
	assert.Equal(t, circulation.ToTimestamp(fixedNow), *returned.ReturnDate)
	assert.Equal(t, circulation.StatusReturned, returned.StatusAt(fixedNow))
	assert.Equal(t, 1, f.ledger.AvailableCopies(book.ID), "the copy is back on the shelf")
}

func Test_ReturnBook_ThenReissue(t *testing.T) {
	f := givenEngine(t)
	book := givenBook(t, f, 1)
	member := givenMember(t, f)

	issued, err := f.engine.Issue(context.Background(), book.ID, member.ID, nil)
	require.NoError(t, err)

	_, err = f.engine.ReturnBook(context.Background(), issued.ID)
	require.NoError(t, err)

	reissued, err := f.engine.Issue(context.Background(), book.ID, member.ID, nil)

	require.NoError(t, err, "a returned copy can be issued again, even to the same member")
	assert.NotEqual(t, issued.ID, reissued.ID, "re-issuing creates a fresh record")
}

func Test_ReturnBook_UnknownRecord(t *testing.T) {
	f := givenEngine(t)

	_, err := f.engine.ReturnBook(context.Background(), uuid.New())

	assert.ErrorIs(t, err, circulation.ErrIssueNotFound)
}

func Test_ReturnBook_DoubleReturnDoesNotDoubleCredit(t *testing.T) {
	f := givenEngine(t)
	book := givenBook(t, f, 1)
	member := givenMember(t, f)

	issued, err := f.engine.Issue(context.Background(), book.ID, member.ID, nil)
	require.NoError(t, err)

	_, err = f.engine.ReturnBook(context.Background(), issued.ID)
	require.NoError(t, err)

	_, err = f.engine.ReturnBook(context.Background(), issued.ID)

	assert.ErrorIs(t, err, circulation.ErrAlreadyReturned)
	assert.Equal(t, 1, f.ledger.AvailableCopies(book.ID), "available copies must never exceed total copies")
}

func Test_ReturnBook_CompensatesFailedRelease(t *testing.T) {
	f := givenEngine(t)
	book := givenBook(t, f, 1)
	member := givenMember(t, f)

	issued, err := f.engine.Issue(context.Background(), book.ID, member.ID, nil)
	require.NoError(t, err)

	ledgerFailure := errors.New("ledger is down")
	f.ledger.FailRelease = ledgerFailure

	_, err = f.engine.ReturnBook(context.Background(), issued.ID)

	assert.ErrorIs(t, err, ledgerFailure)
	assert.NotErrorIs(t, err, circulation.ErrLedgerInconsistent)

	record, getErr := f.store.Get(context.Background(), issued.ID)
	require.NoError(t, getErr)
	assert.True(t, record.IsOpen(), "the close must be compensated by reopening the record")
}

func Test_ReturnBook_FailedCompensationIsFatal(t *testing.T) {
	f := givenEngine(t)
	book := givenBook(t, f, 1)
	member := givenMember(t, f)

	issued, err := f.engine.Issue(context.Background(), book.ID, member.ID, nil)
	require.NoError(t, err)

	f.ledger.FailRelease = errors.New("ledger is down")
	f.store.FailReopen = errors.New("store is down too")

	_, err = f.engine.ReturnBook(context.Background(), issued.ID)

	assert.ErrorIs(t, err, circulation.ErrLedgerInconsistent)
}

func Test_AuditTrail_RecordsIssueAndReturn(t *testing.T) {
	f := givenEngine(t)
	book := givenBook(t, f, 1)
	member := givenMember(t, f)

	issued, err := f.engine.Issue(context.Background(), book.ID, member.ID, nil)
	require.NoError(t, err)

	_, err = f.engine.ReturnBook(context.Background(), issued.ID)
	require.NoError(t, err)

	entries := f.audit.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, circulation.BookCopyIssuedEventType, entries[0].EventType)
	assert.Equal(t, circulation.BookCopyReturnedEventType, entries[1].EventType)
	assert.Contains(t, string(entries[0].PayloadJSON), issued.ID.String())
}

func Test_Engine_LogsOutcomes(t *testing.T) {
	logSpy := helper.NewLogHandlerSpy(false)

	f := givenEngine(t, circulation.WithLogger(logSpy.Logger()))
	book := givenBook(t, f, 1)
	member := givenMember(t, f)

	issued, err := f.engine.Issue(context.Background(), book.ID, member.ID, nil)
	require.NoError(t, err)
	assert.True(t, logSpy.HasMessage("book copy issued"))

	_, err = f.engine.Issue(context.Background(), book.ID, member.ID, nil)
	require.Error(t, err)
	assert.True(t, logSpy.HasMessage("issue rejected"))

	_, err = f.engine.ReturnBook(context.Background(), issued.ID)
	require.NoError(t, err)
	assert.True(t, logSpy.HasMessage("book copy returned"))
}

func Test_Engine_LogsFailedCompensationAtErrorLevel(t *testing.T) {
	logSpy := helper.NewLogHandlerSpy(false)

	f := givenEngine(t, circulation.WithLogger(logSpy.Logger()))
	book := givenBook(t, f, 1)
	member := givenMember(t, f)

	f.store.FailCreate = errors.New("store is down")
	f.ledger.FailRelease = errors.New("ledger is down too")

	_, err := f.engine.Issue(context.Background(), book.ID, member.ID, nil)
	require.ErrorIs(t, err, circulation.ErrLedgerInconsistent)

	assert.Contains(t,
		logSpy.MessagesAtLevel(slog.LevelError),
		"compensating rollback failed, ledger and store are inconsistent")
}

func Test_Engine_RecordsOperationMetrics(t *testing.T) {
	metricsSpy := helper.NewMetricsCollectorSpy(true)

	f := givenEngine(t, circulation.WithMetrics(metricsSpy))
	book := givenBook(t, f, 1)
	member := givenMember(t, f)

	issued, err := f.engine.Issue(context.Background(), book.ID, member.ID, nil)
	require.NoError(t, err)

	_, err = f.engine.ReturnBook(context.Background(), issued.ID)
	require.NoError(t, err)

	_, err = f.engine.Issue(context.Background(), uuid.New(), member.ID, nil)
	require.ErrorIs(t, err, circulation.ErrBookNotFound)

	assert.Equal(t, 1, metricsSpy.CounterCount("circulation_issue_operations_total",
		map[string]string{"operation": "issue", "result": "success"}))
	assert.Equal(t, 1, metricsSpy.CounterCount("circulation_return_operations_total",
		map[string]string{"operation": "return", "result": "success"}))
	assert.Equal(t, 1, metricsSpy.CounterCount("circulation_issue_operations_total",
		map[string]string{"result": "not_found"}))

	durations := metricsSpy.GetDurationRecords()
	require.NotEmpty(t, durations)
	assert.Equal(t, "circulation_operation_duration_seconds", durations[0].Metric)
}

func Test_AuditTrail_FailuresNeverFailTheOperation(t *testing.T) {
	f := givenEngine(t)
	book := givenBook(t, f, 1)
	member := givenMember(t, f)

	f.audit.FailAppend = errors.New("audit sink unavailable")

	record, err := f.engine.Issue(context.Background(), book.ID, member.ID, nil)

	require.NoError(t, err, "the audit trail is best-effort")
	assert.True(t, record.IsOpen())
}
