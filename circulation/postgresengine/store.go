package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"iter"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
)

const (
	logActionCreateIssue  = "create issue record"
	logActionCloseIssue   = "close issue record"
	logActionReopenIssue  = "reopen issue record"
	logActionGetIssue     = "get issue record"
	logActionListIssues   = "list issue records"
	logActionCountIssues  = "count open issue records"
	logMsgIssueCreated    = "issue record created"
	logMsgIssueClosed     = "issue record closed"
	logMsgIssueReopened   = "issue record reopened"
	logMsgCloseConflict   = "close rejected, record already returned"
	logAttrIssueID        = "issue_id"
	logAttrMemberID       = "member_id"
	logAttrStatus         = "status"

	metricStoreOperationDuration = "circulation_store_operation_duration_seconds"

	spanStoreCreate = "issue_record_store.create"
	spanStoreClose  = "issue_record_store.close"
)

// IssueRecordStore owns the append-only set of circulation transactions.
// Records are created on issue and closed on return; nothing is ever deleted,
// so the full audit trail of past loans is preserved.
//
// Close is a guarded UPDATE on "return_date IS NULL": a second return attempt
// affects zero rows and is rejected with circulation.ErrAlreadyReturned instead
// of being silently accepted.
type IssueRecordStore struct {
	h DBHandle
}

// NewIssueRecordStore creates an IssueRecordStore on the given handle.
func NewIssueRecordStore(handle DBHandle) IssueRecordStore {
	return IssueRecordStore{h: handle}
}

// Create appends a new open issue record and returns it. At most one open
// record may exist per (book, member): a concurrent duplicate insert violates
// the unique open-issue index and fails with circulation.ErrDuplicateIssue.
func (s IssueRecordStore) Create(
	ctx context.Context,
	bookID uuid.UUID,
	memberID uuid.UUID,
	issueDate time.Time,
	dueDate time.Time,
) (circulation.IssueRecord, error) {

	ctx, span := s.h.startSpan(ctx, spanStoreCreate, map[string]string{logAttrBookID: bookID.String()})

	record := circulation.IssueRecord{
		ID:        uuid.New(),
		BookID:    bookID,
		MemberID:  memberID,
		IssueDate: circulation.ToTimestamp(issueDate),
		DueDate:   circulation.ToTimestamp(dueDate),
	}

	stmt := goqu.Dialect(dialectPostgres).
		Insert(s.h.issuesTableName).
		Rows(goqu.Record{
			colID:        record.ID.String(),
			colBookID:    record.BookID.String(),
			colMemberID:  record.MemberID.String(),
			colIssueDate: goqu.V(record.IssueDate),
			colDueDate:   goqu.V(record.DueDate),
		})

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		s.h.logError(ctx, logMsgBuildQueryFailed, logAttrError, toSQLErr.Error())
		s.h.finishSpan(span, toSQLErr)

		return circulation.IssueRecord{}, errors.Join(circulation.ErrBuildingQueryFailed, toSQLErr)
	}

	_, duration, execErr := s.h.executeStatement(ctx, sqlQuery, logActionCreateIssue)
	s.h.finishSpan(span, execErr)

	if execErr != nil {
		if isUniqueViolation(execErr) {
			return circulation.IssueRecord{}, circulation.ErrDuplicateIssue
		}

		return circulation.IssueRecord{}, execErr
	}

	s.h.recordDuration(ctx, metricStoreOperationDuration, duration, map[string]string{metricLabelAction: logActionCreateIssue})
	s.h.logOperation(ctx, logMsgIssueCreated, logAttrIssueID, record.ID.String(), logAttrBookID, bookID.String(), logAttrMemberID, memberID.String())

	return record, nil
}

// Close sets the record's return date. A record whose return date is already
// set fails with circulation.ErrAlreadyReturned (idempotency guard), an absent
// record with circulation.ErrIssueNotFound.
func (s IssueRecordStore) Close(ctx context.Context, issueID uuid.UUID, returnDate time.Time) error {
	ctx, span := s.h.startSpan(ctx, spanStoreClose, map[string]string{logAttrIssueID: issueID.String()})

	stmt := goqu.Dialect(dialectPostgres).
		Update(s.h.issuesTableName).
		Set(goqu.Record{colReturnDate: goqu.V(circulation.ToTimestamp(returnDate))}).
		Where(
			goqu.C(colID).Eq(issueID.String()),
			goqu.C(colReturnDate).IsNull(),
		)

	err := s.executeGuardedUpdate(ctx, stmt, logActionCloseIssue, issueID, circulation.ErrAlreadyReturned)
	s.h.finishSpan(span, err)

	if err == nil {
		s.h.logOperation(ctx, logMsgIssueClosed, logAttrIssueID, issueID.String())
	} else if errors.Is(err, circulation.ErrAlreadyReturned) {
		s.h.logOperation(ctx, logMsgCloseConflict, logAttrIssueID, issueID.String())
	}

	return err
}

// Reopen clears the record's return date. It exists only as the engine's
// compensation path for a release that failed after a successful close.
func (s IssueRecordStore) Reopen(ctx context.Context, issueID uuid.UUID) error {
	stmt := goqu.Dialect(dialectPostgres).
		Update(s.h.issuesTableName).
		Set(goqu.Record{colReturnDate: nil}).
		Where(
			goqu.C(colID).Eq(issueID.String()),
			goqu.C(colReturnDate).IsNotNull(),
		)

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		s.h.logError(ctx, logMsgBuildQueryFailed, logAttrError, toSQLErr.Error())
		return errors.Join(circulation.ErrBuildingQueryFailed, toSQLErr)
	}

	rowsAffected, _, execErr := s.h.executeStatement(ctx, sqlQuery, logActionReopenIssue)
	if execErr != nil {
		return execErr
	}

	if rowsAffected == 0 {
		record, getErr := s.Get(ctx, issueID)
		if getErr != nil {
			return getErr
		}

		if record.IsOpen() {
			return nil // already open, nothing to compensate
		}

		return circulation.ErrIssueNotFound
	}

	s.h.logOperation(ctx, logMsgIssueReopened, logAttrIssueID, issueID.String())

	return nil
}

// Get reads a single issue record.
func (s IssueRecordStore) Get(ctx context.Context, issueID uuid.UUID) (circulation.IssueRecord, error) {
	stmt := goqu.Dialect(dialectPostgres).
		From(s.h.issuesTableName).
		Select(issueColumns()...).
		Where(goqu.C(colID).Eq(issueID.String()))

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		s.h.logError(ctx, logMsgBuildQueryFailed, logAttrError, toSQLErr.Error())
		return circulation.IssueRecord{}, errors.Join(circulation.ErrBuildingQueryFailed, toSQLErr)
	}

	rows, _, queryErr := s.h.executeQuery(ctx, sqlQuery, logActionGetIssue)
	if queryErr != nil {
		return circulation.IssueRecord{}, queryErr
	}
	defer s.h.closeRows(rows)

	if !rows.Next() {
		return circulation.IssueRecord{}, circulation.ErrIssueNotFound
	}

	record, scanErr := scanIssueRecord(rows)
	if scanErr != nil {
		s.h.logError(ctx, logMsgScanRowFailed, logAttrError, scanErr.Error())
		return circulation.IssueRecord{}, scanErr
	}

	return record, nil
}

// ListByStatus returns a lazy, restartable sequence of issue records matching
// the status filter, ordered by issue date descending (most recent first).
// The query is executed anew on every range over the sequence; iteration stops
// at the first error, which is yielded with a zero record.
func (s IssueRecordStore) ListByStatus(
	ctx context.Context,
	status circulation.Status,
	now time.Time,
) iter.Seq2[circulation.IssueRecord, error] {

	return func(yield func(circulation.IssueRecord, error) bool) {
		stmt := goqu.Dialect(dialectPostgres).
			From(s.h.issuesTableName).
			Select(issueColumns()...).
			Where(statusExpression(status, now)).
			Order(goqu.I(colIssueDate).Desc())

		sqlQuery, _, toSQLErr := stmt.ToSQL()
		if toSQLErr != nil {
			s.h.logError(ctx, logMsgBuildQueryFailed, logAttrError, toSQLErr.Error())
			yield(circulation.IssueRecord{}, errors.Join(circulation.ErrBuildingQueryFailed, toSQLErr))

			return
		}

		rows, _, queryErr := s.h.executeQuery(ctx, sqlQuery, logActionListIssues)
		if queryErr != nil {
			yield(circulation.IssueRecord{}, queryErr)
			return
		}
		defer s.h.closeRows(rows)

		for rows.Next() {
			record, scanErr := scanIssueRecord(rows)
			if scanErr != nil {
				s.h.logError(ctx, logMsgScanRowFailed, logAttrError, scanErr.Error())
				yield(circulation.IssueRecord{}, scanErr)

				return
			}

			if !yield(record, nil) {
				return
			}
		}
	}
}

// CountOpenByMember returns the number of loans the member currently has open.
func (s IssueRecordStore) CountOpenByMember(ctx context.Context, memberID uuid.UUID) (int, error) {
	stmt := goqu.Dialect(dialectPostgres).
		From(s.h.issuesTableName).
		Select(goqu.COUNT(goqu.Star())).
		Where(
			goqu.C(colMemberID).Eq(memberID.String()),
			goqu.C(colReturnDate).IsNull(),
		)

	return s.queryCount(ctx, stmt)
}

// HasOpenIssue reports whether the member currently holds an open issue for the book.
func (s IssueRecordStore) HasOpenIssue(ctx context.Context, bookID uuid.UUID, memberID uuid.UUID) (bool, error) {
	stmt := goqu.Dialect(dialectPostgres).
		From(s.h.issuesTableName).
		Select(goqu.COUNT(goqu.Star())).
		Where(
			goqu.C(colBookID).Eq(bookID.String()),
			goqu.C(colMemberID).Eq(memberID.String()),
			goqu.C(colReturnDate).IsNull(),
		)

	count, countErr := s.queryCount(ctx, stmt)
	if countErr != nil {
		return false, countErr
	}

	return count > 0, nil
}

// executeGuardedUpdate executes a guarded UPDATE and disambiguates an
// affected-rows count of zero into not-found or the supplied conflict error.
func (s IssueRecordStore) executeGuardedUpdate(
	ctx context.Context,
	stmt *goqu.UpdateDataset,
	action string,
	issueID uuid.UUID,
	conflictErr error,
) error {

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		s.h.logError(ctx, logMsgBuildQueryFailed, logAttrError, toSQLErr.Error())
		return errors.Join(circulation.ErrBuildingQueryFailed, toSQLErr)
	}

	rowsAffected, duration, execErr := s.h.executeStatement(ctx, sqlQuery, action)
	if execErr != nil {
		return execErr
	}

	s.h.recordDuration(ctx, metricStoreOperationDuration, duration, map[string]string{metricLabelAction: action})

	if rowsAffected == 0 {
		if _, getErr := s.Get(ctx, issueID); getErr != nil {
			return getErr
		}

		return conflictErr
	}

	return nil
}

// queryCount executes a COUNT(*) select and scans the single result row.
func (s IssueRecordStore) queryCount(ctx context.Context, stmt *goqu.SelectDataset) (int, error) {
	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		s.h.logError(ctx, logMsgBuildQueryFailed, logAttrError, toSQLErr.Error())
		return 0, errors.Join(circulation.ErrBuildingQueryFailed, toSQLErr)
	}

	rows, _, queryErr := s.h.executeQuery(ctx, sqlQuery, logActionCountIssues)
	if queryErr != nil {
		return 0, queryErr
	}
	defer s.h.closeRows(rows)

	var count int
	if rows.Next() {
		if scanErr := rows.Scan(&count); scanErr != nil {
			s.h.logError(ctx, logMsgScanRowFailed, logAttrError, scanErr.Error())
			return 0, errors.Join(circulation.ErrScanningDBRowFailed, scanErr)
		}
	}

	return count, nil
}

// isUniqueViolation matches the unique-constraint violation message shared by
// the pgx, database/sql, and sqlx drivers (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}

// statusExpression translates a status filter into its where clause. The
// derivation mirrors circulation.DeriveStatus so SQL filtering and in-process
// derivation always agree.
func statusExpression(status circulation.Status, now time.Time) goqu.Expression {
	switch status {
	case circulation.StatusReturned:
		return goqu.C(colReturnDate).IsNotNull()

	case circulation.StatusOverdue:
		return goqu.And(
			goqu.C(colReturnDate).IsNull(),
			goqu.C(colDueDate).Lt(goqu.V(circulation.ToTimestamp(now))),
		)

	case circulation.StatusIssued:
		return goqu.And(
			goqu.C(colReturnDate).IsNull(),
			goqu.C(colDueDate).Gte(goqu.V(circulation.ToTimestamp(now))),
		)

	default:
		return goqu.L("true")
	}
}

// issueColumns returns the select list shared by every issue record read.
func issueColumns() []any {
	return []any{colID, colBookID, colMemberID, colIssueDate, colDueDate, colReturnDate}
}

// issueScanner abstracts the row over which an issue record is scanned.
type issueScanner interface {
	Scan(dest ...any) error
}

// scanIssueRecord scans one issue record row in the issueColumns order.
func scanIssueRecord(row issueScanner) (circulation.IssueRecord, error) {
	var (
		id         string
		bookID     string
		memberID   string
		issueDate  time.Time
		dueDate    time.Time
		returnDate sql.NullTime
	)

	scanErr := row.Scan(&id, &bookID, &memberID, &issueDate, &dueDate, &returnDate)
	if scanErr != nil {
		return circulation.IssueRecord{}, errors.Join(circulation.ErrScanningDBRowFailed, scanErr)
	}

	record, buildErr := buildIssueRecord(id, bookID, memberID, issueDate, dueDate, returnDate)
	if buildErr != nil {
		return circulation.IssueRecord{}, buildErr
	}

	return record, nil
}

// buildIssueRecord assembles an IssueRecord from scanned column values.
func buildIssueRecord(
	id string,
	bookID string,
	memberID string,
	issueDate time.Time,
	dueDate time.Time,
	returnDate sql.NullTime,
) (circulation.IssueRecord, error) {

	issueID, parseIDErr := uuid.Parse(id)
	if parseIDErr != nil {
		return circulation.IssueRecord{}, errors.Join(circulation.ErrScanningDBRowFailed, parseIDErr)
	}

	parsedBookID, parseBookErr := uuid.Parse(bookID)
	if parseBookErr != nil {
		return circulation.IssueRecord{}, errors.Join(circulation.ErrScanningDBRowFailed, parseBookErr)
	}

	parsedMemberID, parseMemberErr := uuid.Parse(memberID)
	if parseMemberErr != nil {
		return circulation.IssueRecord{}, errors.Join(circulation.ErrScanningDBRowFailed, parseMemberErr)
	}

	record := circulation.IssueRecord{
		ID:        issueID,
		BookID:    parsedBookID,
		MemberID:  parsedMemberID,
		IssueDate: issueDate,
		DueDate:   dueDate,
	}

	if returnDate.Valid {
		returned := returnDate.Time
		record.ReturnDate = &returned
	}

	return record, nil
}
