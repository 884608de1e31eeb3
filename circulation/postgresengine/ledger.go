package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
)

const (
	logActionReserve        = "reserve"
	logActionRelease        = "release"
	logActionAddBook        = "add book"
	logActionSetTotalCopies = "set total copies"
	logActionGetBook        = "get book"

	logMsgCopyReserved      = "copy reserved"
	logMsgCopyReleased      = "copy released"
	logMsgReserveConflict   = "reserve rejected, no copies available"
	logMsgReleaseConflict   = "release rejected, would exceed total copies"
	logAttrBookID           = "book_id"
	logAttrAvailableCopies  = "available_copies"
	logAttrTotalCopies      = "total_copies"

	metricLedgerOperationDuration = "circulation_ledger_operation_duration_seconds"
	metricLabelAction             = "action"

	spanLedgerReserve = "inventory_ledger.reserve"
	spanLedgerRelease = "inventory_ledger.release"
)

// InventoryLedger owns each book's total and available copy counts and is the
// single source of truth for "can this book be issued".
//
// Reserve and Release are single guarded UPDATE statements: row-level atomicity
// in Postgres guarantees that no two concurrent reservations can both succeed
// when only one copy remains. An affected-rows count of zero is disambiguated
// into a not-found or a conflict error with a follow-up read.
type InventoryLedger struct {
	h DBHandle
}

// NewInventoryLedger creates an InventoryLedger on the given handle.
func NewInventoryLedger(handle DBHandle) InventoryLedger {
	return InventoryLedger{h: handle}
}

// Reserve atomically decrements the book's available copies by one.
// It fails with circulation.ErrNoCopiesAvailable when no copy is left, and with
// circulation.ErrBookNotFound when the book does not exist.
func (l InventoryLedger) Reserve(ctx context.Context, bookID uuid.UUID) error {
	ctx, span := l.h.startSpan(ctx, spanLedgerReserve, map[string]string{logAttrBookID: bookID.String()})

	stmt := goqu.Dialect(dialectPostgres).
		Update(l.h.booksTableName).
		Set(goqu.Record{
			colAvailableCopies: goqu.L(colAvailableCopies + " - 1"),
			colUpdatedAt:       goqu.V(l.h.clock()),
		}).
		Where(
			goqu.C(colID).Eq(bookID.String()),
			goqu.C(colAvailableCopies).Gt(0),
		)

	err := l.executeGuardedUpdate(ctx, stmt, logActionReserve, bookID, circulation.ErrNoCopiesAvailable)
	l.h.finishSpan(span, err)

	if err == nil {
		l.h.logOperation(ctx, logMsgCopyReserved, logAttrBookID, bookID.String())
	} else if errors.Is(err, circulation.ErrNoCopiesAvailable) {
		l.h.logOperation(ctx, logMsgReserveConflict, logAttrBookID, bookID.String())
	}

	return err
}

// Release atomically increments the book's available copies by one.
// It fails with circulation.ErrOverRelease when the increment would exceed
// total copies, which signals a bug in the caller such as a double-return.
func (l InventoryLedger) Release(ctx context.Context, bookID uuid.UUID) error {
	ctx, span := l.h.startSpan(ctx, spanLedgerRelease, map[string]string{logAttrBookID: bookID.String()})

	stmt := goqu.Dialect(dialectPostgres).
		Update(l.h.booksTableName).
		Set(goqu.Record{
			colAvailableCopies: goqu.L(colAvailableCopies + " + 1"),
			colUpdatedAt:       goqu.V(l.h.clock()),
		}).
		Where(
			goqu.C(colID).Eq(bookID.String()),
			goqu.C(colAvailableCopies).Lt(goqu.C(colTotalCopies)),
		)

	err := l.executeGuardedUpdate(ctx, stmt, logActionRelease, bookID, circulation.ErrOverRelease)
	l.h.finishSpan(span, err)

	if err == nil {
		l.h.logOperation(ctx, logMsgCopyReleased, logAttrBookID, bookID.String())
	} else if errors.Is(err, circulation.ErrOverRelease) {
		l.h.logOperation(ctx, logMsgReleaseConflict, logAttrBookID, bookID.String())
	}

	return err
}

// AddBook registers a new book with all copies available. Books are owned by
// catalogue management; this is the reconciliation entry point it calls.
func (l InventoryLedger) AddBook(ctx context.Context, book circulation.Book) error {
	now := l.h.clock()

	record := goqu.Record{
		colID:              book.ID.String(),
		colTitle:           book.Title,
		colAuthor:          book.Author,
		colISBN:            book.ISBN,
		colDescription:     book.Description,
		colTotalCopies:     book.TotalCopies,
		colAvailableCopies: book.TotalCopies,
		colCreatedAt:       goqu.V(now),
		colUpdatedAt:       goqu.V(now),
	}

	if book.PublicationDate != nil {
		record[colPublicationDate] = goqu.V(*book.PublicationDate)
	}

	stmt := goqu.Dialect(dialectPostgres).
		Insert(l.h.booksTableName).
		Rows(record)

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		l.h.logError(ctx, logMsgBuildQueryFailed, logAttrError, toSQLErr.Error())
		return errors.Join(circulation.ErrBuildingQueryFailed, toSQLErr)
	}

	_, _, execErr := l.h.executeStatement(ctx, sqlQuery, logActionAddBook)

	return execErr
}

// SetTotalCopies reconciles a catalogue-managed change of the total copy count.
// The available count is adjusted by the same delta. Reducing the total below
// the number of currently issued copies fails with circulation.ErrCopiesStillIssued.
func (l InventoryLedger) SetTotalCopies(ctx context.Context, bookID uuid.UUID, totalCopies int) error {
	if totalCopies < 0 {
		return circulation.ErrNegativeTotalCopies
	}

	stmt := goqu.Dialect(dialectPostgres).
		Update(l.h.booksTableName).
		Set(goqu.Record{
			colTotalCopies:     totalCopies,
			colAvailableCopies: goqu.L(colAvailableCopies+" + ? - "+colTotalCopies, totalCopies),
			colUpdatedAt:       goqu.V(l.h.clock()),
		}).
		Where(
			goqu.C(colID).Eq(bookID.String()),
			goqu.L(colTotalCopies+" - "+colAvailableCopies).Lte(totalCopies),
		)

	return l.executeGuardedUpdate(ctx, stmt, logActionSetTotalCopies, bookID, circulation.ErrCopiesStillIssued)
}

// GetBook reads a single book from the primary database.
func (l InventoryLedger) GetBook(ctx context.Context, bookID uuid.UUID) (circulation.Book, error) {
	stmt := goqu.Dialect(dialectPostgres).
		From(l.h.booksTableName).
		Select(bookColumns()...).
		Where(goqu.C(colID).Eq(bookID.String()))

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		l.h.logError(ctx, logMsgBuildQueryFailed, logAttrError, toSQLErr.Error())
		return circulation.Book{}, errors.Join(circulation.ErrBuildingQueryFailed, toSQLErr)
	}

	rows, _, queryErr := l.h.executeQuery(ctx, sqlQuery, logActionGetBook)
	if queryErr != nil {
		return circulation.Book{}, queryErr
	}
	defer l.h.closeRows(rows)

	if !rows.Next() {
		return circulation.Book{}, circulation.ErrBookNotFound
	}

	book, scanErr := scanBook(rows)
	if scanErr != nil {
		l.h.logError(ctx, logMsgScanRowFailed, logAttrError, scanErr.Error())
		return circulation.Book{}, scanErr
	}

	return book, nil
}

// executeGuardedUpdate executes a guarded UPDATE and disambiguates an
// affected-rows count of zero into not-found or the supplied conflict error.
func (l InventoryLedger) executeGuardedUpdate(
	ctx context.Context,
	stmt *goqu.UpdateDataset,
	action string,
	bookID uuid.UUID,
	conflictErr error,
) error {

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		l.h.logError(ctx, logMsgBuildQueryFailed, logAttrError, toSQLErr.Error())
		return errors.Join(circulation.ErrBuildingQueryFailed, toSQLErr)
	}

	rowsAffected, duration, execErr := l.h.executeStatement(ctx, sqlQuery, action)
	if execErr != nil {
		return execErr
	}

	l.h.recordDuration(ctx, metricLedgerOperationDuration, duration, map[string]string{metricLabelAction: action})

	if rowsAffected == 0 {
		if _, getErr := l.GetBook(ctx, bookID); getErr != nil {
			return getErr
		}

		return conflictErr
	}

	return nil
}

// bookColumns returns the select list shared by every book read.
func bookColumns() []any {
	return []any{
		colID, colTitle, colAuthor, colISBN, colPublicationDate, colDescription,
		colTotalCopies, colAvailableCopies, colCreatedAt, colUpdatedAt,
	}
}

// bookScanner abstracts the row over which a book is scanned.
type bookScanner interface {
	Scan(dest ...any) error
}

// scanBook scans one book row in the bookColumns order.
func scanBook(row bookScanner) (circulation.Book, error) {
	var (
		id              string
		publicationDate sql.NullTime
		createdAt       time.Time
		updatedAt       time.Time
		book            circulation.Book
	)

	scanErr := row.Scan(
		&id, &book.Title, &book.Author, &book.ISBN, &publicationDate, &book.Description,
		&book.TotalCopies, &book.AvailableCopies, &createdAt, &updatedAt,
	)
	if scanErr != nil {
		return circulation.Book{}, errors.Join(circulation.ErrScanningDBRowFailed, scanErr)
	}

	bookID, parseErr := uuid.Parse(id)
	if parseErr != nil {
		return circulation.Book{}, errors.Join(circulation.ErrScanningDBRowFailed, parseErr)
	}

	book.ID = bookID
	book.CreatedAt = createdAt
	book.UpdatedAt = updatedAt

	if publicationDate.Valid {
		pubDate := publicationDate.Time
		book.PublicationDate = &pubDate
	}

	return book, nil
}
