package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
)

const (
	logActionListBooks     = "list books"
	logActionListMembers   = "list members"
	logActionListDetails   = "list issue details"
	logActionCountRows     = "count rows"
	logActionGetBookRead   = "get book read model"
	logActionGetMemberRead = "get member read model"
)

// QueryFacade serves the read side of the circulation API. All of its reads
// accept eventual consistency and are routed to a replica when the handle has
// one configured; writes never go through the facade.
type QueryFacade struct {
	h DBHandle
}

// NewQueryFacade creates a QueryFacade on the given handle.
func NewQueryFacade(handle DBHandle) QueryFacade {
	return QueryFacade{h: handle}
}

// ListBooks returns a page of the catalogue, optionally narrowed by a search
// term matched case-insensitively against title, author and ISBN. The second
// return value is the total number of matching rows before pagination.
func (f QueryFacade) ListBooks(ctx context.Context, search string, limit uint, offset uint) ([]circulation.Book, int, error) {
	ctx = circulation.WithEventualConsistency(ctx)

	where := bookSearchExpression(search)

	total, countErr := f.countRows(ctx, f.h.booksTableName, where)
	if countErr != nil {
		return nil, 0, countErr
	}

	stmt := goqu.Dialect(dialectPostgres).
		From(f.h.booksTableName).
		Select(bookColumns()...).
		Where(where).
		Order(goqu.I(colTitle).Asc()).
		Limit(limit).
		Offset(offset)

	books, listErr := f.queryBooks(ctx, stmt)
	if listErr != nil {
		return nil, 0, listErr
	}

	return books, total, nil
}

// AvailableBooks returns a page of books with at least one copy on the shelf.
func (f QueryFacade) AvailableBooks(ctx context.Context, search string, limit uint, offset uint) ([]circulation.Book, int, error) {
	ctx = circulation.WithEventualConsistency(ctx)

	where := goqu.And(
		bookSearchExpression(search),
		goqu.C(colAvailableCopies).Gt(0),
	)

	total, countErr := f.countRows(ctx, f.h.booksTableName, where)
	if countErr != nil {
		return nil, 0, countErr
	}

	stmt := goqu.Dialect(dialectPostgres).
		From(f.h.booksTableName).
		Select(bookColumns()...).
		Where(where).
		Order(goqu.I(colTitle).Asc()).
		Limit(limit).
		Offset(offset)

	books, listErr := f.queryBooks(ctx, stmt)
	if listErr != nil {
		return nil, 0, listErr
	}

	return books, total, nil
}

// GetBook reads a single book for display.
func (f QueryFacade) GetBook(ctx context.Context, bookID uuid.UUID) (circulation.Book, error) {
	ctx = circulation.WithEventualConsistency(ctx)

	stmt := goqu.Dialect(dialectPostgres).
		From(f.h.booksTableName).
		Select(bookColumns()...).
		Where(goqu.C(colID).Eq(bookID.String()))

	books, listErr := f.queryBooksWith(ctx, stmt, logActionGetBookRead)
	if listErr != nil {
		return circulation.Book{}, listErr
	}

	if len(books) == 0 {
		return circulation.Book{}, circulation.ErrBookNotFound
	}

	return books[0], nil
}

// ListMembers returns a page of members, optionally narrowed by a search term
// matched case-insensitively against name, member code and email.
func (f QueryFacade) ListMembers(ctx context.Context, search string, limit uint, offset uint) ([]circulation.Member, int, error) {
	ctx = circulation.WithEventualConsistency(ctx)

	where := memberSearchExpression(search)

	total, countErr := f.countRows(ctx, f.h.membersTableName, where)
	if countErr != nil {
		return nil, 0, countErr
	}

	stmt := goqu.Dialect(dialectPostgres).
		From(f.h.membersTableName).
		Select(memberColumns()...).
		Where(where).
		Order(goqu.I(colName).Asc()).
		Limit(limit).
		Offset(offset)

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		f.h.logError(ctx, logMsgBuildQueryFailed, logAttrError, toSQLErr.Error())
		return nil, 0, errors.Join(circulation.ErrBuildingQueryFailed, toSQLErr)
	}

	rows, _, queryErr := f.h.executeQuery(ctx, sqlQuery, logActionListMembers)
	if queryErr != nil {
		return nil, 0, queryErr
	}
	defer f.h.closeRows(rows)

	var members []circulation.Member

	for rows.Next() {
		member, scanErr := scanMember(rows)
		if scanErr != nil {
			f.h.logError(ctx, logMsgScanRowFailed, logAttrError, scanErr.Error())
			return nil, 0, scanErr
		}

		members = append(members, member)
	}

	return members, total, nil
}

// GetMember reads a single member for display.
func (f QueryFacade) GetMember(ctx context.Context, memberID uuid.UUID) (circulation.Member, error) {
	ctx = circulation.WithEventualConsistency(ctx)

	return NewMemberDirectory(f.h).GetMember(ctx, memberID)
}

// IssuesByStatus returns a page of issue records enriched with their book and
// member, each carrying the status and fine derived at the supplied time. An
// empty status filter returns records in every state.
func (f QueryFacade) IssuesByStatus(
	ctx context.Context,
	status circulation.Status,
	now time.Time,
	limit uint,
	offset uint,
) ([]circulation.IssueDetails, int, error) {

	ctx = circulation.WithEventualConsistency(ctx)

	return f.queryIssueDetails(ctx, statusExpression(status, now), now, limit, offset)
}

// MemberHistory returns a page of the member's issue records, open and closed,
// enriched the same way as IssuesByStatus. An unknown member yields
// circulation.ErrMemberNotFound rather than an empty page.
func (f QueryFacade) MemberHistory(
	ctx context.Context,
	memberID uuid.UUID,
	now time.Time,
	limit uint,
	offset uint,
) ([]circulation.IssueDetails, int, error) {

	ctx = circulation.WithEventualConsistency(ctx)

	if _, getErr := NewMemberDirectory(f.h).GetMember(ctx, memberID); getErr != nil {
		return nil, 0, getErr
	}

	where := goqu.T(f.h.issuesTableName).Col(colMemberID).Eq(memberID.String())

	return f.queryIssueDetails(ctx, where, now, limit, offset)
}

// queryIssueDetails runs the three-way join behind the enriched issue reads.
func (f QueryFacade) queryIssueDetails(
	ctx context.Context,
	where goqu.Expression,
	now time.Time,
	limit uint,
	offset uint,
) ([]circulation.IssueDetails, int, error) {

	issues := goqu.T(f.h.issuesTableName)
	books := goqu.T(f.h.booksTableName)
	members := goqu.T(f.h.membersTableName)

	countStmt := goqu.Dialect(dialectPostgres).
		From(issues).
		Select(goqu.COUNT(goqu.Star())).
		Where(where)

	total, countErr := f.runCount(ctx, countStmt)
	if countErr != nil {
		return nil, 0, countErr
	}

	stmt := goqu.Dialect(dialectPostgres).
		From(issues).
		Join(books, goqu.On(issues.Col(colBookID).Eq(books.Col(colID)))).
		Join(members, goqu.On(issues.Col(colMemberID).Eq(members.Col(colID)))).
		Select(issueDetailColumns(issues, books, members)...).
		Where(where).
		Order(issues.Col(colIssueDate).Desc()).
		Limit(limit).
		Offset(offset)

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		f.h.logError(ctx, logMsgBuildQueryFailed, logAttrError, toSQLErr.Error())
		return nil, 0, errors.Join(circulation.ErrBuildingQueryFailed, toSQLErr)
	}

	rows, _, queryErr := f.h.executeQuery(ctx, sqlQuery, logActionListDetails)
	if queryErr != nil {
		return nil, 0, queryErr
	}
	defer f.h.closeRows(rows)

	var details []circulation.IssueDetails

	for rows.Next() {
		detail, scanErr := scanIssueDetails(rows, now)
		if scanErr != nil {
			f.h.logError(ctx, logMsgScanRowFailed, logAttrError, scanErr.Error())
			return nil, 0, scanErr
		}

		details = append(details, detail)
	}

	return details, total, nil
}

// queryBooks executes a book select and scans every row.
func (f QueryFacade) queryBooks(ctx context.Context, stmt *goqu.SelectDataset) ([]circulation.Book, error) {
	return f.queryBooksWith(ctx, stmt, logActionListBooks)
}

func (f QueryFacade) queryBooksWith(ctx context.Context, stmt *goqu.SelectDataset, action string) ([]circulation.Book, error) {
	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		f.h.logError(ctx, logMsgBuildQueryFailed, logAttrError, toSQLErr.Error())
		return nil, errors.Join(circulation.ErrBuildingQueryFailed, toSQLErr)
	}

	rows, _, queryErr := f.h.executeQuery(ctx, sqlQuery, action)
	if queryErr != nil {
		return nil, queryErr
	}
	defer f.h.closeRows(rows)

	var result []circulation.Book

	for rows.Next() {
		book, scanErr := scanBook(rows)
		if scanErr != nil {
			f.h.logError(ctx, logMsgScanRowFailed, logAttrError, scanErr.Error())
			return nil, scanErr
		}

		result = append(result, book)
	}

	return result, nil
}

// countRows counts the rows of one table matching the where clause.
func (f QueryFacade) countRows(ctx context.Context, table string, where goqu.Expression) (int, error) {
	stmt := goqu.Dialect(dialectPostgres).
		From(table).
		Select(goqu.COUNT(goqu.Star())).
		Where(where)

	return f.runCount(ctx, stmt)
}

func (f QueryFacade) runCount(ctx context.Context, stmt *goqu.SelectDataset) (int, error) {
	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		f.h.logError(ctx, logMsgBuildQueryFailed, logAttrError, toSQLErr.Error())
		return 0, errors.Join(circulation.ErrBuildingQueryFailed, toSQLErr)
	}

	rows, _, queryErr := f.h.executeQuery(ctx, sqlQuery, logActionCountRows)
	if queryErr != nil {
		return 0, queryErr
	}
	defer f.h.closeRows(rows)

	var count int
	if rows.Next() {
		if scanErr := rows.Scan(&count); scanErr != nil {
			f.h.logError(ctx, logMsgScanRowFailed, logAttrError, scanErr.Error())
			return 0, errors.Join(circulation.ErrScanningDBRowFailed, scanErr)
		}
	}

	return count, nil
}

// bookSearchExpression matches a search term against title, author and ISBN.
func bookSearchExpression(search string) goqu.Expression {
	if search == "" {
		return goqu.L("true")
	}

	pattern := "%" + search + "%"

	return goqu.Or(
		goqu.C(colTitle).ILike(pattern),
		goqu.C(colAuthor).ILike(pattern),
		goqu.C(colISBN).ILike(pattern),
	)
}

// memberSearchExpression matches a search term against name, code and email.
func memberSearchExpression(search string) goqu.Expression {
	if search == "" {
		return goqu.L("true")
	}

	pattern := "%" + search + "%"

	return goqu.Or(
		goqu.C(colName).ILike(pattern),
		goqu.C(colMemberCode).ILike(pattern),
		goqu.C(colEmail).ILike(pattern),
	)
}

// issueDetailColumns is the fully qualified select list of the three-way join,
// in the order scanIssueDetails expects.
func issueDetailColumns(issues, books, members exp.IdentifierExpression) []any {
	return []any{
		issues.Col(colID), issues.Col(colBookID), issues.Col(colMemberID),
		issues.Col(colIssueDate), issues.Col(colDueDate), issues.Col(colReturnDate),
		books.Col(colTitle), books.Col(colAuthor), books.Col(colISBN),
		books.Col(colPublicationDate), books.Col(colDescription),
		books.Col(colTotalCopies), books.Col(colAvailableCopies),
		books.Col(colCreatedAt), books.Col(colUpdatedAt),
		members.Col(colName), members.Col(colMemberCode), members.Col(colEmail),
		members.Col(colPhone), members.Col(colJoinedAt), members.Col(colActive),
	}
}

// scanIssueDetails scans one joined row and derives status and fine at the
// supplied time.
func scanIssueDetails(row issueScanner, now time.Time) (circulation.IssueDetails, error) {
	var (
		id         string
		bookID     string
		memberID   string
		issueDate  time.Time
		dueDate    time.Time
		returnDate sql.NullTime

		title           string
		author          string
		isbn            string
		publicationDate sql.NullTime
		description     string
		totalCopies     int
		availableCopies int
		createdAt       time.Time
		updatedAt       time.Time

		name     string
		code     string
		email    string
		phone    string
		joinedAt time.Time
		active   bool
	)

	scanErr := row.Scan(
		&id, &bookID, &memberID, &issueDate, &dueDate, &returnDate,
		&title, &author, &isbn, &publicationDate, &description,
		&totalCopies, &availableCopies, &createdAt, &updatedAt,
		&name, &code, &email, &phone, &joinedAt, &active,
	)
	if scanErr != nil {
		return circulation.IssueDetails{}, errors.Join(circulation.ErrScanningDBRowFailed, scanErr)
	}

	record, buildErr := buildIssueRecord(id, bookID, memberID, issueDate, dueDate, returnDate)
	if buildErr != nil {
		return circulation.IssueDetails{}, buildErr
	}

	book := circulation.Book{
		ID:              record.BookID,
		Title:           title,
		Author:          author,
		ISBN:            isbn,
		Description:     description,
		TotalCopies:     totalCopies,
		AvailableCopies: availableCopies,
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}
	if publicationDate.Valid {
		published := publicationDate.Time
		book.PublicationDate = &published
	}

	member := circulation.Member{
		ID:       record.MemberID,
		Name:     name,
		Code:     code,
		Email:    email,
		Phone:    phone,
		JoinedAt: joinedAt,
		Active:   active,
	}

	return circulation.IssueDetails{
		Record:    record,
		Book:      book,
		Member:    member,
		Status:    record.StatusAt(now),
		FineCents: record.FineCentsAt(now),
	}, nil
}
