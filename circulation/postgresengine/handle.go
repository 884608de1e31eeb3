package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
	"github.com/AntonStoeckl/library-circulation-go/circulation/postgresengine/internal/adapters"
)

// Default table names used when WithTableNames is not supplied.
const (
	DefaultBooksTableName   = "books"
	DefaultMembersTableName = "members"
	DefaultIssuesTableName  = "issue_records"
	DefaultAuditTableName   = "circulation_audit"
)

const (
	dialectPostgres = "postgres"

	logMsgBuildQueryFailed   = "failed to build query"
	logMsgDBQueryFailed      = "database query execution failed"
	logMsgDBExecFailed       = "database statement execution failed"
	logMsgCloseRowsFailed    = "failed to close database rows"
	logMsgScanRowFailed      = "failed to scan database row"
	logMsgRowsAffectedFailed = "failed to get rows affected count"
	logMsgSQLExecuted        = "executed sql for: "
	logMsgOperation          = "circulation store operation: "
	logAttrError             = "error"
	logAttrQuery             = "query"
	logAttrDurationMS        = "duration_ms"

	colID              = "id"
	colTitle           = "title"
	colAuthor          = "author"
	colISBN            = "isbn"
	colPublicationDate = "publication_date"
	colDescription     = "description"
	colTotalCopies     = "total_copies"
	colAvailableCopies = "available_copies"
	colCreatedAt       = "created_at"
	colUpdatedAt       = "updated_at"
	colName            = "name"
	colMemberCode      = "member_code"
	colEmail           = "email"
	colPhone           = "phone"
	colJoinedAt        = "joined_at"
	colActive          = "active"
	colBookID          = "book_id"
	colMemberID        = "member_id"
	colIssueDate       = "issue_date"
	colDueDate         = "due_date"
	colReturnDate      = "return_date"
	colEventType       = "event_type"
	colOccurredAt      = "occurred_at"
	colPayload         = "payload"
)

type (
	sqlQueryString    = string
	rowsAffectedInt64 = int64
	queryDuration     = time.Duration
)

// DBHandle bundles the database adapter, table names, clock, and observability
// collectors shared by all circulation store components. It is cheap to copy;
// the components (InventoryLedger, IssueRecordStore, MemberDirectory,
// QueryFacade, AuditLog) are thin views over one handle.
type DBHandle struct {
	db               adapters.DBAdapter
	booksTableName   string
	membersTableName string
	issuesTableName  string
	auditTableName   string
	clock            circulation.Clock
	logger           circulation.Logger
	contextualLogger circulation.ContextualLogger
	metricsCollector circulation.MetricsCollector
	tracingCollector circulation.TracingCollector
}

// Option defines a functional option for configuring a DBHandle.
type Option func(*DBHandle) error

// WithTableNames overrides the default table names (books, members,
// issue_records, circulation_audit).
func WithTableNames(books string, members string, issues string, audit string) Option {
	return func(h *DBHandle) error {
		if books == "" || members == "" || issues == "" || audit == "" {
			return circulation.ErrEmptyTableNameSupplied
		}

		h.booksTableName = books
		h.membersTableName = members
		h.issuesTableName = issues
		h.auditTableName = audit

		return nil
	}
}

// WithClock replaces the system clock used for stored timestamps.
func WithClock(clock circulation.Clock) Option {
	return func(h *DBHandle) error {
		h.clock = clock
		return nil
	}
}

// WithLogger sets the logger for all components sharing the handle.
// Debug level carries SQL queries with execution timing (development use),
// Info level carries operational messages (production-safe).
func WithLogger(logger circulation.Logger) Option {
	return func(h *DBHandle) error {
		h.logger = logger
		return nil
	}
}

// WithContextualLogger sets the context-aware logger for all components sharing
// the handle, enabling automatic trace correlation when tracing is configured.
func WithContextualLogger(logger circulation.ContextualLogger) Option {
	return func(h *DBHandle) error {
		h.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for all components sharing the handle.
func WithMetrics(collector circulation.MetricsCollector) Option {
	return func(h *DBHandle) error {
		h.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for all components sharing the handle.
func WithTracing(collector circulation.TracingCollector) Option {
	return func(h *DBHandle) error {
		h.tracingCollector = collector
		return nil
	}
}

// NewDBHandleFromPGXPool creates a new DBHandle using a pgx Pool with optional configuration.
func NewDBHandleFromPGXPool(pool *pgxpool.Pool, options ...Option) (DBHandle, error) {
	if pool == nil {
		return DBHandle{}, circulation.ErrNilDatabaseConnection
	}

	return newDBHandle(adapters.NewPGXAdapter(pool), options...)
}

// NewDBHandleFromPGXPoolAndReplica creates a new DBHandle using a primary pgx
// Pool and a read replica. Facade reads issued under eventual consistency are
// routed to the replica.
func NewDBHandleFromPGXPoolAndReplica(primary *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (DBHandle, error) {
	if primary == nil || replica == nil {
		return DBHandle{}, circulation.ErrNilDatabaseConnection
	}

	return newDBHandle(adapters.NewPGXAdapterWithReplica(primary, replica), options...)
}

// NewDBHandleFromSQLDB creates a new DBHandle using a sql.DB with optional configuration.
func NewDBHandleFromSQLDB(db *sql.DB, options ...Option) (DBHandle, error) {
	if db == nil {
		return DBHandle{}, circulation.ErrNilDatabaseConnection
	}

	return newDBHandle(adapters.NewSQLAdapter(db), options...)
}

// NewDBHandleFromSQLX creates a new DBHandle using a sqlx.DB with optional configuration.
func NewDBHandleFromSQLX(db *sqlx.DB, options ...Option) (DBHandle, error) {
	if db == nil {
		return DBHandle{}, circulation.ErrNilDatabaseConnection
	}

	return newDBHandle(adapters.NewSQLXAdapter(db), options...)
}

func newDBHandle(db adapters.DBAdapter, options ...Option) (DBHandle, error) {
	handle := DBHandle{
		db:               db,
		booksTableName:   DefaultBooksTableName,
		membersTableName: DefaultMembersTableName,
		issuesTableName:  DefaultIssuesTableName,
		auditTableName:   DefaultAuditTableName,
		clock:            circulation.SystemClock,
	}

	for _, option := range options {
		if err := option(&handle); err != nil {
			return DBHandle{}, err
		}
	}

	return handle, nil
}

// executeQuery executes the SQL query and returns rows with timing information.
func (h DBHandle) executeQuery(ctx context.Context, sqlQuery string, action string) (
	adapters.DBRows,
	queryDuration,
	error,
) {

	start := time.Now()
	rows, queryErr := h.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	h.logQueryWithDuration(sqlQuery, action, duration)

	if queryErr != nil {
		h.logError(ctx, logMsgDBQueryFailed, logAttrError, queryErr.Error(), logAttrQuery, sqlQuery)
		return nil, duration, errors.Join(circulation.ErrQueryingStoreFailed, queryErr)
	}

	return rows, duration, nil
}

// executeStatement executes the SQL statement and returns rows affected with timing information.
func (h DBHandle) executeStatement(ctx context.Context, sqlQuery string, action string) (
	rowsAffectedInt64,
	queryDuration,
	error,
) {

	start := time.Now()
	result, execErr := h.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	h.logQueryWithDuration(sqlQuery, action, duration)

	if execErr != nil {
		h.logError(ctx, logMsgDBExecFailed, logAttrError, execErr.Error(), logAttrQuery, sqlQuery)
		return 0, duration, errors.Join(circulation.ErrExecutingStatementFailed, execErr)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		h.logError(ctx, logMsgRowsAffectedFailed, logAttrError, rowsAffectedErr.Error())
		return 0, duration, errors.Join(circulation.ErrGettingRowsAffectedFailed, rowsAffectedErr)
	}

	return rowsAffected, duration, nil
}

// closeRows safely closes database rows and logs any errors.
func (h DBHandle) closeRows(rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		if h.logger != nil {
			h.logger.Warn(logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}
	}
}

// startSpan starts a tracing span if a tracing collector is configured.
func (h DBHandle) startSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, circulation.SpanContext) {
	if h.tracingCollector == nil {
		return ctx, nil
	}

	return h.tracingCollector.StartSpan(ctx, name, attrs)
}

// finishSpan finishes a tracing span with a status derived from the error.
func (h DBHandle) finishSpan(span circulation.SpanContext, err error) {
	if h.tracingCollector == nil || span == nil {
		return
	}

	status := "ok"
	attrs := map[string]string{}

	if err != nil {
		status = "error"
		attrs[logAttrError] = err.Error()
	}

	h.tracingCollector.FinishSpan(span, status, attrs)
}

// recordDuration records a duration metric if a metrics collector is configured.
func (h DBHandle) recordDuration(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if h.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := h.metricsCollector.(circulation.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	h.metricsCollector.RecordDuration(metric, duration, labels)
}

// logQueryWithDuration logs SQL queries with execution time at debug level if the logger is configured.
func (h DBHandle) logQueryWithDuration(sqlQuery string, action string, duration time.Duration) {
	if h.logger != nil {
		h.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, h.durationToMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level if a logger is configured.
func (h DBHandle) logOperation(ctx context.Context, action string, args ...any) {
	if h.contextualLogger != nil {
		h.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
		return
	}

	if h.logger != nil {
		h.logger.Info(logMsgOperation+action, args...)
	}
}

// logError logs failures at error level if a logger is configured.
func (h DBHandle) logError(ctx context.Context, msg string, args ...any) {
	if h.contextualLogger != nil {
		h.contextualLogger.ErrorContext(ctx, msg, args...)
		return
	}

	if h.logger != nil {
		h.logger.Error(msg, args...)
	}
}

// durationToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func (h DBHandle) durationToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
