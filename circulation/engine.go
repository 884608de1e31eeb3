package circulation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	logMsgBookIssued               = "book copy issued"
	logMsgBookReturned             = "book copy returned"
	logMsgIssueRejected            = "issue rejected"
	logMsgReturnRejected           = "return rejected"
	logMsgCompensatingRelease      = "record creation failed after reservation, compensating release"
	logMsgCompensatingReopen       = "release failed after record close, compensating reopen"
	logMsgCompensationFailed       = "compensating rollback failed, ledger and store are inconsistent"
	logMsgAuditAppendFailed        = "failed to append audit entry"
	logAttrError                   = "error"
	logAttrBookID                  = "book_id"
	logAttrMemberID                = "member_id"
	logAttrIssueID                 = "issue_id"
	logAttrDueDate                 = "due_date"
	logAttrErrorClass              = "error_class"
	metricIssueOperations          = "circulation_issue_operations_total"
	metricReturnOperations         = "circulation_return_operations_total"
	metricOperationDuration        = "circulation_operation_duration_seconds"
	metricLabelOperation           = "operation"
	metricLabelResult              = "result"
	metricResultSuccess            = "success"
	operationIssue                 = "issue"
	operationReturn                = "return"
)

// InventoryLedger owns each book's total and available copy counts.
// Reserve and Release must be atomic with respect to concurrent callers on the
// same book: two concurrent reservations of a last remaining copy must resolve
// with exactly one success.
type InventoryLedger interface {
	Reserve(ctx context.Context, bookID uuid.UUID) error
	Release(ctx context.Context, bookID uuid.UUID) error
	GetBook(ctx context.Context, bookID uuid.UUID) (Book, error)
}

// IssueRecordStore owns the append-only set of circulation transactions.
// Close must reject a record whose return date is already set, and Reopen exists
// only as the engine's compensation path for a failed release.
type IssueRecordStore interface {
	Create(ctx context.Context, bookID uuid.UUID, memberID uuid.UUID, issueDate time.Time, dueDate time.Time) (IssueRecord, error)
	Close(ctx context.Context, issueID uuid.UUID, returnDate time.Time) error
	Reopen(ctx context.Context, issueID uuid.UUID) error
	Get(ctx context.Context, issueID uuid.UUID) (IssueRecord, error)
	CountOpenByMember(ctx context.Context, memberID uuid.UUID) (int, error)
	HasOpenIssue(ctx context.Context, bookID uuid.UUID, memberID uuid.UUID) (bool, error)
}

// MemberDirectory provides read access to members, owned by membership management.
type MemberDirectory interface {
	GetMember(ctx context.Context, memberID uuid.UUID) (Member, error)
}

// AuditLog appends entries to the circulation audit trail.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
}

// CirculationEngine orchestrates issue and return operations against the
// inventory ledger and the issue record store as one unit. It is the only
// writer of available copy counts and issue records.
//
// The engine holds no locks of its own: atomicity per book (and per record)
// comes from the ledger's and store's guarded single-statement mutations, and
// partial failures are compensated (reserve without record -> release; closed
// record without release -> reopen). A failed compensation surfaces as
// ErrLedgerInconsistent and is never masked.
type CirculationEngine struct {
	ledger           InventoryLedger
	store            IssueRecordStore
	members          MemberDirectory
	audit            AuditLog
	policy           EligibilityPolicy
	clock            Clock
	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
}

// EngineOption defines a functional option for configuring a CirculationEngine.
type EngineOption func(*CirculationEngine) error

// ErrNilEngineDependency is returned when a required engine dependency is nil.
var ErrNilEngineDependency = errors.New("engine dependency must not be nil")

// WithEligibilityPolicy replaces the default eligibility policy (active member,
// unlimited loans) with a stricter one, e.g. MaxOpenLoansPolicy.
func WithEligibilityPolicy(policy EligibilityPolicy) EngineOption {
	return func(e *CirculationEngine) error {
		if policy == nil {
			return ErrNilEngineDependency
		}

		e.policy = policy

		return nil
	}
}

// WithClock replaces the system clock, mainly for tests and backdating scenarios.
func WithClock(clock Clock) EngineOption {
	return func(e *CirculationEngine) error {
		if clock == nil {
			return ErrNilEngineDependency
		}

		e.clock = clock

		return nil
	}
}

// WithAuditLog enables the append-only audit trail for successful operations.
func WithAuditLog(audit AuditLog) EngineOption {
	return func(e *CirculationEngine) error {
		if audit == nil {
			return ErrNilEngineDependency
		}

		e.audit = audit

		return nil
	}
}

// WithLogger sets the logger for the engine.
func WithLogger(logger Logger) EngineOption {
	return func(e *CirculationEngine) error {
		e.logger = logger
		return nil
	}
}

// WithContextualLogger sets the context-aware logger for the engine.
func WithContextualLogger(logger ContextualLogger) EngineOption {
	return func(e *CirculationEngine) error {
		e.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the engine.
func WithMetrics(collector MetricsCollector) EngineOption {
	return func(e *CirculationEngine) error {
		e.metricsCollector = collector
		return nil
	}
}

// NewCirculationEngine creates a new CirculationEngine coordinating the given
// ledger, store, and member directory, with optional configuration.
func NewCirculationEngine(
	ledger InventoryLedger,
	store IssueRecordStore,
	members MemberDirectory,
	options ...EngineOption,
) (CirculationEngine, error) {

	if ledger == nil || store == nil || members == nil {
		return CirculationEngine{}, ErrNilEngineDependency
	}

	engine := CirculationEngine{
		ledger:  ledger,
		store:   store,
		members: members,
		policy:  ActiveMemberPolicy(),
		clock:   SystemClock,
	}

	for _, option := range options {
		if err := option(&engine); err != nil {
			return CirculationEngine{}, err
		}
	}

	return engine, nil
}

// Issue issues the book to the member and returns the new issue record.
//
// Eligibility is evaluated before the reservation, so no inventory mutation
// happens for ineligible members and no lock is held across the membership
// lookup. The reservation itself is the atomic step: once it succeeds, either
// the record is created or the reservation is rolled back with a compensating
// release. ErrNoCopiesAvailable is a user-facing rejection, not a bug.
func (e CirculationEngine) Issue(
	ctx context.Context,
	bookID uuid.UUID,
	memberID uuid.UUID,
	requestedDueDate *time.Time,
) (IssueRecord, error) {

	start := time.Now()
	now := ToTimestamp(e.clock())

	ctx = WithStrongConsistency(ctx)

	if err := e.checkEligibility(ctx, bookID, memberID); err != nil {
		e.logRejection(ctx, logMsgIssueRejected, err, logAttrBookID, bookID.String(), logAttrMemberID, memberID.String())
		e.recordOperation(ctx, operationIssue, metricIssueOperations, start, err)

		return IssueRecord{}, err
	}

	dueDate := DueDateFor(now, requestedDueDate)

	if reserveErr := e.ledger.Reserve(ctx, bookID); reserveErr != nil {
		e.logRejection(ctx, logMsgIssueRejected, reserveErr, logAttrBookID, bookID.String(), logAttrMemberID, memberID.String())
		e.recordOperation(ctx, operationIssue, metricIssueOperations, start, reserveErr)

		return IssueRecord{}, reserveErr
	}

	record, createErr := e.store.Create(ctx, bookID, memberID, now, dueDate)
	if createErr != nil {
		compensationErr := e.compensateFailedCreate(ctx, bookID, createErr)
		e.recordOperation(ctx, operationIssue, metricIssueOperations, start, compensationErr)

		return IssueRecord{}, compensationErr
	}

	e.appendAudit(ctx, BuildBookCopyIssuedEntry, record)
	e.logOperation(ctx, logMsgBookIssued,
		logAttrIssueID, record.ID.String(),
		logAttrBookID, bookID.String(),
		logAttrMemberID, memberID.String(),
		logAttrDueDate, dueDate.Format(time.RFC3339),
	)
	e.recordOperation(ctx, operationIssue, metricIssueOperations, start, nil)

	return record, nil
}

// ReturnBook closes the issue record and releases its book's copy back into
// inventory, returning the closed record.
//
// A second return of the same record fails with ErrAlreadyReturned and does not
// double-credit inventory (the close is the guarded step and happens first).
// If the release then fails, the close is compensated by reopening the record;
// an over-release with a successful compensation surfaces as ErrOverRelease,
// a failed compensation as ErrLedgerInconsistent.
func (e CirculationEngine) ReturnBook(ctx context.Context, issueID uuid.UUID) (IssueRecord, error) {
	start := time.Now()
	now := ToTimestamp(e.clock())

	ctx = WithStrongConsistency(ctx)

	record, getErr := e.store.Get(ctx, issueID)
	if getErr != nil {
		e.recordOperation(ctx, operationReturn, metricReturnOperations, start, getErr)
		return IssueRecord{}, getErr
	}

	if closeErr := e.store.Close(ctx, issueID, now); closeErr != nil {
		e.logRejection(ctx, logMsgReturnRejected, closeErr, logAttrIssueID, issueID.String())
		e.recordOperation(ctx, operationReturn, metricReturnOperations, start, closeErr)

		return IssueRecord{}, closeErr
	}

	if releaseErr := e.ledger.Release(ctx, record.BookID); releaseErr != nil {
		compensationErr := e.compensateFailedRelease(ctx, issueID, record.BookID, releaseErr)
		e.recordOperation(ctx, operationReturn, metricReturnOperations, start, compensationErr)

		return IssueRecord{}, compensationErr
	}

	record.ReturnDate = &now

	e.appendAudit(ctx, BuildBookCopyReturnedEntry, record)
	e.logOperation(ctx, logMsgBookReturned,
		logAttrIssueID, record.ID.String(),
		logAttrBookID, record.BookID.String(),
		logAttrMemberID, record.MemberID.String(),
	)
	e.recordOperation(ctx, operationReturn, metricReturnOperations, start, nil)

	return record, nil
}

// checkEligibility validates the member and the eligibility policy and rejects
// a duplicate open issue of the same book to the same member.
func (e CirculationEngine) checkEligibility(ctx context.Context, bookID uuid.UUID, memberID uuid.UUID) error {
	member, memberErr := e.members.GetMember(ctx, memberID)
	if memberErr != nil {
		return memberErr
	}

	openLoans, countErr := e.store.CountOpenByMember(ctx, memberID)
	if countErr != nil {
		return countErr
	}

	if policyErr := e.policy.CheckEligibility(MemberLoanSummary{Member: member, OpenLoans: openLoans}); policyErr != nil {
		return policyErr
	}

	hasOpenIssue, hasOpenErr := e.store.HasOpenIssue(ctx, bookID, memberID)
	if hasOpenErr != nil {
		return hasOpenErr
	}

	if hasOpenIssue {
		return ErrDuplicateIssue
	}

	return nil
}

// compensateFailedCreate rolls back a reservation whose record creation failed.
// No copy may be "lost" to a failed issue: if the compensating release fails as
// well, the ledger and the store disagree and that is fatal.
func (e CirculationEngine) compensateFailedCreate(ctx context.Context, bookID uuid.UUID, createErr error) error {
	e.logWarn(ctx, logMsgCompensatingRelease, logAttrBookID, bookID.String(), logAttrError, createErr.Error())

	if releaseErr := e.ledger.Release(ctx, bookID); releaseErr != nil {
		e.logError(ctx, logMsgCompensationFailed, logAttrBookID, bookID.String(), logAttrError, releaseErr.Error())
		return errors.Join(ErrLedgerInconsistent, createErr, releaseErr)
	}

	return createErr
}

// compensateFailedRelease reopens a record whose release failed, so the close
// is not left half-applied.
func (e CirculationEngine) compensateFailedRelease(ctx context.Context, issueID uuid.UUID, bookID uuid.UUID, releaseErr error) error {
	e.logWarn(ctx, logMsgCompensatingReopen, logAttrIssueID, issueID.String(), logAttrBookID, bookID.String(), logAttrError, releaseErr.Error())

	if reopenErr := e.store.Reopen(ctx, issueID); reopenErr != nil {
		e.logError(ctx, logMsgCompensationFailed, logAttrIssueID, issueID.String(), logAttrError, reopenErr.Error())
		return errors.Join(ErrLedgerInconsistent, releaseErr, reopenErr)
	}

	return releaseErr
}

// appendAudit appends an audit entry best-effort: audit failures are logged
// as warnings and never turn a committed operation into an error.
func (e CirculationEngine) appendAudit(
	ctx context.Context,
	build func(record IssueRecord) (AuditEntry, error),
	record IssueRecord,
) {

	if e.audit == nil {
		return
	}

	entry, buildErr := build(record)
	if buildErr != nil {
		e.logWarn(ctx, logMsgAuditAppendFailed, logAttrIssueID, record.ID.String(), logAttrError, buildErr.Error())
		return
	}

	if appendErr := e.audit.AppendAudit(ctx, entry); appendErr != nil {
		e.logWarn(ctx, logMsgAuditAppendFailed, logAttrIssueID, record.ID.String(), logAttrError, appendErr.Error())
	}
}

func (e CirculationEngine) logOperation(ctx context.Context, msg string, args ...any) {
	if e.contextualLogger != nil {
		e.contextualLogger.InfoContext(ctx, msg, args...)
		return
	}

	if e.logger != nil {
		e.logger.Info(msg, args...)
	}
}

func (e CirculationEngine) logRejection(ctx context.Context, msg string, err error, args ...any) {
	args = append(args, logAttrError, err.Error(), logAttrErrorClass, Classify(err).String())

	if e.contextualLogger != nil {
		e.contextualLogger.InfoContext(ctx, msg, args...)
		return
	}

	if e.logger != nil {
		e.logger.Info(msg, args...)
	}
}

func (e CirculationEngine) logWarn(ctx context.Context, msg string, args ...any) {
	if e.contextualLogger != nil {
		e.contextualLogger.WarnContext(ctx, msg, args...)
		return
	}

	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}

func (e CirculationEngine) logError(ctx context.Context, msg string, args ...any) {
	if e.contextualLogger != nil {
		e.contextualLogger.ErrorContext(ctx, msg, args...)
		return
	}

	if e.logger != nil {
		e.logger.Error(msg, args...)
	}
}

// recordOperation records duration and outcome metrics for one engine operation.
func (e CirculationEngine) recordOperation(ctx context.Context, operation string, counterMetric string, start time.Time, err error) {
	if e.metricsCollector == nil {
		return
	}

	result := metricResultSuccess
	if err != nil {
		result = Classify(err).String()
	}

	labels := map[string]string{
		metricLabelOperation: operation,
		metricLabelResult:    result,
	}

	if contextualCollector, ok := e.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, counterMetric, labels)
		contextualCollector.RecordDurationContext(ctx, metricOperationDuration, time.Since(start), labels)

		return
	}

	e.metricsCollector.IncrementCounter(counterMetric, labels)
	e.metricsCollector.RecordDuration(metricOperationDuration, time.Since(start), labels)
}
