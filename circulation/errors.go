package circulation

import (
	"errors"
)

// Lookup failures (404-equivalent at the boundary).
var (
	ErrBookNotFound   = errors.New("book not found")
	ErrMemberNotFound = errors.New("member not found")
	ErrIssueNotFound  = errors.New("issue record not found")
)

// Conflicts (409-equivalent, user-correctable).
var (
	ErrNoCopiesAvailable = errors.New("no copies available for this book")
	ErrAlreadyReturned   = errors.New("issue record was already returned")
	ErrOverRelease       = errors.New("releasing a copy would exceed total copies")
	ErrDuplicateIssue    = errors.New("member already has this book issued")
	ErrCopiesStillIssued = errors.New("total copies cannot be reduced below the currently issued count")
)

// Policy violations (422-equivalent).
var (
	ErrMemberIneligible = errors.New("member is not eligible to borrow")
)

// Validation failures (400-equivalent).
var (
	ErrEmptyBookTitle      = errors.New("empty book title supplied")
	ErrEmptyBookAuthor     = errors.New("empty book author supplied")
	ErrEmptyISBN           = errors.New("empty ISBN supplied")
	ErrNegativeTotalCopies = errors.New("total copies must not be negative")
	ErrEmptyMemberName     = errors.New("empty member name supplied")
	ErrEmptyMemberCode     = errors.New("empty member code supplied")
)

// ErrLedgerInconsistent signals that the ledger and the issue record store disagree
// after a compensating rollback failed. This is fatal: it must be logged and surfaced,
// never masked as a partial success.
var ErrLedgerInconsistent = errors.New("inventory ledger and issue record store are inconsistent")

// Construction errors for storage engines.
var (
	ErrEmptyTableNameSupplied = errors.New("empty table name supplied")
	ErrNilDatabaseConnection  = errors.New("database connection must not be nil")
)

// Infrastructure errors raised by storage engines, always joined with their cause.
var (
	ErrBuildingQueryFailed       = errors.New("building query failed")
	ErrQueryingStoreFailed       = errors.New("querying the circulation store failed")
	ErrExecutingStatementFailed  = errors.New("executing statement failed")
	ErrScanningDBRowFailed       = errors.New("scanning database row failed")
	ErrGettingRowsAffectedFailed = errors.New("getting rows affected count failed")
)

// ErrorClass groups domain errors the way the boundary needs to report them.
type ErrorClass int

const (
	// ClassInternal covers infrastructure failures and everything unclassified.
	ClassInternal ErrorClass = iota

	// ClassNotFound covers absent books, members, and issue records.
	ClassNotFound

	// ClassConflict covers user-correctable conflicts such as exhausted copies
	// and repeated returns.
	ClassConflict

	// ClassPolicyViolation covers eligibility policy rejections.
	ClassPolicyViolation

	// ClassValidation covers malformed or contradictory input.
	ClassValidation

	// ClassConsistency covers fatal ledger/store disagreement after a failed
	// compensating rollback.
	ClassConsistency
)

// Classify maps an error to its ErrorClass using errors.Is, so it works on
// joined and wrapped errors alike.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassInternal

	case errors.Is(err, ErrLedgerInconsistent):
		return ClassConsistency

	case errors.Is(err, ErrBookNotFound),
		errors.Is(err, ErrMemberNotFound),
		errors.Is(err, ErrIssueNotFound):

		return ClassNotFound

	case errors.Is(err, ErrNoCopiesAvailable),
		errors.Is(err, ErrAlreadyReturned),
		errors.Is(err, ErrOverRelease),
		errors.Is(err, ErrDuplicateIssue),
		errors.Is(err, ErrCopiesStillIssued):

		return ClassConflict

	case errors.Is(err, ErrMemberIneligible):
		return ClassPolicyViolation

	case errors.Is(err, ErrEmptyBookTitle),
		errors.Is(err, ErrEmptyBookAuthor),
		errors.Is(err, ErrEmptyISBN),
		errors.Is(err, ErrNegativeTotalCopies),
		errors.Is(err, ErrEmptyMemberName),
		errors.Is(err, ErrEmptyMemberCode):

		return ClassValidation

	default:
		return ClassInternal
	}
}

// String provides a string representation of ErrorClass for logging and metrics labels.
func (c ErrorClass) String() string {
	switch c {
	case ClassNotFound:
		return "not_found"
	case ClassConflict:
		return "conflict"
	case ClassPolicyViolation:
		return "policy_violation"
	case ClassValidation:
		return "validation"
	case ClassConsistency:
		return "consistency"
	case ClassInternal:
		return "internal"
	default:
		return "unknown"
	}
}
