package api

import (
	"errors"
	"net/http"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
)

// fieldErrors is the field-scoped error body. Errors that cannot be attributed
// to a single input field go under the non_field_errors key.
type fieldErrors map[string][]string

const nonFieldErrorsKey = "non_field_errors"

func nonFieldError(message string) fieldErrors {
	return fieldErrors{nonFieldErrorsKey: {message}}
}

func fieldError(field string, message string) fieldErrors {
	return fieldErrors{field: {message}}
}

// statusForError maps a domain error to its HTTP status code.
func statusForError(err error) int {
	switch circulation.Classify(err) {
	case circulation.ClassNotFound:
		return http.StatusNotFound
	case circulation.ClassConflict:
		return http.StatusConflict
	case circulation.ClassPolicyViolation:
		return http.StatusUnprocessableEntity
	case circulation.ClassValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// bodyForError maps a domain error to its field-scoped error body. Internal
// errors are never echoed to the client.
func bodyForError(err error) fieldErrors {
	switch {
	case errors.Is(err, circulation.ErrBookNotFound):
		return nonFieldError("Book not found")
	case errors.Is(err, circulation.ErrMemberNotFound):
		return nonFieldError("Member not found")
	case errors.Is(err, circulation.ErrIssueNotFound):
		return nonFieldError("Issue record not found")
	case errors.Is(err, circulation.ErrNoCopiesAvailable):
		return fieldError("book_id", "No copies of this book are currently available")
	case errors.Is(err, circulation.ErrDuplicateIssue):
		return nonFieldError("This member already has this book issued")
	case errors.Is(err, circulation.ErrAlreadyReturned):
		return nonFieldError("This book has already been returned")
	case errors.Is(err, circulation.ErrCopiesStillIssued):
		return fieldError("total_copies", "Cannot reduce below the number of copies currently issued")
	case errors.Is(err, circulation.ErrMemberIneligible):
		return fieldError("member_id", "This member is not eligible to borrow")
	case circulation.Classify(err) == circulation.ClassValidation:
		return nonFieldError(err.Error())
	default:
		return nonFieldError("Internal server error")
	}
}
