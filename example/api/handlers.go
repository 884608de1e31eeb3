package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	contentTypeJSON = "application/json; charset=utf-8"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CirculationService is the write side consumed by the handlers.
type CirculationService interface {
	Issue(ctx context.Context, bookID uuid.UUID, memberID uuid.UUID, requestedDueDate *time.Time) (circulation.IssueRecord, error)
	ReturnBook(ctx context.Context, issueID uuid.UUID) (circulation.IssueRecord, error)
}

// CatalogueReader is the read side consumed by the handlers.
type CatalogueReader interface {
	ListBooks(ctx context.Context, search string, limit uint, offset uint) ([]circulation.Book, int, error)
	AvailableBooks(ctx context.Context, search string, limit uint, offset uint) ([]circulation.Book, int, error)
	GetBook(ctx context.Context, bookID uuid.UUID) (circulation.Book, error)
	ListMembers(ctx context.Context, search string, limit uint, offset uint) ([]circulation.Member, int, error)
	IssuesByStatus(ctx context.Context, status circulation.Status, now time.Time, limit uint, offset uint) ([]circulation.IssueDetails, int, error)
	MemberHistory(ctx context.Context, memberID uuid.UUID, now time.Time, limit uint, offset uint) ([]circulation.IssueDetails, int, error)
}

// Handler holds the dependencies of the HTTP endpoints.
type Handler struct {
	service CirculationService
	reader  CatalogueReader
	clock   circulation.Clock
}

// NewHandler creates a Handler. A nil clock defaults to the system clock.
func NewHandler(service CirculationService, reader CatalogueReader, clock circulation.Clock) *Handler {
	if clock == nil {
		clock = circulation.SystemClock
	}

	return &Handler{service: service, reader: reader, clock: clock}
}

// ListBooks handles GET /books/.
func (h *Handler) ListBooks(c *gin.Context) {
	limit, offset := pagination(c)

	books, total, err := h.reader.ListBooks(c.Request.Context(), c.Query("search"), limit, offset)
	if err != nil {
		h.renderError(c, err)
		return
	}

	h.renderJSON(c, http.StatusOK, PaginatedResponse{Count: total, Results: bookResponsesFrom(books)})
}

// AvailableBooks handles GET /books/available/.
func (h *Handler) AvailableBooks(c *gin.Context) {
	limit, offset := pagination(c)

	books, total, err := h.reader.AvailableBooks(c.Request.Context(), c.Query("search"), limit, offset)
	if err != nil {
		h.renderError(c, err)
		return
	}

	h.renderJSON(c, http.StatusOK, PaginatedResponse{Count: total, Results: bookResponsesFrom(books)})
}

// GetBook handles GET /books/:id/.
func (h *Handler) GetBook(c *gin.Context) {
	bookID, ok := h.pathID(c)
	if !ok {
		return
	}

	book, err := h.reader.GetBook(c.Request.Context(), bookID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	h.renderJSON(c, http.StatusOK, bookResponseFrom(book))
}

// ListMembers handles GET /members/.
func (h *Handler) ListMembers(c *gin.Context) {
	limit, offset := pagination(c)

	members, total, err := h.reader.ListMembers(c.Request.Context(), c.Query("search"), limit, offset)
	if err != nil {
		h.renderError(c, err)
		return
	}

	h.renderJSON(c, http.StatusOK, PaginatedResponse{Count: total, Results: memberResponsesFrom(members)})
}

// MemberIssues handles GET /members/:id/issues/.
func (h *Handler) MemberIssues(c *gin.Context) {
	memberID, ok := h.pathID(c)
	if !ok {
		return
	}

	limit, offset := pagination(c)

	details, total, err := h.reader.MemberHistory(c.Request.Context(), memberID, h.clock(), limit, offset)
	if err != nil {
		h.renderError(c, err)
		return
	}

	h.renderJSON(c, http.StatusOK, PaginatedResponse{Count: total, Results: issueDetailResponsesFrom(details)})
}

// ListIssues handles GET /issues/ with an optional status query parameter.
func (h *Handler) ListIssues(c *gin.Context) {
	status, ok := statusFilter(c.Query("status"))
	if !ok {
		h.renderJSON(c, http.StatusBadRequest, fieldError("status", "Must be one of: issued, overdue, returned"))
		return
	}

	limit, offset := pagination(c)

	details, total, err := h.reader.IssuesByStatus(c.Request.Context(), status, h.clock(), limit, offset)
	if err != nil {
		h.renderError(c, err)
		return
	}

	h.renderJSON(c, http.StatusOK, PaginatedResponse{Count: total, Results: issueDetailResponsesFrom(details)})
}

// IssueBook handles POST /issues/issue/.
func (h *Handler) IssueBook(c *gin.Context) {
	var request IssueRequest
	if bindErr := c.ShouldBindJSON(&request); bindErr != nil {
		h.renderJSON(c, http.StatusBadRequest, nonFieldError("Invalid request body: "+bindErr.Error()))
		return
	}

	record, err := h.service.Issue(c.Request.Context(), request.BookID, request.MemberID, request.DueDate)
	if err != nil {
		h.renderError(c, err)
		return
	}

	h.renderJSON(c, http.StatusCreated, issueResponseFrom(record))
}

// ReturnBook handles POST /issues/return_book/.
func (h *Handler) ReturnBook(c *gin.Context) {
	var request ReturnRequest
	if bindErr := c.ShouldBindJSON(&request); bindErr != nil {
		h.renderJSON(c, http.StatusBadRequest, nonFieldError("Invalid request body: "+bindErr.Error()))
		return
	}

	record, err := h.service.ReturnBook(c.Request.Context(), request.IssueRecordID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	h.renderJSON(c, http.StatusOK, issueResponseFrom(record))
}

func (h *Handler) pathID(c *gin.Context) (uuid.UUID, bool) {
	id, parseErr := uuid.Parse(c.Param("id"))
	if parseErr != nil {
		h.renderJSON(c, http.StatusBadRequest, fieldError("id", "Must be a valid UUID"))
		return uuid.Nil, false
	}

	return id, true
}

func (h *Handler) renderError(c *gin.Context, err error) {
	h.renderJSON(c, statusForError(err), bodyForError(err))
}

func (h *Handler) renderJSON(c *gin.Context, status int, body any) {
	payload, marshalErr := json.Marshal(body)
	if marshalErr != nil {
		c.Data(http.StatusInternalServerError, contentTypeJSON, []byte(`{"non_field_errors":["Internal server error"]}`))
		return
	}

	c.Data(status, contentTypeJSON, payload)
}

// pagination reads limit and offset query parameters, clamping the limit to
// the allowed page size.
func pagination(c *gin.Context) (limit uint, offset uint) {
	limit = defaultPageSize

	if raw := c.Query("limit"); raw != "" {
		if parsed, parseErr := strconv.ParseUint(raw, 10, 32); parseErr == nil && parsed > 0 {
			limit = uint(parsed)
		}
	}

	if limit > maxPageSize {
		limit = maxPageSize
	}

	if raw := c.Query("offset"); raw != "" {
		if parsed, parseErr := strconv.ParseUint(raw, 10, 32); parseErr == nil {
			offset = uint(parsed)
		}
	}

	return limit, offset
}

// statusFilter parses the status query parameter. An empty value means all
// records; anything else must be a known status.
func statusFilter(raw string) (circulation.Status, bool) {
	switch raw {
	case "":
		return "", true
	case string(circulation.StatusIssued):
		return circulation.StatusIssued, true
	case string(circulation.StatusOverdue):
		return circulation.StatusOverdue, true
	case string(circulation.StatusReturned):
		return circulation.StatusReturned, true
	default:
		return "", false
	}
}
