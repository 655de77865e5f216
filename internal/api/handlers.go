// internal/api/handlers.go
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/Corphon/BookRunner/internal/errors"
	"github.com/Corphon/BookRunner/internal/services"
	"github.com/Corphon/BookRunner/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// OpenBookRequest opens a book against a working copy.
type OpenBookRequest struct {
	BookPath string `json:"bookPath" binding:"required"`
	WorkPath string `json:"workPath" binding:"required"`
}

// VariableRequest binds a variable on a chapter.
type VariableRequest struct {
	Name  string `json:"name" binding:"required"`
	Value string `json:"value"`
}

// VariableResponse reports a variable binding and how many entries took it.
type VariableResponse struct {
	Name          string  `json:"name"`
	Value         string  `json:"value"`
	PreviousValue *string `json:"previousValue,omitempty"`
	Updated       int     `json:"updated"`
}

// BookLister lists the books available to open.
type BookLister interface {
	ListBooks() ([]string, error)
}

// Handler serves the workspace API.
type Handler struct {
	Workspace   *services.Workspace
	Edits       *services.EditService
	Runs        *services.RunService
	APIMetrics  *utils.APIMetrics
	EditMetrics *services.EditMetrics
	Streams     *WebSocketManager
	Books       BookLister // nil when books come from the book service
	Response    *ResponseHelper
}

func NewHandler(workspace *services.Workspace, edits *services.EditService, runs *services.RunService,
	apiMetrics *utils.APIMetrics, editMetrics *services.EditMetrics, streams *WebSocketManager, books BookLister) *Handler {
	return &Handler{
		Workspace:   workspace,
		Edits:       edits,
		Runs:        runs,
		APIMetrics:  apiMetrics,
		EditMetrics: editMetrics,
		Streams:     streams,
		Books:       books,
		Response:    NewResponseHelper(),
	}
}

// Health reports the book service state.
func (h *Handler) Health(c *gin.Context) {
	status := h.Workspace.Health(c.Request.Context())
	h.Response.Success(c, gin.H{
		"status":      "ok",
		"bookService": status,
		"websocket":   h.Streams.GetStatus()["total_connections"],
	})
}

// OpenBook opens a book. A failed open still answers with the book, whose
// error explains the failure.
func (h *Handler) OpenBook(c *gin.Context) {
	var req OpenBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, bindingMessage(err))
		return
	}

	book, err := h.Workspace.Open(c.Request.Context(), req.BookPath, req.WorkPath)
	if err != nil {
		h.fail(c, "book", err, ErrorBookLoadFailed, book)
		return
	}
	h.Response.Success(c, book, "Book opened")
}

func (h *Handler) GetBook(c *gin.Context) {
	book, err := h.Workspace.Book()
	if err != nil {
		h.fail(c, "book", err, ErrorBookNotOpen, nil)
		return
	}
	h.Response.Success(c, book)
}

func (h *Handler) ListBooks(c *gin.Context) {
	if h.Books == nil {
		h.Response.Error(c, http.StatusNotImplemented, ErrorNotSupported, "Books can only be listed from a local book source", nil)
		return
	}
	books, err := h.Books.ListBooks()
	if err != nil {
		h.fail(c, "book", err, "", nil)
		return
	}
	h.Response.Success(c, books)
}

// GetChapter selects a loaded chapter, or loads it when it is not loaded
// yet or reload=true is given.
func (h *Handler) GetChapter(c *gin.Context) {
	chapter := c.Param("chapter")

	if c.Query("reload") != "true" && h.Workspace.IsLoaded(chapter) {
		view, err := h.Workspace.SelectChapter(chapter)
		if err != nil {
			h.fail(c, "chapter", err, ErrorChapterNotLoaded, nil)
			return
		}
		h.Response.Success(c, view)
		return
	}

	view, err := h.Workspace.LoadChapter(c.Request.Context(), chapter)
	if err != nil {
		code := ""
		if view != nil {
			code = ErrorChapterFailed
		}
		h.fail(c, "chapter", err, code, view)
		return
	}
	h.Response.Success(c, view)
}

func (h *Handler) StartEdit(c *gin.Context) {
	view, err := h.Edits.StartEdit(c.Param("chapter"), c.Param("entry"))
	if err != nil {
		h.entryFailure(c, err)
		return
	}
	h.Response.Success(c, view)
}

func (h *Handler) CancelEdit(c *gin.Context) {
	view, err := h.Edits.Cancel(c.Param("chapter"), c.Param("entry"))
	if err != nil {
		h.entryFailure(c, err)
		return
	}
	h.Response.Success(c, view)
}

// SaveEntry takes the edited content of the entry as the request body.
func (h *Handler) SaveEntry(c *gin.Context) {
	draft, err := c.GetRawData()
	if err != nil {
		h.Response.BadRequest(c, "Failed to read the request body")
		return
	}

	report, err := h.Edits.Save(c.Request.Context(), c.Param("chapter"), c.Param("entry"), draft)
	if err != nil {
		h.entryFailure(c, err)
		return
	}
	h.Response.Success(c, report, string(report.Outcome))
}

// RunEntry runs the entry and answers once the run is over. Output is
// streamed to the chapter's WebSocket clients meanwhile.
func (h *Handler) RunEntry(c *gin.Context) {
	report, err := h.Runs.Run(c.Request.Context(), c.Param("chapter"), c.Param("entry"))
	if err != nil {
		h.entryFailure(c, err)
		return
	}
	h.Response.Success(c, report)
}

func (h *Handler) BindVariable(c *gin.Context) {
	var req VariableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, bindingMessage(err))
		return
	}

	binding, updated, err := h.Workspace.UpdateVariable(c.Param("chapter"), req.Name, req.Value)
	if err != nil {
		code := ""
		if apperrors.IsValidationError(err) {
			code = ErrorVariableInvalid
		}
		h.fail(c, "variable", err, code, nil)
		return
	}
	h.Response.Success(c, VariableResponse{
		Name:          binding.Name,
		Value:         binding.Value,
		PreviousValue: binding.PreviousValue,
		Updated:       updated,
	})
}

func (h *Handler) Metrics(c *gin.Context) {
	h.Response.Success(c, gin.H{
		"api":   h.APIMetrics.Snapshot(),
		"edits": h.EditMetrics.GetMetrics(),
	})
}

func (h *Handler) WebSocketStatus(c *gin.Context) {
	h.Response.Success(c, h.Streams.GetStatus())
}

func (h *Handler) entryFailure(c *gin.Context, err error) {
	code := ""
	switch {
	case apperrors.IsConflictError(err):
		code = ErrorEntryBusy
	case apperrors.IsValidationError(err):
		code = ErrorEntryInvalid
	case apperrors.IsNotFoundError(err):
		code = ErrorEntryNotFound
	}
	h.fail(c, "entry", err, code, nil)
}

func (h *Handler) fail(c *gin.Context, component string, err error, code string, data interface{}) {
	errType := string(apperrors.TypeOf(err))
	if errType == "" {
		errType = "unknown"
	}
	h.APIMetrics.RecordError(errType, component)
	_ = c.Error(err)
	h.Response.FromError(c, err, code, data)
}

// bindingMessage names the fields that failed validation.
func bindingMessage(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return "Invalid request body"
	}

	problems := make([]string, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		problems = append(problems, fmt.Sprintf("%s is %s", fieldError.Field(), fieldError.Tag()))
	}
	return "Invalid request: " + strings.Join(problems, ", ")
}
