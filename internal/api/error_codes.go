// internal/api/error_codes.go
package api

// API error codes
const (
	// generic
	ErrorBadRequest         = "BAD_REQUEST"
	ErrorNotFound           = "NOT_FOUND"
	ErrorInternalError      = "INTERNAL_ERROR"
	ErrorConflict           = "CONFLICT"
	ErrorTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrorNotSupported       = "NOT_SUPPORTED"
	ErrorTimeout            = "TIMEOUT"
	ErrorServiceUnavailable = "SERVICE_UNAVAILABLE"

	// book and chapters
	ErrorBookNotOpen      = "BOOK_NOT_OPEN"
	ErrorBookLoadFailed   = "BOOK_LOAD_FAILED"
	ErrorChapterNotLoaded = "CHAPTER_NOT_LOADED"
	ErrorChapterFailed    = "CHAPTER_LOAD_FAILED"

	// entries
	ErrorEntryNotFound   = "ENTRY_NOT_FOUND"
	ErrorEntryBusy       = "ENTRY_BUSY"
	ErrorEntryInvalid    = "ENTRY_INVALID"
	ErrorVariableInvalid = "VARIABLE_INVALID"
)
