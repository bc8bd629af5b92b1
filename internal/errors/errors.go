package errors

import (
	"fmt"
)

// KBError is the structured error type for kbindex.
// It provides rich context for error handling, logging, and user presentation.
type KBError struct {
	// Code is the unique error code (e.g., "ERR_202_STORE_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Validation, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *KBError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *KBError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with KBError.
func (e *KBError) Is(target error) bool {
	if t, ok := target.(*KBError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *KBError) WithDetail(key, value string) *KBError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *KBError) WithSuggestion(suggestion string) *KBError {
	e.Suggestion = suggestion
	return e
}

// New creates a new KBError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *KBError {
	return &KBError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a KBError from an existing error.
// The error's message becomes the KBError message.
func Wrap(code string, err error) *KBError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// StoreInitError reports an unwritable store path or schema conflict.
func StoreInitError(message string, cause error) *KBError {
	return New(ErrCodeStoreInit, message, cause)
}

// StoreNotFoundError reports a query or stats call against a store that
// was never built. The suggestion points the user at the index step.
func StoreNotFoundError(path string) *KBError {
	return New(ErrCodeStoreNotFound, fmt.Sprintf("index not found at %s", path), nil).
		WithSuggestion("run 'kbindex index' to build the index first")
}

// DocumentReadError reports a single unreadable document during indexing.
// These are recovered locally: logged, skipped, and the pass continues.
func DocumentReadError(path string, cause error) *KBError {
	return New(ErrCodeDocumentRead, fmt.Sprintf("cannot read document %s", path), cause).
		WithDetail("path", path)
}

// IndexLockedError reports a concurrent indexing pass holding the lock.
func IndexLockedError(lockPath string) *KBError {
	return New(ErrCodeIndexLocked, "another indexing pass is already running", nil).
		WithDetail("lock", lockPath).
		WithSuggestion("wait for the other pass to finish, or remove a stale lock file")
}

// EmptyQueryError reports a blank search query.
func EmptyQueryError() *KBError {
	return New(ErrCodeQueryEmpty, "query must not be empty", nil)
}

// QuerySyntaxError surfaces a malformed query verbatim from the match engine.
func QuerySyntaxError(query string, cause error) *KBError {
	return New(ErrCodeQuerySyntax, fmt.Sprintf("invalid query syntax: %v", cause), cause).
		WithDetail("query", query)
}

// InvariantViolationError reports divergence between the document table and
// the full-text index. Should be unreachable given atomic paired writes;
// when detected the operation fails loudly rather than return wrong results.
func InvariantViolationError(message string) *KBError {
	return New(ErrCodeInvariant, message, nil).
		WithSuggestion("run 'kbindex index --force' to rebuild the index")
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if ke, ok := err.(*KBError); ok {
		return ke.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a KBError.
// Returns empty string if not a KBError.
func GetCode(err error) string {
	if ke, ok := err.(*KBError); ok {
		return ke.Code
	}
	return ""
}

// GetCategory extracts the category from a KBError.
// Returns empty string if not a KBError.
func GetCategory(err error) Category {
	if ke, ok := err.(*KBError); ok {
		return ke.Category
	}
	return ""
}
