// Package errors provides structured error handling for kbindex.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (documents, store)
//   - 4XX: Query validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates document and store I/O errors.
	CategoryIO Category = "IO"
	// CategoryValidation indicates query validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeStoreInit     = "ERR_201_STORE_INIT"
	ErrCodeStoreNotFound = "ERR_202_STORE_NOT_FOUND"
	ErrCodeDocumentRead  = "ERR_203_DOCUMENT_READ"
	ErrCodeStoreCorrupt  = "ERR_205_STORE_CORRUPT"
	ErrCodeIndexLocked   = "ERR_206_INDEX_LOCKED"

	// Query validation errors (400-499)
	ErrCodeQuerySyntax = "ERR_403_QUERY_SYNTAX"
	ErrCodeQueryEmpty  = "ERR_404_QUERY_EMPTY"

	// Internal errors (500-599)
	ErrCodeInternal  = "ERR_501_INTERNAL"
	ErrCodeInvariant = "ERR_502_INVARIANT_VIOLATION"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Numeric portion, e.g. "201" from "ERR_201_STORE_INIT"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeStoreInit, ErrCodeStoreCorrupt, ErrCodeInvariant:
		return SeverityFatal
	case ErrCodeDocumentRead:
		// Per-document failures are recovered: logged and skipped.
		return SeverityWarning
	}
	return SeverityError
}
