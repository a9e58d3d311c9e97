// Package errors provides structured error handling for novelindex.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: File errors
//   - 3XX: Backend errors (index, embedding, vector store)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryFile indicates file read/write errors.
	CategoryFile Category = "FILE"
	// CategoryBackend indicates retrieval backend errors.
	CategoryBackend Category = "BACKEND"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but the process can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid     = "ERR_101_CONFIG_INVALID"
	ErrCodeBackendUnwired    = "ERR_102_BACKEND_UNWIRED"
	ErrCodeDimensionMismatch = "ERR_103_DIMENSION_MISMATCH"

	// File errors (200-299)
	ErrCodeFileNotFound = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFileRead     = "ERR_202_FILE_READ"

	// Backend errors (300-399)
	ErrCodeBackendUnavailable = "ERR_301_BACKEND_UNAVAILABLE"
	ErrCodeEmbeddingFailed    = "ERR_302_EMBEDDING_FAILED"
	ErrCodeVectorStore        = "ERR_303_VECTOR_STORE"
	ErrCodeIndexWrite         = "ERR_304_INDEX_WRITE"

	// Validation errors (400-499)
	ErrCodeInvalidQuery   = "ERR_401_INVALID_QUERY"
	ErrCodeNotInitialized = "ERR_402_NOT_INITIALIZED"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode derives the category from the code's number range.
func categoryFromCode(code string) Category {
	if len(code) < 5 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryFile
	case '3':
		return CategoryBackend
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode derives the severity from the code.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryConfig:
		return SeverityFatal
	case CategoryFile:
		return SeverityWarning
	default:
		return SeverityError
	}
}
