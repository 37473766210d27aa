package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeUnsupportedFrequency ErrorCode = 102
	ErrCodeFeedSealed           ErrorCode = 103

	// Download errors (200-299)
	ErrCodeRequestFailed      ErrorCode = 200
	ErrCodeInvalidContentType ErrorCode = 201

	// Parse errors (300-399)
	ErrCodeMalformedRow  ErrorCode = 300
	ErrCodeMissingColumn ErrorCode = 301

	// Filesystem errors (400-499)
	ErrCodeFilesystem ErrorCode = 400
)
