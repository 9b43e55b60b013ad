package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidDateRange     ErrorCode = 102
	ErrCodeInvalidSymbolList    ErrorCode = 103
	ErrCodeInvalidProvider      ErrorCode = 104
	ErrCodeInvalidWriter        ErrorCode = 105

	// Session/auth errors (200-299)
	ErrCodeSessionRequired ErrorCode = 200
	ErrCodeLoginFailed     ErrorCode = 201

	// Instrument errors (300-399)
	ErrCodeInstrumentNotFound  ErrorCode = 300
	ErrCodeInstrumentDumpFault ErrorCode = 301

	// Fetch errors (400-499)
	ErrCodeFetchFailed ErrorCode = 400

	// Writer errors (500-599)
	ErrCodeWriterNotInitialized ErrorCode = 500
	ErrCodeWriteFailed          ErrorCode = 501
	ErrCodeFlushFailed          ErrorCode = 502

	// Job errors (600-699)
	ErrCodeJobNotFound   ErrorCode = 600
	ErrCodeJobNotRunning ErrorCode = 601
)
