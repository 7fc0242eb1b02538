package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 12000-12999: Problem & Template errors
// 13000-13999: Execution & Queue errors
// 14000-14999: Ingestion & Stats errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Database errors (10100-10199)
	DatabaseError     ErrorCode = 10100
	RecordNotFound    ErrorCode = 10101
	TransactionFailed ErrorCode = 10103

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	RequiredFieldEmpty ErrorCode = 10303

	// Storage errors (10400-10499)
	StorageError       ErrorCode = 10400
	StorageDirMissing  ErrorCode = 10401
	ObjectUploadFailed ErrorCode = 10402

	// ========== Problem & Template Errors (12000-12999) ==========

	// Problem basic (12000-12099)
	ProblemNotFound     ErrorCode = 12000
	ProblemCreateFailed ErrorCode = 12002
	ProblemUpdateFailed ErrorCode = 12003
	ProblemDeleteFailed ErrorCode = 12004
	SlugAlreadyExists   ErrorCode = 12005

	// Type mapping & language parameters (12100-12199)
	TypeMappingMissing       ErrorCode = 12100
	LanguageNotSupported     ErrorCode = 12101
	LanguageParameterMissing ErrorCode = 12102
	RuntimeNotSupported      ErrorCode = 12103

	// Template generation (12200-12299)
	TemplateNotFound     ErrorCode = 12200
	TemplateRenderFailed ErrorCode = 12201
	TestCaseFetchFailed  ErrorCode = 12202
	TestCaseURLMissing   ErrorCode = 12203
	UserCodeMissing      ErrorCode = 12204
	UserCodeInvalid      ErrorCode = 12205
	TestCaseInvalid      ErrorCode = 12206

	// ========== Execution & Queue Errors (13000-13999) ==========

	// Queue (13000-13099)
	JobNotFound       ErrorCode = 13000
	JobEnqueueFailed  ErrorCode = 13001
	JobRemoveRejected ErrorCode = 13002
	QueuePaused       ErrorCode = 13003

	// Execution (13100-13199)
	SandboxUnavailable ErrorCode = 13100
	ExecutionTimeout   ErrorCode = 13101
	ExecutionFailed    ErrorCode = 13102
	SandboxCLIMissing  ErrorCode = 13103
	OutputLimitReached ErrorCode = 13104

	// ========== Ingestion & Stats Errors (14000-14999) ==========

	IngestionFailed    ErrorCode = 14000
	DuplicateIngestion ErrorCode = 14001
	StatsUpsertFailed  ErrorCode = 14002
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	// Database
	DatabaseError:     "Database operation failed",
	RecordNotFound:    "Record not found in database",
	TransactionFailed: "Database transaction failed",

	// Validation
	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	RequiredFieldEmpty: "Required field is empty",

	// Storage
	StorageError:       "Storage operation failed",
	StorageDirMissing:  "Generated-file directory does not exist",
	ObjectUploadFailed: "Failed to upload object",

	// Problem
	ProblemNotFound:     "Problem not found",
	ProblemCreateFailed: "Failed to create problem",
	ProblemUpdateFailed: "Failed to update problem",
	ProblemDeleteFailed: "Failed to delete problem",
	SlugAlreadyExists:   "Problem slug already exists",

	// Type mapping & language parameters
	TypeMappingMissing:       "No type mapping found",
	LanguageNotSupported:     "Programming language not supported",
	LanguageParameterMissing: "Language parameters not found for problem",
	RuntimeNotSupported:      "Runtime not supported",

	// Template generation
	TemplateNotFound:     "Template not found",
	TemplateRenderFailed: "Failed to render template",
	TestCaseFetchFailed:  "Failed to fetch test cases",
	TestCaseURLMissing:   "Test case URL is required for this execution mode",
	UserCodeMissing:      "User code is required",
	UserCodeInvalid:      "User code is not valid base64",
	TestCaseInvalid:      "Test case does not match the problem signature",

	// Queue
	JobNotFound:       "Job not found",
	JobEnqueueFailed:  "Failed to enqueue job",
	JobRemoveRejected: "Job cannot be removed in its current state",
	QueuePaused:       "Queue is paused",

	// Execution
	SandboxUnavailable: "Sandbox is unreachable",
	ExecutionTimeout:   "Code execution timed out",
	ExecutionFailed:    "Code execution failed",
	SandboxCLIMissing:  "Sandbox CLI not found or not accessible",
	OutputLimitReached: "Execution output exceeded the allowed limit",

	// Ingestion
	IngestionFailed:    "Failed to record execution result",
	DuplicateIngestion: "Execution result already recorded",
	StatsUpsertFailed:  "Failed to update user statistics",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == NotFound, c == ProblemNotFound, c == JobNotFound, c == TemplateNotFound,
		c == LanguageParameterMissing, c == RecordNotFound:
		return 404
	case c == TooManyRequests:
		return 429
	case c == ServiceUnavailable, c == SandboxUnavailable:
		return 503
	case c >= 10300 && c < 10400:
		return 400
	case c == InvalidParams, c == TestCaseURLMissing, c == UserCodeMissing, c == UserCodeInvalid,
		c == TestCaseInvalid,
		c == LanguageNotSupported, c == RuntimeNotSupported, c == ExecutionTimeout,
		c == SandboxCLIMissing, c == JobRemoveRejected, c == StorageDirMissing:
		return 400
	default:
		return 500
	}
}
