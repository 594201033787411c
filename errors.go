package toolweave

import "fmt"

// Error codes for specific failure types
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeToolNotFound  = "TOOL_NOT_FOUND"
	ErrCodeToolExecution = "TOOL_EXECUTION_ERROR"
	ErrCodeToolTimeout   = "TOOL_TIMEOUT"
	ErrCodeModelHost     = "MODEL_HOST_ERROR"
	ErrCodeRecovery      = "RECOVERY_ERROR"
	ErrCodeConfiguration = "CONFIGURATION_ERROR"
	ErrCodeCancelled     = "WORKFLOW_CANCELLED"
	ErrCodeCache         = "CACHE_ERROR"
	ErrCodeInternal      = "INTERNAL_ERROR"
)

// ToolWeaveError is a custom error type for toolweave specific errors.
type ToolWeaveError struct {
	Code    string // A machine-readable error code (e.g., ErrCodeToolNotFound)
	Message string // A human-readable message
	Stage   string // The stage where the error occurred (e.g., "round", "dispatch")
	Cause   error  // The underlying error, if any
}

// Error implements the error interface.
func (e *ToolWeaveError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Stage, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Stage, e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error, allowing for error chaining.
func (e *ToolWeaveError) Unwrap() error {
	return e.Cause
}

// NewError creates a new ToolWeaveError.
func NewError(code, stage, message string, cause error) *ToolWeaveError {
	return &ToolWeaveError{
		Code:    code,
		Stage:   stage,
		Message: message,
		Cause:   cause,
	}
}

// IsToolWeaveError reports whether err is a *ToolWeaveError.
func IsToolWeaveError(err error) bool {
	_, ok := err.(*ToolWeaveError)
	return ok
}

// Specific error constructors

func NewValidationError(stage, message string, cause error) *ToolWeaveError {
	return NewError(ErrCodeValidation, stage, message, cause)
}

func NewToolNotFoundError(stage, toolName string) *ToolWeaveError {
	return NewError(ErrCodeToolNotFound, stage, fmt.Sprintf("tool not found: '%s'", toolName), nil)
}

func NewToolExecutionError(stage, toolName string, cause error) *ToolWeaveError {
	return NewError(ErrCodeToolExecution, stage, fmt.Sprintf("execution failed for tool '%s'", toolName), cause)
}

func NewToolTimeoutError(stage, toolName string, cause error) *ToolWeaveError {
	return NewError(ErrCodeToolTimeout, stage, fmt.Sprintf("tool '%s' timed out", toolName), cause)
}

func NewModelHostError(stage string, cause error) *ToolWeaveError {
	return NewError(ErrCodeModelHost, stage, "model host request failed", cause)
}

func NewRecoveryError(stage, toolName string, cause error) *ToolWeaveError {
	return NewError(ErrCodeRecovery, stage, fmt.Sprintf("recovery failed for tool '%s'", toolName), cause)
}

func NewConfigurationError(message string, cause error) *ToolWeaveError {
	return NewError(ErrCodeConfiguration, "initialization", message, cause)
}

func NewCancelledError(stage string, cause error) *ToolWeaveError {
	msg := "workflow cancelled"
	if cause != nil && cause.Error() != "" && cause.Error() != "context canceled" { // Add more detail if cause isn't just context.Canceled
		msg = fmt.Sprintf("workflow cancelled: %v", cause)
	}
	return NewError(ErrCodeCancelled, stage, msg, cause)
}

func NewCacheError(stage, operation string, cause error) *ToolWeaveError {
	return NewError(ErrCodeCache, stage, fmt.Sprintf("cache operation '%s' failed", operation), cause)
}

func NewInternalError(stage, message string, cause error) *ToolWeaveError {
	return NewError(ErrCodeInternal, stage, message, cause)
}
