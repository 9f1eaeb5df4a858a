package conversation

import "fmt"

// Error represents a conversation-related error.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Error codes for conversation operations
const (
	ErrConversationNotFound   = "CONVERSATION_NOT_FOUND"
	ErrConversationExpired    = "CONVERSATION_EXPIRED"
	ErrConversationInvalid    = "CONVERSATION_INVALID"
	ErrConversationGeneration = "CONVERSATION_GENERATION_FAILED"
	ErrConversationStorage    = "CONVERSATION_STORAGE_ERROR"
)

// NewNotFoundError creates a conversation not found error.
func NewNotFoundError(id string) *Error {
	return &Error{
		Code:    ErrConversationNotFound,
		Message: fmt.Sprintf("conversation not found: %s", id),
	}
}

// NewExpiredError creates a conversation expired error.
func NewExpiredError(id string) *Error {
	return &Error{
		Code:    ErrConversationExpired,
		Message: fmt.Sprintf("conversation expired: %s", id),
	}
}

// NewInvalidError creates a conversation invalid error.
func NewInvalidError(reason string) *Error {
	return &Error{
		Code:    ErrConversationInvalid,
		Message: fmt.Sprintf("conversation invalid: %s", reason),
	}
}

// NewGenerationError creates a conversation generation error.
func NewGenerationError(cause error) *Error {
	return &Error{
		Code:    ErrConversationGeneration,
		Message: "failed to generate conversation ID",
		Cause:   cause,
	}
}

// NewStorageError creates a conversation storage error.
func NewStorageError(operation string, cause error) *Error {
	return &Error{
		Code:    ErrConversationStorage,
		Message: fmt.Sprintf("conversation storage error during %s", operation),
		Cause:   cause,
	}
}
