package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error categories. Every concrete error below wraps exactly one of them.
var (
	ErrFile         = errors.New("file error")
	ErrExtraction   = errors.New("extraction error")
	ErrModel        = errors.New("model error")
	ErrCancelled    = errors.New("run cancelled")
	ErrInvalidInput = errors.New("invalid input")
)

// File errors, raised before any extraction attempt.
var (
	ErrUnreadableFile      = fmt.Errorf("%w: unreadable file", ErrFile)
	ErrUnsupportedFileType = fmt.Errorf("%w: unsupported file type", ErrFile)
	ErrDocumentTooLarge    = fmt.Errorf("%w: document too large", ErrFile)
)

// Extraction errors.
var (
	ErrNoUsableText    = fmt.Errorf("%w: no usable text", ErrExtraction)
	ErrUndecodableText = fmt.Errorf("%w: no encoding could decode the text", ErrExtraction)
)

// Model errors: transport to the extraction backend and decoding of its answer.
var (
	ErrNetwork            = fmt.Errorf("%w: network", ErrModel)
	ErrAuth               = fmt.Errorf("%w: authentication", ErrModel)
	ErrRateLimit          = fmt.Errorf("%w: rate limited", ErrModel)
	ErrBackendUnavailable = fmt.Errorf("%w: backend unavailable", ErrModel)
	ErrNoJSONFound        = fmt.Errorf("%w: no json found", ErrModel)
	ErrMalformedJSON      = fmt.Errorf("%w: malformed json", ErrModel)
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ModelErrorKind returns a short label for a model error, "" for anything else.
func ModelErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrRateLimit):
		return "rate_limit"
	case errors.Is(err, ErrBackendUnavailable):
		return "backend_unavailable"
	case errors.Is(err, ErrNoJSONFound):
		return "no_json"
	case errors.Is(err, ErrMalformedJSON):
		return "malformed_json"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrModel):
		return "other"
	default:
		return ""
	}
}
