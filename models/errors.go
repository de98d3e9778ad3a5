package models

import (
	"errors"
	"fmt"
)

// Error codes used on the facade and in internal error handling.
const (
	ErrCodeContainerBusy    = "CONTAINER_BUSY"
	ErrCodeNotFound         = "INSTANCE_NOT_FOUND"
	ErrCodeTornDown         = "SYSTEM_TORN_DOWN"
	ErrCodeDocumentLoad     = "DOCUMENT_LOAD_FAILED"
	ErrCodePasswordRequired = "PASSWORD_REQUIRED"
	ErrCodeRenderCancelled  = "RENDER_CANCELLED"
	ErrCodeRenderFailed     = "RENDER_FAILED"
	ErrCodeOverlayDestroyed = "OVERLAY_DESTROYED"
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// ViewerError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ViewerError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ViewerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ViewerError) Unwrap() error {
	return e.Err
}

// NewViewerError creates a new ViewerError.
func NewViewerError(code, message string, err error) *ViewerError {
	return &ViewerError{Code: code, Message: message, Err: err}
}

// CodeOf returns the error code carried by err, or ErrCodeInternal when err
// carries none.
func CodeOf(err error) string {
	var ve *ViewerError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ErrCodeInternal
}

// Invariant panics when cond is false. Invariant violations are programmer
// errors and are never caught.
func Invariant(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("INVARIANT_VIOLATION: "+format, args...))
	}
}
