package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// APIError is the JSON error body returned by every endpoint
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on Code so that wrapped copies with different details still
// compare equal to the package sentinels.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func NewAPIError(code, message string, status int, details ...string) *APIError {
	err := &APIError{
		Code:    code,
		Message: message,
		Status:  status,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

var (
	ErrInvalidInput  = NewAPIError("INVALID_INPUT", "Invalid request data", http.StatusBadRequest)
	ErrUnauthorized  = NewAPIError("UNAUTHORIZED", "Authentication required", http.StatusUnauthorized)
	ErrNotFound      = NewAPIError("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrPointNotFound = NewAPIError("NOT_FOUND", "Point not found", http.StatusNotFound)
	ErrInternal      = NewAPIError("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)
)

// Invalid returns an INVALID_INPUT error carrying details about the rejected field.
func Invalid(details string) *APIError {
	return NewAPIError(ErrInvalidInput.Code, ErrInvalidInput.Message, ErrInvalidInput.Status, details)
}

// Wrap returns err unchanged when it already carries an APIError, otherwise
// it builds a new one with err's text as details.
func Wrap(err error, code, message string, status int) *APIError {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}
	return NewAPIError(code, message, status, err.Error())
}
