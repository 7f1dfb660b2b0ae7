package relay

import (
	"fmt"
	"net/http"
)

// Kind classifies a failed build request.
type Kind string

const (
	KindBadRequest      Kind = "BadRequest"
	KindArchiveError    Kind = "ArchiveError"
	KindBuildError      Kind = "BuildError"
	KindFilesystemError Kind = "FilesystemError"
	KindTimeout         Kind = "Timeout"
)

// Error is the error returned by Relay.Do.
// Status is the HTTP status code the error is reported with.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewBadRequestError(status int, message string, err error) *Error {
	if status == 0 {
		status = http.StatusBadRequest
	}
	return &Error{Kind: KindBadRequest, Status: status, Message: message, Err: err}
}

func NewArchiveError(message string, err error) *Error {
	return &Error{Kind: KindArchiveError, Status: http.StatusUnprocessableEntity, Message: message, Err: err}
}

func NewBuildError(message string, err error) *Error {
	return &Error{Kind: KindBuildError, Status: http.StatusInternalServerError, Message: message, Err: err}
}

func NewFilesystemError(message string, err error) *Error {
	return &Error{Kind: KindFilesystemError, Status: http.StatusInternalServerError, Message: message, Err: err}
}

func NewTimeoutError(message string, err error) *Error {
	return &Error{Kind: KindTimeout, Status: http.StatusGatewayTimeout, Message: message, Err: err}
}
