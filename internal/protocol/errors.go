package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrFormat     = errors.New("invalid message format")
	ErrInternal   = errors.New("internal error")
)

const (
	msgFormat         = "Invalid message format."
	msgActionRequired = "Invalid message format: 'action' is required."
	msgInternal       = "Internal server error."
)

// requestError carries the client-facing message alongside the error class
// it belongs to.
type requestError struct {
	class   error
	message string
}

func (e *requestError) Error() string { return e.message }

func (e *requestError) Unwrap() error { return e.class }

func newRequestError(class error, format string, args ...any) error {
	return &requestError{class: class, message: fmt.Sprintf(format, args...)}
}

// clientMessage is what the client sees for err.
func clientMessage(err error) string {
	var re *requestError
	if errors.As(err, &re) {
		return re.message
	}
	return msgInternal
}

// statusLabel is the metrics label for err.
func statusLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrFormat):
		return "format"
	default:
		return "internal"
	}
}
