package pipeline

import (
	"errors"
	"fmt"
)

// ErrEmptyMessage is returned when Process is called with a blank message.
var ErrEmptyMessage = errors.New("message must not be empty")

// ResponderError reports that a responder failed and, when a fallback retry
// was attempted, that the fallback failed too. Err is always the original
// responder's error.
type ResponderError struct {
	Responder string
	Err       error
}

func (e *ResponderError) Error() string {
	return fmt.Sprintf("responder %s failed: %v", e.Responder, e.Err)
}

func (e *ResponderError) Unwrap() error { return e.Err }
