package proxy

import (
	"errors"
	"fmt"
)

// ErrWrite marks failures writing a response back to the client.
var ErrWrite = errors.New("write to client failed")

type WriteError struct {
	Part string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrWrite, e.Part, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

func (e *WriteError) Is(target error) bool {
	return target == ErrWrite
}
