package stream

import "fmt"

// OpenError reports that the transport for a run could not be established:
// the request never produced a readable event stream. It is terminal for
// the subscription it is delivered to.
type OpenError struct {
	Err error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("could not open event stream: %v", e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// ReadError reports a transport failure after a successful open. It is
// terminal: events decoded before the failure have already been delivered,
// and any partial line buffered at the time of the failure is discarded.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("event stream read failed: %v", e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}
