package backend

import (
	"fmt"
)

// TransportError is a request that did not produce a usable success payload:
// the connection failed, the status was not 2xx, or the body did not decode.
type TransportError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *TransportError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("request to %s failed with status %d: %v", e.Endpoint, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("request to %s failed with status %d", e.Endpoint, e.Status)
	default:
		return fmt.Sprintf("request to %s failed: %v", e.Endpoint, e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ReportedError is an error message inside a 2xx payload.
type ReportedError struct {
	Endpoint string
	Message  string
}

func (e *ReportedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Endpoint, e.Message)
}
