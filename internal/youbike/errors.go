package youbike

import (
	"errors"
	"fmt"
)

var (
	// ErrBatchTooLarge is returned when FetchAvailability receives more ids
	// than the API accepts in one request.
	ErrBatchTooLarge = fmt.Errorf("availability batch exceeds %d stations", MaxBatchSize)

	// ErrCircuitOpen is returned while the circuit breaker rejects requests.
	ErrCircuitOpen = errors.New("youbike api circuit open")
)

// NetworkError reports a transport failure or an HTTP error status.
type NetworkError struct {
	Op         string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: api returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DecodeError reports a response body that could not be decoded.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decode response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err is, or wraps, a NetworkError.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsDecodeError reports whether err is, or wraps, a DecodeError.
func IsDecodeError(err error) bool {
	var decErr *DecodeError
	return errors.As(err, &decErr)
}
