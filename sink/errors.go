package sink

import "errors"

var (
	// ErrNotInitialized is returned when a lifecycle method runs before Init.
	ErrNotInitialized = errors.New("sink is not initialized")
	// ErrDisposed is returned when the sink is used after Dispose.
	ErrDisposed = errors.New("sink is disposed")
)
