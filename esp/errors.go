package esp

import "errors"

var (
	// ErrNoDialer is returned when a Device is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the co-processor.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when an operation is attempted on a
	// Device that has not been successfully initialized.
	ErrNotInitialized = errors.New("device not initialized")

	// ErrAlreadyClosed is returned when Close is called on a Device that has
	// already been closed.
	ErrAlreadyClosed = errors.New("device already closed")

	// ErrNoResponse is returned when no success sentinel was observed within
	// the timeout across all retries of a command exchange. The command may
	// or may not have taken effect; callers can retry.
	ErrNoResponse = errors.New("no OK response from device")

	// ErrInvalidMode is returned when a caller supplies a radio mode outside
	// the enumerated set. It is rejected before any I/O takes place.
	ErrInvalidMode = errors.New("invalid radio mode")

	// ErrJoinFailed is returned when every join attempt was exhausted
	// without the device reporting a successful association.
	ErrJoinFailed = errors.New("could not join access point")

	// ErrPingFailed is returned when the device answered a ping command but
	// reported no usable round-trip time.
	ErrPingFailed = errors.New("ping latency unavailable")

	// ErrResponseTooLarge is returned when a reply keeps growing without
	// ever producing a sentinel. It bounds memory against a misbehaving
	// peer.
	ErrResponseTooLarge = errors.New("response exceeds buffer limit")
)
