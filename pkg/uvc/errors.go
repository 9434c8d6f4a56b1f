package uvc

import "errors"

// Sentinel errors returned by driver and stream operations.
// Transport, resource-exhaustion and protocol errors are never returned
// directly; they surface through the stream's event callback instead.
var (
	// ErrInvalidArg indicates a nil or out-of-range argument.
	ErrInvalidArg = errors.New("uvc: invalid argument")

	// ErrInvalidState indicates the operation is not legal in the
	// current driver or stream state.
	ErrInvalidState = errors.New("uvc: invalid state")

	// ErrNotFound indicates no device or format matched the request.
	ErrNotFound = errors.New("uvc: not found")

	// ErrTimeout indicates no event was handled within the timeout.
	ErrTimeout = errors.New("uvc: timeout")

	// ErrDisconnected indicates the device is gone. Only Close is
	// valid on a disconnected stream.
	ErrDisconnected = errors.New("uvc: device disconnected")

	// ErrFramesOutstanding indicates the application still holds
	// frames that must be returned before the stream can be closed.
	ErrFramesOutstanding = errors.New("uvc: frames still held by application")

	// ErrFrameNotHeld indicates a frame return for a buffer the
	// driver does not consider held or ready. Returning the same
	// frame twice reports this error.
	ErrFrameNotHeld = errors.New("uvc: frame not held")

	// ErrMalformedPayload indicates a transfer whose UVC payload
	// header is shorter than declared or internally inconsistent.
	ErrMalformedPayload = errors.New("uvc: malformed payload header")
)
