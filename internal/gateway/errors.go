package gateway

import "errors"

// Domain-specific errors for gateway routing and transport selection.
var (
	// ErrDeviceUnreachable is returned when a command targets a device
	// with no known local address binding.
	ErrDeviceUnreachable = errors.New("gateway: device unreachable on local network")

	// ErrUnknownDevice is returned when an inbound topic names a device
	// the registry has never seen.
	ErrUnknownDevice = errors.New("gateway: unknown device")

	// ErrBadTopic is returned when an inbound topic does not match the
	// expected shape.
	ErrBadTopic = errors.New("gateway: malformed topic")

	// ErrBadIntent is returned when an intent payload cannot be parsed
	// into a field value.
	ErrBadIntent = errors.New("gateway: malformed intent payload")

	// ErrNotStarted is returned when a component is used before Start.
	ErrNotStarted = errors.New("gateway: not started")
)
