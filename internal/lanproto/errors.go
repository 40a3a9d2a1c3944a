package lanproto

import "errors"

// Domain-specific errors for local protocol decoding.
var (
	// ErrMalformedMessage is returned when a message cannot be parsed or
	// its declared type does not match its decodable fields. The message
	// is logged and dropped without affecting other devices' streams.
	ErrMalformedMessage = errors.New("lanproto: malformed message")

	// ErrUnknownCommand is returned when msg.cmd names no known message
	// type.
	ErrUnknownCommand = errors.New("lanproto: unknown command type")

	// ErrMissingDevice is returned when a non-scan message arrives without
	// a device identity resolved by the listener collaborator.
	ErrMissingDevice = errors.New("lanproto: message has no device identity")
)
