package dispatch

import "errors"

// Domain-specific errors for command dispatch.
var (
	// ErrTransportUnavailable is returned when no transport can currently
	// reach the device.
	ErrTransportUnavailable = errors.New("dispatch: no transport can reach device")

	// ErrDispatchTimeout identifies a command that expired without
	// confirmation. Surfaced per command through the timeout callback.
	ErrDispatchTimeout = errors.New("dispatch: command expired without confirmation")

	// ErrUnknownEffect is returned when an intent names an effect the
	// device's catalog does not contain.
	ErrUnknownEffect = errors.New("dispatch: unknown effect")

	// ErrNoCatalog is returned when an effect intent arrives for a model
	// with no built catalog.
	ErrNoCatalog = errors.New("dispatch: no catalog for model")

	// ErrEmptyIntent is returned when an intent carries neither fields nor
	// an effect.
	ErrEmptyIntent = errors.New("dispatch: intent carries nothing to do")
)
