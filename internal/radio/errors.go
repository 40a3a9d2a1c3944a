package radio

import "errors"

// Domain-specific errors for advertisement decoding.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrFrameTooShort is returned when a frame is smaller than the fixed
	// advertisement size.
	ErrFrameTooShort = errors.New("radio: frame too short")

	// ErrChecksum is returned when the payload's checksum byte does not
	// match the XOR of the preceding bytes. The frame is dropped.
	ErrChecksum = errors.New("radio: checksum mismatch")

	// ErrUnknownRole is returned when the header byte matches neither the
	// single-frame nor the fragment role.
	ErrUnknownRole = errors.New("radio: unknown packet role")

	// ErrFragmentConflict is returned when a fragment repeats an index
	// already buffered for its sequence with different content.
	ErrFragmentConflict = errors.New("radio: conflicting fragment")

	// ErrSequenceOverflow is returned when a fragment's index is outside
	// the count declared by the sequence's first fragment.
	ErrSequenceOverflow = errors.New("radio: fragment index out of range")

	// ErrMissingDevice is returned when a frame arrives without a device
	// identity attached by the scanning collaborator.
	ErrMissingDevice = errors.New("radio: frame has no device identity")
)
