// Package radio decodes short-range radio advertisement frames into
// transport updates.
//
// The vendor's version-1.2 advertisement scheme uses fixed 20-byte frames:
// 19 payload bytes (zero padded) followed by an XOR checksum over those 19
// bytes. A header byte distinguishes single status frames from fragments
// of a multi-frame sequence; fragments are buffered per (device, sequence)
// until the sequence completes or times out.
//
// Device model codes select a schema from a lookup table of small pure
// field extractors. Unknown models decode only the fields common to all
// schemas (power, liveness); partial decode is a first-class success case,
// never an error.
//
// The decoder consumes frames already received by a scanning collaborator;
// it owns no sockets or radio hardware.
package radio
