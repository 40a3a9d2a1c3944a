// Package lanproto implements the vendor's local-network command protocol:
// JSON messages exchanged over local datagrams with a type discriminator
// in msg.cmd.
//
// Inbound messages (scan responses, status responses, command acks) decode
// into transport updates; outbound requests (scan, status query, power,
// brightness, colour, pass-through command lines) encode to wire bytes.
//
// The package owns no sockets. The listener collaborator hands over raw
// message bytes tagged with the originating device, and sends whatever the
// encoders produce.
package lanproto
