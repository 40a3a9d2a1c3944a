// Package dispatch accepts control intents, selects a transport, and
// tracks optimistic pending state until confirmation.
//
// Intents target concrete fields (power, brightness, colour, colour
// temperature) or name a catalog effect, resolved to its compiled command
// template. The local transport is preferred whenever the device is
// reachable on it; cloud is the fallback. Local send failures retry within
// a small budget with backoff before falling back; cloud failures are
// surfaced to the caller, not retried.
//
// On dispatch the desired values are immediately fed into the update bus
// as an optimistic local-command update, so downstream state reflects
// intent before the device confirms. This is an optimistic mechanism, not
// a guarantee of compliance. A pending entry clears on a matching
// acknowledgement, expires on timeout (the optimistic value is never
// forcibly rolled back; the next genuine observation supersedes it), or is
// superseded by a newer command for the same field.
package dispatch
