// Package history keeps the two bounded logs the link exposes for troubleshooting.
//
// # Overview
//
// Diagnostics records every RPC call issued over the link (method, status,
// duration, error) together with synthetic entries for connection-state
// transitions and discarded frames, so an operator can line up API failures with
// connectivity loss. Console records the textual commands a user issued and the
// textual responses the printer sent back, for console-style display.
//
// Both are built on Ring, a fixed-capacity log that evicts the oldest item first.
// Capacities come from configuration (defaults 50 and 500).
//
// # Concurrency
//
// Diagnostics and Console guard their ring with a mutex and publish through a
// notify.Hub, so subscribers receive entries in the exact order they were
// recorded. Entries returns copies; callers may keep them.
//
// # Subscription
//
// Subscribers see new and updated entries only. A view that needs history calls
// Entries first and then Subscribe.
package history
