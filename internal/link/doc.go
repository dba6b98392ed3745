// Package link is the persistent connection between KATANA and a Moonraker
// server.
//
// A Client owns exactly one websocket at a time and keeps a local copy of the
// printer's object state synchronized with it. Consumers never touch the socket:
// they read snapshots, subscribe to changes, issue calls, and send G-code through
// the Client.
//
// Internals
//
//   - supervisor: dials, serves, detects failure (read error, abnormal close,
//     missed heartbeat) and reconnects with capped exponential backoff. It is the
//     only writer of ConnState. Leaving ONLINE fails every pending call with
//     ErrConnectionLost and invalidates the snapshot before observers are told.
//   - correlator: assigns request ids, matches responses, and resolves every
//     pending request exactly once (response, timeout, or connection drop).
//   - synchronizer: subscribes on every new connection and on klippy_ready,
//     installs the subscribe result as a full replace, and merges status deltas in
//     arrival order. Deltas that arrive before the replace are discarded.
//
// Concurrency
//
// Inbound frames are handled on one reader goroutine per connection, strictly in
// arrival order. Response handling, snapshot merges, and observer callbacks for
// them all run there, so observers see merges in the order the printer sent them.
// Callers block only inside Call. Observer callbacks must return quickly and must
// not subscribe from inside a callback.
package link
