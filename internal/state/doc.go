// Package state holds the printer state shared between the link and every view.
//
// # Overview
//
// The link's synchronizer is the only writer; views, the watch printer and the
// health poller are readers. Two stores live here:
//
//   - Store: the authoritative Snapshot of Klipper objects
//   - HealthStore: the latest server.info / machine.system_info / machine.proc_stats
//     poll results
//
// # Snapshot Model
//
// A Snapshot maps object names (extruder, heater_bed, print_stats, ...) to Fields,
// and each field holds a Value: a tagged union of null, number, string, bool,
// nested mapping and sequence. Payloads are validated while decoding
// (DecodeObjects), so nothing downstream type-asserts on interface{} values.
//
// Snapshots are immutable. Merge builds new maps along every path the delta
// touches and shares everything else with the previous snapshot, so a reader
// holding an old Snapshot never sees a later merge, partial or complete.
//
// # Update Semantics
//
// The Store moves through epochs:
//
//	Invalidate()        Synced=false, Epoch++     deltas are discarded
//	Replace(epoch, s)   Synced=true, Sequence=0   stale epochs are rejected
//	Merge(delta)        Sequence++                one observer call per merge
//
// A reconnect, or Klipper reporting ready again, invalidates the store; the next
// subscription response replaces it wholesale. Deltas received in between would be
// relative to a baseline that is about to be discarded, so they are dropped and
// counted (Discarded) rather than applied.
//
// # Device Status
//
// Every replace and merge re-derives Status and Message from webhooks.state,
// webhooks.state_message and print_stats.state. Invalidate and SetStatus may
// override it (disconnected, shutdown) until the next derivation.
//
// # Concurrency Model
//
// Reads take a read lock and return a value copy. Mutations run under the write
// lock inside the store's notify.Hub, so observers are called after the mutation
// completes, in mutation order, and never concurrently with each other. Observers
// must not call Subscribe from inside their callback.
//
// HealthStore counts failures: errors keep previous data,
// record LastError, and two consecutive failures mark the host offline.
package state
