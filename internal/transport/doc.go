// Package transport owns the physical connection to Moonraker.
//
// A Conn is one full-duplex websocket carrying JSON text frames. It knows nothing
// about JSON-RPC: callers hand it raw bytes and get raw bytes back. The link
// supervisor is the only user; it dials through a Dialer so tests can substitute an
// in-process server or a scripted connection.
//
// Read must be called from a single goroutine. Write and Ping may be called
// concurrently with Read and with each other. Ping only completes while a Read is
// in progress, since control frames are processed by the reader.
package transport
