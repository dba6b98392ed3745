// Package moonraker holds the wire protocol spoken by the Moonraker API server that
// fronts a Klipper printer.
//
// # Overview
//
// The link client talks to Moonraker over a single websocket carrying JSON-RPC 2.0
// text frames. This package knows how those frames look; it knows nothing about
// connections, timeouts, or state. It also provides a small HTTP client for the
// side-channel endpoints (file listing, deletion, timelapse media) that consumers
// use next to the websocket.
//
// # Frame Shapes
//
// Every frame decodes into Frame and is classified by field presence:
//
//   - id with result or error: a response to one of our requests
//   - id alone: a request from the server (unused by Moonraker today)
//   - no id: an unsolicited notification such as notify_status_update
//
// DecodeFrame rejects frames that are not JSON, notifications without a method,
// and responses whose id is not numeric; all such errors wrap ErrInvalidFrame.
//
// # Methods
//
// methods.go lists the request methods and notification names the link uses.
// Parameters and results that the link interprets have typed mirrors in types.go
// (ObjectList, SubscribeParams, SubscribeResult, ServerInfo, ProcStats). Object
// status payloads stay raw here and are validated by the state package.
//
// # HTTP Side Channel
//
// HTTPClient accepts a host:port, an http(s) URL, or the ws(s) websocket URL and
// derives its base URL from it. It follows the same request/decode pattern as the
// websocket side: Accept JSON, a fixed User-Agent, and errors wrapped with the
// failing step ("execute request", "decode response").
package moonraker
