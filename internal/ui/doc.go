// Package ui implements the KATANA terminal dashboard with Bubble Tea.
//
// # Overview
//
// The dashboard is a thin consumer of link.Client. It never talks to the
// socket: it reads snapshots, connection state, console and diagnostics from the
// client, and sends commands through it. Nothing it renders is persisted.
//
// # Views
//
//   - Printer: heaters, print progress, toolhead and the list of subscribed
//     objects, all derived from the current state.Snapshot
//   - Console: console history in a scrolling viewport with a text input that
//     sends G-code through SendCommand
//   - Diagnostics: recent RPC calls and connection transitions with status and
//     latency
//
// A header shows the connection state, device status and host health on every
// view; the footer shows key help.
//
// # Updates
//
// Link observers run on the link's goroutines and must return quickly, so they
// only signal a buffered channel. A tea.Cmd waits on that channel and delivers a
// linkUpdateMsg; the model then re-reads everything it renders from the client.
// Bursts of updates coalesce into one redraw.
//
// # Key Bindings
//
//	tab / shift+tab   next / previous view
//	1 2 3             printer, console, diagnostics
//	i or :            focus the console input
//	enter             send the input line
//	esc               leave the input
//	up/down pgup/pgdn scroll
//	t                 cycle theme
//	ctrl+x            emergency stop (press twice)
//	?                 toggle full help
//	q / ctrl+c        quit
package ui
