// Package logtail reads the tail of the link's JSON log file and renders its
// records for the terminal.
//
// Read keeps at most maxLines in a history.Ring while scanning, so memory stays
// bounded regardless of file size. Format turns one slog JSON record into a
// single line:
//
//	12:30:45 INFO  subscribed component=link epoch=2 objects=6
//
// Lines that are not JSON objects are returned unchanged.
package logtail
