// Package logs wires log/slog for KATANA: a text sink for the terminal and a JSON
// sink for the log file, fanned out with slog-multi and sharing one LevelVar.
package logs
