package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/Extrutex/KATANA-Klipper-Installer/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	flagSet := pflag.NewFlagSet("katana", pflag.ContinueOnError)
	configPath := flagSet.String("config", "", "override link config path (optional)")
	url := flagSet.String("url", "", "Moonraker websocket URL (overrides the config file)")
	logLevel := flagSet.String("log-level", "", "debug, info, warn or error")
	mode := flagSet.String("mode", app.ModeTUI, "session mode when no command is given: tui or watch")
	flagSet.Usage = func() { printHelp(flagSet) }

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "katana: %v\n", err)
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath: *configPath,
		URL:        *url,
		LogLevel:   *logLevel,
		Mode:       *mode,
		Args:       flagSet.Args(),
	}
	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "katana: %v\n", err)
		return 1
	}
	return 0
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `KATANA printer link: live Klipper state over Moonraker.

Usage:
  katana [flags]                      open the dashboard (or --mode watch)
  katana [flags] call METHOD [JSON]   send one request and print the result
  katana [flags] send GCODE...        send a G-code script and echo the console
  katana [flags] files [ROOT]         list files on the printer (default gcodes)
  katana [flags] logs [LINES]         print the newest log_file records

Flags:
%s`, flagSet.FlagUsages())
}
