package ui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Extrutex/KATANA-Klipper-Installer/internal/history"
	"github.com/Extrutex/KATANA-Klipper-Installer/internal/link"
	"github.com/Extrutex/KATANA-Klipper-Installer/internal/state"
)

// Run starts the Bubble Tea program and blocks until the user quits or ctx is
// cancelled.
func Run(ctx context.Context, opts Options) error {
	if opts.Link == nil {
		return errors.New("ui: link is required")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(chan struct{}, 1)
	signal := func() {
		select {
		case updates <- struct{}{}:
		default:
		}
	}
	unsubscribe := []func(){
		opts.Link.SubscribeState(func(link.ConnState) { signal() }),
		opts.Link.SubscribeSnapshot(func(state.Snapshot) { signal() }),
		opts.Link.SubscribeConsole(func(history.ConsoleEntry) { signal() }),
		opts.Link.SubscribeDiagnostics(func(history.DiagnosticEntry) { signal() }),
	}
	defer func() {
		for _, fn := range unsubscribe {
			fn()
		}
	}()

	m := newModel(ctx, opts, updates)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
