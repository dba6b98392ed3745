package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Extrutex/KATANA-Klipper-Installer/internal/history"
	"github.com/Extrutex/KATANA-Klipper-Installer/internal/link"
	"github.com/Extrutex/KATANA-Klipper-Installer/internal/moonraker"
	"github.com/Extrutex/KATANA-Klipper-Installer/internal/state"
)

// View represents the current active view.
type View int

const (
	ViewPrinter View = iota
	ViewConsole
	ViewDiagnostics
	viewCount
)

func (v View) String() string {
	switch v {
	case ViewPrinter:
		return "Printer"
	case ViewConsole:
		return "Console"
	case ViewDiagnostics:
		return "Diagnostics"
	default:
		return "?"
	}
}

const (
	defaultTick   = time.Second
	actionTimeout = 10 * time.Second
)

// Link is the part of link.Client the dashboard reads from and acts through.
type Link interface {
	Endpoint() string
	State() link.ConnState
	Snapshot() state.Snapshot
	Console() []history.ConsoleEntry
	Diagnostics() []history.DiagnosticEntry
	SubscribeState(fn func(link.ConnState)) func()
	SubscribeSnapshot(fn func(state.Snapshot)) func()
	SubscribeConsole(fn func(history.ConsoleEntry)) func()
	SubscribeDiagnostics(fn func(history.DiagnosticEntry)) func()
	SendCommand(ctx context.Context, text string) error
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// Options configures the UI.
type Options struct {
	Link      Link
	Health    func() state.Health // optional
	ThemeName string
	Tick      time.Duration
}

// Model is the root dashboard state for Bubble Tea.
type Model struct {
	ctx     context.Context
	link    Link
	health  func() state.Health
	updates <-chan struct{}
	tick    time.Duration

	// UI state
	keys   keyMap
	help   help.Model
	theme  Theme
	view   View
	width  int
	height int
	ready  bool

	// Data state
	conn        link.ConnState
	snapshot    state.Snapshot
	hostHealth  state.Health
	console     []history.ConsoleEntry
	diagnostics []history.DiagnosticEntry

	printerView viewport.Model
	consoleView viewport.Model
	diagView    viewport.Model
	input       textinput.Model
	progress    progress.Model
	follow      bool // console sticks to the newest line

	stopArmed bool
	flash     string
	flashErr  bool
}

func newModel(ctx context.Context, opts Options, updates <-chan struct{}) Model {
	tick := opts.Tick
	if tick <= 0 {
		tick = defaultTick
	}

	input := textinput.New()
	input.Prompt = "gcode> "
	input.Placeholder = "G28"
	input.CharLimit = 512

	m := Model{
		ctx:         ctx,
		link:        opts.Link,
		health:      opts.Health,
		updates:     updates,
		tick:        tick,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		theme:       GetTheme(opts.ThemeName),
		printerView: viewport.New(0, 0),
		consoleView: viewport.New(0, 0),
		diagView:    viewport.New(0, 0),
		input:       input,
		follow:      true,
		progress:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(30), progress.WithoutPercentage()),
	}
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.ctx, m.updates), tickCmd(m.tick))
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.resize()
		return m, nil

	case linkUpdateMsg:
		m.refresh()
		return m, waitForUpdate(m.ctx, m.updates)

	case tickMsg:
		m.refreshHealth()
		return m, tickCmd(m.tick)

	case commandResultMsg:
		if msg.err != nil {
			m.setFlash(fmt.Sprintf("send %q failed: %v", msg.text, msg.err), true)
		}
		return m, nil

	case stopResultMsg:
		if msg.err != nil {
			m.setFlash(fmt.Sprintf("emergency stop failed: %v", msg.err), true)
		} else {
			m.setFlash("emergency stop sent", false)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.input.Focused() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.EmergencyStop) {
		if m.stopArmed {
			m.stopArmed = false
			return m, emergencyStopCmd(m.ctx, m.link)
		}
		m.stopArmed = true
		m.setFlash("press ctrl+x again to send an emergency stop", true)
		return m, nil
	}
	if m.stopArmed {
		m.stopArmed = false
		m.setFlash("", false)
	}

	if m.input.Focused() {
		return m.handleInputKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resize()
	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.renderContent()
	case key.Matches(msg, m.keys.Tab):
		m.view = (m.view + 1) % viewCount
	case key.Matches(msg, m.keys.ShiftTab):
		m.view = (m.view + viewCount - 1) % viewCount
	case key.Matches(msg, m.keys.ViewPrinter):
		m.view = ViewPrinter
	case key.Matches(msg, m.keys.ViewConsole):
		m.view = ViewConsole
	case key.Matches(msg, m.keys.ViewDiagnostics):
		m.view = ViewDiagnostics
	case key.Matches(msg, m.keys.Focus):
		m.view = ViewConsole
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.Bottom):
		vp := m.activeViewport()
		vp.GotoBottom()
		if m.view == ViewConsole {
			m.follow = true
		}
	default:
		vp := m.activeViewport()
		var cmd tea.Cmd
		*vp, cmd = vp.Update(msg)
		if m.view == ViewConsole {
			m.follow = m.consoleView.AtBottom()
		}
		return m, cmd
	}
	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit
	case key.Matches(msg, m.keys.Escape):
		m.input.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.SetValue("")
		m.follow = true
		m.consoleView.GotoBottom()
		return m, sendCommandCmd(m.ctx, m.link, text)
	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.consoleView, cmd = m.consoleView.Update(msg)
		m.follow = m.consoleView.AtBottom()
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) activeViewport() *viewport.Model {
	switch m.view {
	case ViewConsole:
		return &m.consoleView
	case ViewDiagnostics:
		return &m.diagView
	default:
		return &m.printerView
	}
}

func (m *Model) setFlash(text string, isErr bool) {
	m.flash = text
	m.flashErr = isErr
}

// refresh re-reads everything rendered from the link.
func (m *Model) refresh() {
	m.conn = m.link.State()
	m.snapshot = m.link.Snapshot()
	m.console = m.link.Console()
	m.diagnostics = m.link.Diagnostics()
	m.refreshHealth()
	m.renderContent()
}

func (m *Model) refreshHealth() {
	if m.health != nil {
		m.hostHealth = m.health()
	}
}

// renderContent pushes current data into the viewports. The console follows the
// newest line unless the user scrolled away from it.
func (m *Model) renderContent() {
	styles := m.theme.Styles()

	m.printerView.SetContent(renderPrinter(styles, m.snapshot, m.progress))

	m.consoleView.SetContent(renderConsole(styles, m.console))
	if m.follow {
		m.consoleView.GotoBottom()
	}

	m.diagView.SetContent(renderDiagnostics(styles, m.diagnostics))
}

// resize lays the viewports out below the header and tab bar and above the
// status line and help.
func (m *Model) resize() {
	m.help.Width = m.width
	m.input.Width = max(m.width-len(m.input.Prompt)-2, 10)

	footer := 1 + lipgloss.Height(m.help.View(m.keys))
	body := max(m.height-2-footer, 1)

	m.printerView.Width, m.printerView.Height = m.width, body
	m.diagView.Width, m.diagView.Height = m.width, body
	m.consoleView.Width, m.consoleView.Height = m.width, max(body-1, 1)
	m.renderContent()
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Connecting to " + m.link.Endpoint() + "..."
	}
	styles := m.theme.Styles()

	var b strings.Builder
	b.WriteString(renderHeader(styles, m.width, m.link.Endpoint(), m.conn, m.snapshot, m.hostHealth))
	b.WriteString("\n")
	b.WriteString(renderTabs(styles, m.view))
	b.WriteString("\n")

	switch m.view {
	case ViewConsole:
		b.WriteString(m.consoleView.View())
		b.WriteString("\n")
		b.WriteString(m.input.View())
	case ViewDiagnostics:
		b.WriteString(m.diagView.View())
	default:
		b.WriteString(m.printerView.View())
	}
	b.WriteString("\n")

	status := styles.MutedText
	if m.flashErr {
		status = styles.DangerText
	}
	b.WriteString(status.Render(m.flash))
	b.WriteString("\n")
	b.WriteString(styles.Footer.Render(m.help.View(m.keys)))
	return b.String()
}

func renderTabs(styles Styles, active View) string {
	tabs := make([]string, 0, viewCount)
	for v := View(0); v < viewCount; v++ {
		label := fmt.Sprintf("%d %s", int(v)+1, v)
		if v == active {
			tabs = append(tabs, styles.TabOn.Render(label))
		} else {
			tabs = append(tabs, styles.Tab.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

// Messages

type tickMsg time.Time

type linkUpdateMsg struct{}

type commandResultMsg struct {
	text string
	err  error
}

type stopResultMsg struct{ err error }

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForUpdate(ctx context.Context, updates <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case <-updates:
			return linkUpdateMsg{}
		}
	}
}

func sendCommandCmd(ctx context.Context, l Link, text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, actionTimeout)
		defer cancel()
		return commandResultMsg{text: text, err: l.SendCommand(ctx, text)}
	}
}

func emergencyStopCmd(ctx context.Context, l Link) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, actionTimeout)
		defer cancel()
		_, err := l.Call(ctx, moonraker.MethodEmergencyStop, nil)
		return stopResultMsg{err: err}
	}
}
