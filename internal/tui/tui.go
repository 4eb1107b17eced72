// Package tui provides a Bubble Tea terminal user interface for bunkr-downloader.
package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/handiism/bunkr-downloader/internal/config"
	"github.com/handiism/bunkr-downloader/internal/download"
	"github.com/handiism/bunkr-downloader/internal/hoststatus"
	"github.com/handiism/bunkr-downloader/internal/ledger"
	"github.com/handiism/bunkr-downloader/internal/model"
	"github.com/handiism/bunkr-downloader/internal/resolve"
	"github.com/handiism/bunkr-downloader/internal/stats"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)

	albumStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))
)

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateLoading
	StateDownloading
	StateComplete
	StateError
)

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   download.Level
}

// eventBuffer collects engine events from worker goroutines; the UI drains
// it on every tick.
type eventBuffer struct {
	mu     sync.Mutex
	events []download.Event
}

func (b *eventBuffer) add(event download.Event) {
	b.mu.Lock()
	b.events = append(b.events, event)
	b.mu.Unlock()
}

func (b *eventBuffer) drain() []download.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	events := b.events
	b.events = nil
	return events
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	settings  *config.Settings
	logs      []LogEntry
	album     *model.Album
	err       error

	// Download context
	ctx    context.Context
	cancel context.CancelFunc

	// Engine references, set once loading succeeds
	scheduler *download.Scheduler
	recorder  *stats.Recorder
	buffer    *eventBuffer
	summary   *stats.Summary

	// Options
	verbose bool

	width  int
	height int
}

// NewModel creates a new TUI model.
func NewModel(settings *config.Settings) Model {
	ti := textinput.New()
	ti.Placeholder = "/path/to/album-manifest.json"
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		state:     StateInput,
		textInput: ti,
		spinner:   sp,
		progress:  prog,
		settings:  settings,
		logs:      make([]LogEntry, 0),
		buffer:    &eventBuffer{},
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Message types
type (
	// LoadDoneMsg is sent when the manifest and host status are loaded.
	LoadDoneMsg struct {
		Album     *model.Album
		Scheduler *download.Scheduler
		Recorder  *stats.Recorder
		Err       error
	}

	// DownloadDoneMsg is sent when the run finishes.
	DownloadDoneMsg struct {
		Summary *stats.Summary
		Err     error
	}

	// TickMsg is for periodic progress updates.
	TickMsg struct{}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 20
		if m.progress.Width > 80 {
			m.progress.Width = 80
		}
		if m.progress.Width < 20 {
			m.progress.Width = 20
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.state == StateDownloading || m.state == StateLoading {
				m.cancel()
			}

		case "enter":
			if m.state == StateInput && m.textInput.Value() != "" {
				m.state = StateLoading
				return m, tea.Batch(m.load(), m.spinner.Tick)
			}

		case "v":
			if m.state == StateInput {
				m.verbose = !m.verbose
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				// Reset for another album
				m.state = StateInput
				m.logs = nil
				m.album = nil
				m.err = nil
				m.scheduler = nil
				m.recorder = nil
				m.summary = nil
				m.buffer = &eventBuffer{}
				m.ctx, m.cancel = context.WithCancel(context.Background())
				m.textInput.SetValue("")
				m.textInput.Focus()
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case LoadDoneMsg:
		if msg.Err != nil {
			m.state = StateError
			m.err = msg.Err
		} else {
			m.album = msg.Album
			m.scheduler = msg.Scheduler
			m.recorder = msg.Recorder
			m.state = StateDownloading
			cmds = append(cmds, m.startDownload(), m.tickProgress())
		}

	case DownloadDoneMsg:
		m.summary = msg.Summary
		m.appendEvents(m.buffer.drain())
		if msg.Err != nil && m.ctx.Err() == nil {
			m.state = StateError
			m.err = msg.Err
		} else if m.ctx.Err() != nil {
			m.state = StateError
			m.err = fmt.Errorf("cancelled by user")
		} else {
			m.state = StateComplete
		}

	case TickMsg:
		if m.recorder != nil && m.state == StateDownloading {
			m.appendEvents(m.buffer.drain())
			summary := m.recorder.Summary()
			m.summary = summary

			var percent float64
			if len(m.album.Items) > 0 {
				percent = float64(summary.Total()) / float64(len(m.album.Items))
			}
			cmds = append(cmds, m.progress.SetPercent(percent), m.tickProgress())
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	// Update text input
	if m.state == StateInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) appendEvents(events []download.Event) {
	for _, event := range events {
		if event.Level == download.LevelVerbose && !m.verbose {
			continue
		}
		m.logs = append(m.logs, LogEntry{Message: event.Message, Level: event.Level})
	}
	// Keep only last 10 logs
	if len(m.logs) > 10 {
		m.logs = m.logs[len(m.logs)-10:]
	}
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	// Header
	b.WriteString(titleStyle.Render("Bunkr Downloader"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Bulk-download album files"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateLoading:
		b.WriteString(m.viewLoading())
	case StateDownloading:
		b.WriteString(m.viewDownloading())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	// Footer
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.helpText()))

	return b.String()
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Enter album manifest path:"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	verboseCheck := "[ ]"
	if m.verbose {
		verboseCheck = "[x]"
	}
	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s Verbose output (v)\n", verboseCheck))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Download path: %s", m.settings.DownloadRoot)))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewLoading() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render("Loading manifest and host status..."))
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewDownloading() string {
	var b strings.Builder

	if m.album != nil {
		b.WriteString(albumStyle.Render(fmt.Sprintf("%s (%d files)", m.album.Name, len(m.album.Items))))
		b.WriteString("\n\n")
	}

	var done int
	var received int64
	if m.summary != nil {
		done = m.summary.Total()
		received = m.summary.BytesReceived
	}
	var percent float64
	if m.album != nil && len(m.album.Items) > 0 {
		percent = float64(done) / float64(len(m.album.Items))
	}
	b.WriteString(m.progress.ViewAs(percent))
	b.WriteString("\n")

	b.WriteString(infoStyle.Render(fmt.Sprintf(
		"Files: %d/%d | Received: %.2f MB",
		done,
		len(m.album.Items),
		float64(received)/1024/1024,
	)))
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	if m.summary == nil {
		return boxStyle.Render("Download complete")
	}
	return boxStyle.Render(fmt.Sprintf(
		"Download complete\n\n"+
			"Downloaded: %d\n"+
			"Skipped: %d\n"+
			"Failed: %d\n"+
			"Deferred for next run: %d\n"+
			"Size: %.2f MB in %s",
		m.summary.Totals[model.ResultCompleted],
		m.summary.Totals[model.ResultSkipped],
		m.summary.Totals[model.ResultFailed],
		m.summary.Deferred,
		float64(m.summary.BytesReceived)/1024/1024,
		m.summary.Elapsed.Round(time.Second),
	))
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("Error:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "-"
		switch log.Level {
		case download.LevelError:
			style = errorStyle
			prefix = "x"
		case download.LevelWarning:
			style = warningStyle
			prefix = "!"
		case download.LevelSuccess:
			style = successStyle
			prefix = "+"
		case download.LevelInfo:
			style = infoStyle
			prefix = ">"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) helpText() string {
	switch m.state {
	case StateInput:
		return "enter: start | v: verbose | esc: quit"
	case StateLoading, StateDownloading:
		return "esc: cancel"
	case StateComplete, StateError:
		return "r: another album | q: quit"
	}
	return ""
}

// load reads the manifest, fetches the host-status seed, and assembles the
// engine.
func (m *Model) load() tea.Cmd {
	buffer := m.buffer
	settings := m.settings
	ctx := m.ctx
	path := m.textInput.Value()

	return func() tea.Msg {
		album, err := resolve.Load(path, settings.DownloadRoot)
		if err != nil {
			return LoadDoneMsg{Err: err}
		}

		var seed map[string]bool
		if settings.StatusURL != "" {
			// A dead status endpoint degrades to an empty seed.
			seed, _ = hoststatus.FetchSeed(ctx, settings.StatusURL)
		}

		recorder := stats.NewRecorder(zerolog.Nop())
		led := ledger.New(settings.LedgerPath(album.ID), zerolog.Nop())
		scheduler := download.NewScheduler(settings, hoststatus.NewTracker(seed), led, recorder,
			buffer.add, zerolog.Nop())

		return LoadDoneMsg{Album: album, Scheduler: scheduler, Recorder: recorder}
	}
}

// startDownload runs the scheduler in the background.
func (m *Model) startDownload() tea.Cmd {
	ctx := m.ctx
	scheduler := m.scheduler
	album := m.album

	return func() tea.Msg {
		summary, err := scheduler.Run(ctx, album)
		return DownloadDoneMsg{Summary: summary, Err: err}
	}
}

// Run starts the TUI application.
func Run(settings *config.Settings) error {
	p := tea.NewProgram(NewModel(settings), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
