// Package tui provides the interactive controller using Bubbletea.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kilimcininkoroglu/dogan/internal/engine"
	"github.com/kilimcininkoroglu/dogan/internal/mailbox"
	"github.com/kilimcininkoroglu/dogan/internal/media"
	"github.com/kilimcininkoroglu/dogan/internal/pipeline"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	successStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	highlightStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// Backend runs queries and transfers for the controller
type Backend interface {
	StartQuery(ctx context.Context, url string, mode media.Mode) *mailbox.Mailbox[media.QueryResult]
	Run(ctx context.Context, job engine.Job, onLine engine.LineFunc, onProgress engine.ProgressFunc) (pipeline.Result, error)
}

// Settings configures the controller
type Settings struct {
	Destination  string
	Mode         media.Mode
	MaxHeight    int
	PollInterval time.Duration
	ClearAfter   time.Duration // 0 keeps the finished transfer on screen
	LogLines     int
	ToolWarning  string // shown under the title when set
	URL          string // checked on start when set
}

func (s Settings) withDefaults() Settings {
	if s.MaxHeight <= 0 {
		s.MaxHeight = media.DefaultMaxHeight
	}
	if s.PollInterval <= 0 {
		s.PollInterval = 100 * time.Millisecond
	}
	if s.LogLines <= 0 {
		s.LogLines = 8
	}
	if s.Destination == "" {
		s.Destination = "."
	}
	return s
}

type queryState int

const (
	queryIdle queryState = iota
	queryRunning
)

type focusArea int

const (
	focusURL focusArea = iota
	focusList
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusBusy
	statusSuccess
	statusError
)

// Messages. Each carries the generation it belongs to so late arrivals
// from a replaced query or transfer are dropped.
type (
	checkMsg struct{}
	pollMsg  struct{ gen int }
	lineMsg  struct {
		gen  int
		line string
	}
	progressMsg struct {
		gen     int
		percent float64
	}
	doneMsg struct {
		gen    int
		result pipeline.Result
		err    error
	}
	clearMsg struct{ gen int }
)

// Model is the Bubbletea model of the controller. It is the only writer of
// display state.
type Model struct {
	ctx      context.Context
	backend  Backend
	settings Settings

	input       textinput.Model
	focus       focusArea
	mode        media.Mode
	qualities   media.QualityList
	canDownload bool
	checkedURL  string

	query       queryState
	queryGen    int
	queryURL    string
	inbox       *mailbox.Mailbox[media.QueryResult]
	cancelQuery context.CancelFunc

	downloading    bool
	downloadGen    int
	events         chan tea.Msg
	cancelDownload context.CancelFunc
	percent        float64
	log            []string

	status     string
	statusKind statusKind

	spinner  spinner.Model
	progress progress.Model
	width    int
	quitting bool
}

// NewModel creates the controller. ctx bounds every query and transfer it
// starts.
func NewModel(ctx context.Context, backend Backend, settings Settings) Model {
	settings = settings.withDefaults()

	in := textinput.New()
	in.Placeholder = "https://..."
	in.Prompt = "URL: "
	in.CharLimit = 2048
	in.Width = 60
	in.SetValue(settings.URL)
	in.Focus()

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(50),
		progress.WithoutPercentage(),
	)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	return Model{
		ctx:       ctx,
		backend:   backend,
		settings:  settings,
		input:     in,
		mode:      settings.Mode,
		qualities: media.Placeholder(settings.Mode, settings.MaxHeight),
		spinner:   s,
		progress:  p,
		width:     80,
		status:    "Enter a URL and press enter to list qualities",
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick}
	if m.settings.URL != "" {
		cmds = append(cmds, func() tea.Msg { return checkMsg{} })
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = msg.Width - 12
		if m.progress.Width > 80 {
			m.progress.Width = 80
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case checkMsg:
		return m.startQuery()

	case pollMsg:
		return m.handlePoll(msg)

	case lineMsg:
		if msg.gen != m.downloadGen {
			return m, nil
		}
		m.appendLog(msg.line)
		return m, waitForEvent(m.events)

	case progressMsg:
		if msg.gen != m.downloadGen {
			return m, nil
		}
		m.percent = msg.percent
		return m, waitForEvent(m.events)

	case doneMsg:
		return m.handleDone(msg)

	case clearMsg:
		if msg.gen != m.downloadGen || m.downloading {
			return m, nil
		}
		m.input.SetValue("")
		m.log = nil
		m.percent = 0
		m.resetList()
		m.setStatus(statusInfo, "Ready")
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+c":
		m.quitting = true
		m.stopQuery()
		if m.cancelDownload != nil {
			m.cancelDownload()
		}
		return m, tea.Quit

	case "enter":
		if m.focus == focusList {
			return m.startDownload()
		}
		return m.startQuery()

	case "ctrl+d":
		return m.startDownload()

	case "ctrl+x":
		if !m.downloading {
			m.setStatus(statusInfo, "No download to cancel")
			return m, nil
		}
		m.cancelDownload()
		m.setStatus(statusBusy, "Cancelling download...")
		return m, nil

	case "ctrl+t":
		m.toggleMode()
		return m, nil

	case "tab", "shift+tab":
		if m.focus == focusURL {
			m.focus = focusList
			m.input.Blur()
			return m, nil
		}
		m.focus = focusURL
		return m, m.input.Focus()
	}

	if m.focus == focusList {
		switch msg.String() {
		case "up", "k":
			m.qualities.Move(-1)
		case "down", "j":
			m.qualities.Move(1)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	url := strings.TrimSpace(m.input.Value())
	switch {
	case m.query == queryRunning && url != m.queryURL:
		m.stopQuery()
		m.resetList()
		m.setStatus(statusInfo, "URL changed, check again")
	case m.checkedURL != "" && url != m.checkedURL:
		m.resetList()
	}
	return m, cmd
}

// startQuery launches a format query. A running query is cancelled and its
// results are ignored.
func (m Model) startQuery() (tea.Model, tea.Cmd) {
	url := strings.TrimSpace(m.input.Value())
	if err := engine.ValidateURL(url); err != nil {
		m.setStatus(statusError, "Invalid URL: "+err.Error())
		return m, nil
	}

	m.stopQuery()
	m.resetList()

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancelQuery = cancel
	m.queryGen++
	m.query = queryRunning
	m.queryURL = url
	m.inbox = m.backend.StartQuery(ctx, url, m.mode)
	m.setStatus(statusBusy, fmt.Sprintf("Fetching %s formats...", m.mode))
	return m, m.poll()
}

func (m Model) poll() tea.Cmd {
	gen := m.queryGen
	return tea.Tick(m.settings.PollInterval, func(time.Time) tea.Msg {
		return pollMsg{gen: gen}
	})
}

// handlePoll drains at most one query result per tick. An empty mailbox
// schedules exactly one further tick.
func (m Model) handlePoll(msg pollMsg) (tea.Model, tea.Cmd) {
	if msg.gen != m.queryGen || m.query != queryRunning {
		return m, nil
	}

	result, ok := m.inbox.TryTake()
	if !ok {
		return m, m.poll()
	}

	m.query = queryIdle
	m.inbox = nil
	if m.cancelQuery != nil {
		m.cancelQuery()
		m.cancelQuery = nil
	}

	if result.URL != strings.TrimSpace(m.input.Value()) {
		m.resetList()
		return m, nil
	}
	if result.Failed() {
		m.resetList()
		m.setStatus(statusError, "Could not list formats: "+result.Message())
		return m, nil
	}

	m.qualities = media.NewQualityList(media.AutoLabel(result.Mode, m.settings.MaxHeight), result.Entries)
	m.checkedURL = result.URL
	m.canDownload = len(result.Entries) > 0
	if !m.canDownload {
		m.setStatus(statusError, fmt.Sprintf("No %s formats found", result.Mode))
		return m, nil
	}
	m.setStatus(statusSuccess, fmt.Sprintf("Found %d %s qualities", len(result.Entries), result.Mode))
	return m, nil
}

func (m Model) startDownload() (tea.Model, tea.Cmd) {
	if m.downloading {
		m.setStatus(statusError, "A download is already running")
		return m, nil
	}
	if !m.canDownload {
		m.setStatus(statusError, "List the formats first")
		return m, nil
	}

	selected := m.qualities.Selected()
	job, err := engine.NewJob(m.checkedURL, m.mode, selected.Selector, m.settings.Destination)
	if err != nil {
		m.setStatus(statusError, err.Error())
		return m, nil
	}

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancelDownload = cancel
	m.downloadGen++
	m.downloading = true
	m.percent = 0
	m.log = nil
	m.events = make(chan tea.Msg, 64)
	m.setStatus(statusBusy, fmt.Sprintf("Downloading %s (%s)...", m.mode, selected.Label))

	go transfer(m.ctx, ctx, m.backend, job, m.downloadGen, m.events)
	return m, waitForEvent(m.events)
}

// transfer runs job and turns its callbacks into messages. Sends give up
// once root is done so a closed program never blocks the transfer.
func transfer(root, ctx context.Context, backend Backend, job engine.Job, gen int, events chan<- tea.Msg) {
	defer close(events)

	send := func(msg tea.Msg) {
		select {
		case events <- msg:
		case <-root.Done():
		}
	}

	var (
		result pipeline.Result
		err    error
	)
	func() {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("transfer panicked: %v", p)
			}
		}()
		result, err = backend.Run(ctx, job,
			func(line string) { send(lineMsg{gen: gen, line: line}) },
			func(pct float64) { send(progressMsg{gen: gen, percent: pct}) })
	}()
	send(doneMsg{gen: gen, result: result, err: err})
}

func waitForEvent(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

func (m Model) handleDone(msg doneMsg) (tea.Model, tea.Cmd) {
	if msg.gen != m.downloadGen {
		return m, nil
	}
	m.downloading = false
	if m.cancelDownload != nil {
		m.cancelDownload()
		m.cancelDownload = nil
	}

	switch {
	case errors.Is(msg.err, context.Canceled):
		m.setStatus(statusError, "Download cancelled")
		return m, nil
	case msg.err != nil:
		m.setStatus(statusError, "Download failed: "+msg.err.Error())
		return m, nil
	}

	m.percent = 100
	text := "Download complete"
	if msg.result.OutputPath != "" {
		text += ": " + msg.result.OutputPath
	}
	m.setStatus(statusSuccess, text)

	if m.settings.ClearAfter <= 0 {
		return m, nil
	}
	gen := m.downloadGen
	return m, tea.Tick(m.settings.ClearAfter, func(time.Time) tea.Msg {
		return clearMsg{gen: gen}
	})
}

// toggleMode switches between video and audio. The list goes back to the
// mode's placeholder and a running query is abandoned.
func (m *Model) toggleMode() {
	if m.mode == media.ModeVideo {
		m.mode = media.ModeAudio
	} else {
		m.mode = media.ModeVideo
	}
	m.stopQuery()
	m.resetList()
	m.setStatus(statusInfo, fmt.Sprintf("Mode: %s", m.mode))
}

func (m *Model) stopQuery() {
	if m.cancelQuery != nil {
		m.cancelQuery()
		m.cancelQuery = nil
	}
	if m.query == queryRunning {
		m.queryGen++
	}
	m.query = queryIdle
	m.inbox = nil
}

func (m *Model) resetList() {
	m.qualities = media.Placeholder(m.mode, m.settings.MaxHeight)
	m.canDownload = false
	m.checkedURL = ""
}

// appendLog adds a line to the bounded log. Consecutive progress lines
// replace each other.
func (m *Model) appendLog(line string) {
	if _, ok := engine.ParseProgress(line); ok && len(m.log) > 0 {
		if _, prev := engine.ParseProgress(m.log[len(m.log)-1]); prev {
			m.log[len(m.log)-1] = line
			return
		}
	}
	m.log = append(m.log, line)
	if over := len(m.log) - m.settings.LogLines; over > 0 {
		m.log = m.log[over:]
	}
}

func (m *Model) setStatus(kind statusKind, text string) {
	m.statusKind = kind
	m.status = text
}

// View implements tea.Model
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("dogan"))
	b.WriteString("\n")
	if m.settings.ToolWarning != "" {
		b.WriteString(warningStyle.Render("! " + m.settings.ToolWarning))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Mode: "))
	b.WriteString(highlightStyle.Render(m.mode.String()))
	b.WriteString(dimStyle.Render("   Save to: " + m.settings.Destination))
	b.WriteString("\n\n")

	b.WriteString(m.renderQualities())
	b.WriteString("\n\n")

	b.WriteString(m.progress.ViewAs(m.percent / 100))
	b.WriteString("  ")
	b.WriteString(highlightStyle.Render(fmt.Sprintf("%5.1f%%", m.percent)))
	b.WriteString("\n")

	if len(m.log) > 0 {
		b.WriteString(boxStyle.Render(strings.Join(m.log, "\n")))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n\n")
	b.WriteString(m.renderHelp())

	return b.String()
}

func (m Model) renderQualities() string {
	var b strings.Builder

	header := "Quality"
	if m.focus == focusList {
		header = highlightStyle.Render(header)
	} else {
		header = dimStyle.Render(header)
	}
	b.WriteString(header)

	for i, label := range m.qualities.Labels() {
		b.WriteString("\n")
		if i == m.qualities.Index() {
			b.WriteString(highlightStyle.Render("> " + label))
			continue
		}
		b.WriteString("  " + label)
	}
	return b.String()
}

func (m Model) renderStatus() string {
	switch m.statusKind {
	case statusBusy:
		return m.spinner.View() + " " + m.status
	case statusSuccess:
		return successStyle.Render("✓ " + m.status)
	case statusError:
		return errorStyle.Render("✗ " + m.status)
	default:
		return dimStyle.Render(m.status)
	}
}

func (m Model) renderHelp() string {
	keys := []string{"enter:check", "tab:focus", "ctrl+t:video/audio"}
	if m.canDownload {
		keys = append(keys, "ctrl+d:download")
	}
	if m.downloading {
		keys = append(keys, "ctrl+x:cancel")
	}
	keys = append(keys, "esc:quit")
	return dimStyle.Render(strings.Join(keys, " • "))
}
