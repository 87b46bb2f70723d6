package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"safewatch/config"
	"safewatch/eventlog"
	"safewatch/severity"
)

type tickMsg time.Time

// maxEvents bounds the log panel's history; the full log stays in app.events.
const maxEvents = 200

type tuiModel struct {
	ctx           context.Context
	app           *app
	frame         int
	width, height int
	running       bool
	flash         severity.Level
	flashOn       bool
	banner        eventlog.Event
	bannerOn      bool
	events        []eventlog.Event
	status        string // last key action result
	interval      time.Duration
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

var severityColors = map[severity.Level]string{
	severity.Critical: "196",
	severity.High:     "208",
	severity.Medium:   "226",
	severity.Low:      "39",
	severity.Safe:     "42",
}

var (
	fgStyles = map[severity.Level]lipgloss.Style{}
	bgStyles = map[severity.Level]lipgloss.Style{}
)

func init() {
	for l, c := range severityColors {
		fgStyles[l] = lipgloss.NewStyle().Foreground(lipgloss.Color(c)).Bold(true)
		bgStyles[l] = lipgloss.NewStyle().Background(lipgloss.Color(c)).Foreground(lipgloss.Color("16")).Bold(true)
	}
}

func newTUIModel(ctx context.Context, a *app, cfg *config.Config) tuiModel {
	return tuiModel{
		ctx:      ctx,
		app:      a,
		running:  a.session.Running(),
		interval: cfg.Capture.Interval,
	}
}

func tuiTick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

// toggleCmd runs outside Update: stopping resets the orchestrator, which
// sends messages back to the program.
func toggleCmd(ctx context.Context, a *app) tea.Cmd {
	return func() tea.Msg {
		running, err := a.toggle(ctx)
		return SessionMsg{Running: running, Err: err}
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case tickMsg:
		m.frame++
		m.running = m.app.session.Running()
		return m, tuiTick()

	case FlashMsg:
		m.flash, m.flashOn = msg.Level, msg.On

	case BannerMsg:
		m.banner, m.bannerOn = msg.Event, msg.On

	case EventMsg:
		if !hasEvent(m.events, msg.Event.ID) {
			m.events = tail(append(m.events, msg.Event))
		}

	case SessionMsg:
		m.running = msg.Running
		switch {
		case msg.Err != nil:
			m.status = "start failed: " + msg.Err.Error()
		case msg.Running:
			m.status = "monitoring started"
			m.events = tail(m.app.events.Events())
		default:
			m.status = "monitoring stopped"
		}
	}
	return m, nil
}

func (m tuiModel) handleKey(key string) (tea.Model, tea.Cmd) {
	s := m.app.settings
	switch key {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "p", " ":
		if m.app.preview() {
			m.status = "preview: high"
		} else if err := m.app.engine.LastError(); err != nil {
			m.status = "audio unavailable: " + err.Error()
		} else {
			m.status = "preview muted"
		}
	case "m":
		if s.ToggleMuted().Muted {
			m.status = "muted"
		} else {
			m.status = "unmuted"
		}
	case "w":
		m.status = "waveform: " + string(s.CycleWaveform().Waveform)
	case "+", "=":
		m.status = fmt.Sprintf("volume: %.0f%%", s.StepVolume(1).Volume*100)
	case "-", "_":
		m.status = fmt.Sprintf("volume: %.0f%%", s.StepVolume(-1).Volume*100)
	case "s":
		return m, toggleCmd(m.ctx, m.app)
	default:
		return m, nil
	}
	if err := s.SaveErr(); err != nil {
		m.status += " (not saved: " + err.Error() + ")"
	}
	return m, nil
}

const leftWidth = 46

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	gray := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	var left []string

	left = append(left, m.renderFlash()...)
	left = append(left, "")

	if m.bannerOn {
		st := fgStyles[m.banner.Severity]
		title := fmt.Sprintf("⚠ %s", strings.ToUpper(m.banner.Severity.String()))
		if m.banner.Location != "" {
			title += " · " + m.banner.Location
		}
		left = append(left, st.Render(title))
		for _, line := range wrapText(m.banner.Message, leftWidth-2) {
			left = append(left, st.Render(line))
		}
		left = append(left, "")
	}

	if m.running {
		state := "● MONITORING"
		if m.app.gate.InFlight() {
			state += spinner(m.frame)
		}
		left = append(left, fgStyles[severity.Safe].Render(state))
	} else {
		left = append(left, dim.Render("○ STOPPED"))
	}

	v := m.app.settings.Get()
	audioLine := fmt.Sprintf("[%s | vol %.0f%%", v.Waveform, v.Volume*100)
	if v.Muted {
		audioLine += " | muted"
	}
	audioLine += "]"
	left = append(left, gray.Render(audioLine))

	device := "audio: waiting for gesture"
	if m.app.engine.Ready() {
		device = "audio: ready"
	} else if m.app.engine.LastError() != nil {
		device = "audio: unavailable"
	}
	left = append(left, dim.Render(device))
	left = append(left, dim.Render("oracle: "+m.app.gate.Name()))
	left = append(left, dim.Render(fmt.Sprintf("source: %s every %v", m.app.source.Name(), m.interval)))
	left = append(left, dim.Render(fmt.Sprintf("frames %d · dropped %d · failed %d",
		m.app.session.Frames(), m.app.gate.Dropped(), m.app.gate.Failed())))

	if m.status != "" {
		left = append(left, "", gray.Render(m.status))
	}

	left = append(left, "")
	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	boldStyle := helpStyle.Bold(true)
	help := func(k, what string) string { return boldStyle.Render(k) + helpStyle.Render(" "+what) }
	left = append(left,
		help("s", "start/stop")+"  "+help("p", "preview"),
		help("w", "waveform")+"  "+help("m", "mute")+"  "+help("+/-", "volume"),
		help("q", "quit"),
		helpStyle.Render("safewatch "+version),
	)

	leftPanel := lipgloss.NewStyle().
		Width(leftWidth).
		Height(m.height).
		Render(strings.Join(left, "\n"))

	logWidth := m.width - leftWidth - 1
	if logWidth < 20 {
		logWidth = 20
	}
	logPanel := lipgloss.NewStyle().
		Width(logWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(m.renderLog(logWidth-2, m.height))

	return lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, logPanel)
}

// renderFlash draws the colour block while a flash is active.
func (m tuiModel) renderFlash() []string {
	const rows = 5
	lines := make([]string, rows)
	if !m.flashOn {
		blank := strings.Repeat(" ", leftWidth)
		for i := range lines {
			lines[i] = blank
		}
		return lines
	}
	st := bgStyles[m.flash].Width(leftWidth).Align(lipgloss.Center)
	for i := range lines {
		text := ""
		if i == rows/2 {
			text = strings.ToUpper(m.flash.String())
		}
		lines[i] = st.Render(text)
	}
	return lines
}

// renderLog lists events newest first; the newest one shows its reasoning.
func (m tuiModel) renderLog(width, height int) string {
	var b strings.Builder
	title := lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	b.WriteString(title.Render(fmt.Sprintf("Event log (%d)", len(m.events))) + "\n\n")
	if len(m.events) == 0 {
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("No events yet"))
		return b.String()
	}

	reason := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	used := 2
	for i := len(m.events) - 1; i >= 0 && used < height; i-- {
		ev := m.events[i]
		st, ok := fgStyles[ev.Severity]
		if !ok {
			st = fgStyles[severity.Safe]
		}
		head := fmt.Sprintf("%s %-8s", ev.Timestamp.Format("15:04:05"), strings.ToUpper(ev.Severity.String()))
		b.WriteString(st.Render(head) + " ")
		body := ev.Message
		if ev.Location != "" {
			body += " @ " + ev.Location
		}
		lines := wrapText(body, width-len(head)-1)
		b.WriteString(lines[0] + "\n")
		used++
		for _, l := range lines[1:] {
			b.WriteString(strings.Repeat(" ", len(head)+1) + l + "\n")
			used++
		}
		if i == len(m.events)-1 {
			for _, r := range ev.Reasoning {
				for _, l := range wrapText(r, width-4) {
					b.WriteString(reason.Render("    "+l) + "\n")
					used++
				}
			}
		}
	}
	return b.String()
}

func tail(events []eventlog.Event) []eventlog.Event {
	if len(events) > maxEvents {
		return events[len(events)-maxEvents:]
	}
	return events
}

// hasEvent reports whether id is already shown; a session start snapshot
// can race the messages for its first events.
func hasEvent(events []eventlog.Event, id string) bool {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].ID == id {
			return true
		}
	}
	return false
}

func spinner(frame int) string {
	return " " + []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}[frame%10]
}

func sendTUI(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()

	if p != nil {
		p.Send(msg)
	}
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		// Find last space within width
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
