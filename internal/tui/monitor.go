// SPDX-License-Identifier: MIT
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"ambience/internal/scene"
	"ambience/internal/transport"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Monitor is a Transport that keeps only the newest frame and event for the
// terminal to pick up at its own pace. Send never blocks.
type Monitor struct {
	frame    atomic.Pointer[scene.Frame]
	event    atomic.Pointer[scene.Event]
	received atomic.Uint64
}

var _ transport.Transport = (*Monitor)(nil)

// NewMonitor returns an empty monitor.
func NewMonitor() *Monitor { return &Monitor{} }

// Send keeps frame, state and notice envelopes and ignores everything else.
func (m *Monitor) Send(data any) error {
	env, ok := data.(transport.Envelope)
	if !ok {
		return nil
	}
	m.received.Add(1)
	switch env.Type {
	case scene.TypeFrame:
		if f, ok := env.Data.(*scene.Frame); ok {
			m.frame.Store(f)
		}
	case scene.TypeState:
		if ev, ok := env.Data.(scene.Event); ok {
			m.event.Store(&ev)
		}
	}
	return nil
}

// Close is a no-op.
func (m *Monitor) Close() error { return nil }

// Latest returns the newest frame and event, either of which may be nil.
func (m *Monitor) Latest() (*scene.Frame, *scene.Event) {
	return m.frame.Load(), m.event.Load()
}

var (
	keyToggle = key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "activate/deactivate"))

	stateStyles = map[scene.State]lipgloss.Style{
		scene.Idle:       lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C6C")),
		scene.Requesting: lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")),
		scene.Active:     lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065")).Bold(true),
	}
	spectrumStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9B87F5"))
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFDF5")).Background(lipgloss.Color("#C0392B")).Padding(0, 1)
)

// Display height of a full bar.
const barScale = 15.0

var sparks = []rune("▁▂▃▄▅▆▇█")

type monitorKeys struct{}

func (monitorKeys) ShortHelp() []key.Binding  { return []key.Binding{keyToggle, keyQuit} }
func (monitorKeys) FullHelp() [][]key.Binding { return [][]key.Binding{{keyToggle, keyQuit}} }

type monitorTickMsg time.Time

type toggledMsg struct{ err error }

// MonitorModel draws the scene's ring bars, band levels and mesh from the
// newest frame every tick. Space toggles activation through the controller.
type MonitorModel struct {
	ctx      context.Context
	mon      *Monitor
	ctl      transport.Controller
	interval time.Duration

	frame     *scene.Frame
	state     scene.State
	lastEvent *scene.Event
	notice    *scene.Notice
	err       error

	meter    progress.Model
	help     help.Model
	width    int
	quitting bool
}

// NewMonitorModel refreshes at fps frames per second.
func NewMonitorModel(ctx context.Context, mon *Monitor, ctl transport.Controller, fps int) MonitorModel {
	if fps <= 0 {
		fps = 30
	}
	return MonitorModel{
		ctx:      ctx,
		mon:      mon,
		ctl:      ctl,
		interval: time.Second / time.Duration(fps),
		meter:    progress.New(progress.WithGradient("#7C5CBF", "#E0AAFF"), progress.WithoutPercentage(), progress.WithWidth(30)),
		help:     help.New(),
		width:    80,
	}
}

func (m MonitorModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return monitorTickMsg(t) })
}

func (m MonitorModel) Init() tea.Cmd { return m.tick() }

func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keyQuit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keyToggle):
			return m, m.toggle()
		}

	case toggledMsg:
		m.err = msg.err

	case monitorTickMsg:
		m.pull()
		return m, m.tick()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.meter.Width = max(msg.Width-20, 10)
		m.help.Width = msg.Width
	}
	return m, nil
}

// pull copies the monitor's newest frame and event into the model.
func (m *MonitorModel) pull() {
	f, ev := m.mon.Latest()
	if f != nil {
		m.frame = f
		m.state = f.State
	}
	if ev != nil && ev != m.lastEvent {
		m.lastEvent = ev
		m.state = ev.State
		if ev.Notice != nil {
			m.notice = ev.Notice
		} else if ev.State != scene.Idle {
			m.notice = nil
		}
	}
}

func (m MonitorModel) toggle() tea.Cmd {
	if m.ctl == nil {
		return nil
	}
	ctx, ctl, activate := m.ctx, m.ctl, m.state == scene.Idle
	return func() tea.Msg {
		return toggledMsg{err: ctl.SetActive(ctx, activate)}
	}
}

func (m MonitorModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("ambience"))
	sb.WriteString("  ")
	sb.WriteString(stateStyles[m.state].Render(m.state.String()))
	sb.WriteString("\n\n")

	if m.frame == nil {
		sb.WriteString(dimStyle.Render("waiting for frames..."))
		sb.WriteString("\n")
	} else {
		heights := make([]float64, len(m.frame.Ring))
		for i, b := range m.frame.Ring {
			heights[i] = b.Height
		}
		sb.WriteString(spectrumStyle.Render(Sparkline(heights, max(m.width-4, 8))))
		sb.WriteString("\n\n")

		for _, b := range m.frame.Bands {
			fmt.Fprintf(&sb, "%-8s %s\n", b.Name, m.meter.ViewAs(b.Level))
		}
		if len(m.frame.Bands) > 0 {
			sb.WriteString("\n")
		}

		mesh := m.frame.Mesh
		sb.WriteString(infoStyle.Render(fmt.Sprintf("mesh  scale %.2f  distortion %.2f  speed %.1f",
			mesh.Scale.Y, mesh.Distortion, mesh.Speed)))
		sb.WriteString("\n")
		sb.WriteString(dimStyle.Render(fmt.Sprintf("frame %d  buffer %d  %d particles",
			m.frame.Seq, m.frame.BufferSeq, len(m.frame.Particles.Sizes))))
		sb.WriteString("\n")
	}

	if m.notice != nil {
		sb.WriteString("\n")
		sb.WriteString(noticeStyle.Render(m.notice.Message))
		sb.WriteString("\n")
	}
	if m.err != nil {
		sb.WriteString("\n")
		sb.WriteString(noticeStyle.Render(m.err.Error()))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(m.help.View(monitorKeys{}))
	return sb.String()
}

// Sparkline renders heights as one row of block characters, width columns
// wide at most. Each column shows the tallest bar it covers.
func Sparkline(heights []float64, width int) string {
	n := len(heights)
	if n == 0 || width <= 0 {
		return ""
	}
	cols := min(n, width)
	out := make([]rune, cols)
	for c := range cols {
		lo, hi := c*n/cols, (c+1)*n/cols
		peak := 0.0
		for _, h := range heights[lo:max(hi, lo+1)] {
			peak = max(peak, h)
		}
		level := int(peak / barScale * float64(len(sparks)))
		out[c] = sparks[min(max(level, 0), len(sparks)-1)]
	}
	return string(out)
}

// RunMonitor runs the monitor until the user quits or ctx ends.
func RunMonitor(ctx context.Context, mon *Monitor, ctl transport.Controller, fps int) error {
	p := tea.NewProgram(NewMonitorModel(ctx, mon, ctl, fps), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
