// Package tui previews the intro in a terminal. The choreography runs on a
// virtual loop that bubbletea advances on every frame tick, so all controller
// work stays on the program's update goroutine.
package tui

import (
	"context"
	"io"
	"math"
	"math/rand"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"

	"jtlab/internal/choreo"
	"jtlab/internal/geometry"
	"jtlab/internal/theme"
	"jtlab/internal/viewmodel"
	"jtlab/pkg/realtime"
)

const (
	// Breakpoint is the widest terminal, in cells, still treated as narrow.
	Breakpoint = 100

	frameInterval = time.Second / realtime.DefaultFrameRate
	trackCells    = 6
)

type (
	startMsg struct{}
	frameMsg time.Time
)

// Options configures a Model.
type Options struct {
	Config choreo.Config
	Theme  theme.Store
	Logger *log.Logger
	// Size is the terminal size in cells until the first resize arrives.
	Size geometry.Size
	// QuitOnComplete ends the program once the intro is interactive.
	QuitOnComplete bool
	Rand           *rand.Rand
}

// Model is the bubbletea model of the terminal preview.
type Model struct {
	opts     Options
	loop     *realtime.ManualLoop
	ctrl     *choreo.Controller
	layout   *geometry.TextLayout
	viewport *geometry.Viewport
	log      *log.Logger

	snap      choreo.Snapshot
	styles    styles
	last      time.Time
	retractAt time.Time
	offset    motion
	bullet    motion
	stop      func()
	complete  bool
	quitting  bool
}

// New builds the model and its controller. The intro starts with Init.
func New(opts Options) (*Model, error) {
	if opts.Size.Width <= 0 || opts.Size.Height <= 0 {
		opts.Size = geometry.Size{Width: 80, Height: 24}
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	cfg := opts.Config
	cfg.Breakpoint = Breakpoint

	m := &Model{
		opts:     opts,
		loop:     realtime.NewManualLoop(time.Unix(0, 0), realtime.DefaultFrameRate),
		layout:   geometry.NewTextLayout(),
		viewport: geometry.NewViewport(opts.Size),
		log:      opts.Logger,
	}
	ctrl, err := choreo.New(cfg, choreo.Deps{
		Host:     m.loop,
		Renderer: choreo.RendererFunc(m.render),
		Measurer: m.layout,
		Theme:    opts.Theme,
		Viewport: m.viewport,
		Logger:   opts.Logger,
		Rand:     opts.Rand,
	})
	if err != nil {
		return nil, err
	}
	m.ctrl = ctrl
	m.snap = ctrl.Snapshot()
	m.styles = newStyles(m.snap.ThemeIsDark)
	return m, nil
}

// Run shows the preview until the user quits or ctx ends.
func Run(ctx context.Context, opts Options) error {
	m, err := New(opts)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	return func() tea.Msg { return startMsg{} }
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case startMsg:
		m.stop = m.ctrl.Start(func() { m.complete = true })
		return m, tick()
	case frameMsg:
		return m, m.frame(time.Time(msg))
	case tea.WindowSizeMsg:
		m.viewport.Set(geometry.Size{Width: float64(msg.Width), Height: float64(msg.Height)})
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, m.quit()
		case "t":
			if !m.ctrl.ToggleTheme() {
				m.log.Debug("theme toggle ignored", "phase", m.snap.Phase)
			}
		}
	}
	return m, nil
}

// frame advances the intro by the wall time since the previous frame.
func (m *Model) frame(now time.Time) tea.Cmd {
	if m.quitting {
		return nil
	}
	var dt time.Duration
	if !m.last.IsZero() && now.After(m.last) {
		dt = now.Sub(m.last)
	}
	m.last = now
	m.loop.Advance(dt)
	secs := float32(dt.Seconds())
	m.offset.update(secs)
	m.bullet.update(secs)
	if m.complete && m.opts.QuitOnComplete && m.offset.settled() && m.bullet.settled() && !m.loop.Pending() {
		return m.quit()
	}
	return tick()
}

func (m *Model) quit() tea.Cmd {
	m.quitting = true
	if m.stop != nil {
		m.stop()
	}
	return tea.Quit
}

func tick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

// render receives every snapshot on the loop, which runs inside Update.
func (m *Model) render(s choreo.Snapshot) {
	if s.NameVisible {
		m.layout.PlaceLine(choreo.NameLine, s.Name, m.origin(s), geometry.CellMetrics{})
	}
	if s.Phase == choreo.PhaseRetracting && m.snap.Phase != choreo.PhaseRetracting {
		m.retractAt = m.loop.Now()
	}
	if target := float32(s.GeometryOffsetPx); target != m.offset.target {
		m.offset.to(target, m.retractDuration())
	}
	switch s.Bullet {
	case choreo.BulletForward:
		m.bullet.to(trackCells-1, m.opts.Config.Timeline.Bullet())
	case choreo.BulletBackward:
		m.bullet.to(0, m.opts.Config.Timeline.Bullet())
	case choreo.BulletEnd:
		m.bullet.jump(trackCells - 1)
	default:
		m.bullet.jump(0)
	}
	if s.ThemeIsDark != m.snap.ThemeIsDark {
		m.styles = newStyles(s.ThemeIsDark)
	}
	m.snap = s
}

func (m *Model) origin(s choreo.Snapshot) geometry.Point {
	o := s.Layout.Origin(s.Viewport)
	return geometry.Point{X: math.Round(o.X), Y: math.Floor(o.Y)}
}

// retractDuration is how long the retracting phase lasts on the timeline.
func (m *Model) retractDuration() time.Duration {
	var from, to time.Duration
	for _, step := range m.opts.Config.Timeline.Intro {
		switch step.Phase {
		case choreo.PhaseRetracting.String():
			from = step.Offset()
		case choreo.PhaseLogoFormed.String():
			to = step.Offset()
		}
	}
	return to - from
}

// Snapshot returns the last state the controller published.
func (m *Model) Snapshot() choreo.Snapshot {
	return m.snap
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	s := m.snap
	rows := int(s.Viewport.Height)
	if rows < 3 {
		rows = 3
	}
	lines := make([]string, rows)
	if s.HeaderVisible {
		lines[0] = m.header()
	}
	if s.NavVisible {
		lines[1] = m.nav()
	}
	origin := m.origin(s)
	stageRow := int(origin.Y)
	if stageRow >= rows-1 {
		stageRow = rows - 2
	}
	pad := strings.Repeat(" ", int(origin.X))
	switch {
	case s.NameVisible:
		lines[stageRow] = pad + m.name()
	case s.LogoText != "":
		lines[stageRow] = pad + m.logoLine()
	}
	lines[rows-1] = m.styles.help.Render("t theme • q quit")
	return strings.Join(lines, "\n")
}

func (m *Model) header() string {
	s := m.snap
	var b strings.Builder
	b.WriteString(m.styles.logo.Render(s.LogoText))
	b.WriteString("  ")
	pos := int(math.Round(float64(m.bullet.value)))
	for i := 0; i < trackCells; i++ {
		if i == pos {
			b.WriteString(m.styles.bullet.Render("●"))
		} else {
			b.WriteString(m.styles.track.Render("─"))
		}
	}
	if s.ThemeToggleVisible {
		toggle := "◑"
		if s.ThemeIsDark {
			toggle = "◐"
		}
		b.WriteString("  ")
		b.WriteString(m.styles.text.Render(toggle))
	}
	return b.String()
}

func (m *Model) nav() string {
	links := viewmodel.DefaultNav()
	labels := make([]string, len(links))
	for i, l := range links {
		labels[i] = m.styles.nav.Render(l.Label)
	}
	return strings.Join(labels, "  ")
}

// name draws the name with the moving glyph shifted by the tweened offset.
// While retracting, the other letters fade one after another.
func (m *Model) name() string {
	s := m.snap
	anchor, moving := m.opts.Config.LogoGlyphs()
	runes := []rune(s.Name)
	cells := make([]string, len(runes))
	for i := range cells {
		cells[i] = " "
	}
	var elapsed time.Duration
	if s.Phase == choreo.PhaseRetracting {
		elapsed = m.loop.Now().Sub(m.retractAt)
	}
	for i, r := range runes {
		if i == moving {
			continue
		}
		switch {
		case i == anchor || s.Phase != choreo.PhaseRetracting:
			cells[i] = m.styles.text.Render(string(r))
		case elapsed < time.Duration(i*viewmodel.LetterStaggerMs)*time.Millisecond:
			cells[i] = m.styles.fading.Render(string(r))
		}
	}
	if moving >= 0 && moving < len(runes) {
		col := moving + int(math.Round(float64(m.offset.value)))
		if col >= 0 && col < len(cells) {
			cells[col] = m.styles.text.Render(string(runes[moving]))
		}
	}
	return strings.Join(cells, "")
}

func (m *Model) logoLine() string {
	s := m.snap
	logo := m.styles.logo
	switch s.GlowLevel {
	case choreo.GlowPulse:
		logo = m.styles.pulse
	case choreo.GlowSteady:
		logo = m.styles.steady
	}
	out := logo.Render(s.LogoText)
	if s.LabelVisible {
		out += " " + m.styles.text.Render(s.ScrambleOutput)
	}
	return out
}

// motion eases one value toward a target.
type motion struct {
	tween  *gween.Tween
	value  float32
	target float32
}

func (mo *motion) to(target float32, d time.Duration) {
	mo.target = target
	if d <= 0 {
		mo.jump(target)
		return
	}
	mo.tween = gween.New(mo.value, target, float32(d.Seconds()), ease.InOutCubic)
}

func (mo *motion) jump(v float32) {
	mo.tween = nil
	mo.value = v
	mo.target = v
}

func (mo *motion) update(dt float32) {
	if mo.tween == nil {
		return
	}
	v, finished := mo.tween.Update(dt)
	mo.value = v
	if finished {
		mo.tween = nil
		mo.value = mo.target
	}
}

func (mo *motion) settled() bool {
	return mo.tween == nil
}
