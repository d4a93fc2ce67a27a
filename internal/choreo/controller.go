// Package choreo composes the scramble, geometry and scheduling pieces into
// the intro sequence and publishes a render snapshot after every change.
package choreo

import (
	"errors"
	"fmt"
	"io"
	"math/rand"

	"github.com/charmbracelet/log"

	"jtlab/internal/geometry"
	"jtlab/internal/scheduler"
	"jtlab/internal/scramble"
	"jtlab/internal/sequence"
	"jtlab/internal/theme"
)

// NameLine is the handle prefix under which the renderer lays out the name.
const NameLine = "name"

// Host supplies timers and the frame clock. Every callback must run on the
// same goroutine as the Controller's methods.
type Host interface {
	scheduler.Timer
	scramble.FrameClock
}

// ViewportProvider reports the viewport size and its changes.
type ViewportProvider interface {
	CurrentSize() geometry.Size
	OnChange(fn func(geometry.Size)) (unsubscribe func())
}

// Config is what the intro shows and when.
type Config struct {
	Name       string
	Logo       string
	LabelFrom  string
	LabelTo    string
	Timeline   sequence.Timeline
	Breakpoint float64
	Direction  geometry.Direction
}

// DefaultConfig returns the stock intro.
func DefaultConfig() Config {
	return Config{
		Name:       "JulioTompsett",
		Logo:       "JT",
		LabelFrom:  "Web Dev.",
		LabelTo:    "Studio",
		Timeline:   sequence.Default(),
		Breakpoint: geometry.DefaultBreakpoint,
		Direction:  geometry.LeftToRight,
	}
}

// Deps are the collaborators of a Controller. Host and Renderer are
// required. A nil Measurer always reports handles as unattached, a nil Theme
// starts light and persists nothing, and a nil Viewport is a fixed wide
// screen.
type Deps struct {
	Host     Host
	Renderer Renderer
	Measurer geometry.Measurer
	Theme    theme.Store
	Viewport ViewportProvider
	Logger   *log.Logger
	Rand     *rand.Rand
}

// Controller runs one intro. It is single-threaded: all methods and all host
// callbacks must run on one goroutine.
type Controller struct {
	cfg    Config
	deps   Deps
	log    *log.Logger
	sched  *scheduler.Scheduler
	intro  []sequence.Step
	outro  []sequence.Step
	anchor geometry.Handle
	moving geometry.Handle
	movIdx int

	phase    Phase
	output   string
	offset   float64
	dark     bool
	size     geometry.Size
	layout   geometry.Layout
	glow     glow
	bullet   bullet
	seq      uint64
	last     Snapshot
	started  bool
	canceled bool

	onComplete    func()
	completed     bool
	cancelIntro   func()
	cancelOutro   func()
	stopScramble  func()
	unsubViewport func()
}

// New validates cfg and builds a controller. The theme preference is loaded
// here, once.
func New(cfg Config, deps Deps) (*Controller, error) {
	if deps.Host == nil || deps.Renderer == nil {
		return nil, errors.New("choreo: host and renderer are required")
	}
	if err := cfg.Timeline.Validate(); err != nil {
		return nil, fmt.Errorf("timeline: %w", err)
	}
	if err := checkSteps("intro", cfg.Timeline.Intro, introPhases); err != nil {
		return nil, err
	}
	if err := checkSteps("outro", cfg.Timeline.Outro, outroPhases); err != nil {
		return nil, err
	}
	anchor, moving, err := logoGlyphs(cfg.Name, cfg.Logo)
	if err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if deps.Viewport == nil {
		deps.Viewport = geometry.NewViewport(geometry.Size{Width: 1280, Height: 800})
	}
	if deps.Measurer == nil {
		deps.Measurer = geometry.MeasurerFunc(func(geometry.Handle) (geometry.Rect, bool) {
			return geometry.Rect{}, false
		})
	}

	c := &Controller{
		cfg:    cfg,
		deps:   deps,
		log:    logger,
		sched:  scheduler.New(deps.Host, logger),
		intro:  cfg.Timeline.Intro,
		outro:  cfg.Timeline.Outro,
		anchor: geometry.GlyphHandle(NameLine, anchor),
		movIdx: moving,
		phase:  PhaseIdle,
	}
	if moving >= 0 {
		c.moving = geometry.GlyphHandle(NameLine, moving)
	}
	c.glow.level = GlowNone
	c.bullet.state = BulletHidden
	c.size = deps.Viewport.CurrentSize()
	c.layout = geometry.LayoutFor(geometry.BucketFor(c.size.Width, cfg.Breakpoint))

	if deps.Theme != nil {
		dark, err := deps.Theme.Load()
		if err != nil {
			logger.Warn("theme load failed, starting light", "err", err)
		}
		c.dark = dark && err == nil
	}
	c.last = c.build()
	return c, nil
}

func checkSteps(batch string, steps []sequence.Step, want []Phase) error {
	if len(steps) != len(want) {
		return fmt.Errorf("%s: got %d steps, want %d", batch, len(steps), len(want))
	}
	for i, s := range steps {
		p, err := ParsePhase(s.Phase)
		if err != nil {
			return fmt.Errorf("%s step %d: %w", batch, i, err)
		}
		if p != want[i] {
			return fmt.Errorf("%s step %d: %w: got %s, want %s", batch, i, ErrIllegalTransition, p, want[i])
		}
	}
	return nil
}

// logoGlyphs finds the name glyph the logo keeps in place and the one that
// slides onto it: the logo's first rune, then its second rune searched after
// the first. moving is -1 for a one-rune logo.
func logoGlyphs(name, logo string) (anchor, moving int, err error) {
	nr, lr := []rune(name), []rune(logo)
	if len(lr) == 0 {
		return 0, 0, errors.New("choreo: empty logo")
	}
	anchor = indexRune(nr, lr[0], 0)
	if anchor < 0 {
		return 0, 0, fmt.Errorf("choreo: logo %q does not start with a glyph of %q", logo, name)
	}
	if len(lr) == 1 {
		return anchor, -1, nil
	}
	moving = indexRune(nr, lr[1], anchor+1)
	if moving < 0 {
		return 0, 0, fmt.Errorf("choreo: logo %q: %q not found after %q in %q", logo, lr[1], lr[0], name)
	}
	return anchor, moving, nil
}

// LogoGlyphs returns the name indexes of the glyph that stays and the glyph
// that slides onto it, or -1 when the logo does not fit the name.
func (c Config) LogoGlyphs() (anchor, moving int) {
	a, m, err := logoGlyphs(c.Name, c.Logo)
	if err != nil {
		return -1, -1
	}
	return a, m
}

func indexRune(rs []rune, r rune, from int) int {
	for i := from; i < len(rs); i++ {
		if rs[i] == r {
			return i
		}
	}
	return -1
}

// Start arms the timeline and emits the idle snapshot. onComplete runs once
// when the intro becomes interactive. The returned cancel stops everything
// still pending; nothing is rendered after it returns.
func (c *Controller) Start(onComplete func()) (cancel func()) {
	if c.started {
		c.log.Warn("intro already started")
		return func() {}
	}
	c.started = true
	c.onComplete = onComplete
	c.unsubViewport = c.deps.Viewport.OnChange(c.resize)

	cancelIntro, err := c.sched.Schedule(c.phases(c.intro), nil)
	if err != nil {
		c.log.Error("schedule intro", "err", err)
		return c.cancel
	}
	c.cancelIntro = cancelIntro
	c.emit()
	return c.cancel
}

func (c *Controller) phases(steps []sequence.Step) []scheduler.Phase {
	out := make([]scheduler.Phase, 0, len(steps))
	for _, s := range steps {
		p, _ := ParsePhase(s.Phase)
		out = append(out, scheduler.Phase{
			Name:   s.Phase,
			Offset: s.Offset(),
			Run:    func() error { return c.enter(p) },
		})
	}
	return out
}

// enter moves to phase p, runs its side effects and emits.
func (c *Controller) enter(p Phase) error {
	if c.canceled {
		return nil
	}
	next, ok := c.phase.Next()
	if !ok || next != p {
		return fmt.Errorf("%w: %s to %s", ErrIllegalTransition, c.phase, p)
	}
	c.log.Debug("phase", "from", c.phase, "to", p)

	switch p {
	case PhaseRetracting:
		c.offset = c.measure()
	case PhaseScrambling:
		c.output = c.cfg.LabelFrom
	case PhaseLabelSettled:
		c.glow.pulse(c.deps.Host, c.cfg.Timeline.Pulse(), c.emit)
	case PhaseHeaderTransition:
		c.bullet.sweep(c.deps.Host, c.cfg.Timeline.Bullet(), BulletEnd, c.emit)
	}
	c.phase = p
	c.emit()

	switch p {
	case PhaseScrambling:
		c.startScramble()
	case PhaseLabelSettled:
		c.scheduleOutro()
	}
	if p.Terminal() {
		c.complete()
	}
	return nil
}

// measure reads the current layout. Unattached glyphs give 0 and the logo
// simply does not line up.
func (c *Controller) measure() float64 {
	if c.moving == "" {
		return 0
	}
	off, ok := geometry.Offset(c.deps.Measurer, c.anchor, c.moving, c.cfg.Direction)
	if !ok {
		c.log.Warn("logo glyphs not laid out, offset is 0", "anchor", c.anchor, "moving", c.moving)
	}
	return off
}

func (c *Controller) startScramble() {
	var opts []scramble.Option
	if c.deps.Rand != nil {
		opts = append(opts, scramble.WithRand(c.deps.Rand))
	}
	s := scramble.New(c.cfg.LabelFrom, c.cfg.LabelTo, c.cfg.Timeline.Scramble(), opts...)
	c.stopScramble = scramble.Animate(c.deps.Host, s,
		func(text string) {
			c.output = text
			c.emit()
		},
		func() {
			c.stopScramble = nil
			if err := c.enter(PhaseLabelSettled); err != nil {
				c.log.Warn("label settle", "err", err)
			}
		},
	)
}

// scheduleOutro arms the remaining phases relative to the moment the label
// settled.
func (c *Controller) scheduleOutro() {
	cancel, err := c.sched.Schedule(c.phases(c.outro), nil)
	if err != nil {
		c.log.Error("schedule outro", "err", err)
		return
	}
	c.cancelOutro = cancel
}

// complete signals the host once.
func (c *Controller) complete() {
	if c.completed {
		return
	}
	c.completed = true
	if c.onComplete != nil {
		c.onComplete()
	}
}

func (c *Controller) resize(size geometry.Size) {
	if c.canceled {
		return
	}
	c.size = size
	c.layout = geometry.LayoutFor(geometry.BucketFor(size.Width, c.cfg.Breakpoint))
	c.emit()
}

// ToggleTheme flips and persists the preference, pulses the glow and sweeps
// the bullet. It is refused before the intro is interactive.
func (c *Controller) ToggleTheme() bool {
	if c.canceled || !interactive(c.phase) {
		return false
	}
	c.dark = !c.dark
	if c.deps.Theme != nil {
		if err := c.deps.Theme.Save(c.dark); err != nil {
			c.log.Warn("theme save failed", "err", err)
		}
	}
	c.glow.pulse(c.deps.Host, c.cfg.Timeline.Pulse(), c.emit)
	rest := BulletStart
	if c.dark {
		rest = BulletEnd
	}
	if !c.bullet.sweep(c.deps.Host, c.cfg.Timeline.Bullet(), rest, c.emit) {
		c.log.Debug("bullet busy, sweep deferred", "to", rest)
	}
	c.emit()
	return true
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	return c.phase
}

// Snapshot returns the last emitted render state.
func (c *Controller) Snapshot() Snapshot {
	return c.last
}

func (c *Controller) cancel() {
	if c.canceled {
		return
	}
	c.canceled = true
	for _, stop := range []func(){c.cancelIntro, c.cancelOutro, c.stopScramble, c.unsubViewport} {
		if stop != nil {
			stop()
		}
	}
	c.glow.stop()
	c.bullet.stop()
}

func (c *Controller) emit() {
	if c.canceled {
		return
	}
	c.seq++
	c.last = c.build()
	c.deps.Renderer.Render(c.last)
}

func (c *Controller) build() Snapshot {
	s := Snapshot{
		Seq:                c.seq,
		Phase:              c.phase,
		Name:               c.cfg.Name,
		NameVisible:        nameVisible(c.phase),
		MovingIndex:        c.movIdx,
		LabelVisible:       labelVisible(c.phase),
		ScrambleOutput:     c.output,
		GeometryOffsetPx:   c.offset,
		ThemeIsDark:        c.dark,
		GlowLevel:          c.glow.level,
		ViewportBucket:     c.layout.Bucket,
		Viewport:           c.size,
		Layout:             c.layout,
		HeaderVisible:      headerVisible(c.phase),
		ThemeToggleVisible: interactive(c.phase),
		NavVisible:         interactive(c.phase),
		Bullet:             c.bullet.state,
	}
	if logoVisible(c.phase) {
		s.LogoText = c.cfg.Logo
	}
	return s
}
