// Package intro runs one choreography per web visitor, each on its own
// event loop, and fans its snapshots out to SSE subscribers.
package intro

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"jtlab/internal/choreo"
	"jtlab/internal/geometry"
	"jtlab/internal/theme"
	"jtlab/pkg/realtime"
)

var (
	// ErrNotFound is returned for an unknown or ended session.
	ErrNotFound = errors.New("intro session not found")
	// ErrEnded is returned when a session ends while a call waits on it.
	ErrEnded = errors.New("intro session ended")
)

// Runner is the event loop a session's controller lives on.
type Runner interface {
	choreo.Host
	Post(fn func())
}

// RunnerFactory starts a runner for a new session; stop shuts it down.
type RunnerFactory func() (r Runner, stop func())

// LoopFactory runs each session on its own realtime.Loop.
func LoopFactory(frameRate int) RunnerFactory {
	return func() (Runner, func()) {
		loop := realtime.NewLoop(frameRate)
		loop.Start(context.Background())
		return loop, loop.Stop
	}
}

// Options configures a Store.
type Options struct {
	Choreo  choreo.Config
	Themes  theme.Provider
	Runners RunnerFactory
	Logger  *log.Logger
}

// Store holds live intro sessions and delegates to realtime.Store for
// lookup and broadcast.
type Store struct {
	r      *realtime.Store[*Session]
	opts   Options
	logger *log.Logger
}

// NewStore creates an empty store. Missing options fall back to the stock
// intro, in-memory themes and a 60 fps loop per session.
func NewStore(opts Options) *Store {
	if opts.Choreo.Name == "" {
		opts.Choreo = choreo.DefaultConfig()
	}
	if opts.Themes == nil {
		opts.Themes = theme.NewMemoryProvider()
	}
	if opts.Runners == nil {
		opts.Runners = LoopFactory(realtime.DefaultFrameRate)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Store{r: realtime.NewStore[*Session](), opts: opts, logger: logger}
}

// Session is one visitor's intro. The controller, viewport and layout are
// owned by the session's runner; the last snapshot is shared under mu.
type Session struct {
	ID      string
	Visitor string
	Started time.Time

	runner   Runner
	stopLoop func()
	ctrl     *choreo.Controller
	viewport *geometry.Viewport
	layout   *geometry.TextLayout
	metrics  map[float64]*geometry.FontMetrics
	measured bool
	hub      *realtime.Broadcaster
	logger   *log.Logger

	mu       sync.Mutex
	last     choreo.Snapshot
	lastJSON []byte
	ended    chan struct{}
	once     sync.Once
	stopCtrl func()
}

// Begin creates a session for visitor at the given viewport size and starts
// its intro.
func (s *Store) Begin(visitor string, size geometry.Size) (*Session, error) {
	runner, stop := s.opts.Runners()
	sess := &Session{
		ID:       uuid.NewString(),
		Visitor:  visitor,
		Started:  time.Now().UTC(),
		runner:   runner,
		stopLoop: stop,
		viewport: geometry.NewViewport(size),
		layout:   geometry.NewTextLayout(),
		metrics:  make(map[float64]*geometry.FontMetrics),
		ended:    make(chan struct{}),
	}
	sess.logger = s.logger.With("session", sess.ID)

	ctrl, err := choreo.New(s.opts.Choreo, choreo.Deps{
		Host:     runner,
		Renderer: choreo.RendererFunc(sess.render),
		Measurer: sess.layout,
		Theme:    s.opts.Themes.For(visitor),
		Viewport: sess.viewport,
		Logger:   sess.logger,
	})
	if err != nil {
		stop()
		return nil, err
	}
	sess.ctrl = ctrl
	sess.last = ctrl.Snapshot()
	sess.lastJSON, _ = json.Marshal(sess.last)

	entry := s.r.Create(sess.ID, sess)
	sess.hub = entry.Hub()

	runner.Post(func() {
		stopCtrl := ctrl.Start(func() {
			sess.logger.Info("intro complete", "elapsed", time.Since(sess.Started).Round(time.Millisecond))
		})
		sess.mu.Lock()
		sess.stopCtrl = stopCtrl
		sess.mu.Unlock()
	})
	sess.logger.Debug("intro started", "visitor", visitor, "width", size.Width, "height", size.Height)
	return sess, nil
}

// Get returns a live session.
func (s *Store) Get(id string) (*Session, bool) {
	e, ok := s.r.Get(id)
	if !ok {
		return nil, false
	}
	return e.State, true
}

// End cancels the session's intro, stops its loop and forgets it.
func (s *Store) End(id string) error {
	sess, ok := s.Get(id)
	if !ok {
		return ErrNotFound
	}
	sess.end()
	s.r.Delete(id)
	return nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.r.Len()
}

// Close ends every session. Sessions end concurrently, so one stalled loop
// does not hold up the rest.
func (s *Store) Close() {
	var g errgroup.Group
	for _, id := range s.r.IDs() {
		g.Go(func() error {
			if err := s.End(id); err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("close intro sessions", "err", err)
	}
}

func (sess *Session) end() {
	sess.once.Do(func() {
		close(sess.ended)
		done := make(chan struct{})
		sess.runner.Post(func() {
			sess.mu.Lock()
			stop := sess.stopCtrl
			sess.mu.Unlock()
			if stop != nil {
				stop()
			}
			close(done)
		})
		select {
		case <-done:
		case <-time.After(time.Second):
			sess.logger.Warn("session loop did not drain")
		}
		sess.stopLoop()
	})
}

// render runs on the session's runner for every snapshot. It lays the name
// out with server-side font metrics unless the browser has reported its own
// glyph boxes, then publishes the snapshot.
func (sess *Session) render(snap choreo.Snapshot) {
	if snap.NameVisible && !sess.measured {
		m, err := sess.fontMetrics(snap.Layout.FontPx)
		if err != nil {
			sess.logger.Warn("font metrics unavailable", "err", err)
		} else {
			sess.layout.PlaceLine(choreo.NameLine, snap.Name, snap.Layout.Origin(snap.Viewport), m)
		}
	}
	data, err := json.Marshal(snap)
	if err != nil {
		sess.logger.Error("encode snapshot", "err", err)
		return
	}
	sess.mu.Lock()
	sess.last = snap
	sess.lastJSON = data
	sess.mu.Unlock()
	sess.hub.Publish(string(data))
}

func (sess *Session) fontMetrics(px float64) (*geometry.FontMetrics, error) {
	if m, ok := sess.metrics[px]; ok {
		return m, nil
	}
	m, err := geometry.NewFontMetrics(px)
	if err != nil {
		return nil, err
	}
	sess.metrics[px] = m
	return m, nil
}

// Snapshot returns the last render state and its JSON encoding.
func (sess *Session) Snapshot() (choreo.Snapshot, []byte) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.last, sess.lastJSON
}

// Hub is the session's SSE broadcaster. Every event is a snapshot as JSON.
func (sess *Session) Hub() *realtime.Broadcaster {
	return sess.hub
}

// ToggleTheme asks the controller to flip the theme and waits for its answer.
func (sess *Session) ToggleTheme(ctx context.Context) (bool, error) {
	result := make(chan bool, 1)
	sess.runner.Post(func() { result <- sess.ctrl.ToggleTheme() })
	select {
	case ok := <-result:
		return ok, nil
	case <-sess.ended:
		return false, ErrEnded
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Resize reports a new viewport size. A size change drops any glyph boxes
// the browser reported for the old size.
func (sess *Session) Resize(size geometry.Size) {
	sess.runner.Post(func() {
		if size != sess.viewport.CurrentSize() {
			sess.measured = false
		}
		sess.viewport.Set(size)
	})
}

// ReportLayout attaches glyph boxes of the name measured by the browser at
// fontPx. Boxes measured at a font size other than the current layout's are
// stale and dropped.
func (sess *Session) ReportLayout(fontPx float64, glyphs []geometry.Rect) {
	sess.runner.Post(func() {
		if current := sess.ctrl.Snapshot().Layout.FontPx; fontPx != current {
			sess.logger.Debug("stale layout report", "fontPx", fontPx, "current", current)
			return
		}
		sess.layout.AttachLine(choreo.NameLine, glyphs)
		sess.measured = len(glyphs) > 0
	})
}
