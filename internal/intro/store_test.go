package intro

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"jtlab/internal/choreo"
	"jtlab/internal/geometry"
	"jtlab/internal/theme"
	"jtlab/pkg/realtime"
)

// inlineLoop runs posted functions immediately so tests stay on one goroutine.
type inlineLoop struct {
	*realtime.ManualLoop
}

func (l inlineLoop) Post(fn func()) { fn() }

type fixture struct {
	store   *Store
	loops   []*realtime.ManualLoop
	stopped atomic.Int32
	themes  *theme.MemoryProvider
}

func newFixture() *fixture {
	f := &fixture{themes: theme.NewMemoryProvider()}
	f.store = NewStore(Options{
		Themes: f.themes,
		Runners: func() (Runner, func()) {
			loop := realtime.NewManualLoop(time.Unix(0, 0), 60)
			f.loops = append(f.loops, loop)
			return inlineLoop{loop}, func() { f.stopped.Add(1) }
		},
	})
	return f
}

var desktop = geometry.Size{Width: 1280, Height: 800}

func TestStore_BeginPublishesSnapshots(t *testing.T) {
	f := newFixture()
	sess, err := f.store.Begin("visitor-1", desktop)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if sess.ID == "" {
		t.Fatal("session has no id")
	}
	ch := sess.Hub().Subscribe()
	defer sess.Hub().Unsubscribe(ch)

	// The idle snapshot was published before we subscribed and is replayed.
	var first choreo.Snapshot
	if err := json.Unmarshal([]byte(<-ch), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.Phase != choreo.PhaseIdle {
		t.Errorf("first phase %s, want idle", first.Phase)
	}

	f.loops[0].Advance(600 * time.Millisecond)
	var next choreo.Snapshot
	if err := json.Unmarshal([]byte(<-ch), &next); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if next.Phase != choreo.PhaseNameVisible || !next.NameVisible {
		t.Errorf("next snapshot %s nameVisible %v", next.Phase, next.NameVisible)
	}

	snap, raw := sess.Snapshot()
	if snap.Seq != next.Seq || len(raw) == 0 {
		t.Errorf("Snapshot() seq %d raw %d bytes", snap.Seq, len(raw))
	}
}

func TestStore_MeasuresWithServerFontMetrics(t *testing.T) {
	f := newFixture()
	sess, err := f.store.Begin("v", desktop)
	if err != nil {
		t.Fatal(err)
	}
	f.loops[0].Advance(3 * time.Second)
	snap, _ := sess.Snapshot()
	if snap.Phase != choreo.PhaseRetracting {
		t.Fatalf("phase %s, want retracting", snap.Phase)
	}
	if snap.GeometryOffsetPx >= 0 {
		t.Errorf("offset %v, want T to move left onto J", snap.GeometryOffsetPx)
	}
}

func TestStore_BrowserLayoutWins(t *testing.T) {
	f := newFixture()
	sess, err := f.store.Begin("v", desktop)
	if err != nil {
		t.Fatal(err)
	}
	f.loops[0].Advance(time.Second)

	sess.ReportLayout(56, evenGlyphs())
	f.loops[0].Advance(2 * time.Second)

	// J ends at 120, T starts at 200.
	snap, _ := sess.Snapshot()
	if snap.GeometryOffsetPx != -80 {
		t.Errorf("offset %v, want -80 from the reported boxes", snap.GeometryOffsetPx)
	}
}

// evenGlyphs lays the 13 letters of the name out 20px apart from 100px.
func evenGlyphs() []geometry.Rect {
	glyphs := make([]geometry.Rect, 13)
	for i := range glyphs {
		glyphs[i] = geometry.Rect{Left: 100 + float64(i)*20, Width: 20}
	}
	return glyphs
}

func TestStore_IgnoresLayoutAtOtherFontSize(t *testing.T) {
	phone := geometry.Size{Width: 390, Height: 844}
	f := newFixture()
	plain, _ := f.store.Begin("a", phone)
	stale, _ := f.store.Begin("b", phone)
	fresh, _ := f.store.Begin("c", phone)
	for _, l := range f.loops {
		l.Advance(time.Second)
	}

	// The page rendered at the desktop default before the narrow layout applied.
	stale.ReportLayout(56, evenGlyphs())
	fresh.ReportLayout(39, evenGlyphs())
	for _, l := range f.loops {
		l.Advance(2 * time.Second)
	}

	want, _ := plain.Snapshot()
	if want.Layout.FontPx != 39 {
		t.Fatalf("font %v, want the narrow 39px", want.Layout.FontPx)
	}
	if got, _ := stale.Snapshot(); got.GeometryOffsetPx != want.GeometryOffsetPx {
		t.Errorf("got offset %v, want %v from server metrics", got.GeometryOffsetPx, want.GeometryOffsetPx)
	}
	if got, _ := fresh.Snapshot(); got.GeometryOffsetPx != -80 {
		t.Errorf("got offset %v, want -80 from the reported boxes", got.GeometryOffsetPx)
	}
}

func TestStore_ToggleThemePersistsPerVisitor(t *testing.T) {
	f := newFixture()
	sess, err := f.store.Begin("alice", desktop)
	if err != nil {
		t.Fatal(err)
	}
	ok, err := sess.ToggleTheme(context.Background())
	if err != nil || ok {
		t.Fatalf("toggle during intro: ok %v err %v, want refused", ok, err)
	}

	f.loops[0].Advance(12 * time.Second)
	ok, err = sess.ToggleTheme(context.Background())
	if err != nil || !ok {
		t.Fatalf("toggle when interactive: ok %v err %v", ok, err)
	}
	if dark, _ := f.themes.For("alice").Load(); !dark {
		t.Error("alice's preference not saved")
	}

	again, err := f.store.Begin("alice", desktop)
	if err != nil {
		t.Fatal(err)
	}
	if snap, _ := again.Snapshot(); !snap.ThemeIsDark {
		t.Error("new session for alice should start dark")
	}
	other, _ := f.store.Begin("bob", desktop)
	if snap, _ := other.Snapshot(); snap.ThemeIsDark {
		t.Error("bob should start light")
	}
}

func TestStore_ResizeSwitchesBucket(t *testing.T) {
	f := newFixture()
	sess, _ := f.store.Begin("v", desktop)
	sess.Resize(geometry.Size{Width: 600, Height: 900})
	snap, _ := sess.Snapshot()
	if snap.ViewportBucket != geometry.BucketNarrow {
		t.Errorf("bucket %s, want narrow", snap.ViewportBucket)
	}
}

func TestStore_End(t *testing.T) {
	f := newFixture()
	sess, _ := f.store.Begin("v", desktop)
	ch := sess.Hub().Subscribe()
	<-ch

	if err := f.store.End(sess.ID); err != nil {
		t.Fatalf("End: %v", err)
	}
	if got := f.stopped.Load(); got != 1 {
		t.Errorf("loop stopped %d times, want 1", got)
	}
	if _, open := <-ch; open {
		t.Error("subscriber still open after End")
	}
	if _, ok := f.store.Get(sess.ID); ok {
		t.Error("session still listed after End")
	}
	if err := f.store.End(sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second End: err %v, want ErrNotFound", err)
	}
	if ok, _ := sess.ToggleTheme(context.Background()); ok {
		t.Error("ended session accepted a theme toggle")
	}

	f.loops[0].Advance(20 * time.Second)
	if snap, _ := sess.Snapshot(); snap.Phase != choreo.PhaseIdle {
		t.Errorf("ended session advanced to %s", snap.Phase)
	}
}

func TestStore_Close(t *testing.T) {
	f := newFixture()
	f.store.Begin("a", desktop)
	f.store.Begin("b", desktop)
	f.store.Close()
	if f.store.Len() != 0 {
		t.Errorf("Len %d after Close, want 0", f.store.Len())
	}
	if got := f.stopped.Load(); got != 2 {
		t.Errorf("stopped %d loops, want 2", got)
	}
}

// stalledLoop never runs posted work, like a loop wedged in a long frame.
type stalledLoop struct {
	*realtime.ManualLoop
}

func (stalledLoop) Post(func()) {}

func TestStore_CloseEndsSessionsConcurrently(t *testing.T) {
	s := NewStore(Options{
		Runners: func() (Runner, func()) {
			return stalledLoop{realtime.NewManualLoop(time.Unix(0, 0), 60)}, func() {}
		},
	})
	for i := 0; i < 4; i++ {
		if _, err := s.Begin("v", desktop); err != nil {
			t.Fatal(err)
		}
	}

	// Each stalled session waits a second for its loop to drain.
	start := time.Now()
	s.Close()
	if elapsed := time.Since(start); elapsed > 2500*time.Millisecond {
		t.Errorf("Close took %v, want the drain waits to overlap", elapsed)
	}
	if s.Len() != 0 {
		t.Errorf("Len %d after Close, want 0", s.Len())
	}
}

func TestStore_BeginRejectsBadConfig(t *testing.T) {
	cfg := choreo.DefaultConfig()
	cfg.Logo = "ZZ"
	stopped := 0
	s := NewStore(Options{
		Choreo: cfg,
		Runners: func() (Runner, func()) {
			return inlineLoop{realtime.NewManualLoop(time.Unix(0, 0), 60)}, func() { stopped++ }
		},
	})
	if _, err := s.Begin("v", desktop); err == nil {
		t.Fatal("Begin accepted a logo outside the name")
	}
	if stopped != 1 || s.Len() != 0 {
		t.Errorf("stopped %d, sessions %d after failed Begin", stopped, s.Len())
	}
}
