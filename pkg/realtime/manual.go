package realtime

import (
	"container/heap"
	"time"
)

// ManualLoop offers the Loop API on a virtual clock. Nothing runs until
// Advance is called, which makes timing deterministic in tests.
// It is not safe for concurrent use.
type ManualLoop struct {
	now      time.Time
	origin   time.Time
	interval time.Duration
	timers   timerQueue
	frames   []*entry
	frameAt  time.Time
	posts    []func()
	seq      uint64
	frameNo  int
}

// NewManualLoop creates a virtual loop starting at start.
func NewManualLoop(start time.Time, frameRate int) *ManualLoop {
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	return &ManualLoop{
		now:      start,
		origin:   start,
		interval: time.Second / time.Duration(frameRate),
	}
}

// Now returns the virtual time.
func (m *ManualLoop) Now() time.Time {
	return m.now
}

// FrameInterval is the virtual duration between two frames.
func (m *ManualLoop) FrameInterval() time.Duration {
	return m.interval
}

// Frames reports how many frame batches have fired.
func (m *ManualLoop) Frames() int {
	return m.frameNo
}

// AfterFunc schedules fn at Now()+d.
func (m *ManualLoop) AfterFunc(d time.Duration, fn func()) (cancel func()) {
	m.seq++
	e := &entry{due: m.now.Add(d), seq: m.seq, fn: fn}
	heap.Push(&m.timers, e)
	return func() {
		if e.canceled {
			return
		}
		e.canceled = true
		if e.index >= 0 {
			heap.Remove(&m.timers, e.index)
		}
	}
}

// RequestFrame schedules fn for the next frame boundary.
func (m *ManualLoop) RequestFrame(fn func(now time.Time)) (cancel func()) {
	m.seq++
	e := &entry{seq: m.seq, frame: fn, index: -1}
	if len(m.frames) == 0 {
		m.frameAt = nextBoundary(m.origin, m.interval, m.now)
	}
	m.frames = append(m.frames, e)
	return func() { e.canceled = true }
}

// Post queues fn; it runs on the next Advance or Flush.
func (m *ManualLoop) Post(fn func()) {
	m.posts = append(m.posts, fn)
}

// Flush runs queued posts without moving the clock.
func (m *ManualLoop) Flush() {
	for len(m.posts) > 0 {
		fn := m.posts[0]
		m.posts = m.posts[1:]
		fn()
	}
}

// Pending reports whether any timer or frame is still queued.
func (m *ManualLoop) Pending() bool {
	return m.timers.Len() > 0 || len(m.frames) > 0 || len(m.posts) > 0
}

// Advance moves the clock forward by d, firing every timer and frame that
// falls due on the way, in time order. Timers run before a frame due at the
// same instant.
func (m *ManualLoop) Advance(d time.Duration) {
	target := m.now.Add(d)
	m.Flush()
	for {
		timerDue := m.timers.Len() > 0 && !m.timers[0].due.After(target)
		frameDue := len(m.frames) > 0 && !m.frameAt.After(target)
		switch {
		case timerDue && (!frameDue || !m.timers[0].due.After(m.frameAt)):
			e := heap.Pop(&m.timers).(*entry)
			if e.due.After(m.now) {
				m.now = e.due
			}
			if !e.canceled {
				e.fn()
			}
		case frameDue:
			if m.frameAt.After(m.now) {
				m.now = m.frameAt
			}
			batch := m.frames
			m.frames = nil
			m.frameNo++
			for _, e := range batch {
				if !e.canceled {
					e.frame(m.now)
				}
			}
		default:
			m.now = target
			m.Flush()
			return
		}
		m.Flush()
	}
}

// RunFor advances the clock one frame interval at a time until d has elapsed.
func (m *ManualLoop) RunFor(d time.Duration) {
	for d > 0 {
		step := m.interval
		if step > d {
			step = d
		}
		m.Advance(step)
		d -= step
	}
}
