package scramble

import "time"

// FrameClock schedules a callback for the next animation frame. The callback
// receives the frame timestamp.
type FrameClock interface {
	RequestFrame(fn func(now time.Time)) (cancel func())
}

// Animate drives s from clock frames. onTick receives every emitted text, the
// last one being the exact target; onComplete then runs exactly once. Calling
// stop before completion ends the frame loop with no further ticks and no
// completion.
func Animate(clock FrameClock, s *Session, onTick func(text string), onComplete func()) (stop func()) {
	a := &animation{clock: clock, session: s, onTick: onTick, onComplete: onComplete}
	a.cancelFrame = clock.RequestFrame(a.step)
	return a.stop
}

type animation struct {
	clock       FrameClock
	session     *Session
	onTick      func(string)
	onComplete  func()
	cancelFrame func()
	stopped     bool
	completed   bool
}

func (a *animation) step(now time.Time) {
	if a.stopped {
		return
	}
	text, emit, done := a.session.Frame(now)
	if emit && a.onTick != nil {
		a.onTick(text)
	}
	if a.stopped {
		// onTick tore the animation down.
		return
	}
	if done {
		a.complete()
		return
	}
	a.cancelFrame = a.clock.RequestFrame(a.step)
}

func (a *animation) complete() {
	if a.completed {
		return
	}
	a.completed = true
	a.stopped = true
	if a.onComplete != nil {
		a.onComplete()
	}
}

func (a *animation) stop() {
	if a.stopped {
		return
	}
	a.stopped = true
	if a.cancelFrame != nil {
		a.cancelFrame()
	}
}
