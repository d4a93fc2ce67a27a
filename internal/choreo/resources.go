package choreo

import (
	"time"

	"jtlab/internal/scheduler"
)

// GlowLevel is the emphasis on the logo text.
type GlowLevel string

const (
	GlowNone   GlowLevel = "none"
	GlowPulse  GlowLevel = "pulse"
	GlowSteady GlowLevel = "steady"
)

// glow moves none → pulse → steady. A new pulse overrides one in flight.
type glow struct {
	level  GlowLevel
	guard  scheduler.Guard
	cancel func()
}

// pulse starts a pulse lasting d; settled runs when it turns steady.
func (g *glow) pulse(timer scheduler.Timer, d time.Duration, settled func()) {
	if g.guard.Busy() {
		g.stop()
	}
	g.guard.TryAcquire()
	g.level = GlowPulse
	g.cancel = timer.AfterFunc(d, func() {
		g.guard.Release()
		g.cancel = nil
		g.level = GlowSteady
		settled()
	})
}

func (g *glow) stop() {
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	g.guard.Release()
}

// BulletState is where the header bullet is, or which way it is moving.
type BulletState string

const (
	BulletHidden   BulletState = "hidden"
	BulletStart    BulletState = "start"
	BulletEnd      BulletState = "end"
	BulletForward  BulletState = "forward"
	BulletBackward BulletState = "backward"
)

// bullet sweeps between start and end, one direction at a time. A trigger
// that arrives mid-sweep is deferred: only the latest one is kept, and it runs
// when the current sweep lands if it points somewhere else.
type bullet struct {
	state   BulletState
	guard   scheduler.Guard
	pending BulletState
	cancel  func()
}

// sweep moves the bullet to rest (BulletStart or BulletEnd). It reports
// false when the trigger was deferred.
func (b *bullet) sweep(timer scheduler.Timer, d time.Duration, rest BulletState, landed func()) bool {
	if !b.guard.TryAcquire() {
		b.pending = rest
		return false
	}
	b.pending = ""
	if rest == BulletEnd {
		b.state = BulletForward
	} else {
		b.state = BulletBackward
	}
	b.cancel = timer.AfterFunc(d, func() {
		b.guard.Release()
		b.cancel = nil
		b.state = rest
		next := b.pending
		b.pending = ""
		if next != "" && next != rest {
			b.sweep(timer, d, next, landed)
		}
		landed()
	})
	return true
}

func (b *bullet) stop() {
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.pending = ""
	b.guard.Release()
}
