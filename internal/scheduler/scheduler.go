// Package scheduler runs a declarative table of phase callbacks at fixed
// offsets from a single start instant.
package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// ErrOutOfOrder is returned when phase offsets decrease in declaration order.
var ErrOutOfOrder = errors.New("phase offsets must be non-decreasing")

// Timer is the host's cancellable delayed-callback facility.
type Timer interface {
	AfterFunc(d time.Duration, fn func()) (cancel func())
}

// Phase is one entry of the table: Run fires Offset after the batch starts.
type Phase struct {
	Name   string
	Offset time.Duration
	Run    func() error
}

// Scheduler schedules phase batches on a Timer.
type Scheduler struct {
	timer  Timer
	logger *log.Logger
}

// New creates a scheduler. A nil logger discards callback failures.
func New(timer Timer, logger *log.Logger) *Scheduler {
	return &Scheduler{timer: timer, logger: logger}
}

// Validate checks that offsets are non-negative and non-decreasing.
func Validate(phases []Phase) error {
	var prev time.Duration
	for i, p := range phases {
		if p.Offset < 0 {
			return fmt.Errorf("phase %q: negative offset %v", p.Name, p.Offset)
		}
		if i > 0 && p.Offset < prev {
			return fmt.Errorf("phase %q at %v after %v: %w", p.Name, p.Offset, prev, ErrOutOfOrder)
		}
		prev = p.Offset
	}
	return nil
}

// Schedule arms every phase now, referenced to this instant. Phases sharing an
// offset run from one timer in declaration order, so equal offsets never
// reorder. A phase that fails or panics is logged and its siblings still run.
// onAllComplete runs after the last phase. cancelAll stops every phase that
// has not fired yet, and onAllComplete with them; it is safe to call repeatedly.
func (s *Scheduler) Schedule(phases []Phase, onAllComplete func()) (cancelAll func(), err error) {
	if err := Validate(phases); err != nil {
		return nil, err
	}
	b := &batch{}
	groups := group(phases)
	if len(groups) == 0 {
		if onAllComplete != nil {
			b.cancels = append(b.cancels, s.timer.AfterFunc(0, onAllComplete))
		}
		return b.cancel, nil
	}
	for i, g := range groups {
		last := i == len(groups)-1
		g := g
		b.cancels = append(b.cancels, s.timer.AfterFunc(g[0].Offset, func() {
			for _, p := range g {
				if b.canceled {
					return
				}
				s.run(p)
			}
			if last && !b.canceled && onAllComplete != nil {
				onAllComplete()
			}
		}))
	}
	return b.cancel, nil
}

func (s *Scheduler) run(p Phase) {
	defer func() {
		if r := recover(); r != nil && s.logger != nil {
			s.logger.Error("phase callback panicked", "phase", p.Name, "panic", r)
		}
	}()
	if p.Run == nil {
		return
	}
	if err := p.Run(); err != nil && s.logger != nil {
		s.logger.Warn("phase callback failed", "phase", p.Name, "err", err)
	}
}

type batch struct {
	cancels  []func()
	canceled bool
}

func (b *batch) cancel() {
	if b.canceled {
		return
	}
	b.canceled = true
	for _, c := range b.cancels {
		c()
	}
}

// group splits phases into runs of equal offset, keeping declaration order.
func group(phases []Phase) [][]Phase {
	var out [][]Phase
	for _, p := range phases {
		n := len(out)
		if n > 0 && out[n-1][0].Offset == p.Offset {
			out[n-1] = append(out[n-1], p)
			continue
		}
		out = append(out, []Phase{p})
	}
	return out
}
